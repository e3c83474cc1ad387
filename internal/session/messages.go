package session

// InitialNarrative opens every new journey.
const InitialNarrative = `You stand in the middle of a vast prairie that seems to have no edges. Tall grass leans in a slow wind that smells faintly of rain still far away. The horizon runs off in every direction until the ground and the sky forget which is which.

A weathered wooden sign leans nearby. Its paint has mostly given up, but you can still read: "The prairie remembers what you forget."

You can go north, south, east, or west from here, and each way seems to be keeping a secret.

What will you do?`

// TransitionMessage is shown when the world is reset.
const TransitionMessage = "The horizon shimmers and dissolves. The grasses bend and whisper of beginnings. The prairie forgets you, so that you may find it again."

const (
	MsgKeySaved   = "API key saved! The prairie awaits..."
	MsgInvalidKey = "Please enter a valid API key."
)
