package interpreter

import "strings"

// conclusionPhrases are matched against the lower-cased narrative. The words
// "end" and "journey" appearing separately never conclude a story.
var conclusionPhrases = []string{
	"whisper to the wind to begin a new journey",
	"your journey has concluded",
	"your journey has ended",
	"end of your journey",
	"journey ends",
	"journey has come to an end",
}

// EndMarker is the literal that always concludes a story.
const EndMarker = "THE END"

// IsConclusion reports whether text ends the story.
func IsConclusion(text string) bool {
	if strings.Contains(text, EndMarker) {
		return true
	}
	return containsAny(strings.ToLower(text), conclusionPhrases)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
