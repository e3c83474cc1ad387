package models

import "time"

// History windows. These are independent on purpose: the displayed window is
// a view over the stored log and the prompt window bounds outbound context.
const (
	MaxStoredTurns     = 50
	MaxDisplayedTurns  = 30
	PromptContextTurns = 10
)

// Position is the player's coordinate on the unbounded prairie grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Item is something the player carries. Identity is by ID; names are only
// used when matching drops.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Turn is one command/response exchange and the position at the time it was recorded.
type Turn struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"` // empty for the opening narrative
	Response  string    `json:"response"`
	Location  Position  `json:"location"`
}

// Exchange is the command/response pair exposed to prompt building.
type Exchange struct {
	Command  string
	Response string
}

// Context is a bounded, read-only projection of the world used to build prompts.
type Context struct {
	Position        Position
	Inventory       []Item
	TurnCount       int
	RecentTurns     []Exchange // at most PromptContextTurns
	DiscoveredItems []string
	Events          []string
}

// Direction deltas. Diagonals move one step on both axes.
var directions = map[string]Position{
	"north":     {X: 0, Y: 1},
	"south":     {X: 0, Y: -1},
	"east":      {X: 1, Y: 0},
	"west":      {X: -1, Y: 0},
	"northeast": {X: 1, Y: 1},
	"northwest": {X: -1, Y: 1},
	"southeast": {X: 1, Y: -1},
	"southwest": {X: -1, Y: -1},
}

// IsDirection reports whether dir is one of the eight compass directions.
func IsDirection(dir string) bool {
	_, ok := directions[dir]
	return ok
}
