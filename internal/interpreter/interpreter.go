// Package interpreter infers inventory and movement changes from free-form
// narrative text. The rules are fixed substring heuristics; paraphrases the
// rules do not list are ignored.
package interpreter

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/tatianab/prairie/internal/models"
)

// DefaultItemDescription is used when no description can be read from the narrative.
const DefaultItemDescription = "a mysterious item from the prairie"

var (
	pickupVerbs     = []string{"take", "pick up", "grab", "collect"}
	pickupConfirms  = []string{"you pick up", "you take", "you add", "added to your inventory", "to your inventory", "you now have", "you obtain", "you acquire"}
	pickupSentences = []string{"pick up", "take", "added", "obtain", "acquire"}
	moveBlocked     = []string{"can't go", "cannot go", "unable to go"}
	dropConfirms    = []string{"you drop", "you set down"}

	pickupVerbRe  = regexp.MustCompile(`take|pick up|grab|collect`)
	leadingTheRe  = regexp.MustCompile(`^the\s+`)
	descIsRe      = regexp.MustCompile(`(?i)is (.*?)\.`)
	descArticleRe = regexp.MustCompile(`(?i)a (.*?)\.`)

	// Diagonals come first so "go northeast" is not read as "go north".
	moveRe = regexp.MustCompile(`go\s+(northeast|northwest|southeast|southwest|north|south|east|west)`)
)

// Kind identifies an inferred effect.
type Kind int

const (
	Pickup Kind = iota + 1
	Move
	Drop
)

func (k Kind) String() string {
	switch k {
	case Pickup:
		return "pickup"
	case Move:
		return "move"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

// Effect is one inferred change to the world.
type Effect struct {
	Kind Kind
	// Name is the title-cased item name for Pickup and the lower-cased
	// candidate name for Drop.
	Name        string
	Description string
	Direction   string
}

// Classify infers effects from a narrative and the command that produced it.
// Pickup, movement and drop rules are evaluated independently, in that order.
func Classify(text, command string) []Effect {
	lowerCommand := strings.ToLower(strings.TrimSpace(command))
	lowerText := strings.ToLower(text)

	var effects []Effect
	if e, ok := classifyPickup(text, lowerText, lowerCommand); ok {
		effects = append(effects, e)
	}
	if e, ok := classifyMove(lowerText, lowerCommand); ok {
		effects = append(effects, e)
	}
	if e, ok := classifyDrop(lowerText, lowerCommand); ok {
		effects = append(effects, e)
	}
	return effects
}

func classifyPickup(text, lowerText, lowerCommand string) (Effect, bool) {
	if !containsAny(lowerCommand, pickupVerbs) || !containsAny(lowerText, pickupConfirms) {
		return Effect{}, false
	}
	name := stripArticle(pickupVerbRe.ReplaceAllString(lowerCommand, ""))
	if name == "" {
		return Effect{}, false
	}
	return Effect{
		Kind:        Pickup,
		Name:        titleCase(name),
		Description: describe(text, name),
	}, true
}

// describe finds the first sentence naming the item with a pickup word and
// reads a description from it. Splitting on "." drops the terminators the
// patterns need, so the patterns run from the sentence to the end of text.
func describe(text, name string) string {
	offset := 0
	for _, sentence := range strings.Split(text, ".") {
		lower := strings.ToLower(sentence)
		if strings.Contains(lower, name) && containsAny(lower, pickupSentences) {
			rest := text[offset:]
			if m := descIsRe.FindStringSubmatch(rest); m != nil && m[1] != "" {
				return m[1]
			}
			if m := descArticleRe.FindStringSubmatch(rest); m != nil && m[1] != "" {
				return m[1]
			}
			break
		}
		offset += len(sentence) + 1
	}
	return DefaultItemDescription
}

func classifyMove(lowerText, lowerCommand string) (Effect, bool) {
	m := moveRe.FindStringSubmatch(lowerCommand)
	if m == nil || containsAny(lowerText, moveBlocked) {
		return Effect{}, false
	}
	return Effect{Kind: Move, Direction: m[1]}, true
}

func classifyDrop(lowerText, lowerCommand string) (Effect, bool) {
	if !strings.Contains(lowerCommand, "drop") || !containsAny(lowerText, dropConfirms) {
		return Effect{}, false
	}
	name := stripArticle(strings.ReplaceAll(lowerCommand, "drop", ""))
	return Effect{Kind: Drop, Name: name}, true
}

func stripArticle(s string) string {
	s = strings.TrimSpace(s)
	return strings.TrimSpace(leadingTheRe.ReplaceAllString(s, ""))
}

// titleCase upper-cases the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Result is the outcome of interpreting one response.
type Result struct {
	Effects    []Effect
	Removed    []models.Item
	Added      []models.Item
	Moved      bool
	Conclusion bool
}

// Interpreter applies classified effects to a world.
type Interpreter struct {
	newID  func() string
	logger *slog.Logger
}

// New returns an Interpreter minting ULID-based item ids.
func New(logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		newID:  func() string { return "item_" + ulid.Make().String() },
		logger: logger,
	}
}

// Interpret classifies text, applies the effects to w and reports whether
// the story concluded.
func (in *Interpreter) Interpret(text, command string, w *models.WorldState) Result {
	res := Result{
		Effects:    Classify(text, command),
		Conclusion: IsConclusion(text),
	}
	for _, e := range res.Effects {
		switch e.Kind {
		case Pickup:
			item := models.Item{ID: in.newID(), Name: e.Name, Description: e.Description}
			if w.AddItem(item) {
				res.Added = append(res.Added, item)
				in.logger.Debug("item picked up", "id", item.ID, "name", item.Name)
			}
		case Move:
			if w.Move(e.Direction) {
				res.Moved = true
				in.logger.Debug("player moved", "direction", e.Direction, "position", w.Position())
			}
		case Drop:
			if item, ok := dropTarget(w.Inventory(), e.Name); ok {
				if removed, ok := w.RemoveItem(item.ID); ok {
					res.Removed = append(res.Removed, removed)
					in.logger.Debug("item dropped", "id", removed.ID, "name", removed.Name)
				}
			}
		}
	}
	return res
}

// dropTarget returns the first item whose lower-cased name equals candidate
// or appears inside it.
func dropTarget(inventory []models.Item, candidate string) (models.Item, bool) {
	for _, it := range inventory {
		name := strings.ToLower(it.Name)
		if name == candidate || strings.Contains(candidate, name) {
			return it, true
		}
	}
	return models.Item{}, false
}
