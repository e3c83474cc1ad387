package models

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Store is the durable key-value slot the world state is saved into.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// StateKey is the store key holding the serialized world.
const StateKey = "infinitePrairie_gameState"

// WorldState is the single per-session record of where the player is, what
// they carry and what has happened. Every mutation is persisted immediately.
type WorldState struct {
	mu sync.RWMutex

	store  Store
	logger *slog.Logger
	now    func() time.Time

	position             Position
	inventory            []Item
	turns                []Turn
	narrative            []string
	turnCount            int
	locationDescriptions map[string]string
	discoveredItems      map[string]struct{}
	discoveredOrder      []string
	events               map[string]struct{}
	eventOrder           []string
}

// Option configures a WorldState.
type Option func(*WorldState)

// WithLogger sets the logger used to report persistence problems.
func WithLogger(l *slog.Logger) Option {
	return func(w *WorldState) { w.logger = l }
}

// WithClock overrides the clock used to timestamp turns.
func WithClock(now func() time.Time) Option {
	return func(w *WorldState) { w.now = now }
}

// NewWorldState loads the persisted world from store, falling back to
// defaults for anything absent or malformed.
func NewWorldState(store Store, opts ...Option) *WorldState {
	w := &WorldState{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.clear()
	if err := w.Restore(); err != nil {
		w.logger.Warn("recovered world state with defaults", "err", err)
	}
	return w
}

func (w *WorldState) clear() {
	w.position = Position{}
	w.inventory = nil
	w.turns = nil
	w.narrative = nil
	w.turnCount = 0
	w.locationDescriptions = make(map[string]string)
	w.discoveredItems = make(map[string]struct{})
	w.discoveredOrder = nil
	w.events = make(map[string]struct{})
	w.eventOrder = nil
}

// AppendTurn records a command and the narrative it produced.
func (w *WorldState) AppendTurn(command, response string) Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	turn := Turn{
		ID:        w.turnCount,
		Timestamp: w.now(),
		Command:   command,
		Response:  response,
		Location:  w.position,
	}
	w.turnCount++

	w.turns = append(w.turns, turn)
	w.narrative = append(w.narrative, response)
	if n := len(w.turns) - MaxStoredTurns; n > 0 {
		w.turns = slices.Delete(w.turns, 0, n)
	}
	if n := len(w.narrative) - MaxStoredTurns; n > 0 {
		w.narrative = slices.Delete(w.narrative, 0, n)
	}

	w.persistLocked()
	return turn
}

// AddItem puts item in the inventory unless its id has been seen before.
func (w *WorldState) AddItem(item Item) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, seen := w.discoveredItems[item.ID]; seen {
		return false
	}
	w.inventory = append(w.inventory, item)
	w.discoveredItems[item.ID] = struct{}{}
	w.discoveredOrder = append(w.discoveredOrder, item.ID)
	w.persistLocked()
	return true
}

// RemoveItem drops the first inventory entry with the given id. The
// discovered set keeps the id.
func (w *WorldState) RemoveItem(id string) (Item, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := slices.IndexFunc(w.inventory, func(it Item) bool { return it.ID == id })
	if i < 0 {
		return Item{}, false
	}
	item := w.inventory[i]
	w.inventory = slices.Delete(w.inventory, i, i+1)
	w.persistLocked()
	return item, true
}

// HasItem reports whether an item with id is currently carried.
func (w *WorldState) HasItem(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.ContainsFunc(w.inventory, func(it Item) bool { return it.ID == id })
}

// Move steps one unit in direction. Unknown directions leave the position
// untouched and return false.
func (w *WorldState) Move(direction string) bool {
	delta, ok := directions[direction]
	if !ok {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.position.X += delta.X
	w.position.Y += delta.Y
	w.persistLocked()
	return true
}

// RecordEvent adds eventID to the event set.
func (w *WorldState) RecordEvent(eventID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.events[eventID]; !ok {
		w.events[eventID] = struct{}{}
		w.eventOrder = append(w.eventOrder, eventID)
	}
	w.persistLocked()
}

// HasEvent reports whether eventID has been recorded.
func (w *WorldState) HasEvent(eventID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.events[eventID]
	return ok
}

// CacheLocationDescription remembers description for the current position.
func (w *WorldState) CacheLocationDescription(description string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.locationDescriptions[locationKey(w.position)] = description
	w.persistLocked()
}

// CachedLocationDescription returns the description cached for the current position.
func (w *WorldState) CachedLocationDescription() (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	d, ok := w.locationDescriptions[locationKey(w.position)]
	return d, ok
}

func locationKey(p Position) string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// Position returns the current coordinates.
func (w *WorldState) Position() Position {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.position
}

// Inventory returns a copy of the carried items in pickup order.
func (w *WorldState) Inventory() []Item {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.inventory)
}

// TurnCount is the number of turns ever appended, including evicted ones.
func (w *WorldState) TurnCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.turnCount
}

// Turns returns a copy of the stored turn log, oldest first.
func (w *WorldState) Turns() []Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.turns)
}

// DisplayedTurns returns the most recent MaxDisplayedTurns of the stored log.
func (w *WorldState) DisplayedTurns() []Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(lastN(w.turns, MaxDisplayedTurns))
}

// NarrativeLog returns a copy of the stored narrative texts, oldest first.
func (w *WorldState) NarrativeLog() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.narrative)
}

// ContextSnapshot returns the bounded view used for prompts.
func (w *WorldState) ContextSnapshot() Context {
	w.mu.RLock()
	defer w.mu.RUnlock()

	recent := lastN(w.turns, PromptContextTurns)
	exchanges := make([]Exchange, 0, len(recent))
	for _, t := range recent {
		exchanges = append(exchanges, Exchange{Command: t.Command, Response: t.Response})
	}
	return Context{
		Position:        w.position,
		Inventory:       slices.Clone(w.inventory),
		TurnCount:       w.turnCount,
		RecentTurns:     exchanges,
		DiscoveredItems: slices.Clone(w.discoveredOrder),
		Events:          slices.Clone(w.eventOrder),
	}
}

// Reset erases the saved snapshot and returns the world to its initial
// state. If the snapshot cannot be erased the world is left untouched.
func (w *WorldState) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.store.Remove(StateKey); err != nil {
		return fmt.Errorf("erase world state: %w", err)
	}
	w.clear()
	return nil
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
