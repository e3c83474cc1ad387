package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// PersistenceError describes a stored field that could not be read back.
// The field falls back to its default; the error is only ever logged.
type PersistenceError struct {
	Field string
	Err   error
}

func (e *PersistenceError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("world state snapshot: %v", e.Err)
	}
	return fmt.Sprintf("world state field %q: %v", e.Field, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// snapshot is the serialized form of a WorldState.
type snapshot struct {
	PlayerLocation       Position          `json:"playerLocation"`
	Inventory            []Item            `json:"inventory"`
	CommandHistory       []Turn            `json:"commandHistory"`
	NarrativeHistory     []string          `json:"narrativeHistory"`
	TurnCount            int               `json:"turnCount"`
	LocationDescriptions map[string]string `json:"locationDescriptions"`
	DiscoveredItems      []string          `json:"discoveredItems"`
	Events               []string          `json:"events"`
}

// Persist writes the full state to the store.
func (w *WorldState) Persist() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.save()
}

func (w *WorldState) persistLocked() {
	if err := w.save(); err != nil {
		w.logger.Error("failed to persist world state", "err", err)
	}
}

func (w *WorldState) save() error {
	s := snapshot{
		PlayerLocation:       w.position,
		Inventory:            w.inventory,
		CommandHistory:       w.turns,
		NarrativeHistory:     w.narrative,
		TurnCount:            w.turnCount,
		LocationDescriptions: w.locationDescriptions,
		DiscoveredItems:      w.discoveredOrder,
		Events:               w.eventOrder,
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal world state: %w", err)
	}
	if err := w.store.Set(StateKey, string(data)); err != nil {
		return fmt.Errorf("save world state: %w", err)
	}
	return nil
}

// Restore replaces the in-memory state with the stored snapshot. Fields that
// are missing or malformed keep their defaults; the returned error lists
// them and the state is always usable.
func (w *WorldState) Restore() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.clear()

	raw, ok, err := w.store.Get(StateKey)
	if err != nil {
		return &PersistenceError{Err: err}
	}
	if !ok || raw == "" {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return &PersistenceError{Err: err}
	}

	var errs []error
	decode := func(name string, dst any) bool {
		msg, ok := fields[name]
		if !ok || string(msg) == "null" {
			return false
		}
		if err := json.Unmarshal(msg, dst); err != nil {
			errs = append(errs, &PersistenceError{Field: name, Err: err})
			return false
		}
		return true
	}

	var pos Position
	if decode("playerLocation", &pos) {
		w.position = pos
	}
	var inv []Item
	if decode("inventory", &inv) {
		for _, it := range inv {
			if slices.ContainsFunc(w.inventory, func(have Item) bool { return have.ID == it.ID }) {
				continue
			}
			w.inventory = append(w.inventory, it)
		}
	}
	var turns []Turn
	if decode("commandHistory", &turns) {
		w.turns = lastN(turns, MaxStoredTurns)
	}
	var narrative []string
	if decode("narrativeHistory", &narrative) {
		w.narrative = lastN(narrative, MaxStoredTurns)
	}
	var count int
	if decode("turnCount", &count) && count >= 0 {
		w.turnCount = count
	}
	var locs map[string]string
	if decode("locationDescriptions", &locs) && locs != nil {
		w.locationDescriptions = locs
	}
	var discovered []string
	if decode("discoveredItems", &discovered) {
		for _, id := range discovered {
			w.addDiscovered(id)
		}
	}
	var events []string
	if decode("events", &events) {
		for _, id := range events {
			if _, ok := w.events[id]; !ok {
				w.events[id] = struct{}{}
				w.eventOrder = append(w.eventOrder, id)
			}
		}
	}

	// Keep the invariants even when fields were lost independently.
	for _, it := range w.inventory {
		w.addDiscovered(it.ID)
	}
	if n := len(w.turns); n > 0 && w.turnCount <= w.turns[n-1].ID {
		w.turnCount = w.turns[n-1].ID + 1
	}

	return errors.Join(errs...)
}

func (w *WorldState) addDiscovered(id string) {
	if _, ok := w.discoveredItems[id]; ok {
		return
	}
	w.discoveredItems[id] = struct{}{}
	w.discoveredOrder = append(w.discoveredOrder, id)
}
