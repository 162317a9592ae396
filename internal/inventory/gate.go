package inventory

import (
	"log/slog"
	"sync"

	"github.com/erazemk/zaloga/internal/model"
)

// Gate follows the signed-in identity. Signing in starts both store
// subscriptions for that identity; signing out cancels them, empties both
// stores and discards the edit buffer. Switching identities does both.
type Gate struct {
	items    *ItemStore
	activity *ActivityStore
	edit     *EditSession

	transition sync.Mutex // serializes Transition

	mu       sync.RWMutex
	identity model.Identity
}

// NewGate returns a gate in the unauthenticated state.
func NewGate(items *ItemStore, activity *ActivityStore, edit *EditSession) *Gate {
	return &Gate{items: items, activity: activity, edit: edit}
}

// Identity returns the current identity; zero when signed out.
func (g *Gate) Identity() model.Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.identity
}

// Transition moves the gate to id. Repeating the current identity does
// nothing.
func (g *Gate) Transition(id model.Identity) {
	g.transition.Lock()
	defer g.transition.Unlock()

	g.mu.Lock()
	prev := g.identity
	g.identity = id
	g.mu.Unlock()

	if prev == id {
		return
	}

	if !prev.IsZero() {
		g.teardown()
		slog.Info("session closed", "uid", prev.UID)
	}
	if !id.IsZero() {
		g.items.Subscribe(id)
		g.activity.Subscribe(id)
		slog.Info("session opened", "uid", id.UID)
	}
}

func (g *Gate) teardown() {
	g.items.Unsubscribe()
	g.activity.Unsubscribe()
	if g.edit != nil {
		g.edit.Discard()
	}
	g.items.Clear()
	g.activity.Clear()
}
