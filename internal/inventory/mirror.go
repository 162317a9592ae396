package inventory

import (
	"sync"

	"github.com/erazemk/zaloga/internal/backend"
)

// mirror keeps the latest snapshot of one live query. Every snapshot fully
// replaces the previous one. Each start bumps a generation so callbacks of
// an earlier subscription are dropped even if they arrive late.
type mirror[T any] struct {
	collection string

	mu    sync.RWMutex
	gen   uint64
	ended uint64 // generation whose query failed
	sub   backend.Subscription
	data  []T

	// derive runs with mu held after data changed.
	derive  func([]T)
	changed func()
	failed  func(error)
}

type openFunc[T any] func(onSnapshot func([]T), onError func(error)) backend.Subscription

// start cancels any running subscription and opens a new one.
func (m *mirror[T]) start(open openFunc[T]) {
	m.mu.Lock()
	if m.sub != nil {
		m.sub.Cancel()
		m.sub = nil
	}
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	sub := open(
		func(snap []T) { m.replace(gen, snap) },
		func(err error) { m.fail(gen, err) },
	)

	m.mu.Lock()
	if m.gen == gen && m.ended != gen {
		m.sub = sub
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	sub.Cancel()
}

// stop cancels the subscription, if any. Safe to call repeatedly.
func (m *mirror[T]) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sub != nil {
		m.sub.Cancel()
		m.sub = nil
	}
	m.gen++
}

// active reports whether a subscription is running.
func (m *mirror[T]) active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sub != nil
}

func (m *mirror[T]) clear() {
	m.mu.Lock()
	m.data = nil
	if m.derive != nil {
		m.derive(nil)
	}
	m.mu.Unlock()
	m.notify()
}

func (m *mirror[T]) replace(gen uint64, snap []T) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.data = snap
	if m.derive != nil {
		m.derive(snap)
	}
	m.mu.Unlock()
	m.notify()
}

func (m *mirror[T]) fail(gen uint64, err error) {
	m.mu.Lock()
	stale := gen != m.gen
	if !stale {
		m.sub = nil
		m.ended = gen
	}
	m.mu.Unlock()
	if stale || m.failed == nil {
		return
	}
	m.failed(&SubscriptionError{Collection: m.collection, Err: err})
}

func (m *mirror[T]) notify() {
	if m.changed != nil {
		m.changed()
	}
}
