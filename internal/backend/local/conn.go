package local

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/model"
)

// Conn is one client's connection to the Service. It implements
// backend.Backend with its own signed-in identity.
type Conn struct {
	svc *Service

	mu        sync.Mutex
	identity  model.Identity
	listeners map[int]func(model.Identity)
	nextID    int
}

var _ backend.Backend = (*Conn)(nil)

// Current returns the signed-in identity, or the zero identity.
func (c *Conn) Current() model.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// OnIdentityChange registers fn for identity transitions.
func (c *Conn) OnIdentityChange(fn func(model.Identity)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// setIdentity stores id and notifies listeners in registration order. The
// listeners run on the caller's goroutine without the connection lock held.
func (c *Conn) setIdentity(id model.Identity) {
	c.mu.Lock()
	if c.identity == id {
		c.mu.Unlock()
		return
	}
	c.identity = id
	keys := make([]int, 0, len(c.listeners))
	for k := range c.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(model.Identity), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, c.listeners[k])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

func (c *Conn) uid() (string, error) {
	id := c.Current()
	if id.IsZero() {
		return "", backend.ErrNotAuthenticated
	}
	return id.UID, nil
}

// Restore signs the connection in as an existing user without a password,
// used to resume a session whose token was already verified.
func (c *Conn) Restore(ctx context.Context, uid string) (model.Identity, error) {
	user, err := c.svc.getUser(ctx, uid)
	if err != nil {
		return model.Identity{}, err
	}
	if user == nil {
		return model.Identity{}, backend.ErrUserNotFound
	}
	id := user.Identity()
	c.setIdentity(id)
	slog.Info("session restored", "uid", id.UID)
	return id, nil
}

func wrapStore(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
