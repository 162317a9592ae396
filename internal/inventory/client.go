package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/model"
)

// Options configures a Client.
type Options struct {
	// ActivityLimit caps the recent-activity view, DefaultActivityLimit when 0.
	ActivityLimit   int
	DownscaleImages bool
	Recorder        Recorder
	Clock           func() time.Time
}

// Client is one user's inventory session: the gate, both stores, the edit
// buffer and the search text, bound to a backend connection.
type Client struct {
	be  backend.Backend
	now func() time.Time

	Gate     *Gate
	Items    *ItemStore
	Activity *ActivityStore
	Edit     *EditSession

	unregister func()

	mu        sync.Mutex
	search    string
	nextID    int
	listeners map[int]func()
	errorFns  map[int]func(error)
}

// NewClient wires a client to be. If be already has an identity the stores
// start right away.
func NewClient(be backend.Backend, opts Options) *Client {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	c := &Client{
		be:        be,
		now:       now,
		listeners: map[int]func(){},
		errorFns:  map[int]func(error){},
	}

	c.Activity = NewActivityStore(be, opts.ActivityLimit, opts.Recorder)
	c.Items = NewItemStore(be, be, c.Activity, opts.Recorder)
	c.Edit = NewEditSession(c.Items, be, be.Current, EditOptions{
		DownscaleImages: opts.DownscaleImages,
		Clock:           now,
		Recorder:        opts.Recorder,
	})
	c.Gate = NewGate(c.Items, c.Activity, c.Edit)

	c.Items.OnChange(c.changed)
	c.Activity.OnChange(c.changed)
	c.Items.OnError(c.failed)
	c.Activity.OnError(c.failed)

	c.unregister = be.OnIdentityChange(func(id model.Identity) {
		c.Gate.Transition(id)
		c.changed()
	})
	if cur := be.Current(); !cur.IsZero() {
		c.Gate.Transition(cur)
	}
	return c
}

// Login signs in. When the account does not exist, or the credential is
// rejected, registration is tried once with the same email and password.
func (c *Client) Login(ctx context.Context, email, password string) (model.Identity, error) {
	id, err := c.be.Authenticate(ctx, email, password)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, backend.ErrUserNotFound) && !errors.Is(err, backend.ErrInvalidCredential) {
		return model.Identity{}, &AuthError{Op: "sign in", Err: err}
	}

	id, rerr := c.be.Register(ctx, email, password)
	if rerr == nil {
		return id, nil
	}
	if errors.Is(rerr, backend.ErrEmailInUse) {
		return model.Identity{}, &AuthError{Op: "sign in", Message: "wrong password", Err: err}
	}
	return model.Identity{}, &AuthError{Op: "register", Err: rerr}
}

// Logout signs out; the gate clears all state.
func (c *Client) Logout(ctx context.Context) error {
	return c.be.Deauthenticate(ctx)
}

// Identity returns the signed-in identity.
func (c *Client) Identity() model.Identity {
	return c.Gate.Identity()
}

// SetSearch sets the item filter text.
func (c *Client) SetSearch(text string) {
	c.mu.Lock()
	c.search = text
	c.mu.Unlock()
	c.changed()
}

// Search returns the item filter text.
func (c *Client) Search() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search
}

// AdjustQuantity adds delta to an item's quantity.
func (c *Client) AdjustQuantity(ctx context.Context, id string, delta int) error {
	if c.Identity().IsZero() {
		return ErrNotAuthenticated
	}
	return c.Items.AdjustQuantity(ctx, id, delta)
}

// DeleteItem deletes an item and its attachments.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	if c.Identity().IsZero() {
		return ErrNotAuthenticated
	}
	return c.Items.Delete(ctx, id)
}

// Commit saves the open edit session and notifies listeners so the form
// state is re-rendered.
func (c *Client) Commit(ctx context.Context) (string, error) {
	id, err := c.Edit.Commit(ctx)
	c.changed()
	return id, err
}

// View derives everything the UI shows from the current state.
func (c *Client) View() View {
	v := BuildView(c.Items.Items(), c.Activity.Recent(), c.Search(), model.Today(c.now()))
	v.Identity = c.Identity()
	v.Edit = c.Edit.Snapshot()
	return v
}

// OnChange registers fn to run after any state change. The returned func
// unregisters it.
func (c *Client) OnChange(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// OnError registers fn for subscription failures.
func (c *Client) OnError(fn func(error)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.errorFns[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.errorFns, id)
		c.mu.Unlock()
	}
}

// Close detaches the client from its backend and stops both subscriptions.
func (c *Client) Close() {
	c.unregister()
	c.Items.Unsubscribe()
	c.Activity.Unsubscribe()
}

func (c *Client) changed() {
	for _, fn := range c.snapshotListeners() {
		fn()
	}
}

func (c *Client) failed(err error) {
	c.mu.Lock()
	fns := make([]func(error), 0, len(c.errorFns))
	for _, k := range sortedKeys(c.errorFns) {
		fns = append(fns, c.errorFns[k])
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
	c.changed()
}

func (c *Client) snapshotListeners() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fns := make([]func(), 0, len(c.listeners))
	for _, k := range sortedKeys(c.listeners) {
		fns = append(fns, c.listeners[k])
	}
	return fns
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
