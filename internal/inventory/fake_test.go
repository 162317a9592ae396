package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/model"
)

var errBoom = errors.New("boom")

// fakeBackend is a synchronous in-memory backend.Backend. Subscriptions get
// their first snapshot during the Subscribe call and a fresh one after every
// write, on the writer's goroutine.
type fakeBackend struct {
	mu        sync.Mutex
	identity  model.Identity
	users     map[string]fakeUser
	listeners map[int]func(model.Identity)
	nextL     int

	items    []model.Item
	activity []model.ActivityLogEntry
	blobs    map[string][]byte
	deleted  []string
	subs     []*fakeSub
	nextID   int
	clock    time.Time

	// holdPush suppresses snapshots after writes.
	holdPush bool

	updateErr  error
	appendErr  error
	createErr  error
	replaceErr error
	deleteErr  error
	blobDelErr error
	urlErr     error
	// uploadFailAt makes the n-th upload (1-based) fail.
	uploadFailAt int
	uploads      int
	// uploadGate, when set, blocks uploads until it is closed.
	uploadGate chan struct{}

	authCalls     int
	registerCalls int
}

type fakeUser struct {
	uid      string
	password string
}

type fakeSub struct {
	owner      string
	onItems    func([]model.Item)
	onActivity func([]model.ActivityLogEntry)
	onError    func(error)

	mu        sync.Mutex
	cancelled bool
}

func (s *fakeSub) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *fakeSub) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:     map[string]fakeUser{},
		listeners: map[int]func(model.Identity){},
		blobs:     map[string][]byte{},
		clock:     time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

var _ backend.Backend = (*fakeBackend)(nil)

// --- auth ---

func (f *fakeBackend) Authenticate(_ context.Context, email, password string) (model.Identity, error) {
	f.mu.Lock()
	f.authCalls++
	u, ok := f.users[email]
	f.mu.Unlock()
	if !ok {
		return model.Identity{}, backend.ErrUserNotFound
	}
	if u.password != password {
		return model.Identity{}, backend.ErrInvalidCredential
	}
	id := model.Identity{UID: u.uid, Email: email}
	f.setIdentity(id)
	return id, nil
}

func (f *fakeBackend) Register(_ context.Context, email, password string) (model.Identity, error) {
	f.mu.Lock()
	f.registerCalls++
	if _, ok := f.users[email]; ok {
		f.mu.Unlock()
		return model.Identity{}, backend.ErrEmailInUse
	}
	if len(password) < model.MinPasswordLength {
		f.mu.Unlock()
		return model.Identity{}, backend.ErrWeakPassword
	}
	uid := fmt.Sprintf("uid-%d", len(f.users)+1)
	f.users[email] = fakeUser{uid: uid, password: password}
	f.mu.Unlock()

	id := model.Identity{UID: uid, Email: email}
	f.setIdentity(id)
	return id, nil
}

func (f *fakeBackend) Deauthenticate(context.Context) error {
	f.setIdentity(model.Identity{})
	return nil
}

func (f *fakeBackend) OnIdentityChange(fn func(model.Identity)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.nextL
	f.nextL++
	f.listeners[k] = fn
	return func() {
		f.mu.Lock()
		delete(f.listeners, k)
		f.mu.Unlock()
	}
}

func (f *fakeBackend) Current() model.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity
}

func (f *fakeBackend) setIdentity(id model.Identity) {
	f.mu.Lock()
	if f.identity == id {
		f.mu.Unlock()
		return
	}
	f.identity = id
	var fns []func(model.Identity)
	for _, k := range sortedKeys(f.listeners) {
		fns = append(fns, f.listeners[k])
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// addUser registers an account without signing in.
func (f *fakeBackend) addUser(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid := fmt.Sprintf("uid-%d", len(f.users)+1)
	f.users[email] = fakeUser{uid: uid, password: password}
	return uid
}

// --- documents ---

func (f *fakeBackend) SubscribeItems(owner string, onSnapshot func([]model.Item), onError func(error)) backend.Subscription {
	sub := &fakeSub{owner: owner, onItems: onSnapshot, onError: onError}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	snap := f.itemsOf(owner)
	f.mu.Unlock()
	onSnapshot(snap)
	return sub
}

func (f *fakeBackend) SubscribeActivity(owner string, onSnapshot func([]model.ActivityLogEntry), onError func(error)) backend.Subscription {
	sub := &fakeSub{owner: owner, onActivity: onSnapshot, onError: onError}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	snap := f.activityOf(owner)
	f.mu.Unlock()
	onSnapshot(snap)
	return sub
}

func (f *fakeBackend) itemsOf(owner string) []model.Item {
	out := []model.Item{}
	for _, it := range f.items {
		if it.Owner == owner {
			out = append(out, it.Clone())
		}
	}
	return out
}

func (f *fakeBackend) activityOf(owner string) []model.ActivityLogEntry {
	out := []model.ActivityLogEntry{}
	for _, e := range f.activity {
		if e.Owner == owner {
			out = append(out, e)
		}
	}
	return out
}

// push delivers fresh snapshots to every live subscription of owner.
func (f *fakeBackend) push(owner string) {
	f.mu.Lock()
	if f.holdPush {
		f.mu.Unlock()
		return
	}
	type delivery struct {
		sub      *fakeSub
		items    []model.Item
		activity []model.ActivityLogEntry
	}
	var ds []delivery
	for _, s := range f.subs {
		if s.owner != owner || s.isCancelled() {
			continue
		}
		if s.onItems != nil {
			ds = append(ds, delivery{sub: s, items: f.itemsOf(owner)})
		} else {
			ds = append(ds, delivery{sub: s, activity: f.activityOf(owner)})
		}
	}
	f.mu.Unlock()

	for _, d := range ds {
		if d.sub.onItems != nil {
			d.sub.onItems(d.items)
		} else {
			d.sub.onActivity(d.activity)
		}
	}
}

// failSubscriptions reports err on every live subscription of owner.
func (f *fakeBackend) failSubscriptions(owner string, err error) {
	f.mu.Lock()
	var subs []*fakeSub
	for _, s := range f.subs {
		if s.owner == owner && !s.isCancelled() {
			subs = append(subs, s)
		}
	}
	f.mu.Unlock()
	for _, s := range subs {
		s.onError(err)
	}
}

func (f *fakeBackend) liveSubs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if !s.isCancelled() {
			n++
		}
	}
	return n
}

func (f *fakeBackend) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeBackend) uid() (string, error) {
	if f.identity.IsZero() {
		return "", backend.ErrNotAuthenticated
	}
	return f.identity.UID, nil
}

func (f *fakeBackend) find(id, owner string) int {
	for i, it := range f.items {
		if it.ID == id && it.Owner == owner {
			return i
		}
	}
	return -1
}

func (f *fakeBackend) NewItemID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("item-%d", f.nextID)
}

func (f *fakeBackend) CreateItem(_ context.Context, id string, fields model.ItemFields) error {
	f.mu.Lock()
	uid, err := f.uid()
	if err == nil {
		err = f.createErr
	}
	if err != nil {
		f.mu.Unlock()
		return err
	}
	now := f.tick()
	f.items = append(f.items, model.Item{
		ID: id, Owner: uid, Name: fields.Name, Category: fields.Category,
		Quantity: fields.Quantity, Unit: fields.Unit, Threshold: fields.Threshold,
		Expiry: fields.Expiry, Attachments: model.CloneAttachments(fields.Attachments),
		CreatedAt: now, UpdatedAt: now,
	})
	f.mu.Unlock()
	f.push(uid)
	return nil
}

func (f *fakeBackend) ReplaceItem(_ context.Context, id string, fields model.ItemFields) error {
	f.mu.Lock()
	uid, err := f.uid()
	if err == nil {
		err = f.replaceErr
	}
	if err != nil {
		f.mu.Unlock()
		return err
	}
	i := f.find(id, uid)
	if i < 0 {
		f.mu.Unlock()
		return backend.ErrNotFound
	}
	it := &f.items[i]
	it.Name, it.Category, it.Quantity, it.Unit, it.Threshold = fields.Name, fields.Category, fields.Quantity, fields.Unit, fields.Threshold
	it.Expiry = fields.Expiry
	it.Attachments = model.CloneAttachments(fields.Attachments)
	it.UpdatedAt = f.tick()
	f.mu.Unlock()
	f.push(uid)
	return nil
}

func (f *fakeBackend) UpdateQuantity(_ context.Context, id string, quantity int) error {
	f.mu.Lock()
	uid, err := f.uid()
	if err == nil {
		err = f.updateErr
	}
	if err != nil {
		f.mu.Unlock()
		return err
	}
	i := f.find(id, uid)
	if i < 0 {
		f.mu.Unlock()
		return backend.ErrNotFound
	}
	f.items[i].Quantity = quantity
	f.items[i].UpdatedAt = f.tick()
	f.mu.Unlock()
	f.push(uid)
	return nil
}

func (f *fakeBackend) DeleteItem(_ context.Context, id string) error {
	f.mu.Lock()
	uid, err := f.uid()
	if err == nil {
		err = f.deleteErr
	}
	if err != nil {
		f.mu.Unlock()
		return err
	}
	i := f.find(id, uid)
	if i < 0 {
		f.mu.Unlock()
		return backend.ErrNotFound
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	f.mu.Unlock()
	f.push(uid)
	return nil
}

func (f *fakeBackend) AppendActivity(_ context.Context, entry model.ActivityLogEntry) error {
	f.mu.Lock()
	uid, err := f.uid()
	if err == nil {
		err = f.appendErr
	}
	if err != nil {
		f.mu.Unlock()
		return err
	}
	ts := f.tick()
	entry.ID = fmt.Sprintf("log-%d", len(f.activity)+1)
	entry.Owner = uid
	entry.Timestamp = &ts
	f.activity = append(f.activity, entry)
	f.mu.Unlock()
	f.push(uid)
	return nil
}

// seedItem stores an item directly, without a push.
func (f *fakeBackend) seedItem(it model.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it.Attachments == nil {
		it.Attachments = []model.Attachment{}
	}
	f.items = append(f.items, it)
}

func (f *fakeBackend) activityFor(owner string) []model.ActivityLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activityOf(owner)
}

func (f *fakeBackend) stored(id string) (model.Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID == id {
			return it.Clone(), true
		}
	}
	return model.Item{}, false
}

// --- blobs ---

func (f *fakeBackend) UploadBlob(_ context.Context, path string, r io.Reader, contentType string) (backend.BlobRef, error) {
	f.mu.Lock()
	gate := f.uploadGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return backend.BlobRef{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadFailAt > 0 && f.uploads == f.uploadFailAt {
		return backend.BlobRef{}, errBoom
	}
	f.blobs[path] = bytes.Clone(data)
	return backend.BlobRef{Path: path, ContentType: contentType, Size: int64(len(data))}, nil
}

func (f *fakeBackend) RetrievalURL(_ context.Context, ref backend.BlobRef) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "https://blobs.test/" + ref.Path, nil
}

func (f *fakeBackend) DeleteBlob(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blobDelErr != nil {
		return f.blobDelErr
	}
	f.deleted = append(f.deleted, path)
	delete(f.blobs, path)
	return nil
}

// countingRecorder counts Recorder calls.
type countingRecorder struct {
	mu                               sync.Mutex
	adjusted, appendFailed           int
	commitsOK, commitsFailed         int
	uploadsOK, uploadsFailed         int
	blobDeletesOK, blobDeletesFailed int
}

func (r *countingRecorder) QuantityAdjusted() { r.mu.Lock(); r.adjusted++; r.mu.Unlock() }

func (r *countingRecorder) ActivityAppendFailed() { r.mu.Lock(); r.appendFailed++; r.mu.Unlock() }

func (r *countingRecorder) ItemCommitted(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.commitsOK++
	} else {
		r.commitsFailed++
	}
}

func (r *countingRecorder) AttachmentUploaded(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.uploadsOK++
	} else {
		r.uploadsFailed++
	}
}

func (r *countingRecorder) BlobDeleted(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.blobDeletesOK++
	} else {
		r.blobDeletesFailed++
	}
}
