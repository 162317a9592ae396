package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/model"
)

// ItemStore mirrors the signed-in user's items and turns mutation intents
// into backend writes. Its contents change only when a snapshot arrives;
// writes are never applied locally.
type ItemStore struct {
	docs     backend.Documents
	blobs    backend.Blobs
	activity *ActivityStore
	rec      Recorder

	m     mirror[model.Item]
	index map[string]int
}

// NewItemStore creates an empty store. activity receives the log entries of
// quantity changes.
func NewItemStore(docs backend.Documents, blobs backend.Blobs, activity *ActivityStore, rec Recorder) *ItemStore {
	s := &ItemStore{
		docs:     docs,
		blobs:    blobs,
		activity: activity,
		rec:      recorderOrNop(rec),
		index:    map[string]int{},
	}
	s.m.collection = "items"
	s.m.derive = func(items []model.Item) {
		s.index = make(map[string]int, len(items))
		for i, it := range items {
			s.index[it.ID] = i
		}
	}
	return s
}

// OnChange sets the function called after every snapshot or clear.
func (s *ItemStore) OnChange(fn func()) { s.m.changed = fn }

// OnError sets the function receiving *SubscriptionError values.
func (s *ItemStore) OnError(fn func(error)) { s.m.failed = fn }

// Subscribe starts mirroring the items of id, cancelling any earlier
// subscription first.
func (s *ItemStore) Subscribe(id model.Identity) {
	s.m.start(func(onSnapshot func([]model.Item), onError func(error)) backend.Subscription {
		return s.docs.SubscribeItems(id.UID, onSnapshot, onError)
	})
}

// Unsubscribe cancels the live query. It is idempotent.
func (s *ItemStore) Unsubscribe() { s.m.stop() }

// Clear empties the mirror.
func (s *ItemStore) Clear() { s.m.clear() }

// Subscribed reports whether a live query is running.
func (s *ItemStore) Subscribed() bool { return s.m.active() }

// Items returns a copy of the current snapshot in snapshot order.
func (s *ItemStore) Items() []model.Item {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]model.Item, len(s.m.data))
	for i, it := range s.m.data {
		out[i] = it.Clone()
	}
	return out
}

// Get returns a copy of the item with the given id.
func (s *ItemStore) Get(id string) (model.Item, bool) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Item{}, false
	}
	return s.m.data[i].Clone(), true
}

// AdjustQuantity writes max(0, quantity+delta) for the item. When delta is
// non-zero one activity entry is appended, carrying the name the item had
// when the call was made. Append failures do not fail the adjustment.
func (s *ItemStore) AdjustQuantity(ctx context.Context, id string, delta int) error {
	item, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	quantity := model.AdjustQuantity(item.Quantity, delta)
	if err := s.docs.UpdateQuantity(ctx, id, quantity); err != nil {
		return &WriteError{Op: "update quantity", ID: id, Err: err}
	}
	s.rec.QuantityAdjusted()

	if delta != 0 && s.activity != nil {
		s.activity.Append(ctx, model.ActivityLogEntry{
			ItemID:   id,
			ItemName: item.Name,
			Change:   delta,
		})
	}
	return nil
}

// NewID reserves an id for an item that is about to be created.
func (s *ItemStore) NewID() string {
	return s.docs.NewItemID()
}

// CreateOrReplace writes the full item record. create selects between a
// new document and a replacement of an existing one.
func (s *ItemStore) CreateOrReplace(ctx context.Context, id string, create bool, fields model.ItemFields) error {
	fields = fields.Normalize()
	if create {
		if err := s.docs.CreateItem(ctx, id, fields); err != nil {
			return &WriteError{Op: "create item", ID: id, Err: err}
		}
		return nil
	}
	if err := s.docs.ReplaceItem(ctx, id, fields); err != nil {
		return &WriteError{Op: "replace item", ID: id, Err: err}
	}
	return nil
}

// Delete removes the item and then requests deletion of its attachment
// blobs. Blob failures are logged only.
func (s *ItemStore) Delete(ctx context.Context, id string) error {
	item, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.docs.DeleteItem(ctx, id); err != nil {
		return &WriteError{Op: "delete item", ID: id, Err: err}
	}
	deleteBlobs(ctx, s.blobs, item.Attachments, s.rec)
	return nil
}

// deleteBlobs requests deletion of every attachment's blob, best-effort.
func deleteBlobs(ctx context.Context, blobs backend.Blobs, attachments []model.Attachment, rec Recorder) {
	for _, a := range attachments {
		if a.Path == "" {
			continue
		}
		if err := blobs.DeleteBlob(ctx, a.Path); err != nil {
			slog.Warn("deleting attachment blob", "path", a.Path, "error", err)
			rec.BlobDeleted(false)
			continue
		}
		rec.BlobDeleted(true)
	}
}
