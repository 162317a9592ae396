package inventory

import (
	"context"
	"log/slog"
	"sort"

	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/model"
)

// DefaultActivityLimit is the number of entries in the recent-activity view.
const DefaultActivityLimit = 10

// ActivityStore mirrors the signed-in user's activity log and keeps the
// recent projection: newest first, capped at the limit.
type ActivityStore struct {
	docs  backend.Documents
	limit int
	rec   Recorder

	m      mirror[model.ActivityLogEntry]
	recent []model.ActivityLogEntry
}

// NewActivityStore creates an empty store. A non-positive limit means
// DefaultActivityLimit.
func NewActivityStore(docs backend.Documents, limit int, rec Recorder) *ActivityStore {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	s := &ActivityStore{docs: docs, limit: limit, rec: recorderOrNop(rec)}
	s.m.collection = "activity_logs"
	s.m.derive = func(entries []model.ActivityLogEntry) {
		s.recent = Recent(entries, s.limit)
	}
	return s
}

func (s *ActivityStore) OnChange(fn func())     { s.m.changed = fn }
func (s *ActivityStore) OnError(fn func(error)) { s.m.failed = fn }
func (s *ActivityStore) Unsubscribe()           { s.m.stop() }
func (s *ActivityStore) Clear()                 { s.m.clear() }
func (s *ActivityStore) Subscribed() bool       { return s.m.active() }

// Subscribe starts mirroring the activity of id.
func (s *ActivityStore) Subscribe(id model.Identity) {
	s.m.start(func(onSnapshot func([]model.ActivityLogEntry), onError func(error)) backend.Subscription {
		return s.docs.SubscribeActivity(id.UID, onSnapshot, onError)
	})
}

// Recent returns a copy of the current projection.
func (s *ActivityStore) Recent() []model.ActivityLogEntry {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := make([]model.ActivityLogEntry, len(s.recent))
	copy(out, s.recent)
	return out
}

// Len returns the number of entries in the last snapshot.
func (s *ActivityStore) Len() int {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return len(s.m.data)
}

// Append records an entry. Failures are logged and counted, never returned.
func (s *ActivityStore) Append(ctx context.Context, entry model.ActivityLogEntry) {
	if err := s.docs.AppendActivity(ctx, entry); err != nil {
		slog.Warn("activity append failed", "item", entry.ItemID, "change", entry.Change, "error", err)
		s.rec.ActivityAppendFailed()
	}
}

// Recent sorts a copy of entries by timestamp, newest first, and keeps at
// most limit of them. Entries without a timestamp sort as the oldest; ties
// keep their snapshot order.
func Recent(entries []model.ActivityLogEntry, limit int) []model.ActivityLogEntry {
	out := make([]model.ActivityLogEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Timestamp, out[j].Timestamp
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
