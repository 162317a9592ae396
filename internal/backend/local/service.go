// Package local is a self-hosted backend: SQLite documents with in-process
// live queries, a bcrypt identity provider and a pluggable blob store.
package local

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/blob"
	"github.com/erazemk/zaloga/internal/model"
)

// Service holds the state shared by all connections.
type Service struct {
	db    *sql.DB
	blobs blob.Store
	hub   *hub
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a backend service over an already migrated database.
func NewService(db *sql.DB, blobs blob.Store, opts ...Option) *Service {
	s := &Service{
		db:    db,
		blobs: blobs,
		hub:   newHub(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a connection with its own identity, the equivalent of one
// client SDK instance.
func (s *Service) Connect() *Conn {
	return &Conn{svc: s, listeners: make(map[int]func(model.Identity))}
}

// OpenBlob returns a blob owned by uid.
func (s *Service) OpenBlob(ctx context.Context, uid, key string) (blob.Info, io.ReadCloser, error) {
	k, err := ownedKey(uid, key)
	if err != nil {
		return blob.Info{}, nil, err
	}
	return s.blobs.Open(ctx, k)
}

// PresignBlob returns a short-lived direct URL for a blob owned by uid. ok is
// false when the store serves blobs itself.
func (s *Service) PresignBlob(ctx context.Context, uid, key string) (url string, ok bool, err error) {
	p, isPresigner := s.blobs.(blob.Presigner)
	if !isPresigner {
		return "", false, nil
	}
	k, err := ownedKey(uid, key)
	if err != nil {
		return "", false, err
	}
	url, err = p.Presign(ctx, k)
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

func itemsTopic(owner string) string    { return "items/" + owner }
func activityTopic(owner string) string { return "activity_logs/" + owner }

// ownedKey validates that key lives under users/{uid}/.
func ownedKey(uid, key string) (string, error) {
	if uid == "" {
		return "", backend.ErrNotAuthenticated
	}
	k, err := blob.CleanKey(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", backend.ErrPermissionDenied, err)
	}
	if !strings.HasPrefix(k, "users/"+uid+"/") {
		return "", backend.ErrPermissionDenied
	}
	return k, nil
}
