// Package backend defines the collaborator the inventory client talks to:
// an identity provider, a live document store and blob storage.
package backend

import (
	"context"
	"errors"
	"io"

	"github.com/erazemk/zaloga/internal/model"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrEmailInUse        = errors.New("email already in use")
	ErrWeakPassword      = errors.New("password too weak")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNotFound          = errors.New("document not found")
	ErrPermissionDenied  = errors.New("permission denied")
)

// Subscription is a live query. Cancel is idempotent and does not wait: a
// callback already being delivered may still run once after it returns, but
// results loaded across the cancellation are dropped and nothing follows.
// Consumers that must ignore that last delivery track it themselves.
type Subscription interface {
	Cancel()
}

// Auth is the identity provider.
type Auth interface {
	Authenticate(ctx context.Context, email, password string) (model.Identity, error)
	Register(ctx context.Context, email, password string) (model.Identity, error)
	Deauthenticate(ctx context.Context) error
	// OnIdentityChange registers fn for every identity transition. A zero
	// identity means signed out. The returned func unregisters fn.
	OnIdentityChange(fn func(model.Identity)) (unregister func())
	Current() model.Identity
}

// Documents is the live document store holding items and activity logs.
type Documents interface {
	SubscribeItems(owner string, onSnapshot func([]model.Item), onError func(error)) Subscription
	SubscribeActivity(owner string, onSnapshot func([]model.ActivityLogEntry), onError func(error)) Subscription

	// NewItemID reserves an id for an item that is not written yet.
	NewItemID() string
	CreateItem(ctx context.Context, id string, fields model.ItemFields) error
	ReplaceItem(ctx context.Context, id string, fields model.ItemFields) error
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	DeleteItem(ctx context.Context, id string) error
	AppendActivity(ctx context.Context, entry model.ActivityLogEntry) error
}

// BlobRef identifies an uploaded blob.
type BlobRef struct {
	Path        string
	ContentType string
	Size        int64
}

// Blobs is the blob storage service.
type Blobs interface {
	UploadBlob(ctx context.Context, path string, r io.Reader, contentType string) (BlobRef, error)
	RetrievalURL(ctx context.Context, ref BlobRef) (string, error)
	DeleteBlob(ctx context.Context, path string) error
}

// Backend bundles the three services for one client.
type Backend interface {
	Auth
	Documents
	Blobs
}
