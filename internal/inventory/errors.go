package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means an item id has no match in the local mirror.
	ErrNotFound         = errors.New("item not found")
	ErrNotAuthenticated = errors.New("not signed in")
	ErrNoEditSession    = errors.New("no edit session is open")
	ErrSaving           = errors.New("edit session is saving")
	ErrIndexOutOfRange  = errors.New("index out of range")
)

// AuthError is returned by Login when neither sign-in nor the registration
// fallback succeeded.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// WriteError is a failed document write.
type WriteError struct {
	Op  string
	ID  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// UploadError is a failed attachment upload or URL issuance.
type UploadError struct {
	Name string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading %s: %v", e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubscriptionError is a live query failure. The subscription is over once
// it is reported.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("%s subscription: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
