package model

import (
	"errors"
	"time"
)

// MinPasswordLength is the shortest password the identity provider accepts.
const MinPasswordLength = 6

// User is an account of the local identity provider.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated user reference scoping all owned records.
// The zero value means nobody is signed in.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// IsZero reports whether the identity is empty.
func (id Identity) IsZero() bool {
	return id.UID == ""
}

// Identity returns the identity of the user.
func (u *User) Identity() Identity {
	return Identity{UID: u.ID, Email: u.Email}
}

// ErrPasswordTooShort is returned by ValidatePassword.
var ErrPasswordTooShort = errors.New("password must be at least 6 characters")

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
