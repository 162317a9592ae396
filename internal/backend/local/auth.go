package local

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/zaloga/internal/auth"
	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

func (s *Service) getUser(ctx context.Context, uid string) (*model.User, error) {
	user, err := store.GetUser(ctx, s.db, uid)
	if err != nil {
		return nil, wrapStore("loading user", err)
	}
	return user, nil
}

// Authenticate signs in with email and password.
func (c *Conn) Authenticate(ctx context.Context, email, password string) (model.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.Identity{}, backend.ErrInvalidCredential
	}

	user, err := store.GetUserByEmail(ctx, c.svc.db, email)
	if err != nil {
		return model.Identity{}, wrapStore("looking up user", err)
	}
	if user == nil {
		return model.Identity{}, backend.ErrUserNotFound
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return model.Identity{}, err
	}
	if !ok {
		return model.Identity{}, backend.ErrInvalidCredential
	}

	id := user.Identity()
	c.setIdentity(id)
	slog.Info("user signed in", "uid", id.UID)
	return id, nil
}

// Register creates an account and signs in as it.
func (c *Conn) Register(ctx context.Context, email, password string) (model.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return model.Identity{}, fmt.Errorf("invalid email %q", email)
	}
	if err := model.ValidatePassword(password); err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", backend.ErrWeakPassword, err)
	}

	existing, err := store.GetUserByEmail(ctx, c.svc.db, email)
	if err != nil {
		return model.Identity{}, wrapStore("looking up user", err)
	}
	if existing != nil {
		return model.Identity{}, backend.ErrEmailInUse
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return model.Identity{}, err
	}

	user, err := store.CreateUser(ctx, c.svc.db, uuid.New().String(), email, hash, c.svc.now())
	if err != nil {
		// Lost a race with a concurrent registration of the same address.
		if again, _ := store.GetUserByEmail(ctx, c.svc.db, email); again != nil {
			return model.Identity{}, backend.ErrEmailInUse
		}
		return model.Identity{}, err
	}

	id := user.Identity()
	c.setIdentity(id)
	slog.Info("user registered", "uid", id.UID)
	return id, nil
}

// Deauthenticate signs out.
func (c *Conn) Deauthenticate(_ context.Context) error {
	prev := c.Current()
	c.setIdentity(model.Identity{})
	if !prev.IsZero() {
		slog.Info("user signed out", "uid", prev.UID)
	}
	return nil
}
