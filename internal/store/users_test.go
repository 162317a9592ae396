package store

import (
	"context"
	"testing"

	"github.com/erazemk/zaloga/internal/db"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, database, "u1", "  Ana@Example.com ")
	if user.Email != "ana@example.com" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}

	got, err := GetUser(ctx, database, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got == nil || got.Email != "ana@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetUserByEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	createTestUser(t, database, "u1", "ana@example.com")

	got, err := GetUserByEmail(ctx, database, "ANA@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Fatalf("expected u1, got %+v", got)
	}

	missing, err := GetUserByEmail(ctx, database, "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown email, got %+v", missing)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	database := db.NewTestDB(t)
	createTestUser(t, database, "u1", "ana@example.com")

	_, err := CreateUser(context.Background(), database, "u2", "ana@example.com", "hash", testNow)
	if err == nil {
		t.Fatal("expected error for duplicate email")
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	createTestUser(t, database, "u1", "ana@example.com")

	if err := UpdateUserPassword(ctx, database, "u1", "newhash"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}
	got, _ := GetUser(ctx, database, "u1")
	if got.PasswordHash != "newhash" {
		t.Errorf("expected updated hash, got %q", got.PasswordHash)
	}
}
