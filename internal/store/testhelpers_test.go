package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func createTestUser(t *testing.T, database *sql.DB, id, email string) *model.User {
	t.Helper()
	user, err := CreateUser(context.Background(), database, id, email, "hash", testNow)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}
