package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/zaloga/internal/db"
)

func TestRevokeAndCheckToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected token not to be revoked")
	}

	if err := RevokeToken(ctx, database, "jti-1", testNow.Add(time.Hour), testNow); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	revoked, err = IsTokenRevoked(ctx, database, "jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if !revoked {
		t.Error("expected token to be revoked")
	}

	revoked, _ = IsTokenRevoked(ctx, database, "jti-2")
	if revoked {
		t.Error("expected different token not to be revoked")
	}
}

func TestRevokeTokenIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := RevokeToken(ctx, database, "jti-1", testNow.Add(time.Hour), testNow); err != nil {
			t.Fatalf("RevokeToken #%d: %v", i+1, err)
		}
	}
}

func TestRevokeToken_PurgesExpired(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := RevokeToken(ctx, database, "old", testNow.Add(time.Minute), testNow); err != nil {
		t.Fatal(err)
	}
	later := testNow.Add(time.Hour)
	if err := RevokeToken(ctx, database, "new", later.Add(time.Hour), later); err != nil {
		t.Fatal(err)
	}

	revoked, _ := IsTokenRevoked(ctx, database, "old")
	if revoked {
		t.Error("expected expired revocation to be purged")
	}
	revoked, _ = IsTokenRevoked(ctx, database, "new")
	if !revoked {
		t.Error("expected new revocation to remain")
	}
}
