package store

import (
	"context"
	"testing"

	"github.com/erazemk/zaloga/internal/db"
	"github.com/erazemk/zaloga/internal/model"
)

func TestCreateAndListActivity(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	createTestUser(t, database, "u1", "ana@example.com")
	createTestUser(t, database, "u2", "bob@example.com")

	entry, err := CreateActivity(ctx, database, model.ActivityLogEntry{
		ID: "a1", Owner: "u1", ItemID: "i1", ItemName: "Milk", Change: -1,
	}, testNow)
	if err != nil {
		t.Fatalf("CreateActivity: %v", err)
	}
	if entry.Timestamp == nil || !entry.Timestamp.Equal(testNow) {
		t.Errorf("expected timestamp %v, got %v", testNow, entry.Timestamp)
	}

	if _, err := CreateActivity(ctx, database, model.ActivityLogEntry{
		ID: "a2", Owner: "u2", ItemID: "i2", ItemName: "Bread", Change: 2,
	}, testNow); err != nil {
		t.Fatal(err)
	}

	entries, err := ListActivity(ctx, database, "u1")
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.ItemName != "Milk" || got.Change != -1 || got.ItemID != "i1" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Timestamp == nil || !got.Timestamp.Equal(testNow) {
		t.Errorf("expected timestamp %v, got %v", testNow, got.Timestamp)
	}
}

func TestCreateActivity_ZeroChange(t *testing.T) {
	database := db.NewTestDB(t)
	createTestUser(t, database, "u1", "ana@example.com")

	_, err := CreateActivity(context.Background(), database, model.ActivityLogEntry{
		ID: "a1", Owner: "u1", ItemID: "i1", ItemName: "Milk",
	}, testNow)
	if err == nil {
		t.Fatal("expected error for zero change")
	}
}

func TestListActivity_NullTimestamp(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	createTestUser(t, database, "u1", "ana@example.com")

	if _, err := database.ExecContext(ctx,
		`INSERT INTO activity_logs (id, owner, item_id, item_name, change) VALUES ('a1', 'u1', 'i1', 'Milk', 1)`,
	); err != nil {
		t.Fatal(err)
	}

	entries, err := ListActivity(ctx, database, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Timestamp != nil {
		t.Fatalf("expected one entry without timestamp, got %+v", entries)
	}
}
