package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

// CreateActivity records a quantity change. The timestamp is assigned here,
// the caller's Timestamp field is ignored.
func CreateActivity(ctx context.Context, db *sql.DB, e model.ActivityLogEntry, now time.Time) (*model.ActivityLogEntry, error) {
	if e.Change == 0 {
		return nil, fmt.Errorf("change must be non-zero")
	}

	ts := now.UTC()
	_, err := db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, owner, item_id, item_name, change, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Owner, e.ItemID, e.ItemName, e.Change, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("recording activity: %w", err)
	}

	e.Timestamp = &ts
	return &e, nil
}

// ListActivity returns every activity entry of an owner. No particular order
// is guaranteed; readers sort on their own.
func ListActivity(ctx context.Context, db *sql.DB, owner string) ([]model.ActivityLogEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, owner, item_id, item_name, change, timestamp
		 FROM activity_logs WHERE owner = ?`, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	var entries []model.ActivityLogEntry
	for rows.Next() {
		var e model.ActivityLogEntry
		var ts sql.NullTime
		if err := rows.Scan(&e.ID, &e.Owner, &e.ItemID, &e.ItemName, &e.Change, &ts); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		if ts.Valid {
			t := ts.Time
			e.Timestamp = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
