package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/erazemk/zaloga/internal/model"
)

const itemColumns = `id, owner, name, category, quantity, unit, threshold, expiry, attachments, created_at, updated_at`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateItem inserts a new item document under the given id.
func CreateItem(ctx context.Context, db *sql.DB, id, owner string, f model.ItemFields, now time.Time) (*model.Item, error) {
	f = f.Normalize()
	attachments, err := json.Marshal(f.Attachments)
	if err != nil {
		return nil, fmt.Errorf("encoding attachments: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO items (id, owner, name, category, quantity, unit, threshold, expiry, attachments, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, owner, f.Name, f.Category, f.Quantity, f.Unit, f.Threshold, expiryValue(f.Expiry), string(attachments),
		now.UTC(), now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, db, id)
}

// ReplaceItem overwrites all editable fields of an owner's item and bumps
// updated_at. created_at is left untouched. It reports whether a row matched.
func ReplaceItem(ctx context.Context, db *sql.DB, id, owner string, f model.ItemFields, now time.Time) (bool, error) {
	f = f.Normalize()
	attachments, err := json.Marshal(f.Attachments)
	if err != nil {
		return false, fmt.Errorf("encoding attachments: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, category = ?, quantity = ?, unit = ?, threshold = ?, expiry = ?,
		        attachments = ?, updated_at = ?
		 WHERE id = ? AND owner = ?`,
		f.Name, f.Category, f.Quantity, f.Unit, f.Threshold, expiryValue(f.Expiry), string(attachments),
		now.UTC(), id, owner,
	)
	if err != nil {
		return false, fmt.Errorf("replacing item: %w", err)
	}
	return affected(result)
}

// SetItemQuantity updates only the quantity of an owner's item. Negative
// values are stored as zero.
func SetItemQuantity(ctx context.Context, db *sql.DB, id, owner string, quantity int, now time.Time) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET quantity = ?, updated_at = ? WHERE id = ? AND owner = ?`,
		model.ClampQuantity(quantity), now.UTC(), id, owner,
	)
	if err != nil {
		return false, fmt.Errorf("setting item quantity: %w", err)
	}
	return affected(result)
}

// DeleteItem removes an owner's item.
func DeleteItem(ctx context.Context, db *sql.DB, id, owner string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM items WHERE id = ? AND owner = ?`, id, owner,
	)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return affected(result)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all items of an owner in insertion order.
func ListItems(ctx context.Context, db *sql.DB, owner string) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE owner = ? ORDER BY seq`, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var expiry sql.NullString
	var attachments string
	err := row.Scan(&item.ID, &item.Owner, &item.Name, &item.Category, &item.Quantity, &item.Unit,
		&item.Threshold, &expiry, &attachments, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if expiry.Valid && expiry.String != "" {
		d, err := model.ParseDate(expiry.String)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", item.ID, err)
		}
		item.Expiry = &d
	}

	if err := json.Unmarshal([]byte(attachments), &item.Attachments); err != nil {
		return nil, fmt.Errorf("item %s: decoding attachments: %w", item.ID, err)
	}
	if item.Attachments == nil {
		item.Attachments = []model.Attachment{}
	}
	return item, nil
}

func expiryValue(d *model.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking affected rows: %w", err)
	}
	return n > 0, nil
}
