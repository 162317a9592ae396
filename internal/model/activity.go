package model

import "time"

// ActivityLogEntry records one non-zero quantity change of an item.
// ItemName is a snapshot taken when the change was made, so it survives
// renames and deletion of the item.
type ActivityLogEntry struct {
	ID        string     `json:"id"`
	Owner     string     `json:"owner"`
	ItemID    string     `json:"item_id"`
	ItemName  string     `json:"item_name"`
	Change    int        `json:"change"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Consumption reports whether the entry removed stock.
func (e ActivityLogEntry) Consumption() bool {
	return e.Change < 0
}
