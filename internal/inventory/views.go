package inventory

import (
	"strings"

	"github.com/erazemk/zaloga/internal/model"
)

// Status is the display state of an item.
type Status string

const (
	StatusOK       Status = "ok"
	StatusLowStock Status = "low"
	StatusExpired  Status = "expired"
)

// FilterItems returns the items whose name contains search, ignoring case,
// in their original order. An empty search matches everything.
func FilterItems(items []model.Item, search string) []model.Item {
	needle := strings.ToLower(search)
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if needle == "" || strings.Contains(strings.ToLower(it.Name), needle) {
			out = append(out, it)
		}
	}
	return out
}

// IsLowStock reports whether the item is at or below its threshold.
func IsLowStock(item model.Item) bool {
	return item.Quantity <= item.Threshold
}

// IsExpired reports whether the item has an expiry date before today.
func IsExpired(item model.Item, today model.Date) bool {
	return item.Expiry != nil && !item.Expiry.IsZero() && item.Expiry.Before(today)
}

// StatusOf returns the item's status. Expired wins over low stock.
func StatusOf(item model.Item, today model.Date) Status {
	switch {
	case IsExpired(item, today):
		return StatusExpired
	case IsLowStock(item):
		return StatusLowStock
	default:
		return StatusOK
	}
}

// RestockAmount is how much to buy to get back to twice the threshold,
// never negative.
func RestockAmount(item model.Item) int {
	return max(0, item.Threshold*2-item.Quantity)
}

// ShoppingEntry is a low-stock item with its restock amount.
type ShoppingEntry struct {
	Item          model.Item `json:"item"`
	RestockAmount int        `json:"restock_amount"`
}

// ShoppingList returns the low-stock items in order.
func ShoppingList(items []model.Item) []ShoppingEntry {
	out := []ShoppingEntry{}
	for _, it := range items {
		if IsLowStock(it) {
			out = append(out, ShoppingEntry{Item: it, RestockAmount: RestockAmount(it)})
		}
	}
	return out
}

// Stats are the dashboard counters.
type Stats struct {
	Total   int `json:"total"`
	Low     int `json:"low"`
	Expired int `json:"expired"`
}

// ComputeStats counts all items, the low-stock ones and the expired ones.
// An item can be counted as both low and expired.
func ComputeStats(items []model.Item, today model.Date) Stats {
	st := Stats{Total: len(items)}
	for _, it := range items {
		if IsLowStock(it) {
			st.Low++
		}
		if IsExpired(it, today) {
			st.Expired++
		}
	}
	return st
}

// Row is an item annotated for display.
type Row struct {
	Item   model.Item `json:"item"`
	Status Status     `json:"status"`
}

// View is everything the presentation layer renders.
type View struct {
	Identity model.Identity           `json:"identity"`
	Today    model.Date               `json:"today"`
	Search   string                   `json:"search"`
	Items    []Row                    `json:"items"`
	Shopping []ShoppingEntry          `json:"shopping"`
	Stats    Stats                    `json:"stats"`
	Activity []model.ActivityLogEntry `json:"activity"`
	Edit     *EditSnapshot            `json:"edit,omitempty"`
}

// BuildView derives the full view. Only the item list is filtered; the
// shopping list and stats always cover every item.
func BuildView(items []model.Item, activity []model.ActivityLogEntry, search string, today model.Date) View {
	filtered := FilterItems(items, search)
	rows := make([]Row, len(filtered))
	for i, it := range filtered {
		rows[i] = Row{Item: it, Status: StatusOf(it, today)}
	}
	if activity == nil {
		activity = []model.ActivityLogEntry{}
	}
	return View{
		Today:    today,
		Search:   search,
		Items:    rows,
		Shopping: ShoppingList(items),
		Stats:    ComputeStats(items, today),
		Activity: activity,
	}
}
