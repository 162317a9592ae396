package model

import (
	"math"
	"strings"
	"time"
)

// Item represents one stocked household item.
type Item struct {
	ID          string       `json:"id"`
	Owner       string       `json:"owner"`
	Name        string       `json:"name"`
	Category    string       `json:"category"`
	Quantity    int          `json:"quantity"`
	Unit        string       `json:"unit"`
	Threshold   int          `json:"threshold"`
	Expiry      *Date        `json:"expiry,omitempty"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ItemFields holds the user-editable part of an item, as written by a create
// or a full replace.
type ItemFields struct {
	Name        string       `json:"name"`
	Category    string       `json:"category"`
	Quantity    int          `json:"quantity"`
	Unit        string       `json:"unit"`
	Threshold   int          `json:"threshold"`
	Expiry      *Date        `json:"expiry,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is a file stored in blob storage and referenced by an item.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Path string `json:"path"`
}

// IsImage reports whether the attachment has an image MIME type.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.Type, "image/")
}

// ClampQuantity returns q, or 0 when q is negative.
func ClampQuantity(q int) int {
	if q < 0 {
		return 0
	}
	return q
}

// AdjustQuantity returns max(0, q+delta), saturating instead of overflowing.
func AdjustQuantity(q, delta int) int {
	q = ClampQuantity(q)
	if delta > 0 && q > math.MaxInt-delta {
		return math.MaxInt
	}
	return ClampQuantity(q + delta)
}

// Fields returns the editable subset of the item.
func (i Item) Fields() ItemFields {
	c := i.Clone()
	return ItemFields{
		Name:        c.Name,
		Category:    c.Category,
		Quantity:    c.Quantity,
		Unit:        c.Unit,
		Threshold:   c.Threshold,
		Expiry:      c.Expiry,
		Attachments: c.Attachments,
	}
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	if i.Expiry != nil {
		d := *i.Expiry
		out.Expiry = &d
	}
	out.Attachments = CloneAttachments(i.Attachments)
	return out
}

// Normalize trims text fields, clamps the numeric ones to be non-negative
// and drops a zero expiry.
func (f ItemFields) Normalize() ItemFields {
	f.Name = strings.TrimSpace(f.Name)
	f.Category = strings.TrimSpace(f.Category)
	f.Unit = strings.TrimSpace(f.Unit)
	f.Quantity = ClampQuantity(f.Quantity)
	f.Threshold = ClampQuantity(f.Threshold)
	f.Attachments = CloneAttachments(f.Attachments)
	if f.Expiry != nil && !f.Expiry.IsZero() {
		d := *f.Expiry
		f.Expiry = &d
	} else {
		f.Expiry = nil
	}
	return f
}

// CloneAttachments copies an attachment slice. It never returns nil.
func CloneAttachments(in []Attachment) []Attachment {
	out := make([]Attachment, len(in))
	copy(out, in)
	return out
}
