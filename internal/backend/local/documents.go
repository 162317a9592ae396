package local

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/store"
)

// SubscribeItems streams the owner's items in insertion order.
func (c *Conn) SubscribeItems(owner string, onSnapshot func([]model.Item), onError func(error)) backend.Subscription {
	db := c.svc.db
	return subscribe(c.svc.hub, itemsTopic(owner), func(ctx context.Context) ([]model.Item, error) {
		items, err := store.ListItems(ctx, db, owner)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []model.Item{}
		}
		return items, nil
	}, onSnapshot, onError)
}

// SubscribeActivity streams the owner's activity entries, unordered.
func (c *Conn) SubscribeActivity(owner string, onSnapshot func([]model.ActivityLogEntry), onError func(error)) backend.Subscription {
	db := c.svc.db
	return subscribe(c.svc.hub, activityTopic(owner), func(ctx context.Context) ([]model.ActivityLogEntry, error) {
		entries, err := store.ListActivity(ctx, db, owner)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []model.ActivityLogEntry{}
		}
		return entries, nil
	}, onSnapshot, onError)
}

// NewItemID returns a fresh document id.
func (c *Conn) NewItemID() string {
	return uuid.New().String()
}

// CreateItem writes a new item owned by the signed-in user.
func (c *Conn) CreateItem(ctx context.Context, id string, fields model.ItemFields) error {
	uid, err := c.uid()
	if err != nil {
		return err
	}

	existing, err := store.GetItem(ctx, c.svc.db, id)
	if err != nil {
		return wrapStore("checking item", err)
	}
	if existing != nil {
		if existing.Owner != uid {
			return backend.ErrPermissionDenied
		}
		return fmt.Errorf("item %s already exists", id)
	}

	if _, err := store.CreateItem(ctx, c.svc.db, id, uid, fields, c.svc.now()); err != nil {
		return err
	}
	c.svc.hub.publish(itemsTopic(uid))
	return nil
}

// ReplaceItem overwrites the editable fields of an owned item.
func (c *Conn) ReplaceItem(ctx context.Context, id string, fields model.ItemFields) error {
	uid, err := c.uid()
	if err != nil {
		return err
	}
	ok, err := store.ReplaceItem(ctx, c.svc.db, id, uid, fields, c.svc.now())
	if err != nil {
		return err
	}
	if !ok {
		return backend.ErrNotFound
	}
	c.svc.hub.publish(itemsTopic(uid))
	return nil
}

// UpdateQuantity writes only the quantity field of an owned item.
func (c *Conn) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	uid, err := c.uid()
	if err != nil {
		return err
	}
	ok, err := store.SetItemQuantity(ctx, c.svc.db, id, uid, quantity, c.svc.now())
	if err != nil {
		return err
	}
	if !ok {
		return backend.ErrNotFound
	}
	c.svc.hub.publish(itemsTopic(uid))
	return nil
}

// DeleteItem removes an owned item.
func (c *Conn) DeleteItem(ctx context.Context, id string) error {
	uid, err := c.uid()
	if err != nil {
		return err
	}
	ok, err := store.DeleteItem(ctx, c.svc.db, id, uid)
	if err != nil {
		return err
	}
	if !ok {
		return backend.ErrNotFound
	}
	c.svc.hub.publish(itemsTopic(uid))
	return nil
}

// AppendActivity records an activity entry for the signed-in user. The id,
// owner and timestamp are assigned here.
func (c *Conn) AppendActivity(ctx context.Context, entry model.ActivityLogEntry) error {
	uid, err := c.uid()
	if err != nil {
		return err
	}
	entry.ID = uuid.New().String()
	entry.Owner = uid
	if _, err := store.CreateActivity(ctx, c.svc.db, entry, c.svc.now()); err != nil {
		return err
	}
	c.svc.hub.publish(activityTopic(uid))
	return nil
}
