package inventory

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/model"
)

// signedIn returns a fake backend with one signed-in user and item and
// activity stores subscribed for that user.
func signedIn(t *testing.T, items ...model.Item) (*fakeBackend, *ItemStore, *ActivityStore, model.Identity) {
	t.Helper()
	fb := newFakeBackend()
	id, err := fb.Register(context.Background(), "ana@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range items {
		it.Owner = id.UID
		fb.seedItem(it)
	}

	activity := NewActivityStore(fb, 0, nil)
	store := NewItemStore(fb, fb, activity, nil)
	store.Subscribe(id)
	activity.Subscribe(id)
	return fb, store, activity, id
}

func TestSubscribeFullReplace(t *testing.T) {
	fb, store, _, id := signedIn(t,
		model.Item{ID: "a", Name: "Milk"},
		model.Item{ID: "b", Name: "Bread"},
	)
	if got := names(store.Items()); !equalStrings(got, []string{"Milk", "Bread"}) {
		t.Fatalf("unexpected initial items %v", got)
	}

	fb.mu.Lock()
	fb.items = []model.Item{{ID: "c", Owner: id.UID, Name: "Eggs"}}
	fb.mu.Unlock()
	fb.push(id.UID)

	if got := names(store.Items()); !equalStrings(got, []string{"Eggs"}) {
		t.Fatalf("expected full replace, got %v", got)
	}
	if _, ok := store.Get("a"); ok {
		t.Fatal("stale item still indexed")
	}
}

func TestResubscribeCancelsPrevious(t *testing.T) {
	fb, store, _, id := signedIn(t)

	store.Subscribe(id)
	store.Subscribe(id)

	// One activity subscription plus exactly one item subscription.
	if n := fb.liveSubs(); n != 2 {
		t.Fatalf("expected 2 live subscriptions, got %d", n)
	}
}

func TestStaleSnapshotDropped(t *testing.T) {
	fb := newFakeBackend()
	store := NewItemStore(fb, fb, nil, nil)

	var first func([]model.Item)
	store.m.start(func(onSnapshot func([]model.Item), onError func(error)) backend.Subscription {
		first = onSnapshot
		return &fakeSub{}
	})
	store.Subscribe(model.Identity{UID: "u"})

	first([]model.Item{{ID: "ghost", Name: "Ghost"}})
	if len(store.Items()) != 0 {
		t.Fatalf("snapshot from cancelled subscription applied: %v", names(store.Items()))
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	fb, store, _, _ := signedIn(t)

	store.Unsubscribe()
	store.Unsubscribe()
	if store.Subscribed() {
		t.Fatal("expected no subscription")
	}
	if n := fb.liveSubs(); n != 1 {
		t.Fatalf("expected only the activity subscription, got %d", n)
	}
}

func TestAdjustQuantityScenario(t *testing.T) {
	fb, store, activity, id := signedIn(t, model.Item{ID: "a", Name: "Eggs", Quantity: 2, Threshold: 3})

	if err := store.AdjustQuantity(context.Background(), "a", -1); err != nil {
		t.Fatalf("AdjustQuantity: %v", err)
	}

	stored, _ := fb.stored("a")
	if stored.Quantity != 1 {
		t.Errorf("expected backend quantity 1, got %d", stored.Quantity)
	}
	item, _ := store.Get("a")
	if item.Quantity != 1 {
		t.Errorf("expected mirrored quantity 1, got %d", item.Quantity)
	}

	logs := fb.activityFor(id.UID)
	if len(logs) != 1 || logs[0].Change != -1 || logs[0].ItemName != "Eggs" || logs[0].ItemID != "a" {
		t.Fatalf("expected one -1 entry for Eggs, got %+v", logs)
	}
	if len(activity.Recent()) != 1 {
		t.Errorf("expected activity mirrored, got %d", len(activity.Recent()))
	}

	list := ShoppingList(store.Items())
	if len(list) != 1 || list[0].RestockAmount != 5 {
		t.Errorf("expected restock 5, got %+v", list)
	}
}

func TestAdjustQuantityNeverNegative(t *testing.T) {
	fb, store, _, id := signedIn(t, model.Item{ID: "a", Name: "Salt", Quantity: 2})

	if err := store.AdjustQuantity(context.Background(), "a", -5); err != nil {
		t.Fatal(err)
	}
	stored, _ := fb.stored("a")
	if stored.Quantity != 0 {
		t.Errorf("expected 0, got %d", stored.Quantity)
	}

	// The requested delta is logged, not the clamped change.
	logs := fb.activityFor(id.UID)
	if len(logs) != 1 || logs[0].Change != -5 {
		t.Errorf("expected one -5 entry, got %+v", logs)
	}
}

func TestAdjustQuantitySaturates(t *testing.T) {
	fb, store, _, _ := signedIn(t, model.Item{ID: "a", Name: "Flour", Quantity: 5})

	if err := store.AdjustQuantity(context.Background(), "a", math.MaxInt); err != nil {
		t.Fatal(err)
	}
	stored, _ := fb.stored("a")
	if stored.Quantity != math.MaxInt {
		t.Errorf("expected saturated quantity, got %d", stored.Quantity)
	}
}

func TestAdjustQuantityZeroDelta(t *testing.T) {
	fb, store, _, id := signedIn(t, model.Item{ID: "a", Name: "Rice", Quantity: 4})

	if err := store.AdjustQuantity(context.Background(), "a", 0); err != nil {
		t.Fatal(err)
	}
	if logs := fb.activityFor(id.UID); len(logs) != 0 {
		t.Errorf("expected no log entry, got %+v", logs)
	}
}

func TestAdjustQuantityNameSnapshotBeforeWrite(t *testing.T) {
	fb, store, _, id := signedIn(t, model.Item{ID: "a", Name: "Old name", Quantity: 1})

	// Rename on the backend without the mirror seeing it yet.
	fb.mu.Lock()
	fb.items[0].Name = "New name"
	fb.mu.Unlock()

	if err := store.AdjustQuantity(context.Background(), "a", 1); err != nil {
		t.Fatal(err)
	}
	logs := fb.activityFor(id.UID)
	if len(logs) != 1 || logs[0].ItemName != "Old name" {
		t.Errorf("expected name captured at call time, got %+v", logs)
	}
}

func TestAdjustQuantityNotFound(t *testing.T) {
	_, store, _, _ := signedIn(t)

	err := store.AdjustQuantity(context.Background(), "missing", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdjustQuantityWriteError(t *testing.T) {
	fb, store, _, id := signedIn(t, model.Item{ID: "a", Name: "Milk", Quantity: 3})
	fb.updateErr = errBoom

	err := store.AdjustQuantity(context.Background(), "a", 2)
	var werr *WriteError
	if !errors.As(err, &werr) || !errors.Is(err, errBoom) {
		t.Fatalf("expected WriteError wrapping boom, got %v", err)
	}

	item, _ := store.Get("a")
	if item.Quantity != 3 {
		t.Errorf("local quantity changed to %d", item.Quantity)
	}
	if logs := fb.activityFor(id.UID); len(logs) != 0 {
		t.Errorf("expected no log entry, got %+v", logs)
	}
}

func TestAdjustQuantityNoOptimisticUpdate(t *testing.T) {
	fb, store, _, _ := signedIn(t, model.Item{ID: "a", Name: "Milk", Quantity: 3})
	fb.holdPush = true

	if err := store.AdjustQuantity(context.Background(), "a", 1); err != nil {
		t.Fatal(err)
	}
	if item, _ := store.Get("a"); item.Quantity != 3 {
		t.Fatalf("expected mirror to wait for a snapshot, got %d", item.Quantity)
	}

	fb.mu.Lock()
	fb.holdPush = false
	owner := fb.identity.UID
	fb.mu.Unlock()
	fb.push(owner)

	if item, _ := store.Get("a"); item.Quantity != 4 {
		t.Fatalf("expected 4 after snapshot, got %d", item.Quantity)
	}
}

func TestAdjustQuantityAppendFailureIgnored(t *testing.T) {
	fb, store, _, _ := signedIn(t, model.Item{ID: "a", Name: "Milk", Quantity: 3})
	fb.appendErr = errBoom

	if err := store.AdjustQuantity(context.Background(), "a", -1); err != nil {
		t.Fatalf("append failure leaked: %v", err)
	}
	if stored, _ := fb.stored("a"); stored.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", stored.Quantity)
	}
}

func TestDeleteRemovesBlobs(t *testing.T) {
	fb, store, _, _ := signedIn(t, model.Item{
		ID: "a", Name: "Warranty",
		Attachments: []model.Attachment{
			{Name: "a.pdf", Path: "users/uid-1/a/1_a.pdf"},
			{Name: "b.jpg", Path: "users/uid-1/a/2_b.jpg"},
		},
	})

	if err := store.Delete(context.Background(), "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := fb.stored("a"); ok {
		t.Fatal("item not deleted")
	}
	if len(fb.deleted) != 2 {
		t.Errorf("expected 2 blob deletions, got %v", fb.deleted)
	}
	if len(store.Items()) != 0 {
		t.Errorf("expected empty mirror, got %v", names(store.Items()))
	}

	if err := store.Delete(context.Background(), "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteWriteErrorKeepsBlobs(t *testing.T) {
	fb, store, _, _ := signedIn(t, model.Item{
		ID: "a", Name: "Warranty",
		Attachments: []model.Attachment{{Name: "a.pdf", Path: "users/uid-1/a/1_a.pdf"}},
	})
	fb.deleteErr = errBoom

	var werr *WriteError
	if err := store.Delete(context.Background(), "a"); !errors.As(err, &werr) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if len(fb.deleted) != 0 {
		t.Errorf("expected no blob deletions, got %v", fb.deleted)
	}
}

func TestSubscriptionErrorSurfaced(t *testing.T) {
	fb, store, _, id := signedIn(t)

	var got error
	store.OnError(func(err error) { got = err })
	fb.failSubscriptions(id.UID, errBoom)

	var serr *SubscriptionError
	if !errors.As(got, &serr) || serr.Collection != "items" || !errors.Is(got, errBoom) {
		t.Fatalf("expected items SubscriptionError, got %v", got)
	}
	if store.Subscribed() {
		t.Error("expected subscription ended after error")
	}
}
