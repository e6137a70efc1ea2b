package memory

import (
	"context"
	"testing"
	"time"

	"github.com/JulesNsenda/chakucart/internal/orders/ports"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	got, err := store.Get(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("Get(missing) = %v, %v; want nil, nil", got, err)
	}

	first := ports.StoredResponse{StatusCode: 201, Body: []byte(`{"status":"success"}`), OrderID: "order-1"}
	if err := store.Save(ctx, "k", first); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "k", ports.StoredResponse{StatusCode: 500, OrderID: "order-2"}); err != nil {
		t.Fatal(err)
	}

	got, err = store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if got.StatusCode != 201 || got.OrderID != "order-1" || string(got.Body) != `{"status":"success"}` {
		t.Fatalf("first response must be kept, got %+v", got)
	}

	got.Body[0] = 'X'
	again, _ := store.Get(ctx, "k")
	if string(again.Body) != `{"status":"success"}` {
		t.Fatal("callers must not be able to mutate the stored body")
	}
}

func TestIdempotencyKeyScoping(t *testing.T) {
	a := ports.IdempotencyKey("pay-on-delivery", " Ada@Example.com ", "k-1")
	b := ports.IdempotencyKey("pay-on-delivery", "ada@example.com", "k-1")
	if a != b {
		t.Fatalf("keys must ignore email case and padding: %q vs %q", a, b)
	}
	if ports.IdempotencyKey("initialize-transaction", "ada@example.com", "k-1") == b {
		t.Fatal("keys must be scoped by route")
	}
	if ports.IdempotencyKey("pay-on-delivery", "eve@example.com", "k-1") == b {
		t.Fatal("keys must be scoped by customer")
	}
}

func TestStorePurge(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	_ = store.Save(ctx, "old", ports.StoredResponse{StatusCode: 201})
	clock = clock.Add(25 * time.Hour)
	_ = store.Save(ctx, "fresh", ports.StoredResponse{StatusCode: 201})

	removed, err := store.Purge(ctx, clock.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("Purge removed %d, want 1", removed)
	}
	if got, _ := store.Get(ctx, "old"); got != nil {
		t.Error("expired response should be gone")
	}
	if got, _ := store.Get(ctx, "fresh"); got == nil {
		t.Error("fresh response must survive")
	}
}
