//go:build integration

package firestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

func TestOrderRepositoryIntegration(t *testing.T) {
	provider := startEmulatorProvider(t, "order-test")

	stock, err := NewStockRepository(provider)
	if err != nil {
		t.Fatalf("new stock repository: %v", err)
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		t.Fatalf("new cart repository: %v", err)
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		t.Fatalf("new counter repository: %v", err)
	}
	repo, err := NewOrderRepository(provider, stock, carts, counters)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	seedStockLevel(t, ctx, stock, "prod-a", 5, 10)
	seedStockLevel(t, ctx, stock, "prod-b", 1, 10)
	upsertCartLine(t, ctx, carts, "user-1", "prod-a", 2)

	now := time.Now().UTC().Truncate(time.Second)
	placed, err := repo.Place(ctx, repositories.PlaceOrderParams{
		Order: domain.Order{
			ID:     "ord_test_1",
			UserID: "user-1",
			Lines: []domain.OrderLine{
				{ID: "oln_test_1", OrderID: "ord_test_1", ProductID: "prod-a", Quantity: 2, UnitPrice: 100, Discount: 15, Total: 170},
			},
			TotalPrice: 170,
			CreatedAt:  now,
		},
		OwnerKey:       "user-1",
		NumberSequence: "orderNumbers",
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if placed.Number != "ORD-000001" {
		t.Fatalf("expected ORD-000001, got %q", placed.Number)
	}
	if placed.Status != domain.OrderStatusVerifying {
		t.Fatalf("expected verifying status, got %s", placed.Status)
	}
	assertAvailable(t, ctx, stock, "prod-a", 3)
	cartAfter, err := carts.ListLines(ctx, "user-1")
	if err != nil {
		t.Fatalf("list cart after place: %v", err)
	}
	if len(cartAfter) != 0 {
		t.Fatalf("cart should be empty after placement, got %+v", cartAfter)
	}
	loaded, err := repo.FindByID(ctx, "ord_test_1")
	if err != nil {
		t.Fatalf("find placed order: %v", err)
	}
	if len(loaded.Lines) != 1 || loaded.Lines[0].Total != 170 {
		t.Fatalf("unexpected loaded lines %+v", loaded.Lines)
	}

	// A shortage aborts with nothing written: the order is absent and the
	// cart and ledger keep their values.
	upsertCartLine(t, ctx, carts, "user-2", "prod-b", 3)
	_, err = repo.Place(ctx, repositories.PlaceOrderParams{
		Order: domain.Order{
			ID:     "ord_test_short",
			UserID: "user-2",
			Lines: []domain.OrderLine{
				{ID: "oln_test_short", OrderID: "ord_test_short", ProductID: "prod-b", Quantity: 3, UnitPrice: 50, Total: 150},
			},
			CreatedAt: now,
		},
		OwnerKey:       "user-2",
		NumberSequence: "orderNumbers",
	})
	var shortage *repositories.InsufficientStockError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if _, err := repo.FindByID(ctx, "ord_test_short"); !repositories.IsNotFound(err) {
		t.Fatalf("aborted order must not exist, got %v", err)
	}
	assertAvailable(t, ctx, stock, "prod-b", 1)
	shortCart, err := carts.ListLines(ctx, "user-2")
	if err != nil {
		t.Fatalf("list cart after shortage: %v", err)
	}
	if len(shortCart) != 1 {
		t.Fatalf("cart must survive an aborted placement, got %+v", shortCart)
	}

	// A cart that moved since the snapshot was taken aborts with a conflict
	// instead of deleting lines the order never covered.
	upsertCartLine(t, ctx, carts, "user-2", "prod-a", 1)
	_, err = repo.Place(ctx, repositories.PlaceOrderParams{
		Order: domain.Order{
			ID:     "ord_test_stale",
			UserID: "user-2",
			Lines: []domain.OrderLine{
				{ID: "oln_test_stale", OrderID: "ord_test_stale", ProductID: "prod-b", Quantity: 1, UnitPrice: 50, Total: 50},
			},
			CreatedAt: now,
		},
		OwnerKey:       "user-2",
		NumberSequence: "orderNumbers",
	})
	if !repositories.IsConflict(err) {
		t.Fatalf("expected conflict for stale cart snapshot, got %v", err)
	}
	staleCart, err := carts.ListLines(ctx, "user-2")
	if err != nil {
		t.Fatalf("list cart after stale place: %v", err)
	}
	if len(staleCart) != 2 {
		t.Fatalf("cart must be untouched after the conflict, got %+v", staleCart)
	}
	assertAvailable(t, ctx, stock, "prod-b", 1)

	// Forward chain: one step at a time, skips rejected.
	if _, err := repo.Advance(ctx, "ord_test_1", domain.OrderStatusDelivered, now); !repositories.IsConflict(err) {
		t.Fatalf("expected conflict when skipping states, got %v", err)
	}
	advanced, err := repo.Advance(ctx, "ord_test_1", domain.OrderStatusProcessing, now)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if advanced.Status != domain.OrderStatusProcessing || advanced.ProcessingAt == nil {
		t.Fatalf("unexpected advanced order %+v", advanced)
	}

	// Cancel returns the reserved units and is terminal.
	canceled, err := repo.Cancel(ctx, "ord_test_1", "changed my mind", now)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != domain.OrderStatusCanceled || canceled.CanceledAt == nil {
		t.Fatalf("unexpected canceled order %+v", canceled)
	}
	assertAvailable(t, ctx, stock, "prod-a", 5)

	if _, err := repo.Cancel(ctx, "ord_test_1", "again", now); !repositories.IsConflict(err) {
		t.Fatalf("expected conflict on double cancel, got %v", err)
	}
	assertAvailable(t, ctx, stock, "prod-a", 5)

	if _, err := repo.Advance(ctx, "ord_test_1", domain.OrderStatusInTransit, now); !repositories.IsConflict(err) {
		t.Fatalf("canceled order must not advance, got %v", err)
	}
}
