//go:build integration

package firestore

import (
	"context"
	"testing"
	"time"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
)

func TestCartRepositoryIntegration(t *testing.T) {
	provider := startEmulatorProvider(t, "cart-test")

	repo, err := NewCartRepository(provider)
	if err != nil {
		t.Fatalf("new cart repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sessionKey := "session:sess-abc"
	upsertCartLine(t, ctx, repo, sessionKey, "prod-a", 2)
	upsertCartLine(t, ctx, repo, sessionKey, "prod-b", 1)
	upsertCartLine(t, ctx, repo, "user-1", "prod-a", 3)

	merged, err := repo.Merge(ctx, sessionKey, "user-1")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged.Lines) != 2 {
		t.Fatalf("expected 2 merged lines, got %+v", merged.Lines)
	}
	quantities := make(map[string]int, len(merged.Lines))
	for _, line := range merged.Lines {
		if line.OwnerKey != "user-1" {
			t.Fatalf("merged line kept owner %q", line.OwnerKey)
		}
		quantities[line.ProductID] = line.Quantity
	}
	// Shared product sums, session-only product moves over.
	if quantities["prod-a"] != 5 || quantities["prod-b"] != 1 {
		t.Fatalf("unexpected merged quantities %+v", quantities)
	}

	sessionLines, err := repo.ListLines(ctx, sessionKey)
	if err != nil {
		t.Fatalf("list session lines: %v", err)
	}
	if len(sessionLines) != 0 {
		t.Fatalf("session cart should be empty after merge, got %+v", sessionLines)
	}

	// Replaying the merge against the now-empty session is a no-op.
	replayed, err := repo.Merge(ctx, sessionKey, "user-1")
	if err != nil {
		t.Fatalf("replay merge: %v", err)
	}
	if len(replayed.Lines) != 2 {
		t.Fatalf("replayed merge changed the cart: %+v", replayed.Lines)
	}
	userLines, err := repo.ListLines(ctx, "user-1")
	if err != nil {
		t.Fatalf("list user lines: %v", err)
	}
	if len(userLines) != 2 {
		t.Fatalf("expected 2 user lines after replay, got %+v", userLines)
	}

	if err := repo.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	cleared, err := repo.ListLines(ctx, "user-1")
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(cleared) != 0 {
		t.Fatalf("cart should be empty after clear, got %+v", cleared)
	}
}

func upsertCartLine(t *testing.T, ctx context.Context, repo *CartRepository, ownerKey, productID string, quantity int) {
	t.Helper()
	if _, err := repo.UpsertLine(ctx, domain.CartLine{
		OwnerKey:  ownerKey,
		ProductID: productID,
		Quantity:  quantity,
	}); err != nil {
		t.Fatalf("upsert %s/%s: %v", ownerKey, productID, err)
	}
}
