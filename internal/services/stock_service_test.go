package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

type stubStockRepo struct {
	getFn       func(ctx context.Context, productID string) (domain.StockLevel, error)
	reserveFn   func(ctx context.Context, items []repositories.StockAdjustment) error
	restoreFn   func(ctx context.Context, items []repositories.StockAdjustment) error
	configureFn func(ctx context.Context, level domain.StockLevel) (domain.StockLevel, error)
}

func (s *stubStockRepo) Get(ctx context.Context, productID string) (domain.StockLevel, error) {
	if s.getFn == nil {
		return domain.StockLevel{}, errors.New("unexpected Get call")
	}
	return s.getFn(ctx, productID)
}

func (s *stubStockRepo) Reserve(ctx context.Context, items []repositories.StockAdjustment) error {
	if s.reserveFn == nil {
		return errors.New("unexpected Reserve call")
	}
	return s.reserveFn(ctx, items)
}

func (s *stubStockRepo) Restore(ctx context.Context, items []repositories.StockAdjustment) error {
	if s.restoreFn == nil {
		return errors.New("unexpected Restore call")
	}
	return s.restoreFn(ctx, items)
}

func (s *stubStockRepo) Configure(ctx context.Context, level domain.StockLevel) (domain.StockLevel, error) {
	if s.configureFn == nil {
		return domain.StockLevel{}, errors.New("unexpected Configure call")
	}
	return s.configureFn(ctx, level)
}

func TestStockGetMapsNotFound(t *testing.T) {
	repo := &stubStockRepo{
		getFn: func(context.Context, string) (domain.StockLevel, error) {
			return domain.StockLevel{}, &stubRepoErr{msg: "missing", notFound: true}
		},
	}
	service := mustStockService(t, repo)

	_, err := service.Get(context.Background(), "prod-a")
	if !errors.Is(err, ErrStockNotFound) {
		t.Fatalf("expected ErrStockNotFound, got %v", err)
	}
}

func TestStockGetRequiresProductID(t *testing.T) {
	service := mustStockService(t, &stubStockRepo{})

	_, err := service.Get(context.Background(), "  ")
	if !errors.Is(err, ErrStockInvalidInput) {
		t.Fatalf("expected ErrStockInvalidInput, got %v", err)
	}
}

func TestConfigureValidatesLevels(t *testing.T) {
	service := mustStockService(t, &stubStockRepo{})

	cases := []ConfigureStockCommand{
		{ProductID: "", Available: 5},
		{ProductID: "prod-a", Available: -1},
		{ProductID: "prod-a", Available: 0, Capacity: -3},
		{ProductID: "prod-a", Available: 10, Capacity: 5},
	}
	for _, cmd := range cases {
		if _, err := service.Configure(context.Background(), cmd); !errors.Is(err, ErrStockInvalidInput) {
			t.Fatalf("expected ErrStockInvalidInput for %+v, got %v", cmd, err)
		}
	}
}

func TestConfigureWritesLevel(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var written domain.StockLevel
	repo := &stubStockRepo{
		configureFn: func(_ context.Context, level domain.StockLevel) (domain.StockLevel, error) {
			written = level
			return level, nil
		},
	}
	service, err := NewStockService(StockServiceDeps{Stock: repo, Clock: fixedClock(now)})
	if err != nil {
		t.Fatalf("NewStockService: %v", err)
	}

	level, err := service.Configure(context.Background(), ConfigureStockCommand{
		ProductID: " prod-a ",
		Available: 8,
		Capacity:  20,
	})
	if err != nil {
		t.Fatalf("Configure returned error: %v", err)
	}
	if written.ProductID != "prod-a" {
		t.Fatalf("expected trimmed product id, got %q", written.ProductID)
	}
	if !written.UpdatedAt.Equal(now) {
		t.Fatalf("expected update time %s, got %s", now, written.UpdatedAt)
	}
	if level.Available != 8 || level.Capacity != 20 {
		t.Fatalf("unexpected level %+v", level)
	}
}

func TestRestoreValidatesAndReturnsLevel(t *testing.T) {
	service := mustStockService(t, &stubStockRepo{})
	if _, err := service.Restore(context.Background(), "prod-a", 0); !errors.Is(err, ErrStockInvalidInput) {
		t.Fatalf("expected ErrStockInvalidInput for zero quantity, got %v", err)
	}

	var restored []repositories.StockAdjustment
	repo := &stubStockRepo{
		restoreFn: func(_ context.Context, items []repositories.StockAdjustment) error {
			restored = items
			return nil
		},
		getFn: func(_ context.Context, productID string) (domain.StockLevel, error) {
			return domain.StockLevel{ProductID: productID, Available: 12, Capacity: 20}, nil
		},
	}
	service = mustStockService(t, repo)

	level, err := service.Restore(context.Background(), "prod-a", 4)
	if err != nil {
		t.Fatalf("Restore returned error: %v", err)
	}
	if len(restored) != 1 || restored[0].ProductID != "prod-a" || restored[0].Quantity != 4 {
		t.Fatalf("unexpected adjustments %+v", restored)
	}
	if level.Available != 12 {
		t.Fatalf("unexpected level %+v", level)
	}
}

func mustStockService(t *testing.T, repo *stubStockRepo) StockService {
	t.Helper()
	service, err := NewStockService(StockServiceDeps{Stock: repo})
	if err != nil {
		t.Fatalf("NewStockService: %v", err)
	}
	return service
}
