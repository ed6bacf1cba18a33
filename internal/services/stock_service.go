package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

const (
	stockEventConfigured = "stock.configured"
	stockEventRestored   = "stock.restored"
)

var (
	// ErrStockInvalidInput signals the caller provided invalid data.
	ErrStockInvalidInput = errors.New("stock: invalid input")
	// ErrStockNotFound indicates the ledger has no entry for the product.
	ErrStockNotFound = errors.New("stock: not found")
	// ErrStockUnavailable indicates a transient persistence failure.
	ErrStockUnavailable = errors.New("stock: storage unavailable")
)

// StockServiceDeps bundles collaborators required to construct the stock service.
type StockServiceDeps struct {
	Stock  repositories.StockRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type stockService struct {
	stock  repositories.StockRepository
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewStockService wires dependencies into a concrete StockService implementation.
func NewStockService(deps StockServiceDeps) (StockService, error) {
	if deps.Stock == nil {
		return nil, errors.New("stock service: stock repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &stockService{
		stock: deps.Stock,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *stockService) Get(ctx context.Context, productID string) (domain.StockLevel, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.StockLevel{}, fmt.Errorf("%w: product id is required", ErrStockInvalidInput)
	}

	level, err := s.stock.Get(ctx, productID)
	if err != nil {
		return domain.StockLevel{}, s.wrapRepoErr(err)
	}
	return level, nil
}

func (s *stockService) Configure(ctx context.Context, cmd ConfigureStockCommand) (domain.StockLevel, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return domain.StockLevel{}, fmt.Errorf("%w: product id is required", ErrStockInvalidInput)
	}
	if cmd.Available < 0 {
		return domain.StockLevel{}, fmt.Errorf("%w: available must be >= 0", ErrStockInvalidInput)
	}
	if cmd.Capacity < 0 {
		return domain.StockLevel{}, fmt.Errorf("%w: capacity must be >= 0", ErrStockInvalidInput)
	}
	if cmd.Capacity > 0 && cmd.Available > cmd.Capacity {
		return domain.StockLevel{}, fmt.Errorf("%w: available exceeds capacity", ErrStockInvalidInput)
	}

	level, err := s.stock.Configure(ctx, domain.StockLevel{
		ProductID: productID,
		Available: cmd.Available,
		Capacity:  cmd.Capacity,
		UpdatedAt: s.clock(),
	})
	if err != nil {
		return domain.StockLevel{}, s.wrapRepoErr(err)
	}

	s.logger(ctx, stockEventConfigured, map[string]any{
		"product_id": productID,
		"available":  cmd.Available,
		"capacity":   cmd.Capacity,
	})
	return level, nil
}

func (s *stockService) Restore(ctx context.Context, productID string, quantity int) (domain.StockLevel, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.StockLevel{}, fmt.Errorf("%w: product id is required", ErrStockInvalidInput)
	}
	if quantity <= 0 {
		return domain.StockLevel{}, fmt.Errorf("%w: quantity must be > 0", ErrStockInvalidInput)
	}

	if err := s.stock.Restore(ctx, []repositories.StockAdjustment{{ProductID: productID, Quantity: quantity}}); err != nil {
		return domain.StockLevel{}, s.wrapRepoErr(err)
	}
	level, err := s.stock.Get(ctx, productID)
	if err != nil {
		return domain.StockLevel{}, s.wrapRepoErr(err)
	}

	s.logger(ctx, stockEventRestored, map[string]any{
		"product_id": productID,
		"quantity":   quantity,
		"available":  level.Available,
	})
	return level, nil
}

func (s *stockService) wrapRepoErr(err error) error {
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrStockNotFound, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrStockUnavailable, err)
	default:
		return err
	}
}
