// Package repositories defines the persistence contracts consumed by the
// service layer, plus the error classification shared by all backends.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
)

// RepositoryError lets services branch on persistence failures without
// depending on a concrete backend.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err represents a conflicting write.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err represents a transient backend outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// InsufficientStockError reports the first product that could not be
// reserved, with the quantity that was available at decision time.
type InsufficientStockError struct {
	ProductID string
	Available int
}

// Error implements the error interface.
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient quantity for product %s (available %d)", e.ProductID, e.Available)
}

// StockAdjustment names a product and the quantity to reserve or restore.
type StockAdjustment struct {
	ProductID string
	Quantity  int
}

// StockRepository is the stock ledger. Reserve and Restore are atomic
// across all items: either every adjustment applies or none does.
type StockRepository interface {
	Get(ctx context.Context, productID string) (domain.StockLevel, error)
	// Reserve decrements availability for every item. It fails with
	// InsufficientStockError when any product would go below zero.
	Reserve(ctx context.Context, items []StockAdjustment) error
	// Restore increments availability for every item, clamped at capacity.
	Restore(ctx context.Context, items []StockAdjustment) error
	// Configure upserts the ledger entry for a product.
	Configure(ctx context.Context, level domain.StockLevel) (domain.StockLevel, error)
}

// ProductRepository is the catalog read model consulted at placement time
// for price and discount snapshots.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
}

// CartRepository persists cart lines keyed by owner and product.
type CartRepository interface {
	ListLines(ctx context.Context, ownerKey string) ([]domain.CartLine, error)
	UpsertLine(ctx context.Context, line domain.CartLine) (domain.CartLine, error)
	DeleteLine(ctx context.Context, ownerKey, productID string) error
	// Merge folds every line under fromOwner into toOwner atomically.
	// Quantities of shared products are summed and the source lines are
	// removed; merging an empty or missing source is a no-op.
	Merge(ctx context.Context, fromOwner, toOwner string) (domain.Cart, error)
	Clear(ctx context.Context, ownerKey string) error
}

// PlaceOrderParams carries everything the backend needs to commit a new
// order in one atomic unit.
type PlaceOrderParams struct {
	Order    domain.Order
	OwnerKey string
	// NumberSequence names the counter used to mint the order number.
	NumberSequence string
}

// OrderRepository persists orders and enforces lifecycle transitions at
// the storage boundary so concurrent writers cannot race past a check.
type OrderRepository interface {
	// Place atomically reserves stock for every line, creates the order
	// with its line snapshots, and clears the owner's cart. On stock
	// shortage nothing is written and InsufficientStockError is returned.
	Place(ctx context.Context, params PlaceOrderParams) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindLine(ctx context.Context, orderID, lineID string) (domain.OrderLine, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// Advance moves the order to target after re-checking the current
	// status inside the same atomic unit. Illegal transitions surface as
	// conflict errors.
	Advance(ctx context.Context, orderID string, target domain.OrderStatus, at time.Time) (domain.Order, error)
	// Cancel marks the order canceled and restores the reserved stock in
	// the same atomic unit. Orders past Processing cannot be canceled.
	Cancel(ctx context.Context, orderID, reason string, at time.Time) (domain.Order, error)
}

// RefundRepository persists refund requests. At most one request may ever
// exist per order line, enforced by the backend.
type RefundRepository interface {
	// Create persists a pending request; a second request for the same
	// order line fails with a conflict.
	Create(ctx context.Context, refund domain.RefundRequest) (domain.RefundRequest, error)
	FindByID(ctx context.Context, refundID string) (domain.RefundRequest, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.RefundRequest, error)
	ListPending(ctx context.Context) ([]domain.RefundRequest, error)
	// Resolve finalises a pending request. The pending status is
	// re-checked atomically; approval restores the line's stock in the
	// same unit. Resolving a settled request fails with a conflict.
	Resolve(ctx context.Context, refundID string, approve bool, reviewerID string, at time.Time) (domain.RefundRequest, error)
}

// InvoiceRepository records issued invoices.
type InvoiceRepository interface {
	Save(ctx context.Context, invoice domain.Invoice) error
	FindByOrder(ctx context.Context, orderID string) (domain.Invoice, error)
}

// CounterRepository mints monotonically increasing sequence values.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}
