// Package services implements the fulfillment core's business rules on top
// of the repository contracts. Services validate input, enforce ownership,
// and translate repository failures into the sentinel errors handlers map
// onto the HTTP error taxonomy.
package services

import (
	"context"
	"time"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
)

// CartService manages cart lines for signed-in users and anonymous sessions.
type CartService interface {
	Get(ctx context.Context, ownerKey string) (domain.Cart, error)
	UpsertItem(ctx context.Context, cmd UpsertCartItemCommand) (domain.CartLine, error)
	RemoveItem(ctx context.Context, ownerKey, productID string) error
	// Clear drops every line in the owner's cart.
	Clear(ctx context.Context, ownerKey string) error
	// Merge folds the anonymous session cart into the user's cart. It is
	// idempotent: replaying a merge whose session cart is already empty
	// returns the user's cart unchanged.
	Merge(ctx context.Context, cmd MergeCartCommand) (domain.Cart, error)
}

// UpsertCartItemCommand sets the quantity for one product in a cart.
type UpsertCartItemCommand struct {
	OwnerKey  string
	ProductID string
	Quantity  int
}

// MergeCartCommand identifies the session cart to fold into a user cart.
type MergeCartCommand struct {
	SessionKey string
	UserID     string
}

// OrderService turns carts into orders and walks them through the lifecycle.
type OrderService interface {
	// Place converts the owner's cart into an order atomically. Invoice
	// issuance and notifications are side effects: their failure degrades
	// the result but never rolls the order back.
	Place(ctx context.Context, cmd PlaceOrderCommand) (PlacedOrder, error)
	Get(ctx context.Context, q OrderQuery) (domain.Order, error)
	ListMine(ctx context.Context, userID string) ([]domain.Order, error)
	// Advance moves the order one step along the forward chain.
	Advance(ctx context.Context, cmd AdvanceOrderCommand) (domain.Order, error)
	// Cancel aborts an order still in Verifying or Processing, restoring
	// its reserved stock.
	Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error)
}

// PlaceOrderCommand carries the checkout request.
type PlaceOrderCommand struct {
	UserID     string
	OwnerKey   string
	AddressRef string
}

// PlacedOrder is the placement result. Invoice is nil when issuance was
// skipped or failed; InvoicePending reports the degraded case.
type PlacedOrder struct {
	Order          domain.Order
	Invoice        *domain.Invoice
	InvoicePending bool
}

// OrderQuery identifies an order and the actor requesting it.
type OrderQuery struct {
	OrderID    string
	ActorID    string
	ActorStaff bool
}

// AdvanceOrderCommand moves an order to the next lifecycle state.
type AdvanceOrderCommand struct {
	OrderID string
	Target  domain.OrderStatus
	ActorID string
}

// CancelOrderCommand aborts an order.
type CancelOrderCommand struct {
	OrderID    string
	ActorID    string
	ActorStaff bool
	Reason     string
}

// RefundService manages refund requests against delivered order lines.
type RefundService interface {
	Submit(ctx context.Context, cmd SubmitRefundCommand) (domain.RefundRequest, error)
	Get(ctx context.Context, q RefundQuery) (domain.RefundRequest, error)
	ListMine(ctx context.Context, customerID string) ([]domain.RefundRequest, error)
	ListPending(ctx context.Context) ([]domain.RefundRequest, error)
	Resolve(ctx context.Context, cmd ResolveRefundCommand) (domain.RefundRequest, error)
}

// RefundQuery identifies a refund request and the actor requesting it.
type RefundQuery struct {
	RefundID   string
	ActorID    string
	ActorStaff bool
}

// SubmitRefundCommand files a refund claim for one order line.
type SubmitRefundCommand struct {
	OrderID     string
	OrderLineID string
	CustomerID  string
	Reason      string
}

// ResolveRefundCommand settles a pending refund request.
type ResolveRefundCommand struct {
	RefundID   string
	Approve    bool
	ReviewerID string
}

// StockService exposes the ledger to staff tooling.
type StockService interface {
	Get(ctx context.Context, productID string) (domain.StockLevel, error)
	Configure(ctx context.Context, cmd ConfigureStockCommand) (domain.StockLevel, error)
	// Restore returns previously reserved units to the ledger, clamped at
	// capacity. Used by ops tooling to correct the ledger manually.
	Restore(ctx context.Context, productID string, quantity int) (domain.StockLevel, error)
}

// ConfigureStockCommand upserts a ledger entry.
type ConfigureStockCommand struct {
	ProductID string
	Available int
	Capacity  int
}

// InvoiceIssuer renders and stores the billing document for an order and
// records the issued invoice.
type InvoiceIssuer interface {
	Issue(ctx context.Context, order domain.Order) (domain.Invoice, error)
}

// Notification is the event payload dispatched to downstream consumers.
type Notification struct {
	Type       string
	OrderID    string
	RefundID   string
	UserID     string
	OccurredAt time.Time
	Metadata   map[string]string
}

// NotificationDispatcher publishes fulfillment events. Dispatch failures
// are logged and swallowed by callers; notifications are best effort.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}
