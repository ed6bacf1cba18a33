package domain

import (
	"fmt"
	"time"
)

// CartLine is a single product entry in a cart. The owner key is either an
// authenticated user id or an anonymous session key; after a merge no line
// references the session key any longer.
type CartLine struct {
	OwnerKey  string
	ProductID string
	Quantity  int
	AddedAt   time.Time
	UpdatedAt time.Time
}

// Cart groups the lines currently held under one owner key.
type Cart struct {
	OwnerKey string
	Lines    []CartLine
}

// IsEmpty reports whether the cart holds no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// StockLevel tracks the sellable quantity for a product. Capacity is written
// only by the catalog; the fulfillment core mutates Available exclusively
// through ledger reserve/restore operations.
type StockLevel struct {
	ProductID string
	Available int
	Capacity  int
	UpdatedAt time.Time
}

// Product is the catalog read model consumed at placement time. Price and
// Discount are per-unit amounts in minor currency units.
type Product struct {
	ID       string
	Name     string
	Price    int64
	Discount int64
}

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	// OrderStatusVerifying is the initial state right after placement.
	OrderStatusVerifying OrderStatus = "verifying"
	// OrderStatusProcessing indicates the order passed verification and is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusInTransit indicates the order left the warehouse.
	OrderStatusInTransit OrderStatus = "in_transit"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled is terminal; reachable only from verifying or processing.
	OrderStatusCanceled OrderStatus = "canceled"
)

var orderStatusCodes = map[OrderStatus]int{
	OrderStatusVerifying:  0,
	OrderStatusProcessing: 1,
	OrderStatusInTransit:  2,
	OrderStatusDelivered:  3,
	OrderStatusCanceled:   4,
}

// Code returns the stable numeric code persisted alongside the status.
func (s OrderStatus) Code() int {
	code, ok := orderStatusCodes[s]
	if !ok {
		return -1
	}
	return code
}

// Valid reports whether the status is one of the known lifecycle states.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusCodes[s]
	return ok
}

// OrderStatusFromCode maps a stored numeric code back to its status.
func OrderStatusFromCode(code int) (OrderStatus, error) {
	for status, c := range orderStatusCodes {
		if c == code {
			return status, nil
		}
	}
	return "", fmt.Errorf("domain: unknown order status code %d", code)
}

// CanAdvanceTo reports whether target is the legal next state on the
// forward chain. Cancellation is handled separately via Cancellable.
func (s OrderStatus) CanAdvanceTo(target OrderStatus) bool {
	switch s {
	case OrderStatusVerifying:
		return target == OrderStatusProcessing
	case OrderStatusProcessing:
		return target == OrderStatusInTransit
	case OrderStatusInTransit:
		return target == OrderStatusDelivered
	default:
		return false
	}
}

// Cancellable reports whether an order in this status may still be canceled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusVerifying || s == OrderStatusProcessing
}

// Order is the committed purchase header. Status is the single source of
// truth for which mutations are legal.
type Order struct {
	ID           string
	Number       string
	UserID       string
	Status       OrderStatus
	TotalPrice   int64
	AddressRef   string
	Lines        []OrderLine
	CreatedAt    time.Time
	ProcessingAt *time.Time
	InTransitAt  *time.Time
	DeliveredAt  *time.Time
	CanceledAt   *time.Time
	CancelReason string
}

// OrderLine snapshots one cart line at placement time. UnitPrice and
// Discount are copied from the catalog at that moment and never change
// afterwards, regardless of later catalog edits.
type OrderLine struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice int64
	Discount  int64
	Total     int64
}

// RefundStatus enumerates refund request states; Approved and Rejected are terminal.
type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

// Terminal reports whether the refund can no longer be mutated.
func (s RefundStatus) Terminal() bool {
	return s == RefundStatusApproved || s == RefundStatusRejected
}

// RefundRequest tracks a customer's refund claim against one delivered order
// line. Amount is computed once at creation as UnitPrice - Discount of the
// line snapshot and never recomputed.
type RefundRequest struct {
	ID          string
	OrderLineID string
	OrderID     string
	CustomerID  string
	Reason      string
	Amount      int64
	Status      RefundStatus
	ReviewerID  string
	CreatedAt   time.Time
	ReviewedAt  *time.Time
}

// Invoice records the issued billing document for an order. The core only
// triggers issuance; rendering and delivery belong to the invoicing collaborator.
type Invoice struct {
	ID          string
	OrderID     string
	Number      string
	DocumentRef string
	GeneratedAt time.Time
}
