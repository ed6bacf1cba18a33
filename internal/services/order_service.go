package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

const (
	orderEventPlaced        = "order.placed"
	orderEventAdvanced      = "order.status.advanced"
	orderEventCanceled      = "order.canceled"
	orderEventInvoiceFailed = "order.invoice.failed"

	orderIDPrefix     = "ord_"
	orderLineIDPrefix = "oln_"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderAccessDenied indicates the actor does not own the order and holds no staff role.
	ErrOrderAccessDenied = errors.New("order: access denied")
	// ErrOrderConflict indicates an illegal lifecycle transition or duplicate write.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates a transient persistence failure.
	ErrOrderUnavailable = errors.New("order: storage unavailable")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders         repositories.OrderRepository
	Carts          repositories.CartRepository
	Products       repositories.ProductRepository
	Invoices       InvoiceIssuer
	Notifications  NotificationDispatcher
	NumberSequence string
	Clock          func() time.Time
	IDGenerator    func() string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	carts         repositories.CartRepository
	products      repositories.ProductRepository
	invoices      InvoiceIssuer
	notifications NotificationDispatcher
	sequence      string
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}

	sequence := strings.TrimSpace(deps.NumberSequence)
	if sequence == "" {
		sequence = "orderNumbers"
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:        deps.Orders,
		carts:         deps.Carts,
		products:      deps.Products,
		invoices:      deps.Invoices,
		notifications: deps.Notifications,
		sequence:      sequence,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) Place(ctx context.Context, cmd PlaceOrderCommand) (PlacedOrder, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return PlacedOrder{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	ownerKey := strings.TrimSpace(cmd.OwnerKey)
	if ownerKey == "" {
		ownerKey = userID
	}

	cartLines, err := s.carts.ListLines(ctx, ownerKey)
	if err != nil {
		return PlacedOrder{}, s.wrapRepoErr(err)
	}
	if len(cartLines) == 0 {
		return PlacedOrder{}, fmt.Errorf("%w: cart is empty", ErrOrderInvalidInput)
	}

	now := s.clock()
	order := domain.Order{
		ID:         orderIDPrefix + s.newID(),
		UserID:     userID,
		Status:     domain.OrderStatusVerifying,
		AddressRef: strings.TrimSpace(cmd.AddressRef),
		CreatedAt:  now,
	}

	// Snapshot price and discount per line at this instant. Later catalog
	// edits must not change what the customer is charged or refunded.
	for _, cartLine := range cartLines {
		product, err := s.products.FindByID(ctx, cartLine.ProductID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return PlacedOrder{}, fmt.Errorf("%w: product %s no longer exists", ErrOrderInvalidInput, cartLine.ProductID)
			}
			return PlacedOrder{}, s.wrapRepoErr(err)
		}
		unitNet := product.Price - product.Discount
		if unitNet < 0 {
			unitNet = 0
		}
		line := domain.OrderLine{
			ID:        orderLineIDPrefix + s.newID(),
			OrderID:   order.ID,
			ProductID: cartLine.ProductID,
			Quantity:  cartLine.Quantity,
			UnitPrice: product.Price,
			Discount:  product.Discount,
			Total:     unitNet * int64(cartLine.Quantity),
		}
		order.Lines = append(order.Lines, line)
		order.TotalPrice += line.Total
	}

	placed, err := s.orders.Place(ctx, repositories.PlaceOrderParams{
		Order:          order,
		OwnerKey:       ownerKey,
		NumberSequence: s.sequence,
	})
	if err != nil {
		var shortage *repositories.InsufficientStockError
		if errors.As(err, &shortage) {
			return PlacedOrder{}, shortage
		}
		return PlacedOrder{}, s.wrapRepoErr(err)
	}

	s.logger(ctx, orderEventPlaced, map[string]any{
		"order_id":     placed.ID,
		"order_number": placed.Number,
		"user_id":      userID,
		"total_price":  placed.TotalPrice,
		"line_count":   len(placed.Lines),
	})

	result := PlacedOrder{Order: placed}
	if s.invoices != nil {
		invoice, invErr := s.invoices.Issue(ctx, placed)
		if invErr != nil {
			// Placement already committed; surface the degraded result
			// instead of failing the order.
			result.InvoicePending = true
			s.logger(ctx, orderEventInvoiceFailed, map[string]any{
				"order_id": placed.ID,
				"error":    invErr.Error(),
			})
		} else {
			result.Invoice = &invoice
		}
	}

	s.dispatch(ctx, Notification{
		Type:       orderEventPlaced,
		OrderID:    placed.ID,
		UserID:     userID,
		OccurredAt: now,
		Metadata:   map[string]string{"order_number": placed.Number},
	})
	return result, nil
}

func (s *orderService) Get(ctx context.Context, q OrderQuery) (domain.Order, error) {
	orderID := strings.TrimSpace(q.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.wrapRepoErr(err)
	}
	if !q.ActorStaff && order.UserID != strings.TrimSpace(q.ActorID) {
		return domain.Order{}, fmt.Errorf("%w: order %s", ErrOrderAccessDenied, orderID)
	}
	return order, nil
}

func (s *orderService) ListMine(ctx context.Context, userID string) ([]domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.wrapRepoErr(err)
	}
	return orders, nil
}

func (s *orderService) Advance(ctx context.Context, cmd AdvanceOrderCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Target.Valid() || cmd.Target == domain.OrderStatusCanceled {
		return domain.Order{}, fmt.Errorf("%w: invalid target status %q", ErrOrderInvalidInput, cmd.Target)
	}

	order, err := s.orders.Advance(ctx, orderID, cmd.Target, s.clock())
	if err != nil {
		return domain.Order{}, s.wrapRepoErr(err)
	}

	s.logger(ctx, orderEventAdvanced, map[string]any{
		"order_id": order.ID,
		"status":   string(order.Status),
		"actor_id": strings.TrimSpace(cmd.ActorID),
	})
	s.dispatch(ctx, Notification{
		Type:       orderEventAdvanced,
		OrderID:    order.ID,
		UserID:     order.UserID,
		OccurredAt: s.clock(),
		Metadata:   map[string]string{"status": string(order.Status)},
	})
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (domain.Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	existing, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.wrapRepoErr(err)
	}
	if !cmd.ActorStaff && existing.UserID != strings.TrimSpace(cmd.ActorID) {
		return domain.Order{}, fmt.Errorf("%w: order %s", ErrOrderAccessDenied, orderID)
	}

	order, err := s.orders.Cancel(ctx, orderID, cmd.Reason, s.clock())
	if err != nil {
		return domain.Order{}, s.wrapRepoErr(err)
	}

	s.logger(ctx, orderEventCanceled, map[string]any{
		"order_id": order.ID,
		"actor_id": strings.TrimSpace(cmd.ActorID),
	})
	s.dispatch(ctx, Notification{
		Type:       orderEventCanceled,
		OrderID:    order.ID,
		UserID:     order.UserID,
		OccurredAt: s.clock(),
	})
	return order, nil
}

// dispatch sends a notification without letting a broker outage affect the
// caller's result.
func (s *orderService) dispatch(ctx context.Context, n Notification) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.Dispatch(ctx, n); err != nil {
		s.logger(ctx, "notification.dispatch.failed", map[string]any{
			"type":  n.Type,
			"error": err.Error(),
		})
	}
}

func (s *orderService) wrapRepoErr(err error) error {
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: %v", ErrOrderConflict, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
	default:
		return err
	}
}
