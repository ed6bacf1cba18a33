package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

const (
	refundEventSubmitted = "refund.submitted"
	refundEventResolved  = "refund.resolved"

	defaultRefundWindowDays = 30
	maxRefundReasonLength   = 2000
)

var (
	// ErrRefundInvalidInput signals the caller provided invalid data.
	ErrRefundInvalidInput = errors.New("refund: invalid input")
	// ErrRefundNotFound indicates the refund, order, or line could not be located.
	ErrRefundNotFound = errors.New("refund: not found")
	// ErrRefundAccessDenied indicates the actor does not own the order.
	ErrRefundAccessDenied = errors.New("refund: access denied")
	// ErrRefundConflict indicates the order is not refundable in its current
	// state, the line already has a request, or the request is already settled.
	ErrRefundConflict = errors.New("refund: conflict")
	// ErrRefundWindowClosed indicates the order is older than the refund window.
	ErrRefundWindowClosed = errors.New("refund: window closed")
	// ErrRefundCorruptSnapshot indicates the line snapshot nets to a negative
	// amount, which placement can never write. The line needs manual repair.
	ErrRefundCorruptSnapshot = errors.New("refund: corrupt line snapshot")
	// ErrRefundUnavailable indicates a transient persistence failure.
	ErrRefundUnavailable = errors.New("refund: storage unavailable")
)

// RefundServiceDeps bundles collaborators required to construct the refund service.
type RefundServiceDeps struct {
	Refunds       repositories.RefundRepository
	Orders        repositories.OrderRepository
	Notifications NotificationDispatcher
	WindowDays    int
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type refundService struct {
	refunds       repositories.RefundRepository
	orders        repositories.OrderRepository
	notifications NotificationDispatcher
	window        time.Duration
	sanitizer     *bluemonday.Policy
	clock         func() time.Time
	logger        func(context.Context, string, map[string]any)
}

// NewRefundService wires dependencies into a concrete RefundService implementation.
func NewRefundService(deps RefundServiceDeps) (RefundService, error) {
	if deps.Refunds == nil {
		return nil, errors.New("refund service: refund repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("refund service: order repository is required")
	}

	windowDays := deps.WindowDays
	if windowDays <= 0 {
		windowDays = defaultRefundWindowDays
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &refundService{
		refunds:       deps.Refunds,
		orders:        deps.Orders,
		notifications: deps.Notifications,
		window:        time.Duration(windowDays) * 24 * time.Hour,
		sanitizer:     bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *refundService) Submit(ctx context.Context, cmd SubmitRefundCommand) (domain.RefundRequest, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	lineID := strings.TrimSpace(cmd.OrderLineID)
	customerID := strings.TrimSpace(cmd.CustomerID)
	if orderID == "" || lineID == "" {
		return domain.RefundRequest{}, fmt.Errorf("%w: order id and line id are required", ErrRefundInvalidInput)
	}
	if customerID == "" {
		return domain.RefundRequest{}, fmt.Errorf("%w: customer id is required", ErrRefundInvalidInput)
	}
	reason := s.sanitizeReason(cmd.Reason)
	if len(reason) > maxRefundReasonLength {
		return domain.RefundRequest{}, fmt.Errorf("%w: reason exceeds %d characters", ErrRefundInvalidInput, maxRefundReasonLength)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.RefundRequest{}, s.wrapRepoErr(err)
	}
	if order.UserID != customerID {
		return domain.RefundRequest{}, fmt.Errorf("%w: order %s", ErrRefundAccessDenied, orderID)
	}
	if order.Status != domain.OrderStatusDelivered {
		return domain.RefundRequest{}, fmt.Errorf("%w: order %s is not delivered", ErrRefundConflict, orderID)
	}

	now := s.clock()
	if now.Sub(order.CreatedAt) > s.window {
		return domain.RefundRequest{}, fmt.Errorf("%w: order %s placed %s", ErrRefundWindowClosed, orderID, order.CreatedAt.Format(time.RFC3339))
	}

	line, err := s.orders.FindLine(ctx, orderID, lineID)
	if err != nil {
		return domain.RefundRequest{}, s.wrapRepoErr(err)
	}

	// The refundable amount is the per-unit net of the placement snapshot.
	// Placement clamps the net at zero, so a negative value here means the
	// stored snapshot is corrupt and no refund may be filed against it.
	amount := line.UnitPrice - line.Discount
	if amount < 0 {
		s.logger(ctx, "refund.snapshot.corrupt", map[string]any{
			"order_id":   orderID,
			"line_id":    line.ID,
			"unit_price": line.UnitPrice,
			"discount":   line.Discount,
		})
		return domain.RefundRequest{}, fmt.Errorf("%w: line %s nets %d", ErrRefundCorruptSnapshot, line.ID, amount)
	}

	refund, err := s.refunds.Create(ctx, domain.RefundRequest{
		OrderLineID: line.ID,
		OrderID:     orderID,
		CustomerID:  customerID,
		Reason:      reason,
		Amount:      amount,
		Status:      domain.RefundStatusPending,
		CreatedAt:   now,
	})
	if err != nil {
		return domain.RefundRequest{}, s.wrapRepoErr(err)
	}

	s.logger(ctx, refundEventSubmitted, map[string]any{
		"refund_id":   refund.ID,
		"order_id":    orderID,
		"customer_id": customerID,
		"amount":      amount,
	})
	s.dispatch(ctx, Notification{
		Type:       refundEventSubmitted,
		OrderID:    orderID,
		RefundID:   refund.ID,
		UserID:     customerID,
		OccurredAt: now,
	})
	return refund, nil
}

func (s *refundService) Get(ctx context.Context, q RefundQuery) (domain.RefundRequest, error) {
	refundID := strings.TrimSpace(q.RefundID)
	if refundID == "" {
		return domain.RefundRequest{}, fmt.Errorf("%w: refund id is required", ErrRefundInvalidInput)
	}

	refund, err := s.refunds.FindByID(ctx, refundID)
	if err != nil {
		return domain.RefundRequest{}, s.wrapRepoErr(err)
	}
	if !q.ActorStaff && refund.CustomerID != strings.TrimSpace(q.ActorID) {
		return domain.RefundRequest{}, fmt.Errorf("%w: refund %s", ErrRefundAccessDenied, refundID)
	}
	return refund, nil
}

func (s *refundService) ListMine(ctx context.Context, customerID string) ([]domain.RefundRequest, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrRefundInvalidInput)
	}
	refunds, err := s.refunds.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, s.wrapRepoErr(err)
	}
	return refunds, nil
}

func (s *refundService) ListPending(ctx context.Context) ([]domain.RefundRequest, error) {
	refunds, err := s.refunds.ListPending(ctx)
	if err != nil {
		return nil, s.wrapRepoErr(err)
	}
	return refunds, nil
}

func (s *refundService) Resolve(ctx context.Context, cmd ResolveRefundCommand) (domain.RefundRequest, error) {
	refundID := strings.TrimSpace(cmd.RefundID)
	if refundID == "" {
		return domain.RefundRequest{}, fmt.Errorf("%w: refund id is required", ErrRefundInvalidInput)
	}
	reviewerID := strings.TrimSpace(cmd.ReviewerID)
	if reviewerID == "" {
		return domain.RefundRequest{}, fmt.Errorf("%w: reviewer id is required", ErrRefundInvalidInput)
	}

	refund, err := s.refunds.Resolve(ctx, refundID, cmd.Approve, reviewerID, s.clock())
	if err != nil {
		return domain.RefundRequest{}, s.wrapRepoErr(err)
	}

	s.logger(ctx, refundEventResolved, map[string]any{
		"refund_id":   refund.ID,
		"status":      string(refund.Status),
		"reviewer_id": reviewerID,
	})
	s.dispatch(ctx, Notification{
		Type:       refundEventResolved,
		OrderID:    refund.OrderID,
		RefundID:   refund.ID,
		UserID:     refund.CustomerID,
		OccurredAt: s.clock(),
		Metadata:   map[string]string{"status": string(refund.Status)},
	})
	return refund, nil
}

// sanitizeReason strips any markup from customer-provided text before it is
// stored or shown to reviewers.
func (s *refundService) sanitizeReason(reason string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(reason))
}

func (s *refundService) dispatch(ctx context.Context, n Notification) {
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

func (s *refundService) wrapRepoErr(err error) error {
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrRefundNotFound, err)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: %v", ErrRefundConflict, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrRefundUnavailable, err)
	default:
		return err
	}
}
