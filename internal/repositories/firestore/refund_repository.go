package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	pfirestore "github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/firestore"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

const refundsCollection = "refunds"

// RefundRepository persists refund requests. The document ID is the order
// line ID, which makes the one-request-per-line rule a storage invariant
// rather than a racy read-then-write check.
type RefundRepository struct {
	provider *pfirestore.Provider
	refunds  *pfirestore.BaseRepository[refundDocument]
	orders   *OrderRepository
	stock    *StockRepository
}

// NewRefundRepository constructs a Firestore-backed refund repository.
func NewRefundRepository(provider *pfirestore.Provider, orders *OrderRepository, stock *StockRepository) (*RefundRepository, error) {
	if provider == nil {
		return nil, errors.New("refund repository requires firestore provider")
	}
	if orders == nil {
		return nil, errors.New("refund repository requires order repository")
	}
	if stock == nil {
		return nil, errors.New("refund repository requires stock repository")
	}
	return &RefundRepository{
		provider: provider,
		refunds:  pfirestore.NewBaseRepository[refundDocument](provider, refundsCollection, nil),
		orders:   orders,
		stock:    stock,
	}, nil
}

// Create persists a pending request keyed by its order line. A second
// request for the same line fails with a conflict, regardless of how the
// first one was resolved.
func (r *RefundRepository) Create(ctx context.Context, refund domain.RefundRequest) (domain.RefundRequest, error) {
	if r == nil || r.provider == nil {
		return domain.RefundRequest{}, errors.New("refund repository not initialised")
	}
	lineID := strings.TrimSpace(refund.OrderLineID)
	if lineID == "" {
		return domain.RefundRequest{}, errors.New("refund create: order line id is required")
	}
	if strings.TrimSpace(refund.OrderID) == "" {
		return domain.RefundRequest{}, errors.New("refund create: order id is required")
	}
	if strings.TrimSpace(refund.CustomerID) == "" {
		return domain.RefundRequest{}, errors.New("refund create: customer id is required")
	}

	now := refund.CreatedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}

	doc := refundDocument{
		OrderID:    strings.TrimSpace(refund.OrderID),
		CustomerID: strings.TrimSpace(refund.CustomerID),
		Reason:     strings.TrimSpace(refund.Reason),
		Amount:     refund.Amount,
		Status:     string(domain.RefundStatusPending),
		CreatedAt:  now,
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.refunds.DocumentRef(ctx, lineID)
		if err != nil {
			return err
		}
		if err := tx.Create(ref, doc); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return pfirestore.NewConflictError("refunds.create",
					fmt.Errorf("refund for order line %s already exists", lineID))
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.RefundRequest{}, err
	}
	return doc.toDomain(lineID), nil
}

// FindByID loads a refund request by its ID (the order line ID).
func (r *RefundRepository) FindByID(ctx context.Context, refundID string) (domain.RefundRequest, error) {
	if r == nil || r.refunds == nil {
		return domain.RefundRequest{}, errors.New("refund repository not initialised")
	}
	refundID = strings.TrimSpace(refundID)
	if refundID == "" {
		return domain.RefundRequest{}, errors.New("refund find: refund id is required")
	}
	doc, err := r.refunds.Get(ctx, refundID)
	if err != nil {
		return domain.RefundRequest{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListByCustomer returns the customer's refund requests, newest first.
func (r *RefundRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.RefundRequest, error) {
	if r == nil || r.refunds == nil {
		return nil, errors.New("refund repository not initialised")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, errors.New("refund list: customer id is required")
	}

	docs, err := r.refunds.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("customerId", "==", customerID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.RefundRequest, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out, nil
}

// ListPending returns the review queue, oldest first.
func (r *RefundRepository) ListPending(ctx context.Context) ([]domain.RefundRequest, error) {
	if r == nil || r.refunds == nil {
		return nil, errors.New("refund repository not initialised")
	}

	docs, err := r.refunds.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("status", "==", string(domain.RefundStatusPending)).
			OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.RefundRequest, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out, nil
}

// Resolve finalises a pending request. The pending status is re-read in
// the transaction, so of two concurrent resolutions exactly one commits.
// Approval restores the refunded line's stock in the same transaction.
func (r *RefundRepository) Resolve(ctx context.Context, refundID string, approve bool, reviewerID string, at time.Time) (domain.RefundRequest, error) {
	if r == nil || r.provider == nil {
		return domain.RefundRequest{}, errors.New("refund repository not initialised")
	}
	refundID = strings.TrimSpace(refundID)
	if refundID == "" {
		return domain.RefundRequest{}, errors.New("refund resolve: refund id is required")
	}

	at = at.UTC()
	var resolved domain.RefundRequest
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.refunds.DocumentRef(ctx, refundID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NewNotFoundError("refunds.resolve", fmt.Errorf("refund %s not found", refundID))
			}
			return err
		}
		var doc refundDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode refund %s: %w", refundID, err)
		}
		if domain.RefundStatus(doc.Status) != domain.RefundStatusPending {
			return pfirestore.NewConflictError("refunds.resolve",
				fmt.Errorf("refund %s already resolved as %s", refundID, doc.Status))
		}

		var stockStates map[string]*stockState
		var adjustments []repositories.StockAdjustment
		if approve {
			line, err := r.readOrderLineTx(ctx, tx, doc.OrderID, refundID)
			if err != nil {
				return err
			}
			adjustments = []repositories.StockAdjustment{{ProductID: line.ProductID, Quantity: line.Quantity}}
			stockStates, err = r.stock.readForUpdate(ctx, tx, adjustments)
			if err != nil {
				return err
			}
		}

		if approve {
			doc.Status = string(domain.RefundStatusApproved)
			applyRestore(stockStates, adjustments, at)
			if err := r.stock.writeStates(tx, stockStates); err != nil {
				return err
			}
		} else {
			doc.Status = string(domain.RefundStatusRejected)
		}
		doc.ReviewerID = strings.TrimSpace(reviewerID)
		doc.ReviewedAt = &at

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		resolved = doc.toDomain(refundID)
		return nil
	})
	if err != nil {
		return domain.RefundRequest{}, err
	}
	return resolved, nil
}

func (r *RefundRepository) readOrderLineTx(ctx context.Context, tx *firestore.Transaction, orderID, lineID string) (orderLineDocument, error) {
	orderRef, err := r.orders.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return orderLineDocument{}, err
	}
	snap, err := tx.Get(orderRef.Collection(orderLinesCollection).Doc(lineID))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return orderLineDocument{}, pfirestore.NewNotFoundError("refunds.resolve",
				fmt.Errorf("order line %s not found for order %s", lineID, orderID))
		}
		return orderLineDocument{}, err
	}
	var doc orderLineDocument
	if err := snap.DataTo(&doc); err != nil {
		return orderLineDocument{}, fmt.Errorf("decode order line %s: %w", lineID, err)
	}
	return doc, nil
}

type refundDocument struct {
	OrderID    string     `firestore:"orderId"`
	CustomerID string     `firestore:"customerId"`
	Reason     string     `firestore:"reason,omitempty"`
	Amount     int64      `firestore:"amount"`
	Status     string     `firestore:"status"`
	ReviewerID string     `firestore:"reviewerId,omitempty"`
	CreatedAt  time.Time  `firestore:"createdAt"`
	ReviewedAt *time.Time `firestore:"reviewedAt,omitempty"`
}

func (d refundDocument) toDomain(id string) domain.RefundRequest {
	return domain.RefundRequest{
		ID:          id,
		OrderLineID: id,
		OrderID:     d.OrderID,
		CustomerID:  d.CustomerID,
		Reason:      d.Reason,
		Amount:      d.Amount,
		Status:      domain.RefundStatus(d.Status),
		ReviewerID:  d.ReviewerID,
		CreatedAt:   d.CreatedAt,
		ReviewedAt:  d.ReviewedAt,
	}
}
