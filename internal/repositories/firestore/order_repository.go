package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	pfirestore "github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/firestore"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

const (
	ordersCollection     = "orders"
	orderLinesCollection = "lines"
)

// OrderRepository persists orders with their line snapshots. Placement,
// advancement, and cancellation each run as one transaction so the order
// document, its lines, the stock ledger, and the cart can never diverge.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	stock    *StockRepository
	carts    *CartRepository
	counters *CounterRepository
}

// NewOrderRepository constructs a Firestore-backed order repository. The
// stock, cart, and counter repositories supply the in-transaction helpers
// placement and cancellation compose with.
func NewOrderRepository(provider *pfirestore.Provider, stock *StockRepository, carts *CartRepository, counters *CounterRepository) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	if stock == nil {
		return nil, errors.New("order repository requires stock repository")
	}
	if carts == nil {
		return nil, errors.New("order repository requires cart repository")
	}
	if counters == nil {
		return nil, errors.New("order repository requires counter repository")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil),
		stock:    stock,
		carts:    carts,
		counters: counters,
	}, nil
}

// Place commits the order in one transaction: every line's stock is
// reserved, the order and its line snapshots are created, the owner's cart
// is emptied, and the order number is minted. A stock shortage aborts the
// transaction with nothing written.
func (r *OrderRepository) Place(ctx context.Context, params repositories.PlaceOrderParams) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	order := params.Order
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order place: order id is required")
	}
	if strings.TrimSpace(order.UserID) == "" {
		return domain.Order{}, errors.New("order place: user id is required")
	}
	if len(order.Lines) == 0 {
		return domain.Order{}, errors.New("order place: at least one line is required")
	}
	ownerKey := strings.TrimSpace(params.OwnerKey)
	if ownerKey == "" {
		return domain.Order{}, errors.New("order place: owner key is required")
	}

	adjustments := make([]repositories.StockAdjustment, len(order.Lines))
	for i, line := range order.Lines {
		adjustments[i] = repositories.StockAdjustment{ProductID: line.ProductID, Quantity: line.Quantity}
	}

	var placed domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		cartColl, err := r.carts.lines.CollectionRef(ctx)
		if err != nil {
			return err
		}

		// All reads happen before the first write.
		if _, err := tx.Get(orderRef); err == nil {
			return pfirestore.NewConflictError("orders.place", fmt.Errorf("order %s already exists", order.ID))
		} else if status.Code(err) != codes.NotFound {
			return err
		}
		stockStates, err := r.stock.readForUpdate(ctx, tx, adjustments)
		if err != nil {
			return err
		}
		cartLines, err := readOwnerLines(tx, cartColl, ownerKey)
		if err != nil {
			return err
		}
		// The order lines were built from a cart snapshot taken before this
		// transaction. If the cart moved in between, committing would charge
		// for the stale snapshot and silently drop the newer lines, so the
		// caller must re-read and retry instead.
		if err := verifyCartUnchanged(cartLines, order.Lines, ownerKey); err != nil {
			return err
		}
		counterState, sequence, err := r.counters.prepareNext(ctx, tx, params.NumberSequence)
		if err != nil {
			return err
		}

		now := order.CreatedAt.UTC()
		if now.IsZero() {
			now = time.Now().UTC()
		}
		if err := applyReserve(stockStates, adjustments, now); err != nil {
			return err
		}

		order.Number = fmt.Sprintf("ORD-%06d", sequence)
		order.Status = domain.OrderStatusVerifying
		order.CreatedAt = now

		if err := r.stock.writeStates(tx, stockStates); err != nil {
			return err
		}
		if err := tx.Create(orderRef, newOrderDocument(order)); err != nil {
			return err
		}
		for _, line := range order.Lines {
			lineRef := orderRef.Collection(orderLinesCollection).Doc(line.ID)
			if err := tx.Create(lineRef, newOrderLineDocument(line)); err != nil {
				return err
			}
		}
		for _, cartLine := range cartLines {
			if err := tx.Delete(cartColl.Doc(cartLineID(ownerKey, cartLine.ProductID))); err != nil {
				return err
			}
		}
		if err := r.counters.commit(tx, counterState); err != nil {
			return err
		}

		placed = order
		return nil
	})
	if err != nil {
		return domain.Order{}, unwrapStockError(err)
	}
	return placed, nil
}

// FindByID loads the order header and its line snapshots.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order find: order id is required")
	}

	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order := doc.Data.toDomain(doc.ID)

	lines, err := r.listLines(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines
	return order, nil
}

// FindLine loads one line snapshot of an order.
func (r *OrderRepository) FindLine(ctx context.Context, orderID, lineID string) (domain.OrderLine, error) {
	if r == nil || r.orders == nil {
		return domain.OrderLine{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	lineID = strings.TrimSpace(lineID)
	if orderID == "" || lineID == "" {
		return domain.OrderLine{}, errors.New("order find line: order id and line id are required")
	}

	orderRef, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return domain.OrderLine{}, err
	}
	snap, err := orderRef.Collection(orderLinesCollection).Doc(lineID).Get(ctx)
	if err != nil {
		return domain.OrderLine{}, pfirestore.WrapError("orders.findLine", err)
	}
	var doc orderLineDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.OrderLine{}, fmt.Errorf("decode order line %s: %w", lineID, err)
	}
	return doc.toDomain(snap.Ref.ID, orderID), nil
}

// ListByUser returns the user's order headers, newest first. Line snapshots
// are loaded on demand via FindByID.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("order list: user id is required")
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain(doc.ID))
	}
	return out, nil
}

// Advance moves the order to target after re-reading the current status in
// the same transaction, so two concurrent transitions cannot both win.
func (r *OrderRepository) Advance(ctx context.Context, orderID string, target domain.OrderStatus, at time.Time) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order advance: order id is required")
	}
	if !target.Valid() {
		return domain.Order{}, fmt.Errorf("order advance: unknown status %q", target)
	}

	at = at.UTC()
	var advanced domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, doc, err := r.readOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		current := domain.OrderStatus(doc.Status)
		if !current.CanAdvanceTo(target) {
			return pfirestore.NewConflictError("orders.advance",
				fmt.Errorf("order %s cannot move from %s to %s", orderID, current, target))
		}

		doc.Status = string(target)
		doc.StatusCode = target.Code()
		switch target {
		case domain.OrderStatusProcessing:
			doc.ProcessingAt = &at
		case domain.OrderStatusInTransit:
			doc.InTransitAt = &at
		case domain.OrderStatusDelivered:
			doc.DeliveredAt = &at
		}

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		advanced = doc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return advanced, nil
}

// Cancel marks the order canceled and returns every reserved unit to the
// ledger in the same transaction. Orders past Processing surface a conflict.
func (r *OrderRepository) Cancel(ctx context.Context, orderID, reason string, at time.Time) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order cancel: order id is required")
	}

	at = at.UTC()
	var canceled domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, doc, err := r.readOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		current := domain.OrderStatus(doc.Status)
		if !current.Cancellable() {
			return pfirestore.NewConflictError("orders.cancel",
				fmt.Errorf("order %s in status %s cannot be canceled", orderID, current))
		}

		lines, err := r.readLinesTx(tx, ref)
		if err != nil {
			return err
		}
		adjustments := make([]repositories.StockAdjustment, len(lines))
		for i, line := range lines {
			adjustments[i] = repositories.StockAdjustment{ProductID: line.ProductID, Quantity: line.Quantity}
		}
		stockStates, err := r.stock.readForUpdate(ctx, tx, adjustments)
		if err != nil {
			return err
		}

		applyRestore(stockStates, adjustments, at)
		doc.Status = string(domain.OrderStatusCanceled)
		doc.StatusCode = domain.OrderStatusCanceled.Code()
		doc.CanceledAt = &at
		doc.CancelReason = strings.TrimSpace(reason)

		if err := r.stock.writeStates(tx, stockStates); err != nil {
			return err
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		canceled = doc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return canceled, nil
}

// verifyCartUnchanged compares the in-transaction cart contents against the
// order lines built from the pre-transaction snapshot. Any divergence in
// products or quantities aborts the placement with a conflict.
func verifyCartUnchanged(cartLines []cartLineDocument, orderLines []domain.OrderLine, ownerKey string) error {
	inCart := make(map[string]int, len(cartLines))
	for _, line := range cartLines {
		inCart[line.ProductID] = line.Quantity
	}
	diverged := len(cartLines) != len(orderLines)
	if !diverged {
		for _, line := range orderLines {
			if qty, ok := inCart[line.ProductID]; !ok || qty != line.Quantity {
				diverged = true
				break
			}
		}
	}
	if diverged {
		return pfirestore.NewConflictError("orders.place",
			fmt.Errorf("cart for %s changed during placement", ownerKey))
	}
	return nil
}

func (r *OrderRepository) readOrder(ctx context.Context, tx *firestore.Transaction, orderID string) (*firestore.DocumentRef, orderDocument, error) {
	ref, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return nil, orderDocument{}, err
	}
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, orderDocument{}, pfirestore.NewNotFoundError("orders.read", fmt.Errorf("order %s not found", orderID))
		}
		return nil, orderDocument{}, err
	}
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, orderDocument{}, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return ref, doc, nil
}

func (r *OrderRepository) readLinesTx(tx *firestore.Transaction, orderRef *firestore.DocumentRef) ([]domain.OrderLine, error) {
	iter := tx.Documents(orderRef.Collection(orderLinesCollection).Query)
	defer iter.Stop()

	var out []domain.OrderLine
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc orderLineDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode order line %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc.toDomain(snap.Ref.ID, orderRef.ID))
	}
	return out, nil
}

func (r *OrderRepository) listLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	orderRef, err := r.orders.DocumentRef(ctx, orderID)
	if err != nil {
		return nil, err
	}

	iter := orderRef.Collection(orderLinesCollection).Documents(ctx)
	defer iter.Stop()

	var out []domain.OrderLine
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.listLines", err)
		}
		var doc orderLineDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode order line %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc.toDomain(snap.Ref.ID, orderID))
	}
	return out, nil
}

// Document mapping -----------------------------------------------------------

type orderDocument struct {
	Number       string     `firestore:"number"`
	UserID       string     `firestore:"userId"`
	Status       string     `firestore:"status"`
	StatusCode   int        `firestore:"statusCode"`
	TotalPrice   int64      `firestore:"totalPrice"`
	AddressRef   string     `firestore:"addressRef,omitempty"`
	CreatedAt    time.Time  `firestore:"createdAt"`
	ProcessingAt *time.Time `firestore:"processingAt,omitempty"`
	InTransitAt  *time.Time `firestore:"inTransitAt,omitempty"`
	DeliveredAt  *time.Time `firestore:"deliveredAt,omitempty"`
	CanceledAt   *time.Time `firestore:"canceledAt,omitempty"`
	CancelReason string     `firestore:"cancelReason,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	return orderDocument{
		Number:       order.Number,
		UserID:       strings.TrimSpace(order.UserID),
		Status:       string(order.Status),
		StatusCode:   order.Status.Code(),
		TotalPrice:   order.TotalPrice,
		AddressRef:   strings.TrimSpace(order.AddressRef),
		CreatedAt:    order.CreatedAt.UTC(),
		ProcessingAt: order.ProcessingAt,
		InTransitAt:  order.InTransitAt,
		DeliveredAt:  order.DeliveredAt,
		CanceledAt:   order.CanceledAt,
		CancelReason: strings.TrimSpace(order.CancelReason),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	return domain.Order{
		ID:           id,
		Number:       d.Number,
		UserID:       d.UserID,
		Status:       domain.OrderStatus(d.Status),
		TotalPrice:   d.TotalPrice,
		AddressRef:   d.AddressRef,
		CreatedAt:    d.CreatedAt,
		ProcessingAt: d.ProcessingAt,
		InTransitAt:  d.InTransitAt,
		DeliveredAt:  d.DeliveredAt,
		CanceledAt:   d.CanceledAt,
		CancelReason: d.CancelReason,
	}
}

type orderLineDocument struct {
	ProductID string `firestore:"productId"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice int64  `firestore:"unitPrice"`
	Discount  int64  `firestore:"discount"`
	Total     int64  `firestore:"total"`
}

func newOrderLineDocument(line domain.OrderLine) orderLineDocument {
	return orderLineDocument{
		ProductID: strings.TrimSpace(line.ProductID),
		Quantity:  line.Quantity,
		UnitPrice: line.UnitPrice,
		Discount:  line.Discount,
		Total:     line.Total,
	}
}

func (d orderLineDocument) toDomain(id, orderID string) domain.OrderLine {
	return domain.OrderLine{
		ID:        id,
		OrderID:   orderID,
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		UnitPrice: d.UnitPrice,
		Discount:  d.Discount,
		Total:     d.Total,
	}
}
