package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/auth"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/httpx"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/services"
)

type stubOrderService struct {
	placeFn   func(context.Context, services.PlaceOrderCommand) (services.PlacedOrder, error)
	getFn     func(context.Context, services.OrderQuery) (domain.Order, error)
	listFn    func(context.Context, string) ([]domain.Order, error)
	advanceFn func(context.Context, services.AdvanceOrderCommand) (domain.Order, error)
	cancelFn  func(context.Context, services.CancelOrderCommand) (domain.Order, error)
}

func (s *stubOrderService) Place(ctx context.Context, cmd services.PlaceOrderCommand) (services.PlacedOrder, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, cmd)
	}
	return services.PlacedOrder{}, errors.New("not implemented")
}

func (s *stubOrderService) Get(ctx context.Context, q services.OrderQuery) (domain.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, q)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ListMine(ctx context.Context, userID string) ([]domain.Order, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func (s *stubOrderService) Advance(ctx context.Context, cmd services.AdvanceOrderCommand) (domain.Order, error) {
	if s.advanceFn != nil {
		return s.advanceFn(ctx, cmd)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (domain.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return domain.Order{}, errors.New("not implemented")
}

func newOrderRouter(service services.OrderService) chi.Router {
	router := chi.NewRouter()
	router.Route("/orders", NewOrderHandlers(service).Routes)
	return router
}

func asUser(req *http.Request, uid string, roles ...string) *http.Request {
	if len(roles) == 0 {
		roles = []string{auth.RoleUser}
	}
	identity := &auth.Identity{UID: uid, Roles: roles}
	return req.WithContext(auth.WithIdentity(req.Context(), identity))
}

func TestPlaceOrderReturnsCreatedOrder(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	var captured services.PlaceOrderCommand
	service := &stubOrderService{
		placeFn: func(_ context.Context, cmd services.PlaceOrderCommand) (services.PlacedOrder, error) {
			captured = cmd
			return services.PlacedOrder{
				Order: domain.Order{
					ID:         "ord-1",
					Number:     "ORD-000042",
					UserID:     "user-1",
					Status:     domain.OrderStatusVerifying,
					TotalPrice: 370,
					CreatedAt:  now,
				},
				Invoice: &domain.Invoice{
					ID:          "inv_1",
					Number:      "INV-000042",
					DocumentRef: "gs://billing-docs/invoices/ord-1.json",
					GeneratedAt: now,
				},
			}, nil
		},
	}
	router := newOrderRouter(service)

	body := bytes.NewBufferString(`{"addressRef":"addr-1"}`)
	req := asUser(httptest.NewRequest(http.MethodPost, "/orders/", body), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-1" || captured.AddressRef != "addr-1" {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp placeOrderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.Number != "ORD-000042" || resp.Order.TotalPrice != 370 {
		t.Fatalf("unexpected order payload %+v", resp.Order)
	}
	if resp.Order.Status != "verifying" || resp.Order.StatusCode != 0 {
		t.Fatalf("unexpected status payload %+v", resp.Order)
	}
	if resp.InvoicePending {
		t.Fatal("invoice should not be pending")
	}
	if resp.Invoice == nil || resp.Invoice.Number != "INV-000042" {
		t.Fatalf("unexpected invoice payload %+v", resp.Invoice)
	}
}

func TestPlaceOrderMapsStockShortage(t *testing.T) {
	service := &stubOrderService{
		placeFn: func(context.Context, services.PlaceOrderCommand) (services.PlacedOrder, error) {
			return services.PlacedOrder{}, &repositories.InsufficientStockError{ProductID: "prod-b", Available: 1}
		},
	}
	router := newOrderRouter(service)

	req := asUser(httptest.NewRequest(http.MethodPost, "/orders/", bytes.NewBufferString(`{}`)), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var body httpx.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if body.Code != httpx.CodeStockInsufficient {
		t.Fatalf("expected stock_insufficient code, got %q", body.Code)
	}
	if body.Details["product_id"] != "prod-b" {
		t.Fatalf("expected product detail, got %#v", body.Details)
	}
	if got, ok := body.Details["available"].(float64); !ok || got != 1 {
		t.Fatalf("expected available detail 1, got %#v", body.Details)
	}
}

func TestPlaceOrderRequiresAuthentication(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestGetOrderMapsAccessDenied(t *testing.T) {
	service := &stubOrderService{
		getFn: func(context.Context, services.OrderQuery) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: order ord-1", services.ErrOrderAccessDenied)
		},
	}
	router := newOrderRouter(service)

	req := asUser(httptest.NewRequest(http.MethodGet, "/orders/ord-1", nil), "user-2")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
	var body httpx.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if body.Code != httpx.CodeAuthorization {
		t.Fatalf("expected authorization_denied code, got %q", body.Code)
	}
}

func TestAdvanceOrderRequiresStaffRole(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})

	body := bytes.NewBufferString(`{"target":"processing"}`)
	req := asUser(httptest.NewRequest(http.MethodPost, "/orders/ord-1:advance", body), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestAdvanceOrderPassesTarget(t *testing.T) {
	var captured services.AdvanceOrderCommand
	service := &stubOrderService{
		advanceFn: func(_ context.Context, cmd services.AdvanceOrderCommand) (domain.Order, error) {
			captured = cmd
			return domain.Order{ID: cmd.OrderID, Status: cmd.Target}, nil
		},
	}
	router := newOrderRouter(service)

	body := bytes.NewBufferString(`{"target":"Processing"}`)
	req := asUser(httptest.NewRequest(http.MethodPost, "/orders/ord-1:advance", body), "staff-1", auth.RoleStaff)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord-1" || captured.Target != domain.OrderStatusProcessing {
		t.Fatalf("unexpected command %+v", captured)
	}
}

func TestCancelOrderMapsConflict(t *testing.T) {
	service := &stubOrderService{
		cancelFn: func(context.Context, services.CancelOrderCommand) (domain.Order, error) {
			return domain.Order{}, fmt.Errorf("%w: order ord-1 is delivered", services.ErrOrderConflict)
		},
	}
	router := newOrderRouter(service)

	body := bytes.NewBufferString(`{"reason":"changed my mind"}`)
	req := asUser(httptest.NewRequest(http.MethodPost, "/orders/ord-1:cancel", body), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	var errBody httpx.ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if errBody.Code != httpx.CodeStateConflict {
		t.Fatalf("expected state_conflict code, got %q", errBody.Code)
	}
}
