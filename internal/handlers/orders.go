package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/auth"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/httpx"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/services"
)

// OrderHandlers exposes checkout and order lifecycle endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs handlers backed by the order service.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes wires the /orders endpoints onto the provided router. Placement,
// listing, and cancellation require a signed-in customer; advancing the
// lifecycle is reserved for staff.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(user chi.Router) {
		user.Use(auth.Require(auth.RoleUser, auth.RoleStaff, auth.RoleAdmin))
		user.Post("/", h.placeOrder)
		user.Get("/", h.listOrders)
		user.Get("/{orderID}", h.getOrder)
		user.Post("/{orderID}:cancel", h.cancelOrder)
	})
	r.With(auth.Require(auth.RoleStaff, auth.RoleAdmin)).Post("/{orderID}:advance", h.advanceOrder)
}

type placeOrderRequest struct {
	AddressRef string `json:"addressRef"`
}

type placeOrderResponse struct {
	Order          orderPayload    `json:"order"`
	Invoice        *invoicePayload `json:"invoice,omitempty"`
	InvoicePending bool            `json:"invoicePending"`
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req placeOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	placed, err := h.orders.Place(r.Context(), services.PlaceOrderCommand{
		UserID:     identity.UID,
		AddressRef: req.AddressRef,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := placeOrderResponse{
		Order:          buildOrderPayload(placed.Order),
		InvoicePending: placed.InvoicePending,
	}
	if placed.Invoice != nil {
		resp.Invoice = &invoicePayload{
			ID:          placed.Invoice.ID,
			Number:      placed.Invoice.Number,
			DocumentRef: placed.Invoice.DocumentRef,
			GeneratedAt: placed.Invoice.GeneratedAt,
		}
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	orders, err := h.orders.ListMine(r.Context(), identity.UID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	payloads := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payloads = append(payloads, buildOrderPayload(order))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": payloads})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	orderID := trimPathParam(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeValidationError(w, r, "order id is required")
		return
	}

	order, err := h.orders.Get(r.Context(), services.OrderQuery{
		OrderID:    orderID,
		ActorID:    identity.UID,
		ActorStaff: identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildOrderPayload(order))
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	orderID := trimPathParam(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeValidationError(w, r, "order id is required")
		return
	}

	var req cancelOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	order, err := h.orders.Cancel(r.Context(), services.CancelOrderCommand{
		OrderID:    orderID,
		ActorID:    identity.UID,
		ActorStaff: identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin),
		Reason:     req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildOrderPayload(order))
}

type advanceOrderRequest struct {
	Target string `json:"target"`
}

func (h *OrderHandlers) advanceOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	orderID := trimPathParam(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeValidationError(w, r, "order id is required")
		return
	}

	var req advanceOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}
	target := domain.OrderStatus(strings.TrimSpace(strings.ToLower(req.Target)))

	order, err := h.orders.Advance(r.Context(), services.AdvanceOrderCommand{
		OrderID: orderID,
		Target:  target,
		ActorID: identity.UID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildOrderPayload(order))
}
