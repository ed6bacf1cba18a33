package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/auth"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/httpx"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/services"
)

// CartHandlers exposes cart endpoints for signed-in users and anonymous
// sessions. Guests identify themselves with the X-Session-Key header.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs handlers backed by the cart service.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(owned chi.Router) {
		owned.Use(auth.RequireOwnerKey)
		owned.Get("/", h.getCart)
		owned.Delete("/", h.clearCart)
		owned.Put("/items", h.upsertItem)
		owned.Delete("/items/{productID}", h.removeItem)
	})
	r.With(auth.Require(auth.RoleUser, auth.RoleStaff, auth.RoleAdmin)).Post("/merge", h.mergeCart)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	cart, err := h.carts.Get(r.Context(), identity.OwnerKey())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	if err := h.carts.Clear(r.Context(), identity.OwnerKey()); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandlers) upsertItem(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req upsertItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	line, err := h.carts.UpsertItem(r.Context(), services.UpsertCartItemCommand{
		OwnerKey:  identity.OwnerKey(),
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildCartLinePayload(line))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	productID := trimPathParam(chi.URLParam(r, "productID"))
	if productID == "" {
		writeValidationError(w, r, "product id is required")
		return
	}

	if err := h.carts.RemoveItem(r.Context(), identity.OwnerKey(), productID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mergeCartRequest struct {
	SessionKey string `json:"sessionKey"`
}

func (h *CartHandlers) mergeCart(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req mergeCartRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}
	sessionKey := strings.TrimSpace(req.SessionKey)
	if sessionKey == "" {
		sessionKey = strings.TrimSpace(r.Header.Get(auth.SessionKeyHeader))
	}

	cart, err := h.carts.Merge(r.Context(), services.MergeCartCommand{
		SessionKey: sessionKey,
		UserID:     identity.UID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildCartPayload(cart))
}
