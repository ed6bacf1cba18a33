package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/auth"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/httpx"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/services"
)

// StockHandlers exposes the stock ledger to staff tooling.
type StockHandlers struct {
	stock services.StockService
}

// NewStockHandlers constructs handlers backed by the stock service.
func NewStockHandlers(stock services.StockService) *StockHandlers {
	return &StockHandlers{stock: stock}
}

// Routes wires the /stock endpoints onto the provided router. All of them
// are staff-only.
func (h *StockHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Use(auth.Require(auth.RoleStaff, auth.RoleAdmin))
	r.Get("/{productID}", h.getLevel)
	r.Put("/{productID}", h.configureLevel)
	r.Post("/{productID}:restore", h.restoreLevel)
}

func (h *StockHandlers) getLevel(w http.ResponseWriter, r *http.Request) {
	productID := trimPathParam(chi.URLParam(r, "productID"))
	if productID == "" {
		writeValidationError(w, r, "product id is required")
		return
	}

	level, err := h.stock.Get(r.Context(), productID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildStockPayload(level))
}

type configureStockRequest struct {
	Available int `json:"available"`
	Capacity  int `json:"capacity"`
}

func (h *StockHandlers) configureLevel(w http.ResponseWriter, r *http.Request) {
	productID := trimPathParam(chi.URLParam(r, "productID"))
	if productID == "" {
		writeValidationError(w, r, "product id is required")
		return
	}

	var req configureStockRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	level, err := h.stock.Configure(r.Context(), services.ConfigureStockCommand{
		ProductID: productID,
		Available: req.Available,
		Capacity:  req.Capacity,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildStockPayload(level))
}

type restoreStockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *StockHandlers) restoreLevel(w http.ResponseWriter, r *http.Request) {
	productID := trimPathParam(chi.URLParam(r, "productID"))
	if productID == "" {
		writeValidationError(w, r, "product id is required")
		return
	}

	var req restoreStockRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	level, err := h.stock.Restore(r.Context(), productID, req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildStockPayload(level))
}
