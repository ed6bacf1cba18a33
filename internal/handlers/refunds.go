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

// RefundHandlers exposes refund submission for customers and the review
// queue for staff.
type RefundHandlers struct {
	refunds services.RefundService
}

// NewRefundHandlers constructs handlers backed by the refund service.
func NewRefundHandlers(refunds services.RefundService) *RefundHandlers {
	return &RefundHandlers{refunds: refunds}
}

// Routes wires the /refunds endpoints onto the provided router.
func (h *RefundHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(user chi.Router) {
		user.Use(auth.Require(auth.RoleUser, auth.RoleStaff, auth.RoleAdmin))
		user.Post("/", h.submitRefund)
		user.Get("/", h.listRefunds)
		user.Get("/{refundID}", h.getRefund)
	})
	r.Group(func(staff chi.Router) {
		staff.Use(auth.Require(auth.RoleStaff, auth.RoleAdmin))
		staff.Get("/pending", h.listPending)
		staff.Post("/{refundID}:resolve", h.resolveRefund)
	})
}

type submitRefundRequest struct {
	OrderID     string `json:"orderId"`
	OrderLineID string `json:"orderLineId"`
	Reason      string `json:"reason"`
}

func (h *RefundHandlers) submitRefund(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var req submitRefundRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	refund, err := h.refunds.Submit(r.Context(), services.SubmitRefundCommand{
		OrderID:     req.OrderID,
		OrderLineID: req.OrderLineID,
		CustomerID:  identity.UID,
		Reason:      req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, buildRefundPayload(refund))
}

func (h *RefundHandlers) getRefund(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	refundID := trimPathParam(chi.URLParam(r, "refundID"))
	if refundID == "" {
		writeValidationError(w, r, "refund id is required")
		return
	}

	refund, err := h.refunds.Get(r.Context(), services.RefundQuery{
		RefundID:   refundID,
		ActorID:    identity.UID,
		ActorStaff: identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildRefundPayload(refund))
}

func (h *RefundHandlers) listRefunds(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	refunds, err := h.refunds.ListMine(r.Context(), identity.UID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"refunds": buildRefundPayloads(refunds)})
}

func (h *RefundHandlers) listPending(w http.ResponseWriter, r *http.Request) {
	refunds, err := h.refunds.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"refunds": buildRefundPayloads(refunds)})
}

type resolveRefundRequest struct {
	Decision string `json:"decision"`
}

func (h *RefundHandlers) resolveRefund(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	refundID := trimPathParam(chi.URLParam(r, "refundID"))
	if refundID == "" {
		writeValidationError(w, r, "refund id is required")
		return
	}

	var req resolveRefundRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	// Resolution is irreversible, so the decision must be spelled out.
	// A missing field must not default to a rejection.
	var approve bool
	switch strings.ToLower(strings.TrimSpace(req.Decision)) {
	case "approved":
		approve = true
	case "rejected":
		approve = false
	default:
		writeValidationError(w, r, `decision must be "approved" or "rejected"`)
		return
	}

	refund, err := h.refunds.Resolve(r.Context(), services.ResolveRefundCommand{
		RefundID:   refundID,
		Approve:    approve,
		ReviewerID: identity.UID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, buildRefundPayload(refund))
}

func buildRefundPayloads(refunds []domain.RefundRequest) []refundPayload {
	payloads := make([]refundPayload, 0, len(refunds))
	for _, refund := range refunds {
		payloads = append(payloads, buildRefundPayload(refund))
	}
	return payloads
}
