package handlers

import (
	"errors"
	"net/http"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/httpx"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/services"
)

// writeServiceError maps service sentinel errors onto the HTTP error
// taxonomy. Unknown errors surface as internal failures without leaking
// their message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var shortage *repositories.InsufficientStockError
	if errors.As(err, &shortage) {
		httpx.Error(w, r, http.StatusConflict, httpx.CodeStockInsufficient, shortage.Error(), map[string]any{
			"product_id": shortage.ProductID,
			"available":  shortage.Available,
		})
		return
	}

	switch {
	case isInvalidInput(err):
		httpx.Error(w, r, http.StatusBadRequest, httpx.CodeValidation, err.Error(), nil)
	case isNotFound(err):
		httpx.Error(w, r, http.StatusNotFound, httpx.CodeNotFound, err.Error(), nil)
	case isAccessDenied(err):
		httpx.Error(w, r, http.StatusForbidden, httpx.CodeAuthorization, "you do not have access to this resource", nil)
	case isConflict(err):
		httpx.Error(w, r, http.StatusConflict, httpx.CodeStateConflict, err.Error(), nil)
	case isUnavailable(err):
		httpx.Error(w, r, http.StatusServiceUnavailable, httpx.CodeDependency, "a backing service is unavailable; retry shortly", nil)
	default:
		httpx.Error(w, r, http.StatusInternalServerError, httpx.CodeInternal, "internal error", nil)
	}
}

func isInvalidInput(err error) bool {
	return errors.Is(err, services.ErrCartInvalidInput) ||
		errors.Is(err, services.ErrOrderInvalidInput) ||
		errors.Is(err, services.ErrRefundInvalidInput) ||
		errors.Is(err, services.ErrStockInvalidInput)
}

func isNotFound(err error) bool {
	return errors.Is(err, services.ErrCartProductNotFound) ||
		errors.Is(err, services.ErrOrderNotFound) ||
		errors.Is(err, services.ErrRefundNotFound) ||
		errors.Is(err, services.ErrStockNotFound)
}

func isAccessDenied(err error) bool {
	return errors.Is(err, services.ErrOrderAccessDenied) ||
		errors.Is(err, services.ErrRefundAccessDenied)
}

func isConflict(err error) bool {
	return errors.Is(err, services.ErrOrderConflict) ||
		errors.Is(err, services.ErrRefundConflict) ||
		errors.Is(err, services.ErrRefundWindowClosed)
}

func isUnavailable(err error) bool {
	return errors.Is(err, services.ErrCartUnavailable) ||
		errors.Is(err, services.ErrOrderUnavailable) ||
		errors.Is(err, services.ErrRefundUnavailable) ||
		errors.Is(err, services.ErrStockUnavailable)
}
