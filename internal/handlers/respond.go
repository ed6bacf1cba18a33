// Package handlers exposes the fulfillment core over HTTP. Handlers decode
// requests, resolve the acting identity, call into services, and translate
// sentinel errors onto the shared error envelope.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/httpx"
)

const maxBodySize = 16 * 1024

// decodeBody parses a size-limited JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxBodySize)
		}
		return fmt.Errorf("invalid JSON body: %v", err)
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

type cartLinePayload struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type cartPayload struct {
	OwnerKey string            `json:"ownerKey"`
	Lines    []cartLinePayload `json:"lines"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	lines := make([]cartLinePayload, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, buildCartLinePayload(line))
	}
	return cartPayload{OwnerKey: cart.OwnerKey, Lines: lines}
}

func buildCartLinePayload(line domain.CartLine) cartLinePayload {
	return cartLinePayload{
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
		AddedAt:   line.AddedAt,
		UpdatedAt: line.UpdatedAt,
	}
}

type orderLinePayload struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Discount  int64  `json:"discount"`
	Total     int64  `json:"total"`
}

type orderPayload struct {
	ID           string             `json:"id"`
	Number       string             `json:"number"`
	UserID       string             `json:"userId"`
	Status       string             `json:"status"`
	StatusCode   int                `json:"statusCode"`
	TotalPrice   int64              `json:"totalPrice"`
	AddressRef   string             `json:"addressRef,omitempty"`
	Lines        []orderLinePayload `json:"lines,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	DeliveredAt  *time.Time         `json:"deliveredAt,omitempty"`
	CanceledAt   *time.Time         `json:"canceledAt,omitempty"`
	CancelReason string             `json:"cancelReason,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	lines := make([]orderLinePayload, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLinePayload{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  line.Discount,
			Total:     line.Total,
		})
	}
	return orderPayload{
		ID:           order.ID,
		Number:       order.Number,
		UserID:       order.UserID,
		Status:       string(order.Status),
		StatusCode:   order.Status.Code(),
		TotalPrice:   order.TotalPrice,
		AddressRef:   order.AddressRef,
		Lines:        lines,
		CreatedAt:    order.CreatedAt,
		DeliveredAt:  order.DeliveredAt,
		CanceledAt:   order.CanceledAt,
		CancelReason: order.CancelReason,
	}
}

type invoicePayload struct {
	ID          string    `json:"id"`
	Number      string    `json:"number"`
	DocumentRef string    `json:"documentRef"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type refundPayload struct {
	ID         string     `json:"id"`
	OrderID    string     `json:"orderId"`
	CustomerID string     `json:"customerId"`
	Reason     string     `json:"reason,omitempty"`
	Amount     int64      `json:"amount"`
	Status     string     `json:"status"`
	ReviewerID string     `json:"reviewerId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
}

func buildRefundPayload(refund domain.RefundRequest) refundPayload {
	return refundPayload{
		ID:         refund.ID,
		OrderID:    refund.OrderID,
		CustomerID: refund.CustomerID,
		Reason:     refund.Reason,
		Amount:     refund.Amount,
		Status:     string(refund.Status),
		ReviewerID: refund.ReviewerID,
		CreatedAt:  refund.CreatedAt,
		ReviewedAt: refund.ReviewedAt,
	}
}

type stockPayload struct {
	ProductID string    `json:"productId"`
	Available int       `json:"available"`
	Capacity  int       `json:"capacity"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func buildStockPayload(level domain.StockLevel) stockPayload {
	return stockPayload{
		ProductID: level.ProductID,
		Available: level.Available,
		Capacity:  level.Capacity,
		UpdatedAt: level.UpdatedAt,
	}
}

func writeValidationError(w http.ResponseWriter, r *http.Request, message string) {
	httpx.Error(w, r, http.StatusBadRequest, httpx.CodeValidation, message, nil)
}

func trimPathParam(value string) string {
	return strings.TrimSpace(value)
}
