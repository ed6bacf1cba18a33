// Package invoicing renders billing documents for placed orders and stores
// them in Cloud Storage.
package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

const defaultNumberSequence = "invoiceNumbers"

// ObjectWriter stores a rendered invoice document under the given object name.
type ObjectWriter interface {
	Write(ctx context.Context, object string, contentType string, data []byte) error
}

// BucketWriter writes objects into a single Cloud Storage bucket.
type BucketWriter struct {
	client *gcs.Client
	bucket string
}

// NewBucketWriter constructs an ObjectWriter backed by a Cloud Storage bucket.
func NewBucketWriter(client *gcs.Client, bucket string) (*BucketWriter, error) {
	if client == nil {
		return nil, errors.New("invoice bucket writer: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("invoice bucket writer: bucket is required")
	}
	return &BucketWriter{client: client, bucket: bucket}, nil
}

// Write uploads the document, failing the object creation if it already exists.
func (w *BucketWriter) Write(ctx context.Context, object string, contentType string, data []byte) error {
	if w == nil || w.client == nil {
		return errors.New("invoice bucket writer: not initialised")
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return errors.New("invoice bucket writer: object name is required")
	}

	writer := w.client.Bucket(w.bucket).Object(object).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write invoice object %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close invoice object %s: %w", object, err)
	}
	return nil
}

// IssuerDeps bundles collaborators required to construct the issuer.
type IssuerDeps struct {
	Invoices       repositories.InvoiceRepository
	Counters       repositories.CounterRepository
	Writer         ObjectWriter
	Bucket         string
	NumberSequence string
	Clock          func() time.Time
	IDGenerator    func() string
}

// Issuer renders a JSON invoice document, uploads it, and records the invoice.
type Issuer struct {
	invoices repositories.InvoiceRepository
	counters repositories.CounterRepository
	writer   ObjectWriter
	bucket   string
	sequence string
	clock    func() time.Time
	idGen    func() string
}

// NewIssuer wires dependencies into a concrete invoice issuer.
func NewIssuer(deps IssuerDeps) (*Issuer, error) {
	if deps.Invoices == nil {
		return nil, errors.New("invoice issuer: invoice repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("invoice issuer: counter repository is required")
	}
	if deps.Writer == nil {
		return nil, errors.New("invoice issuer: object writer is required")
	}
	if deps.IDGenerator == nil {
		return nil, errors.New("invoice issuer: id generator is required")
	}

	sequence := strings.TrimSpace(deps.NumberSequence)
	if sequence == "" {
		sequence = defaultNumberSequence
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Issuer{
		invoices: deps.Invoices,
		counters: deps.Counters,
		writer:   deps.Writer,
		bucket:   strings.TrimSpace(deps.Bucket),
		sequence: sequence,
		clock: func() time.Time {
			return clock().UTC()
		},
		idGen: deps.IDGenerator,
	}, nil
}

// invoiceDocument is the rendered billing payload stored alongside the order.
type invoiceDocument struct {
	Number      string        `json:"number"`
	OrderID     string        `json:"orderId"`
	OrderNumber string        `json:"orderNumber"`
	CustomerID  string        `json:"customerId"`
	Lines       []invoiceLine `json:"lines"`
	TotalPrice  int64         `json:"totalPrice"`
	IssuedAt    time.Time     `json:"issuedAt"`
}

type invoiceLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Discount  int64  `json:"discount"`
	Total     int64  `json:"total"`
}

// Issue renders and stores the invoice for a placed order. Callers treat a
// failure here as degraded success, never as a placement failure.
func (i *Issuer) Issue(ctx context.Context, order domain.Order) (domain.Invoice, error) {
	if i == nil || i.invoices == nil {
		return domain.Invoice{}, errors.New("invoice issuer: not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Invoice{}, errors.New("invoice issuer: order id is required")
	}

	sequence, err := i.counters.Next(ctx, i.sequence)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("mint invoice number: %w", err)
	}
	number := fmt.Sprintf("INV-%06d", sequence)
	issuedAt := i.clock()

	lines := make([]invoiceLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, invoiceLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Discount:  line.Discount,
			Total:     line.Total,
		})
	}

	data, err := json.Marshal(invoiceDocument{
		Number:      number,
		OrderID:     order.ID,
		OrderNumber: order.Number,
		CustomerID:  order.UserID,
		Lines:       lines,
		TotalPrice:  order.TotalPrice,
		IssuedAt:    issuedAt,
	})
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("render invoice: %w", err)
	}

	object := fmt.Sprintf("invoices/%s.json", order.ID)
	if err := i.writer.Write(ctx, object, "application/json", data); err != nil {
		return domain.Invoice{}, err
	}

	invoice := domain.Invoice{
		ID:          i.idGen(),
		OrderID:     order.ID,
		Number:      number,
		DocumentRef: fmt.Sprintf("gs://%s/%s", i.bucket, object),
		GeneratedAt: issuedAt,
	}
	if err := i.invoices.Save(ctx, invoice); err != nil {
		return domain.Invoice{}, fmt.Errorf("record invoice: %w", err)
	}
	return invoice, nil
}
