package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	pfirestore "github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/firestore"
)

const invoicesCollection = "invoices"

// InvoiceRepository records issued invoices, one document per order.
type InvoiceRepository struct {
	invoices *pfirestore.BaseRepository[invoiceDocument]
}

// NewInvoiceRepository constructs a Firestore-backed invoice repository.
func NewInvoiceRepository(provider *pfirestore.Provider) (*InvoiceRepository, error) {
	if provider == nil {
		return nil, errors.New("invoice repository requires firestore provider")
	}
	return &InvoiceRepository{
		invoices: pfirestore.NewBaseRepository[invoiceDocument](provider, invoicesCollection, nil),
	}, nil
}

// Save upserts the invoice record under its order ID.
func (r *InvoiceRepository) Save(ctx context.Context, invoice domain.Invoice) error {
	if r == nil || r.invoices == nil {
		return errors.New("invoice repository not initialised")
	}
	orderID := strings.TrimSpace(invoice.OrderID)
	if orderID == "" {
		return errors.New("invoice save: order id is required")
	}

	doc := invoiceDocument{
		InvoiceID:   strings.TrimSpace(invoice.ID),
		Number:      strings.TrimSpace(invoice.Number),
		DocumentRef: strings.TrimSpace(invoice.DocumentRef),
		GeneratedAt: invoice.GeneratedAt.UTC(),
	}
	_, err := r.invoices.Set(ctx, orderID, doc)
	return err
}

// FindByOrder loads the invoice issued for an order.
func (r *InvoiceRepository) FindByOrder(ctx context.Context, orderID string) (domain.Invoice, error) {
	if r == nil || r.invoices == nil {
		return domain.Invoice{}, errors.New("invoice repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Invoice{}, errors.New("invoice find: order id is required")
	}
	doc, err := r.invoices.Get(ctx, orderID)
	if err != nil {
		return domain.Invoice{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

type invoiceDocument struct {
	InvoiceID   string    `firestore:"invoiceId"`
	Number      string    `firestore:"number"`
	DocumentRef string    `firestore:"documentRef"`
	GeneratedAt time.Time `firestore:"generatedAt"`
}

func (d invoiceDocument) toDomain(orderID string) domain.Invoice {
	return domain.Invoice{
		ID:          d.InvoiceID,
		OrderID:     orderID,
		Number:      d.Number,
		DocumentRef: d.DocumentRef,
		GeneratedAt: d.GeneratedAt,
	}
}
