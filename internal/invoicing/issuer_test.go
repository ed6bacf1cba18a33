package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
)

type stubInvoiceRepo struct {
	saveFn func(ctx context.Context, invoice domain.Invoice) error
	findFn func(ctx context.Context, orderID string) (domain.Invoice, error)
}

func (s *stubInvoiceRepo) Save(ctx context.Context, invoice domain.Invoice) error {
	if s.saveFn == nil {
		return errors.New("unexpected Save call")
	}
	return s.saveFn(ctx, invoice)
}

func (s *stubInvoiceRepo) FindByOrder(ctx context.Context, orderID string) (domain.Invoice, error) {
	if s.findFn == nil {
		return domain.Invoice{}, errors.New("unexpected FindByOrder call")
	}
	return s.findFn(ctx, orderID)
}

type stubCounterRepo struct {
	nextFn func(ctx context.Context, name string) (int64, error)
}

func (s *stubCounterRepo) Next(ctx context.Context, name string) (int64, error) {
	if s.nextFn == nil {
		return 0, errors.New("unexpected Next call")
	}
	return s.nextFn(ctx, name)
}

type recordingWriter struct {
	object      string
	contentType string
	data        []byte
	err         error
}

func (w *recordingWriter) Write(_ context.Context, object string, contentType string, data []byte) error {
	w.object = object
	w.contentType = contentType
	w.data = data
	return w.err
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:         "ord-1",
		Number:     "ORD-000042",
		UserID:     "user-1",
		TotalPrice: 370,
		Lines: []domain.OrderLine{
			{ID: "oln-1", ProductID: "prod-a", Quantity: 2, UnitPrice: 100, Discount: 15, Total: 170},
			{ID: "oln-2", ProductID: "prod-b", Quantity: 1, UnitPrice: 250, Discount: 50, Total: 200},
		},
	}
}

func TestIssueRendersAndRecordsInvoice(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	var saved domain.Invoice
	invoices := &stubInvoiceRepo{
		saveFn: func(_ context.Context, invoice domain.Invoice) error {
			saved = invoice
			return nil
		},
	}
	counters := &stubCounterRepo{
		nextFn: func(_ context.Context, name string) (int64, error) {
			if name != "invoiceNumbers" {
				t.Fatalf("unexpected sequence name %q", name)
			}
			return 42, nil
		},
	}
	writer := &recordingWriter{}

	issuer, err := NewIssuer(IssuerDeps{
		Invoices:    invoices,
		Counters:    counters,
		Writer:      writer,
		Bucket:      "billing-docs",
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "inv_test" },
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	invoice, err := issuer.Issue(context.Background(), sampleOrder())
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if invoice.Number != "INV-000042" {
		t.Fatalf("expected number INV-000042, got %q", invoice.Number)
	}
	if invoice.DocumentRef != "gs://billing-docs/invoices/ord-1.json" {
		t.Fatalf("unexpected document ref %q", invoice.DocumentRef)
	}
	if saved.OrderID != "ord-1" || saved.Number != invoice.Number {
		t.Fatalf("unexpected saved invoice %+v", saved)
	}

	if writer.object != "invoices/ord-1.json" || writer.contentType != "application/json" {
		t.Fatalf("unexpected upload target %q (%q)", writer.object, writer.contentType)
	}
	var doc invoiceDocument
	if err := json.Unmarshal(writer.data, &doc); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	if doc.OrderNumber != "ORD-000042" || doc.TotalPrice != 370 || len(doc.Lines) != 2 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if !doc.IssuedAt.Equal(now) {
		t.Fatalf("expected issue time %s, got %s", now, doc.IssuedAt)
	}
}

func TestIssueFailsWhenUploadFails(t *testing.T) {
	invoices := &stubInvoiceRepo{}
	counters := &stubCounterRepo{
		nextFn: func(context.Context, string) (int64, error) { return 7, nil },
	}
	writer := &recordingWriter{err: errors.New("bucket unavailable")}

	issuer, err := NewIssuer(IssuerDeps{
		Invoices:    invoices,
		Counters:    counters,
		Writer:      writer,
		Bucket:      "billing-docs",
		IDGenerator: func() string { return "inv_test" },
	})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	if _, err := issuer.Issue(context.Background(), sampleOrder()); err == nil {
		t.Fatal("expected error when upload fails")
	}
}
