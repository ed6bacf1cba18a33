// Package firestore hosts the Firestore backed repository implementations.
// Every multi-document mutation runs inside a single transaction so the
// ledger, orders, and refunds can never observe a partial write.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	pfirestore "github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/firestore"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

const stockCollection = "stock"

// StockRepository is the Firestore stock ledger. Sibling repositories reuse
// its in-transaction helpers so reservations and restores commit in the same
// unit as the order mutation that caused them.
type StockRepository struct {
	provider *pfirestore.Provider
	stocks   *pfirestore.BaseRepository[stockDocument]
}

// NewStockRepository constructs the ledger over the given provider.
func NewStockRepository(provider *pfirestore.Provider) (*StockRepository, error) {
	if provider == nil {
		return nil, errors.New("stock repository requires firestore provider")
	}
	return &StockRepository{
		provider: provider,
		stocks:   pfirestore.NewBaseRepository[stockDocument](provider, stockCollection, nil),
	}, nil
}

// Get returns the ledger entry for a product.
func (r *StockRepository) Get(ctx context.Context, productID string) (domain.StockLevel, error) {
	if r == nil || r.stocks == nil {
		return domain.StockLevel{}, errors.New("stock repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.StockLevel{}, errors.New("stock get: product id is required")
	}
	doc, err := r.stocks.Get(ctx, productID)
	if err != nil {
		return domain.StockLevel{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Reserve atomically decrements availability for every item.
func (r *StockRepository) Reserve(ctx context.Context, items []repositories.StockAdjustment) error {
	if r == nil || r.provider == nil {
		return errors.New("stock repository not initialised")
	}
	if err := validateAdjustments(items); err != nil {
		return err
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		states, err := r.readForUpdate(ctx, tx, items)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := applyReserve(states, items, now); err != nil {
			return err
		}
		return r.writeStates(tx, states)
	})
	return unwrapStockError(err)
}

// Restore atomically increments availability for every item, clamped at capacity.
func (r *StockRepository) Restore(ctx context.Context, items []repositories.StockAdjustment) error {
	if r == nil || r.provider == nil {
		return errors.New("stock repository not initialised")
	}
	if err := validateAdjustments(items); err != nil {
		return err
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		states, err := r.readForUpdate(ctx, tx, items)
		if err != nil {
			return err
		}
		applyRestore(states, items, time.Now().UTC())
		return r.writeStates(tx, states)
	})
	return unwrapStockError(err)
}

// Configure upserts the ledger entry for a product.
func (r *StockRepository) Configure(ctx context.Context, level domain.StockLevel) (domain.StockLevel, error) {
	if r == nil || r.provider == nil {
		return domain.StockLevel{}, errors.New("stock repository not initialised")
	}
	productID := strings.TrimSpace(level.ProductID)
	if productID == "" {
		return domain.StockLevel{}, errors.New("stock configure: product id is required")
	}
	if level.Available < 0 || level.Capacity < 0 {
		return domain.StockLevel{}, errors.New("stock configure: quantities must be >= 0")
	}

	var updated domain.StockLevel
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.stocks.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		doc := stockDocument{
			ProductID: productID,
			Available: level.Available,
			Capacity:  level.Capacity,
			UpdatedAt: time.Now().UTC(),
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = doc.toDomain(productID)
		return nil
	})
	if err != nil {
		return domain.StockLevel{}, err
	}
	return updated, nil
}

// stockState pairs a document reference with its decoded contents while a
// transaction mutates it.
type stockState struct {
	ref *firestore.DocumentRef
	doc stockDocument
}

// readForUpdate loads every referenced stock document. Callers must finish
// all transaction reads before issuing writes, so this runs first.
func (r *StockRepository) readForUpdate(ctx context.Context, tx *firestore.Transaction, items []repositories.StockAdjustment) (map[string]*stockState, error) {
	states := make(map[string]*stockState, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if _, seen := states[productID]; seen {
			continue
		}
		ref, err := r.stocks.DocumentRef(ctx, productID)
		if err != nil {
			return nil, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, pfirestore.NewNotFoundError("stock.read", fmt.Errorf("stock entry %s not found", productID))
			}
			return nil, err
		}
		var doc stockDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode stock entry %s: %w", productID, err)
		}
		states[productID] = &stockState{ref: ref, doc: doc}
	}
	return states, nil
}

// applyReserve decrements availability in memory, failing on the first
// product that would go negative. Nothing is written on failure.
func applyReserve(states map[string]*stockState, items []repositories.StockAdjustment, now time.Time) error {
	for _, item := range items {
		state := states[strings.TrimSpace(item.ProductID)]
		if state == nil {
			return pfirestore.NewNotFoundError("stock.reserve", fmt.Errorf("stock entry %s not found", item.ProductID))
		}
		if state.doc.Available < item.Quantity {
			return &repositories.InsufficientStockError{
				ProductID: strings.TrimSpace(item.ProductID),
				Available: state.doc.Available,
			}
		}
		state.doc.Available -= item.Quantity
		state.doc.UpdatedAt = now
	}
	return nil
}

// applyRestore increments availability in memory, clamping at capacity when
// a capacity is configured.
func applyRestore(states map[string]*stockState, items []repositories.StockAdjustment, now time.Time) {
	for _, item := range items {
		state := states[strings.TrimSpace(item.ProductID)]
		if state == nil {
			continue
		}
		state.doc.Available += item.Quantity
		if state.doc.Capacity > 0 && state.doc.Available > state.doc.Capacity {
			state.doc.Available = state.doc.Capacity
		}
		state.doc.UpdatedAt = now
	}
}

func (r *StockRepository) writeStates(tx *firestore.Transaction, states map[string]*stockState) error {
	for _, state := range states {
		if err := tx.Set(state.ref, state.doc); err != nil {
			return err
		}
	}
	return nil
}

func validateAdjustments(items []repositories.StockAdjustment) error {
	if len(items) == 0 {
		return errors.New("stock: at least one item is required")
	}
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return errors.New("stock: product id is required")
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("stock: quantity for %s must be > 0", item.ProductID)
		}
	}
	return nil
}

// unwrapStockError surfaces InsufficientStockError intact through the
// transaction wrapper so services can inspect it.
func unwrapStockError(err error) error {
	if err == nil {
		return nil
	}
	var insufficient *repositories.InsufficientStockError
	if errors.As(err, &insufficient) {
		return insufficient
	}
	return err
}

type stockDocument struct {
	ProductID string    `firestore:"productId"`
	Available int       `firestore:"available"`
	Capacity  int       `firestore:"capacity"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d stockDocument) toDomain(id string) domain.StockLevel {
	return domain.StockLevel{
		ProductID: id,
		Available: d.Available,
		Capacity:  d.Capacity,
		UpdatedAt: d.UpdatedAt,
	}
}
