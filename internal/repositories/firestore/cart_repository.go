package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	pfirestore "github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/firestore"
)

const cartLinesCollection = "cartLines"

// CartRepository persists cart lines as one flat collection keyed by owner
// and product, so a line can be addressed directly and merges can move
// lines between owners in one transaction.
type CartRepository struct {
	provider *pfirestore.Provider
	lines    *pfirestore.BaseRepository[cartLineDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		provider: provider,
		lines:    pfirestore.NewBaseRepository[cartLineDocument](provider, cartLinesCollection, nil),
	}, nil
}

// ListLines returns every line held by the owner, oldest first.
func (r *CartRepository) ListLines(ctx context.Context, ownerKey string) ([]domain.CartLine, error) {
	if r == nil || r.lines == nil {
		return nil, errors.New("cart repository not initialised")
	}
	ownerKey = strings.TrimSpace(ownerKey)
	if ownerKey == "" {
		return nil, errors.New("cart list: owner key is required")
	}

	docs, err := r.lines.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("ownerKey", "==", ownerKey).OrderBy("addedAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.CartLine, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Data.toDomain())
	}
	return out, nil
}

// UpsertLine writes the line for the owner/product pair, replacing any
// previous quantity.
func (r *CartRepository) UpsertLine(ctx context.Context, line domain.CartLine) (domain.CartLine, error) {
	if r == nil || r.lines == nil {
		return domain.CartLine{}, errors.New("cart repository not initialised")
	}
	ownerKey := strings.TrimSpace(line.OwnerKey)
	productID := strings.TrimSpace(line.ProductID)
	if ownerKey == "" || productID == "" {
		return domain.CartLine{}, errors.New("cart upsert: owner key and product id are required")
	}
	if line.Quantity <= 0 {
		return domain.CartLine{}, errors.New("cart upsert: quantity must be > 0")
	}

	now := time.Now().UTC()
	addedAt := line.AddedAt.UTC()
	if addedAt.IsZero() {
		addedAt = now
	}

	doc := cartLineDocument{
		OwnerKey:  ownerKey,
		ProductID: productID,
		Quantity:  line.Quantity,
		AddedAt:   addedAt,
		UpdatedAt: now,
	}
	if _, err := r.lines.Set(ctx, cartLineID(ownerKey, productID), doc); err != nil {
		return domain.CartLine{}, err
	}
	return doc.toDomain(), nil
}

// DeleteLine removes the owner's line for a product. Missing lines are ignored.
func (r *CartRepository) DeleteLine(ctx context.Context, ownerKey, productID string) error {
	if r == nil || r.lines == nil {
		return errors.New("cart repository not initialised")
	}
	ownerKey = strings.TrimSpace(ownerKey)
	productID = strings.TrimSpace(productID)
	if ownerKey == "" || productID == "" {
		return errors.New("cart delete: owner key and product id are required")
	}
	return r.lines.Delete(ctx, cartLineID(ownerKey, productID))
}

// Merge folds every line under fromOwner into toOwner in one transaction.
// Shared products sum their quantities; source lines are removed. Merging
// an owner with no lines leaves the target untouched, which makes a retry
// of the same merge a no-op.
func (r *CartRepository) Merge(ctx context.Context, fromOwner, toOwner string) (domain.Cart, error) {
	if r == nil || r.provider == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	fromOwner = strings.TrimSpace(fromOwner)
	toOwner = strings.TrimSpace(toOwner)
	if fromOwner == "" || toOwner == "" {
		return domain.Cart{}, errors.New("cart merge: both owner keys are required")
	}
	if fromOwner == toOwner {
		return domain.Cart{}, errors.New("cart merge: owner keys must differ")
	}

	var merged domain.Cart
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		coll, err := r.lines.CollectionRef(ctx)
		if err != nil {
			return err
		}

		sourceLines, err := readOwnerLines(tx, coll, fromOwner)
		if err != nil {
			return err
		}
		targetLines, err := readOwnerLines(tx, coll, toOwner)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		byProduct := make(map[string]cartLineDocument, len(targetLines))
		for _, line := range targetLines {
			byProduct[line.ProductID] = line
		}
		for _, line := range sourceLines {
			if existing, ok := byProduct[line.ProductID]; ok {
				existing.Quantity += line.Quantity
				existing.UpdatedAt = now
				byProduct[line.ProductID] = existing
			} else {
				line.OwnerKey = toOwner
				line.UpdatedAt = now
				byProduct[line.ProductID] = line
			}
			if err := tx.Delete(coll.Doc(cartLineID(fromOwner, line.ProductID))); err != nil {
				return err
			}
		}

		merged = domain.Cart{OwnerKey: toOwner}
		for _, line := range byProduct {
			if err := tx.Set(coll.Doc(cartLineID(toOwner, line.ProductID)), line); err != nil {
				return err
			}
			merged.Lines = append(merged.Lines, line.toDomain())
		}
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return merged, nil
}

// Clear removes every line held by the owner.
func (r *CartRepository) Clear(ctx context.Context, ownerKey string) error {
	if r == nil || r.provider == nil {
		return errors.New("cart repository not initialised")
	}
	ownerKey = strings.TrimSpace(ownerKey)
	if ownerKey == "" {
		return errors.New("cart clear: owner key is required")
	}

	return r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		coll, err := r.lines.CollectionRef(ctx)
		if err != nil {
			return err
		}
		lines, err := readOwnerLines(tx, coll, ownerKey)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := tx.Delete(coll.Doc(cartLineID(ownerKey, line.ProductID))); err != nil {
				return err
			}
		}
		return nil
	})
}

// readOwnerLines queries an owner's lines inside the transaction so later
// writes cannot race a concurrent mutation of the same cart.
func readOwnerLines(tx *firestore.Transaction, coll *firestore.CollectionRef, ownerKey string) ([]cartLineDocument, error) {
	iter := tx.Documents(coll.Query.Where("ownerKey", "==", ownerKey))
	defer iter.Stop()

	var out []cartLineDocument
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var doc cartLineDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode cart line %s: %w", snap.Ref.ID, err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func cartLineID(ownerKey, productID string) string {
	return ownerKey + "#" + productID
}

type cartLineDocument struct {
	OwnerKey  string    `firestore:"ownerKey"`
	ProductID string    `firestore:"productId"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d cartLineDocument) toDomain() domain.CartLine {
	return domain.CartLine{
		OwnerKey:  d.OwnerKey,
		ProductID: d.ProductID,
		Quantity:  d.Quantity,
		AddedAt:   d.AddedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
