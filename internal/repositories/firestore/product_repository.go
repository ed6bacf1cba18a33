package firestore

import (
	"context"
	"errors"
	"strings"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	pfirestore "github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/firestore"
)

const productsCollection = "products"

// ProductRepository reads the catalog documents maintained by the product
// management surface. The fulfillment core never writes here.
type ProductRepository struct {
	products *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed catalog reader.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		products: pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil),
	}, nil
}

// FindByID loads the catalog entry for a product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, errors.New("product find: product id is required")
	}
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

type productDocument struct {
	Name     string `firestore:"name"`
	Price    int64  `firestore:"price"`
	Discount int64  `firestore:"discount"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     d.Name,
		Price:    d.Price,
		Discount: d.Discount,
	}
}
