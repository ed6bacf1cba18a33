package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/domain"
	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/repositories"
)

const (
	cartEventItemUpserted = "cart.item.upserted"
	cartEventItemRemoved  = "cart.item.removed"
	cartEventCleared      = "cart.cleared"
	cartEventMerged       = "cart.merged"

	sessionOwnerPrefix = "session:"
)

var (
	// ErrCartInvalidInput signals the caller provided invalid data.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartProductNotFound indicates the referenced catalog product does not exist.
	ErrCartProductNotFound = errors.New("cart: product not found")
	// ErrCartUnavailable indicates a transient persistence failure.
	ErrCartUnavailable = errors.New("cart: storage unavailable")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService wires dependencies into a concrete CartService implementation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *cartService) Get(ctx context.Context, ownerKey string) (domain.Cart, error) {
	ownerKey = strings.TrimSpace(ownerKey)
	if ownerKey == "" {
		return domain.Cart{}, fmt.Errorf("%w: owner key is required", ErrCartInvalidInput)
	}

	lines, err := s.carts.ListLines(ctx, ownerKey)
	if err != nil {
		return domain.Cart{}, s.wrapRepoErr(err)
	}
	return domain.Cart{OwnerKey: ownerKey, Lines: lines}, nil
}

func (s *cartService) UpsertItem(ctx context.Context, cmd UpsertCartItemCommand) (domain.CartLine, error) {
	ownerKey := strings.TrimSpace(cmd.OwnerKey)
	productID := strings.TrimSpace(cmd.ProductID)
	if ownerKey == "" {
		return domain.CartLine{}, fmt.Errorf("%w: owner key is required", ErrCartInvalidInput)
	}
	if productID == "" {
		return domain.CartLine{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return domain.CartLine{}, fmt.Errorf("%w: quantity must be > 0", ErrCartInvalidInput)
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if repositories.IsNotFound(err) {
			return domain.CartLine{}, fmt.Errorf("%w: %s", ErrCartProductNotFound, productID)
		}
		return domain.CartLine{}, s.wrapRepoErr(err)
	}

	line, err := s.carts.UpsertLine(ctx, domain.CartLine{
		OwnerKey:  ownerKey,
		ProductID: productID,
		Quantity:  cmd.Quantity,
		AddedAt:   s.clock(),
	})
	if err != nil {
		return domain.CartLine{}, s.wrapRepoErr(err)
	}

	s.logger(ctx, cartEventItemUpserted, map[string]any{
		"owner_key":  ownerKey,
		"product_id": productID,
		"quantity":   cmd.Quantity,
	})
	return line, nil
}

func (s *cartService) RemoveItem(ctx context.Context, ownerKey, productID string) error {
	ownerKey = strings.TrimSpace(ownerKey)
	productID = strings.TrimSpace(productID)
	if ownerKey == "" || productID == "" {
		return fmt.Errorf("%w: owner key and product id are required", ErrCartInvalidInput)
	}

	if err := s.carts.DeleteLine(ctx, ownerKey, productID); err != nil {
		return s.wrapRepoErr(err)
	}
	s.logger(ctx, cartEventItemRemoved, map[string]any{
		"owner_key":  ownerKey,
		"product_id": productID,
	})
	return nil
}

func (s *cartService) Clear(ctx context.Context, ownerKey string) error {
	ownerKey = strings.TrimSpace(ownerKey)
	if ownerKey == "" {
		return fmt.Errorf("%w: owner key is required", ErrCartInvalidInput)
	}

	if err := s.carts.Clear(ctx, ownerKey); err != nil {
		return s.wrapRepoErr(err)
	}
	s.logger(ctx, cartEventCleared, map[string]any{
		"owner_key": ownerKey,
	})
	return nil
}

func (s *cartService) Merge(ctx context.Context, cmd MergeCartCommand) (domain.Cart, error) {
	sessionKey := strings.TrimSpace(cmd.SessionKey)
	userID := strings.TrimSpace(cmd.UserID)
	if sessionKey == "" {
		return domain.Cart{}, fmt.Errorf("%w: session key is required", ErrCartInvalidInput)
	}
	if userID == "" {
		return domain.Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	merged, err := s.carts.Merge(ctx, SessionOwnerKey(sessionKey), userID)
	if err != nil {
		return domain.Cart{}, s.wrapRepoErr(err)
	}

	s.logger(ctx, cartEventMerged, map[string]any{
		"user_id":    userID,
		"line_count": len(merged.Lines),
	})
	return merged, nil
}

func (s *cartService) wrapRepoErr(err error) error {
	if repositories.IsUnavailable(err) {
		return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	return err
}

// SessionOwnerKey derives the cart owner key for an anonymous session.
func SessionOwnerKey(sessionKey string) string {
	return sessionOwnerPrefix + strings.TrimSpace(sessionKey)
}
