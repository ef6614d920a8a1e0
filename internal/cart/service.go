package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
)

type Store interface {
	// Add merges qty into the existing line and returns the new quantity.
	Add(ctx context.Context, userID, productID string, qty int) (int, error)
	Quantity(ctx context.Context, userID, productID string) (int, error)
	Lines(ctx context.Context, userID string) ([]orders.CartLine, error)
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

// Service validates cart edits against the catalog. The stock check here is
// advisory; stock is only reserved when the order is created.
type Service struct {
	Store   Store
	Catalog orders.Catalog
	Ledger  orders.Ledger
}

func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) ([]orders.CartLine, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("%w: user id and product id are required", orders.ErrInvalidInput)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", orders.ErrInvalidInput)
	}
	p, err := s.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	cur, err := s.Store.Quantity(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	ok, err := s.Ledger.HasStock(ctx, productID, cur+qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &orders.InsufficientStockError{ProductID: productID, Requested: cur + qty, Available: p.Stock}
	}
	if _, err := s.Store.Add(ctx, userID, productID, qty); err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}
	return s.Store.Lines(ctx, userID)
}

func (s *Service) Lines(ctx context.Context, userID string) ([]orders.CartLine, error) {
	return s.Store.Lines(ctx, userID)
}

func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	return s.Store.Remove(ctx, userID, productID)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.Store.Clear(ctx, userID)
}
