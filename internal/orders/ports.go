package orders

import "context"

type Catalog interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// Ledger adjusts available stock; Reserve and Restore are atomic per product.
type Ledger interface {
	Reserve(ctx context.Context, productID string, qty int) (remaining int, err error)
	Restore(ctx context.Context, productID string, qty int) error
	HasStock(ctx context.Context, productID string, qty int) (bool, error)
}

type CartReader interface {
	Lines(ctx context.Context, userID string) ([]CartLine, error)
	Clear(ctx context.Context, userID string) error
}

type Store interface {
	CreateOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
	// UpdateStatusIf returns false when the current status is not from.
	UpdateStatusIf(ctx context.Context, id string, from, to Status) (bool, error)
}
