package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
)

// Carts keeps each user's lines in first-add order.
type Carts struct {
	mu    sync.Mutex
	lines map[string][]orders.CartLine
}

func NewCarts() *Carts {
	return &Carts{lines: make(map[string][]orders.CartLine)}
}

func (c *Carts) Add(_ context.Context, userID, productID string, qty int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ls := c.lines[userID]
	for i := range ls {
		if ls[i].ProductID == productID {
			ls[i].Quantity += qty
			return ls[i].Quantity, nil
		}
	}
	c.lines[userID] = append(ls, orders.CartLine{
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		AddedAt:   time.Now().UTC(),
	})
	return qty, nil
}

func (c *Carts) Quantity(_ context.Context, userID, productID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines[userID] {
		if l.ProductID == productID {
			return l.Quantity, nil
		}
	}
	return 0, nil
}

func (c *Carts) Lines(_ context.Context, userID string) ([]orders.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]orders.CartLine(nil), c.lines[userID]...), nil
}

func (c *Carts) Remove(_ context.Context, userID, productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ls := c.lines[userID]
	for i := range ls {
		if ls[i].ProductID == productID {
			c.lines[userID] = append(ls[:i:i], ls[i+1:]...)
			return nil
		}
	}
	return nil
}

func (c *Carts) Clear(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lines, userID)
	return nil
}
