package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
)

type productRecord struct {
	mu sync.Mutex
	p  orders.Product
}

// Catalog is an in-memory catalog and stock ledger. Each product carries its
// own mutex so reservations of different products never contend.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]*productRecord
}

func NewCatalog(ps ...orders.Product) *Catalog {
	c := &Catalog{products: make(map[string]*productRecord, len(ps))}
	c.Seed(ps)
	return c
}

func (c *Catalog) Seed(ps []orders.Product) {
	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range ps {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		c.products[p.ID] = &productRecord{p: p}
	}
}

func (c *Catalog) record(id string) (*productRecord, error) {
	c.mu.RLock()
	rec, ok := c.products[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrProductNotFound, id)
	}
	return rec, nil
}

func (c *Catalog) GetProduct(_ context.Context, id string) (orders.Product, error) {
	rec, err := c.record(id)
	if err != nil {
		return orders.Product{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.p, nil
}

func (c *Catalog) ListProducts(_ context.Context) ([]orders.Product, error) {
	c.mu.RLock()
	recs := make([]*productRecord, 0, len(c.products))
	for _, rec := range c.products {
		recs = append(recs, rec)
	}
	c.mu.RUnlock()

	out := make([]orders.Product, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.p)
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *Catalog) Reserve(_ context.Context, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", orders.ErrInvalidInput)
	}
	rec, err := c.record(productID)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.p.Stock < qty {
		return 0, &orders.InsufficientStockError{ProductID: productID, Requested: qty, Available: rec.p.Stock}
	}
	rec.p.Stock -= qty
	rec.p.UpdatedAt = time.Now().UTC()
	return rec.p.Stock, nil
}

func (c *Catalog) Restore(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", orders.ErrInvalidInput)
	}
	rec, err := c.record(productID)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.p.Stock += qty
	rec.p.UpdatedAt = time.Now().UTC()
	return nil
}

func (c *Catalog) HasStock(_ context.Context, productID string, qty int) (bool, error) {
	rec, err := c.record(productID)
	if err != nil {
		return false, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.p.Stock >= qty, nil
}
