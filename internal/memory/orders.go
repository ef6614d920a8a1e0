package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
)

type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]orders.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]orders.Order)}
}

func (s *OrderStore) CreateOrder(_ context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *OrderStore) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *OrderStore) ListOrdersByUser(_ context.Context, userID string) ([]orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []orders.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *OrderStore) UpdateStatusIf(_ context.Context, id string, from, to orders.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, orders.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	return true, nil
}
