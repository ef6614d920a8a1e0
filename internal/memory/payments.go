package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/payments"
)

// PaymentStore indexes payments by order and by gateway token.
type PaymentStore struct {
	mu      sync.RWMutex
	byToken map[string]payments.Payment
	byOrder map[string]string
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		byToken: make(map[string]payments.Payment),
		byOrder: make(map[string]string),
	}
}

func (s *PaymentStore) Create(_ context.Context, p payments.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byOrder[p.OrderID]; ok {
		return payments.ErrDuplicatePayment
	}
	if _, ok := s.byToken[p.PaymentID]; ok {
		return payments.ErrDuplicatePayment
	}
	s.byToken[p.PaymentID] = p
	s.byOrder[p.OrderID] = p.PaymentID
	return nil
}

func (s *PaymentStore) GetByOrder(_ context.Context, orderID string) (payments.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.byOrder[orderID]
	if !ok {
		return payments.Payment{}, payments.ErrPaymentNotFound
	}
	return s.byToken[token], nil
}

func (s *PaymentStore) GetByPaymentID(_ context.Context, paymentID string) (payments.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byToken[paymentID]
	if !ok {
		return payments.Payment{}, payments.ErrPaymentNotFound
	}
	return p, nil
}

func (s *PaymentStore) UpdateStatusIf(_ context.Context, paymentID string, from, to payments.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byToken[paymentID]
	if !ok {
		return false, payments.ErrPaymentNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	s.byToken[paymentID] = p
	return true, nil
}
