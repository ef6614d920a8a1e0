package gateway

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusSuccess  Status = "SUCCESS"
	StatusFailed   Status = "FAILED"
	StatusNotFound Status = "NOT_FOUND"
)

type Settlement struct {
	PaymentID  string          `json:"payment_id"`
	OrderID    string          `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     Status          `json:"status"`
	AcceptedAt time.Time       `json:"accepted_at"`
	ResolvedAt time.Time       `json:"resolved_at,omitzero"`
}

type entry struct {
	mu sync.Mutex
	s  Settlement
}

// StatusTable holds settlements for the life of the process. The map lock
// only guards membership; each settlement has its own lock.
type StatusTable struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewStatusTable() *StatusTable {
	return &StatusTable{entries: make(map[string]*entry)}
}

// Register stores s unless its payment id is known, in which case the
// existing settlement is returned with created=false.
func (t *StatusTable) Register(s Settlement) (Settlement, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[s.PaymentID]; ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.s, false
	}
	t.entries[s.PaymentID] = &entry{s: s}
	return s, true
}

func (t *StatusTable) lookup(paymentID string) (*entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[paymentID]
	return e, ok
}

// Resolve moves a PENDING settlement to status. It reports false when the
// payment is unknown or already resolved.
func (t *StatusTable) Resolve(paymentID string, status Status, at time.Time) (Settlement, bool) {
	e, ok := t.lookup(paymentID)
	if !ok {
		return Settlement{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.Status != StatusPending {
		return e.s, false
	}
	e.s.Status = status
	e.s.ResolvedAt = at
	return e.s, true
}

func (t *StatusTable) Get(paymentID string) (Settlement, bool) {
	e, ok := t.lookup(paymentID)
	if !ok {
		return Settlement{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s, true
}

func (t *StatusTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
