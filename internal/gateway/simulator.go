package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest = errors.New("gateway: invalid settlement request")
	ErrShuttingDown   = errors.New("gateway: shutting down")
)

const DefaultSuccessRate = 0.95

// Simulator accepts settlements and resolves each one after Delay, drawing
// success with probability SuccessRate, then notifies the merchant.
type Simulator struct {
	Table         *StatusTable
	Scheduler     Scheduler
	Notifier      Notifier
	Delay         time.Duration
	SuccessRate   float64
	NotifyTimeout time.Duration
	Log           *zap.Logger
	Metrics       *metrics.Metrics

	// Rand returns a value in [0,1). Calls are serialized.
	Rand  func() float64
	randM sync.Mutex

	Now func() time.Time
}

type SettleRequest struct {
	PaymentID string          `json:"payment_id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (r SettleRequest) validate() error {
	if strings.TrimSpace(r.PaymentID) == "" || strings.TrimSpace(r.OrderID) == "" {
		return fmt.Errorf("%w: payment_id and order_id are required", ErrInvalidRequest)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	return nil
}

func (s *Simulator) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Simulator) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.L()
}

// Settle records the request as PENDING and schedules its resolution. A
// repeated request for a known payment returns the current settlement and
// schedules nothing.
func (s *Simulator) Settle(req SettleRequest) (Settlement, error) {
	if err := req.validate(); err != nil {
		return Settlement{}, err
	}
	st, created := s.Table.Register(Settlement{
		PaymentID:  req.PaymentID,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		Status:     StatusPending,
		AcceptedAt: s.now(),
	})
	log := s.logger().With(zap.String("payment_id", req.PaymentID), zap.String("order_id", req.OrderID))
	if !created {
		log.Info("settlement_duplicate", zap.String("status", string(st.Status)))
		return st, nil
	}
	if !s.Scheduler.AfterFunc(s.Delay, func() { s.resolve(req.PaymentID) }) {
		// table entry stays PENDING; nothing will ever resolve it in this process
		return Settlement{}, ErrShuttingDown
	}
	log.Info("settlement_accepted", zap.Duration("delay", s.Delay))
	return st, nil
}

func (s *Simulator) Status(paymentID string) Status {
	st, ok := s.Table.Get(paymentID)
	if !ok {
		return StatusNotFound
	}
	return st.Status
}

func (s *Simulator) draw() float64 {
	s.randM.Lock()
	defer s.randM.Unlock()
	if s.Rand != nil {
		return s.Rand()
	}
	return rand.Float64()
}

func (s *Simulator) outcome() Status {
	if s.draw() < s.SuccessRate {
		return StatusSuccess
	}
	return StatusFailed
}

func (s *Simulator) resolve(paymentID string) {
	st, ok := s.Table.Resolve(paymentID, s.outcome(), s.now())
	if !ok {
		return
	}
	s.Metrics.Settlement(string(st.Status))
	log := s.logger().With(
		zap.String("payment_id", st.PaymentID),
		zap.String("order_id", st.OrderID),
		zap.String("status", string(st.Status)),
	)
	log.Info("settlement_resolved")

	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := s.Notifier.Notify(ctx, Callback{
		PaymentID: st.PaymentID,
		OrderID:   st.OrderID,
		Status:    st.Status,
		Amount:    st.Amount,
	})
	if err != nil {
		log.Warn("webhook_delivery_failed", zap.Error(err))
		return
	}
	log.Info("webhook_delivered")
}
