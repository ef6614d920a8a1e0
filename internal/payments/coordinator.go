package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = telemetry.Tracer("github.com/ariefcatur/go-order-settlement/internal/payments")

const defaultDispatchTimeout = 5 * time.Second

// Coordinator opens a payment for an order and hands it to the gateway.
type Coordinator struct {
	Orders          OrderReader
	Store           Store
	Gateway         Gateway
	Events          *orders.Emitter
	Metrics         *metrics.Metrics
	DispatchTimeout time.Duration
}

func begin(ctx context.Context, m *metrics.Metrics, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "payments."+name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		telemetry.End(span, err)
		m.ObserveUseCase(name, start, err)
	}
}

func (c *Coordinator) CreatePayment(ctx context.Context, orderID string, amount decimal.Decimal) (p Payment, err error) {
	ctx, done := begin(ctx, c.Metrics, "create_payment", attribute.String("order_id", orderID))
	defer func() { done(err) }()

	if strings.TrimSpace(orderID) == "" {
		return Payment{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return Payment{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	o, err := c.Orders.Get(ctx, orderID)
	if err != nil {
		return Payment{}, err
	}
	if o.Status != orders.StatusCreated {
		return Payment{}, fmt.Errorf("%w: order %s is %s", orders.ErrInvalidStateTransition, orderID, o.Status)
	}
	// The store's unique constraint decides between racing creators.
	if _, err := c.Store.GetByOrder(ctx, orderID); err == nil {
		return Payment{}, ErrDuplicatePayment
	} else if !errors.Is(err, ErrPaymentNotFound) {
		return Payment{}, fmt.Errorf("lookup payment: %w", err)
	}
	if !amount.Equal(o.TotalAmount) {
		return Payment{}, fmt.Errorf("%w: got %s, want %s", ErrAmountMismatch, amount, o.TotalAmount)
	}

	now := time.Now().UTC()
	p = Payment{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		PaymentID: NewToken(),
		Amount:    o.TotalAmount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Store.Create(ctx, p); err != nil {
		return Payment{}, err
	}
	c.Events.Emit(ctx, orders.EventPaymentCreated, orderID, orders.PaymentCreatedPayload{
		OrderID: orderID, PaymentID: p.PaymentID, Amount: p.Amount,
	})

	log := logging.FromContext(ctx).With(zap.String("order_id", orderID), zap.String("payment_id", p.PaymentID))
	log.Info("payment_created", zap.String("amount", p.Amount.StringFixed(2)))
	c.dispatch(ctx, p, log)
	return p, nil
}

// dispatch never fails the caller: the payment stays PENDING when the gateway
// cannot be reached.
func (c *Coordinator) dispatch(ctx context.Context, p Payment, log *zap.Logger) {
	timeout := c.DispatchTimeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	// keep the span, drop the request deadline
	dctx := trace.ContextWithSpan(logging.Detach(ctx), trace.SpanFromContext(ctx))
	dctx, cancel := context.WithTimeout(dctx, timeout)
	defer cancel()

	err := c.Gateway.Settle(dctx, SettleRequest{PaymentID: p.PaymentID, OrderID: p.OrderID, Amount: p.Amount})
	c.Metrics.GatewayDispatch(err)
	if err != nil {
		log.Warn("gateway_dispatch_failed", zap.Error(err))
		return
	}
	log.Info("gateway_dispatched")
}

func (c *Coordinator) GetByOrder(ctx context.Context, orderID string) (Payment, error) {
	if strings.TrimSpace(orderID) == "" {
		return Payment{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	return c.Store.GetByOrder(ctx, orderID)
}
