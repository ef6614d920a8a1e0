package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Callback is the settlement outcome pushed by the gateway.
type Callback struct {
	PaymentID string
	OrderID   string
	Status    string
	Amount    decimal.NullDecimal
}

type Result struct {
	Payment      Payment
	OrderStatus  orders.Status
	Duplicate    bool // payment was already settled with the same status
	OrderUpdated bool
}

// Reconciler applies gateway callbacks. Delivery may repeat or arrive late;
// the first terminal status recorded for a payment wins.
type Reconciler struct {
	Store   Store
	Orders  OrderUpdater
	Events  *orders.Emitter
	Metrics *metrics.Metrics
}

func (r *Reconciler) HandleCallback(ctx context.Context, cb Callback) (res Result, err error) {
	ctx, done := begin(ctx, r.Metrics, "handle_callback", attribute.String("payment_id", cb.PaymentID))
	defer func() {
		done(err)
		r.Metrics.Callback(callbackResult(res, err))
	}()
	log := logging.FromContext(ctx).With(zap.String("payment_id", cb.PaymentID), zap.String("status", cb.Status))

	if strings.TrimSpace(cb.PaymentID) == "" {
		return Result{}, fmt.Errorf("%w: payment id is required", ErrInvalidCallback)
	}
	status, err := ParseCallbackStatus(cb.Status)
	if err != nil {
		return Result{}, err
	}

	p, err := r.Store.GetByPaymentID(ctx, cb.PaymentID)
	if err != nil {
		return Result{}, err
	}
	log = log.With(zap.String("order_id", p.OrderID))
	if cb.OrderID != "" && cb.OrderID != p.OrderID {
		return Result{}, fmt.Errorf("%w: order %s does not own payment %s", ErrInvalidCallback, cb.OrderID, cb.PaymentID)
	}
	if cb.Amount.Valid && !cb.Amount.Decimal.Equal(p.Amount) {
		log.Warn("callback_amount_mismatch",
			zap.String("expected", p.Amount.StringFixed(2)),
			zap.String("got", cb.Amount.Decimal.StringFixed(2)),
		)
	}

	applied, err := r.Store.UpdateStatusIf(ctx, p.PaymentID, StatusPending, status)
	if err != nil {
		return Result{}, fmt.Errorf("update payment: %w", err)
	}
	if !applied {
		cur, err := r.Store.GetByPaymentID(ctx, p.PaymentID)
		if err != nil {
			return Result{}, err
		}
		if cur.Status != status {
			log.Warn("callback_conflict", zap.String("settled", string(cur.Status)))
			return Result{Payment: cur}, fmt.Errorf("%w: payment %s is %s", ErrConflictingCallback, p.PaymentID, cur.Status)
		}
		p = cur
		res.Duplicate = true
	} else {
		p.Status = status
		r.Events.Emit(ctx, orders.EventPaymentSettled, p.OrderID, orders.PaymentSettledPayload{
			OrderID: p.OrderID, PaymentID: p.PaymentID, Status: string(status), Amount: p.Amount,
		})
		log.Info("payment_settled")
	}
	res.Payment = p
	res.OrderStatus = status.OrderStatus()

	// Also runs for duplicates so a crash between the two writes heals on redelivery.
	changed, err := r.Orders.UpdateStatus(ctx, p.OrderID, res.OrderStatus)
	switch {
	case errors.Is(err, orders.ErrInvalidStateTransition):
		log.Warn("order_status_rejected", zap.Error(err))
		return res, nil
	case err != nil:
		return res, fmt.Errorf("update order: %w", err)
	}
	res.OrderUpdated = changed
	return res, nil
}

func callbackResult(res Result, err error) string {
	switch {
	case errors.Is(err, ErrConflictingCallback):
		return "conflict"
	case errors.Is(err, ErrPaymentNotFound):
		return "unknown_payment"
	case errors.Is(err, ErrInvalidCallback):
		return "invalid"
	case err != nil:
		return "error"
	case res.Duplicate:
		return "duplicate"
	default:
		return "applied"
	}
}
