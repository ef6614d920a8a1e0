package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/metrics"
	"github.com/ariefcatur/go-order-settlement/internal/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = telemetry.Tracer("github.com/ariefcatur/go-order-settlement/internal/orders")

// Service assembles orders from carts and owns order status changes.
type Service struct {
	Catalog Catalog
	Ledger  Ledger
	Carts   CartReader
	Store   Store
	Events  *Emitter
	Metrics *metrics.Metrics

	Now   func() time.Time
	NewID func() string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "orders."+name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		telemetry.End(span, err)
		s.Metrics.ObserveUseCase(name, start, err)
	}
}

type reservation struct {
	productID string
	qty       int
}

// CreateOrder reserves stock for every cart line and persists a CREATED order.
// Any failure restores the reservations made so far and leaves the cart as is.
func (s *Service) CreateOrder(ctx context.Context, userID string) (o Order, err error) {
	ctx, done := s.begin(ctx, "create_order", attribute.String("user_id", userID))
	defer func() { done(err) }()
	log := logging.FromContext(ctx).With(zap.String("user_id", userID))

	if strings.TrimSpace(userID) == "" {
		return Order{}, invalid("user id is required")
	}
	lines, err := s.Carts.Lines(ctx, userID)
	if err != nil {
		return Order{}, fmt.Errorf("read cart: %w", err)
	}
	if len(lines) == 0 {
		return Order{}, ErrEmptyCart
	}

	now := s.now()
	o = Order{
		ID:        s.newID(),
		UserID:    userID,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
		Lines:     make([]OrderLine, 0, len(lines)),
	}
	held := make([]reservation, 0, len(lines))
	total := decimal.Zero

	for _, cl := range lines {
		p, err := s.Catalog.GetProduct(ctx, cl.ProductID)
		if err != nil {
			s.release(ctx, held)
			return Order{}, err
		}
		if _, err := s.Ledger.Reserve(ctx, cl.ProductID, cl.Quantity); err != nil {
			s.release(ctx, held)
			log.Info("order_rejected", zap.String("product_id", cl.ProductID), zap.Error(err))
			return Order{}, err
		}
		held = append(held, reservation{productID: cl.ProductID, qty: cl.Quantity})

		line := OrderLine{
			ID:        s.newID(),
			OrderID:   o.ID,
			ProductID: cl.ProductID,
			Quantity:  cl.Quantity,
			Price:     p.Price,
		}
		o.Lines = append(o.Lines, line)
		total = total.Add(line.Subtotal())
	}
	o.TotalAmount = total

	if err := s.Store.CreateOrder(ctx, o); err != nil {
		s.release(ctx, held)
		return Order{}, fmt.Errorf("persist order: %w", err)
	}

	// Order sudah durable; gagal clear cart cukup di-log.
	if err := s.Carts.Clear(ctx, userID); err != nil {
		log.Warn("cart_clear_failed", zap.String("order_id", o.ID), zap.Error(err))
	}

	items := make([]ItemPrice, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, ItemPrice{ProductID: l.ProductID, Qty: l.Quantity, Price: l.Price})
	}
	s.Events.Emit(ctx, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID: o.ID, UserID: userID, Items: items, Total: o.TotalAmount,
	})
	log.Info("order_created",
		zap.String("order_id", o.ID),
		zap.String("total", o.TotalAmount.StringFixed(2)),
		zap.Int("lines", len(o.Lines)),
	)
	return o, nil
}

// release restores reservations in reverse order. It ignores ctx cancellation
// so an aborted request cannot leak stock.
func (s *Service) release(ctx context.Context, held []reservation) {
	rctx := logging.Detach(ctx)
	for i := len(held) - 1; i >= 0; i-- {
		r := held[i]
		if err := s.Ledger.Restore(rctx, r.productID, r.qty); err != nil {
			logging.FromContext(ctx).Error("stock_restore_failed",
				zap.String("product_id", r.productID),
				zap.Int("qty", r.qty),
				zap.Error(err),
			)
		}
	}
}

// CancelOrder moves a CREATED order to CANCELLED and gives its stock back.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (err error) {
	ctx, done := s.begin(ctx, "cancel_order", attribute.String("order_id", orderID))
	defer func() { done(err) }()

	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != StatusCreated {
		return fmt.Errorf("%w: cannot cancel order in status %s", ErrInvalidStateTransition, o.Status)
	}
	ok, err := s.Store.UpdateStatusIf(ctx, orderID, StatusCreated, StatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: order %s changed concurrently", ErrInvalidStateTransition, orderID)
	}

	held := make([]reservation, 0, len(o.Lines))
	restored := make([]ItemQty, 0, len(o.Lines))
	for _, l := range o.Lines {
		held = append(held, reservation{productID: l.ProductID, qty: l.Quantity})
		restored = append(restored, ItemQty{ProductID: l.ProductID, Qty: l.Quantity})
	}
	s.release(ctx, held)

	s.Events.Emit(ctx, EventOrderCancelled, orderID, OrderCancelledPayload{OrderID: orderID, Restored: restored})
	logging.FromContext(ctx).Info("order_cancelled", zap.String("order_id", orderID))
	return nil
}

// UpdateStatus applies a transition. It reports false without error when the
// order is already in the target status.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to Status) (changed bool, err error) {
	ctx, done := s.begin(ctx, "update_order_status",
		attribute.String("order_id", orderID), attribute.String("to", string(to)))
	defer func() { done(err) }()

	if !to.Valid() {
		return false, invalid("unknown status %q", to)
	}
	// one retry: a lost CAS always lands the order in a terminal status
	for attempt := 0; attempt < 2; attempt++ {
		o, err := s.Store.GetOrder(ctx, orderID)
		if err != nil {
			return false, err
		}
		if o.Status == to {
			return false, nil
		}
		if !CanTransition(o.Status, to) {
			return false, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, o.Status, to)
		}
		ok, err := s.Store.UpdateStatusIf(ctx, orderID, o.Status, to)
		if err != nil {
			return false, fmt.Errorf("update order status: %w", err)
		}
		if ok {
			s.Events.Emit(ctx, EventOrderStatusChanged, orderID, OrderStatusChangedPayload{
				OrderID: orderID, From: o.Status, To: to,
			})
			logging.FromContext(ctx).Info("order_status_changed",
				zap.String("order_id", orderID),
				zap.String("from", string(o.Status)),
				zap.String("to", string(to)),
			)
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: order %s changed concurrently", ErrInvalidStateTransition, orderID)
}

func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return Order{}, invalid("order id is required")
	}
	return s.Store.GetOrder(ctx, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user id is required")
	}
	return s.Store.ListOrdersByUser(ctx, userID)
}
