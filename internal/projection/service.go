package projection

import (
	"context"
	"encoding/json"
	"fmt"

	kafkax "github.com/ariefcatur/go-order-settlement/internal/kafka"
	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type StatusCache interface {
	Set(ctx context.Context, orderID string, cs redisx.CachedStatus) error
}

// Deduper reports true the first time an event id is seen.
type Deduper interface {
	MarkOnce(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Service keeps the order status cache in step with order.events.
type Service struct {
	Cache StatusCache
	Dedup Deduper
}

// HandleOrderEvent: dipasang sebagai handler consumer.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// pesan rusak tidak akan pernah sukses; commit dan lanjut
		logging.FromContext(ctx).Warn("projection_bad_envelope",
			zap.String("event_type", kafkax.Header(m, kafkax.HeaderEventType)), zap.Error(err))
		return nil
	}
	status, ok, err := statusOf(env)
	if err != nil {
		logging.FromContext(ctx).Warn("projection_bad_payload",
			zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	} // ignore

	// 2) dedup via Redis (pakai event_id)
	if s.Dedup != nil {
		first, err := s.Dedup.MarkOnce(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup: %w", err)
		}
		if !first {
			return nil
		}
	}

	// 3) update cache
	if err := s.Cache.Set(ctx, env.CorrelationID, redisx.CachedStatus{
		Status:    string(status),
		UpdatedAt: env.OccurredAt,
	}); err != nil {
		// lepas mark supaya redelivery bisa coba lagi
		if s.Dedup != nil {
			_ = s.Dedup.Forget(ctx, env.EventID)
		}
		return fmt.Errorf("cache status: %w", err)
	}
	logging.FromContext(ctx).Debug("order_status_projected",
		zap.String("order_id", env.CorrelationID),
		zap.String("status", string(status)),
		zap.String("event_type", env.EventType),
	)
	return nil
}

func statusOf(env orders.Envelope) (orders.Status, bool, error) {
	switch env.EventType {
	case orders.EventOrderCreated:
		return orders.StatusCreated, true, nil
	case orders.EventOrderCancelled:
		return orders.StatusCancelled, true, nil
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return "", false, err
		}
		return p.To, true, nil
	default:
		return "", false, nil
	}
}
