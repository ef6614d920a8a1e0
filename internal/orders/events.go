package orders

import (
	"context"
	"encoding/json"
	"time"

	kafkax "github.com/ariefcatur/go-order-settlement/internal/kafka"
	"github.com/ariefcatur/go-order-settlement/internal/telemetry"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventPaymentCreated     = "PaymentCreated"
	EventPaymentSettled     = "PaymentSettled"
)

const envelopeVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`                  // payload spesifik
}

// ---- Payload tipe per event ----

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ItemPrice struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Items   []ItemPrice     `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

type OrderCancelledPayload struct {
	OrderID  string    `json:"order_id"`
	Restored []ItemQty `json:"restored"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type PaymentCreatedPayload struct {
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type PaymentSettledPayload struct {
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Emitter wraps payloads in an Envelope and publishes them keyed by order id.
// A nil Emitter, or one without a Publisher, drops events.
type Emitter struct {
	Pub      Publisher
	Producer string
}

func (e *Emitter) Emit(ctx context.Context, eventType, orderID string, payload any) {
	if e == nil || e.Pub == nil {
		return
	}
	ev := NewEnvelope(ctx, e.Producer, eventType, orderID, payload)
	e.Pub.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType, envelopeVersion)...)
}

func NewEnvelope(ctx context.Context, producer, eventType, orderID string, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  envelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       telemetry.TraceID(ctx),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
}
