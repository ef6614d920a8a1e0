package payments

import (
	"context"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/shopspring/decimal"
)

type Store interface {
	// Create fails with ErrDuplicatePayment when the order already has a payment.
	Create(ctx context.Context, p Payment) error
	GetByOrder(ctx context.Context, orderID string) (Payment, error)
	GetByPaymentID(ctx context.Context, paymentID string) (Payment, error)
	UpdateStatusIf(ctx context.Context, paymentID string, from, to Status) (bool, error)
}

type SettleRequest struct {
	PaymentID string          `json:"payment_id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
}

type Gateway interface {
	Settle(ctx context.Context, req SettleRequest) error
}

type OrderReader interface {
	Get(ctx context.Context, orderID string) (orders.Order, error)
}

type OrderUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, to orders.Status) (bool, error)
}
