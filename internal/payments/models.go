package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

func (s Status) Terminal() bool { return s == StatusSuccess || s == StatusFailed }

// OrderStatus maps a settled payment onto its order.
func (s Status) OrderStatus() orders.Status {
	if s == StatusSuccess {
		return orders.StatusPaid
	}
	return orders.StatusFailed
}

// ParseCallbackStatus accepts only terminal outcomes. Anything other than
// SUCCESS counts as a failed settlement.
func ParseCallbackStatus(raw string) (Status, error) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case "", StatusPending:
		return "", fmt.Errorf("%w: status %q is not terminal", ErrInvalidCallback, raw)
	case StatusSuccess:
		return StatusSuccess, nil
	default:
		return StatusFailed, nil
	}
}

type Payment struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewToken returns the gateway-facing correlation id.
func NewToken() string {
	return "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
