package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("orders: invalid input")
	ErrEmptyCart              = errors.New("orders: cart is empty")
	ErrProductNotFound        = errors.New("orders: product not found")
	ErrInsufficientStock      = errors.New("orders: insufficient stock")
	ErrOrderNotFound          = errors.New("orders: order not found")
	ErrInvalidStateTransition = errors.New("orders: invalid state transition")
)

// InsufficientStockError matches ErrInsufficientStock and reports what was left.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("orders: insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
