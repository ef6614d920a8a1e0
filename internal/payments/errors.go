package payments

import "errors"

var (
	ErrInvalidInput        = errors.New("payments: invalid input")
	ErrAmountMismatch      = errors.New("payments: amount does not match order total")
	ErrPaymentNotFound     = errors.New("payments: payment not found")
	ErrDuplicatePayment    = errors.New("payments: order already has a payment")
	ErrInvalidCallback     = errors.New("payments: invalid callback")
	ErrConflictingCallback = errors.New("payments: callback conflicts with settled status")
)
