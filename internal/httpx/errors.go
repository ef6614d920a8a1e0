package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/payments"
	"github.com/ariefcatur/go-order-settlement/internal/redisx"
	"go.uber.org/zap"
)

const maxBody = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON rejects unknown fields and writes the 400 itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_JSON", Message: err.Error()})
		return false
	}
	return true
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{orders.ErrEmptyCart, http.StatusBadRequest, "EMPTY_CART"},
	{orders.ErrInvalidInput, http.StatusBadRequest, "VALIDATION"},
	{payments.ErrInvalidInput, http.StatusBadRequest, "VALIDATION"},
	{payments.ErrAmountMismatch, http.StatusBadRequest, "AMOUNT_MISMATCH"},
	{payments.ErrInvalidCallback, http.StatusBadRequest, "INVALID_CALLBACK"},
	{orders.ErrProductNotFound, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{orders.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
	{payments.ErrPaymentNotFound, http.StatusNotFound, "PAYMENT_NOT_FOUND"},
	{orders.ErrInsufficientStock, http.StatusConflict, "INSUFFICIENT_STOCK"},
	{orders.ErrInvalidStateTransition, http.StatusConflict, "INVALID_STATE_TRANSITION"},
	{payments.ErrDuplicatePayment, http.StatusConflict, "DUPLICATE_PAYMENT"},
	{payments.ErrConflictingCallback, http.StatusConflict, "CONFLICTING_CALLBACK"},
	{redisx.ErrInProgress, http.StatusConflict, "REQUEST_IN_PROGRESS"},
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, ec := range errorCodes {
		if !errors.Is(err, ec.err) {
			continue
		}
		body := errorBody{Error: ec.code, Message: err.Error()}
		var ise *orders.InsufficientStockError
		if errors.As(err, &ise) {
			body.ProductID = ise.ProductID
			body.Available = &ise.Available
		}
		writeJSON(w, ec.status, body)
		return
	}
	logging.FromContext(r.Context()).Error("request_failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: "internal error"})
}
