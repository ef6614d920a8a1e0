package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/payments"
	"github.com/ariefcatur/go-order-settlement/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentsHandler struct {
	Coordinator *payments.Coordinator
	Reconciler  *payments.Reconciler
	Cache       StatusCache
}

type createPaymentReq struct {
	OrderID string          `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type webhookReq struct {
	PaymentID string              `json:"payment_id"`
	OrderID   string              `json:"order_id"`
	Status    string              `json:"status"`
	Amount    decimal.NullDecimal `json:"amount"`
}

type webhookResp struct {
	Received      bool   `json:"received"`
	PaymentID     string `json:"payment_id"`
	PaymentStatus string `json:"payment_status"`
	OrderStatus   string `json:"order_status"`
	Duplicate     bool   `json:"duplicate"`
	OrderUpdated  bool   `json:"order_updated"`
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/payments", h.createPayment)
	r.Get("/payments/order/{orderID}", h.getByOrder)
	r.Post("/webhooks/payment", h.webhook)
}

func (h *PaymentsHandler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentReq
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := h.Coordinator.CreatePayment(ctx, req.OrderID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PaymentsHandler) getByOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Coordinator.GetByOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PaymentsHandler) webhook(w http.ResponseWriter, r *http.Request) {
	var req webhookReq
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reconciler.HandleCallback(ctx, payments.Callback{
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		Status:    req.Status,
		Amount:    req.Amount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.OrderUpdated && h.Cache != nil {
		cs := redisx.CachedStatus{Status: string(res.OrderStatus), UpdatedAt: time.Now().UTC()}
		if err := h.Cache.Set(ctx, res.Payment.OrderID, cs); err != nil {
			logging.FromContext(ctx).Warn("status_cache_write_failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, webhookResp{
		Received:      true,
		PaymentID:     res.Payment.PaymentID,
		PaymentStatus: string(res.Payment.Status),
		OrderStatus:   string(res.OrderStatus),
		Duplicate:     res.Duplicate,
		OrderUpdated:  res.OrderUpdated,
	})
}
