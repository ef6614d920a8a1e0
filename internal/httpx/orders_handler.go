package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-settlement/internal/logging"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/ariefcatur/go-order-settlement/internal/payments"
	"github.com/ariefcatur/go-order-settlement/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, bool, error)
	Set(ctx context.Context, orderID string, cs redisx.CachedStatus) error
}

type Idempotency interface {
	Begin(ctx context.Context, key string) (orderID string, claimed bool, err error)
	Remember(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// OrdersHandler serves order endpoints. Cache and Idem are optional.
type OrdersHandler struct {
	Orders   *orders.Service
	Payments *payments.Coordinator
	Cache    StatusCache
	Idem     Idempotency
}

type createOrderReq struct {
	UserID string `json:"user_id"`
}

type orderView struct {
	orders.Order
	Payment *payments.Payment `json:"payment,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/users/{userID}/orders", h.listByUser)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast-path idempotency via Redis (optional, DB tetap jadi kebenaran)
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && h.Idem != nil {
		orderID, claimed, err := h.Idem.Begin(ctx, key)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !claimed {
			o, err := h.Orders.Get(ctx, orderID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, o)
			return
		}
	}

	o, err := h.Orders.CreateOrder(ctx, req.UserID)
	if err != nil {
		if key != "" && h.Idem != nil {
			_ = h.Idem.Release(logging.Detach(ctx), key)
		}
		writeError(w, r, err)
		return
	}
	if key != "" && h.Idem != nil {
		if err := h.Idem.Remember(ctx, key, o.ID); err != nil {
			logging.FromContext(ctx).Warn("idempotency_remember_failed", zap.Error(err))
		}
	}
	h.cacheStatus(ctx, o.ID, o.Status, o.UpdatedAt)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	view := orderView{Order: o}
	if h.Payments != nil {
		p, err := h.Payments.GetByOrder(ctx, o.ID)
		switch {
		case err == nil:
			view.Payment = &p
		case !errors.Is(err, payments.ErrPaymentNotFound):
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		cs, ok, err := h.Cache.Get(ctx, orderID)
		if err != nil {
			logging.FromContext(ctx).Warn("status_cache_read_failed", zap.Error(err))
		}
		if ok {
			writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "status": cs.Status, "updated_at": cs.UpdatedAt, "cached": true})
			return
		}
	}

	// 2) fallback store
	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(ctx, o.ID, o.Status, o.UpdatedAt)
	writeJSON(w, http.StatusOK, map[string]any{"order_id": o.ID, "status": o.Status, "updated_at": o.UpdatedAt, "cached": false})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	if err := h.Orders.CancelOrder(ctx, orderID); err != nil {
		writeError(w, r, err)
		return
	}
	h.cacheStatus(ctx, orderID, orders.StatusCancelled, time.Now().UTC())
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) listByUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListByUser(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, s orders.Status, at time.Time) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(ctx, orderID, redisx.CachedStatus{Status: string(s), UpdatedAt: at}); err != nil {
		logging.FromContext(ctx).Warn("status_cache_write_failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
