package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Sim *Simulator
}

type settleResp struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Amount    string `json:"amount"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/payments", func(r chi.Router) {
		r.Post("/create", h.create)
		r.Get("/health", h.health)
		r.Get("/{paymentID}/status", h.status)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	st, err := h.Sim.Settle(req)
	switch {
	case errors.Is(err, ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, ErrShuttingDown):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, settleResp{
		PaymentID: st.PaymentID,
		OrderID:   st.OrderID,
		Amount:    st.Amount.StringFixed(2),
		Status:    st.Status,
		Message:   "settlement accepted",
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "paymentID")
	writeJSON(w, http.StatusOK, map[string]any{"payment_id": id, "status": h.Sim.Status(id)})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "UP", "settlements": h.Sim.Table.Len()})
}
