package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-order-settlement/internal/cart"
	"github.com/ariefcatur/go-order-settlement/internal/orders"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	Carts   *cart.Service
	Catalog orders.Catalog
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartView struct {
	UserID string            `json:"user_id"`
	Items  []orders.CartLine `json:"items"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Route("/carts/{userID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Delete("/", h.clear)
		r.Post("/items", h.add)
		r.Delete("/items/{productID}", h.remove)
	})
}

func (h *CartHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := chi.URLParam(r, "userID")
	lines, err := h.Carts.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartOf(userID, lines))
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	lines, err := h.Carts.Lines(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartOf(userID, lines))
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.Carts.Remove(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "productID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Carts.Clear(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func cartOf(userID string, lines []orders.CartLine) cartView {
	if lines == nil {
		lines = []orders.CartLine{}
	}
	return cartView{UserID: userID, Items: lines}
}
