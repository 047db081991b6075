package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fabricmart/go-fabric-market/internal/cart"
	"github.com/fabricmart/go-fabric-market/internal/market"
	"github.com/fabricmart/go-fabric-market/internal/orders"
	"github.com/fabricmart/go-fabric-market/internal/redisx"
	"github.com/fabricmart/go-fabric-market/internal/reviews"
)

type Handler struct {
	Orders  *orders.Service
	Carts   *cart.Service
	Reviews *reviews.Service
	Redis   *redis.Client
	Log     *zap.Logger
}

func (h *Handler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(Auth)

		r.Post("/orders", h.createOrder)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/cancel", h.cancelOrder)
		r.Post("/orders/{id}/status", h.setOrderStatus)

		r.Get("/carts/me", h.getCart)
		r.Delete("/carts/me", h.clearCart)
		r.Post("/carts/me/items", h.addCartItem)
		r.Put("/carts/me/items/{fabricID}", h.updateCartItem)
		r.Delete("/carts/me/items/{fabricID}", h.removeCartItem)

		r.Post("/fabrics/{id}/reviews", h.addReview)
		r.Post("/shops/{id}/rating/recompute", h.recomputeShop)
		r.Post("/shops/rating/recompute", h.recomputeAllShops)
	})
}

// ---- response plumbing ----

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, msg string, data any) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiResponse{Success: false, Message: msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	if market.Transient(err) {
		// storage or downstream hiccup, safe for the client to retry
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	code := http.StatusBadRequest
	switch {
	case errors.Is(err, market.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, market.ErrInsufficientStock),
		errors.Is(err, market.ErrInvalidTransition),
		errors.Is(err, market.ErrDuplicateReview):
		code = http.StatusConflict
	case errors.Is(err, market.ErrUnauthorized):
		code = http.StatusForbidden
	}
	writeError(w, code, err.Error())
}

// ---- orders ----

type createOrderReq struct {
	Items           []orders.Line         `json:"items,omitempty"` // empty = convert my cart
	ShippingAddress string                `json:"shipping_address"`
	ShippingMethod  market.ShippingMethod `json:"shipping_method"`
	PaymentMethod   string                `json:"payment_method"`
}

type orderView struct {
	ID                string                `json:"id"`
	CustomerID        string                `json:"customer_id"`
	Items             []market.OrderItem    `json:"items"`
	SubtotalCents     int                   `json:"subtotal_cents"`
	ShippingCents     int                   `json:"shipping_cents"`
	TaxCents          int                   `json:"tax_cents"`
	TotalCents        int                   `json:"total_cents"`
	Status            market.Status         `json:"status"`
	PaymentStatus     market.PaymentStatus  `json:"payment_status"`
	ShippingMethod    market.ShippingMethod `json:"shipping_method"`
	EstimatedDelivery time.Time             `json:"estimated_delivery"`
	TrackingNumber    string                `json:"tracking_number,omitempty"`
	TrackingURL       string                `json:"tracking_url,omitempty"`
	CancelReason      string                `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
}

func (h *Handler) orderView(o *market.Order) orderView {
	return orderView{
		ID:                o.ID,
		CustomerID:        o.CustomerID,
		Items:             o.Items,
		SubtotalCents:     o.SubtotalCents,
		ShippingCents:     o.ShippingCents,
		TaxCents:          o.TaxCents,
		TotalCents:        o.TotalCents,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		ShippingMethod:    o.ShippingMethod,
		EstimatedDelivery: o.EstimatedDelivery,
		TrackingNumber:    o.TrackingNumber,
		TrackingURL:       h.Orders.TrackingURL(o),
		CancelReason:      o.CancelReason,
		CreatedAt:         o.CreatedAt,
	}
}

func (h *Handler) cacheStatus(r *http.Request, o *market.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, _ := json.Marshal(map[string]any{"status": o.Status})
	_ = h.Redis.Set(r.Context(), key, body, redisx.TTLStatusCache).Err()
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.Orders.Create(r.Context(), principalFrom(r), orders.CreateInput{
		Lines:           req.Items,
		ShippingAddress: req.ShippingAddress,
		ShippingMethod:  req.ShippingMethod,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		if market.Transient(err) {
			h.Log.Error("create order failed", zap.Error(err))
		}
		writeDomainError(w, err)
		return
	}
	h.cacheStatus(r, o)
	writeJSON(w, http.StatusCreated, apiResponse{
		Success: true, Message: "order placed", Data: h.orderView(o),
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), principalFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, "order", h.orderView(o))
}

type cancelOrderReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.Orders.Cancel(r.Context(), principalFrom(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cacheStatus(r, o)
	writeOK(w, "order cancelled", h.orderView(o))
}

type setStatusReq struct {
	Status market.Status `json:"status"`
}

func (h *Handler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.Orders.SetStatus(r.Context(), principalFrom(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cacheStatus(r, o)
	writeOK(w, "status updated", h.orderView(o))
}

// ---- cart ----

type cartItemReq struct {
	FabricID string `json:"fabric_id"`
	Qty      int    `json:"qty"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Get(r.Context(), principalFrom(r).ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, "cart", c)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	c, err := h.Carts.Add(r.Context(), principalFrom(r).ID, req.FabricID, req.Qty)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, "item added", c)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	c, err := h.Carts.UpdateQuantity(r.Context(), principalFrom(r).ID, chi.URLParam(r, "fabricID"), req.Qty)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, "item updated", c)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.Carts.Remove(r.Context(), principalFrom(r).ID, chi.URLParam(r, "fabricID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, "item removed", c)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Carts.Clear(r.Context(), principalFrom(r).ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, "cart cleared", nil)
}

// ---- reviews & ratings ----

type addReviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) addReview(w http.ResponseWriter, r *http.Request) {
	var req addReviewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	rev, err := h.Reviews.AddReview(r.Context(), principalFrom(r), chi.URLParam(r, "id"), req.Rating, req.Comment)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Message: "review added", Data: rev})
}

func (h *Handler) recomputeShop(w http.ResponseWriter, r *http.Request) {
	if !principalFrom(r).IsAdmin() {
		writeDomainError(w, market.ErrUnauthorized)
		return
	}
	shopID := chi.URLParam(r, "id")
	rating, total, err := h.Reviews.RecomputeShop(r.Context(), shopID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, "shop rating recomputed", map[string]any{
		"shop_id": shopID, "rating": rating, "total_reviews": total,
	})
}

func (h *Handler) recomputeAllShops(w http.ResponseWriter, r *http.Request) {
	if !principalFrom(r).IsAdmin() {
		writeDomainError(w, market.ErrUnauthorized)
		return
	}
	sum, err := h.Reviews.RepairAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, "shop ratings recomputed", sum)
}
