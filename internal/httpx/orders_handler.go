package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/storefront-checkout/internal/orders"
	"github.com/ariefcatur/storefront-checkout/internal/pricing"
	"github.com/ariefcatur/storefront-checkout/internal/redisx"
)

const maxBody = 1 << 20

type OrderService interface {
	PlaceOrder(ctx context.Context, in orders.PlaceOrderInput) (*orders.Order, error)
	Quote(ctx context.Context, in orders.QuoteInput) (pricing.Totals, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	CancelOrder(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, to orders.Status, trackingNumber *string) (*orders.Order, error)
}

type Catalog interface {
	ListVariants(ctx context.Context) ([]orders.Variant, error)
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.CachedStatus, bool, error)
	Set(ctx context.Context, s redisx.CachedStatus) error
	Invalidate(ctx context.Context, orderID string) error
}

type Idempotency interface {
	Begin(ctx context.Context, key string) (orderID string, started bool, err error)
	Complete(ctx context.Context, key, orderID string) error
	Abort(ctx context.Context, key string) error
}

// OrdersHandler exposes checkout over HTTP. Catalog, Cache and Idem are
// optional.
type OrdersHandler struct {
	Orders  OrderService
	Catalog Catalog
	Cache   StatusCache
	Idem    Idempotency
	Timeout time.Duration
	Log     *slog.Logger
}

type updateStatusReq struct {
	Status         orders.Status `json:"status"`
	TrackingNumber *string       `json:"tracking_number,omitempty"`
}

type variantResp struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Stock     int    `json:"stock"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	if h.Log == nil {
		h.Log = slog.Default()
	}
	if h.Timeout <= 0 {
		h.Timeout = 5 * time.Second
	}
	r.Post("/orders", h.createOrder)
	r.Post("/orders/quote", h.quote)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Get("/variants", h.listVariants)
}

func (h *OrdersHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(dst); err != nil {
		writeError(w, r, h.Log, fmt.Errorf("%w: invalid json: %s", orders.ErrInvalidOrderData, err.Error()))
		return false
	}
	return true
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.PlaceOrderInput
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	claimed := false
	if key != "" && h.Idem != nil {
		orderID, started, err := h.Idem.Begin(ctx, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeError(w, r, h.Log, err)
			return
		case err != nil:
			// redis is an optimisation; checkout proceeds without it
			h.Log.WarnContext(ctx, "idempotency unavailable", "err", err)
		case !started:
			o, err := h.Orders.GetOrder(ctx, orderID)
			if err != nil {
				writeError(w, r, h.Log, err)
				return
			}
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, o)
			return
		default:
			claimed = true
		}
	}

	o, err := h.Orders.PlaceOrder(ctx, req)
	if err != nil {
		if claimed {
			if aerr := h.Idem.Abort(context.WithoutCancel(ctx), key); aerr != nil {
				h.Log.WarnContext(ctx, "release idempotency key", "err", aerr)
			}
		}
		writeError(w, r, h.Log, err)
		return
	}
	if claimed {
		if err := h.Idem.Complete(ctx, key, o.ID); err != nil {
			h.Log.WarnContext(ctx, "store idempotency key", "order_id", o.ID, "err", err)
		}
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) quote(w http.ResponseWriter, r *http.Request) {
	var req orders.QuoteInput
	if !h.decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	t, err := h.Orders.Quote(ctx, req)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus serves from the cache and falls back to the store.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if h.Cache != nil {
		s, ok, err := h.Cache.Get(ctx, orderID)
		if err != nil {
			h.Log.WarnContext(ctx, "status cache read", "order_id", orderID, "err", err)
		}
		if ok {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	o, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, statusOf(o))
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if err := h.Orders.CancelOrder(ctx, orderID); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		h.invalidate(ctx, orderID)
		writeError(w, r, h.Log, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if !h.decode(w, r, &req) {
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	to := orders.Status(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	o, err := h.Orders.UpdateStatus(ctx, orderID, to, req.TrackingNumber)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listVariants(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		writeJSON(w, http.StatusOK, []variantResp{})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	vs, err := h.Catalog.ListVariants(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	out := make([]variantResp, 0, len(vs))
	for _, v := range vs {
		out = append(out, variantResp{ID: v.ID, ProductID: v.ProductID, Name: v.Name, Price: v.Price.StringFixed(2), Stock: v.Stock})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(ctx, statusOf(o)); err != nil {
		h.Log.WarnContext(ctx, "status cache write", "order_id", o.ID, "err", err)
	}
}

func (h *OrdersHandler) invalidate(ctx context.Context, orderID string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(ctx, orderID); err != nil {
		h.Log.WarnContext(ctx, "status cache invalidate", "order_id", orderID, "err", err)
	}
}

func statusOf(o *orders.Order) redisx.CachedStatus {
	return redisx.CachedStatus{
		OrderID:        o.ID,
		Status:         o.Status,
		TrackingNumber: o.TrackingNumber,
		UpdatedAt:      o.UpdatedAt,
	}
}
