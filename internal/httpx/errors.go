package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/storefront-checkout/internal/inventory"
	"github.com/ariefcatur/storefront-checkout/internal/orders"
	"github.com/ariefcatur/storefront-checkout/internal/pricing"
	"github.com/ariefcatur/storefront-checkout/internal/redisx"
)

type errorResp struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	VariantID string `json:"variant_id,omitempty"`
}

// classify maps a domain error to its HTTP status and stable code.
// Order matters where errors wrap each other.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, orders.ErrGiftNotEligible):
		return http.StatusBadRequest, "gift_not_eligible"
	case errors.Is(err, orders.ErrInvalidOrderData):
		return http.StatusBadRequest, "invalid_order_data"
	case errors.Is(err, pricing.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, orders.ErrVariantNotFound):
		return http.StatusNotFound, "variant_not_found"
	case errors.Is(err, orders.ErrGiftNotFound):
		return http.StatusNotFound, "gift_not_found"
	case errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, orders.ErrOrderNotCancellable):
		return http.StatusConflict, "not_cancellable"
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, redisx.ErrInFlight):
		return http.StatusConflict, "idempotency_in_flight"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	code, class := classify(err)
	resp := errorResp{Error: err.Error(), Code: class}
	var ise *inventory.InsufficientStockError
	if errors.As(err, &ise) {
		resp.VariantID = ise.VariantID
	}
	if code == http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		resp.Error = "internal error"
	}
	writeJSON(w, code, resp)
}
