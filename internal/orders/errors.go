package orders

import (
	"errors"

	"github.com/ariefcatur/storefront-checkout/internal/inventory"
)

var (
	ErrInvalidOrderData    = errors.New("invalid order data")
	ErrVariantNotFound     = errors.New("variant not found")
	ErrOrderNotCancellable = errors.New("order cannot be cancelled")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrGiftNotFound        = errors.New("gift not found")
	ErrGiftNotEligible     = errors.New("order does not qualify for a gift")

	// ErrInsufficientStock matches *inventory.InsufficientStockError, which
	// carries the offending variant.
	ErrInsufficientStock = inventory.ErrInsufficientStock
)

// errorClass is the metrics label for err.
func errorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrGiftNotFound), errors.Is(err, ErrGiftNotEligible):
		return "gift"
	case errors.Is(err, ErrInvalidOrderData):
		return "invalid_order_data"
	case errors.Is(err, ErrVariantNotFound):
		return "variant_not_found"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrOrderNotCancellable):
		return "not_cancellable"
	case errors.Is(err, ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "error"
	}
}
