// Package inventory guards per-variant stock counters. All writes to the stock
// field go through Ledger.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/storefront-checkout/internal/metrics"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// InsufficientStockError names the variant that could not be reserved.
// Available is -1 when the store could not report it.
type InsufficientStockError struct {
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Available < 0 {
		return fmt.Sprintf("insufficient stock for variant %s: requested %d", e.VariantID, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for variant %s: requested %d, available %d", e.VariantID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// StockStore is the transactional handle the ledger writes through.
// DecrementStock must be a single conditional update: it reports false,
// without touching the row, when fewer than qty units are left.
type StockStore interface {
	DecrementStock(ctx context.Context, variantID string, qty int) (bool, error)
	IncrementStock(ctx context.Context, variantID string, qty int) error
}

type Ledger struct {
	Log *slog.Logger
}

func NewLedger(log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{Log: log.With("component", "inventory")}
}

// Reserve claims qty units of variantID. Two concurrent reservations can not
// both succeed when their sum exceeds stock, since the check and the
// decrement are one statement in the store.
func (l *Ledger) Reserve(ctx context.Context, s StockStore, variantID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve %s: %w", variantID, ErrInvalidQuantity)
	}
	ok, err := s.DecrementStock(ctx, variantID, qty)
	if err != nil {
		metrics.StockOperation("reserve", "error")
		return fmt.Errorf("reserve %s: %w", variantID, err)
	}
	if !ok {
		metrics.StockOperation("reserve", "rejected")
		l.Log.InfoContext(ctx, "reservation rejected", "variant_id", variantID, "qty", qty)
		return &InsufficientStockError{VariantID: variantID, Requested: qty, Available: -1}
	}
	metrics.StockOperation("reserve", "ok")
	return nil
}

// Release puts qty units back. It is not idempotent; the order status guard
// in the caller prevents double release.
func (l *Ledger) Release(ctx context.Context, s StockStore, variantID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("release %s: %w", variantID, ErrInvalidQuantity)
	}
	if err := s.IncrementStock(ctx, variantID, qty); err != nil {
		metrics.StockOperation("release", "error")
		return fmt.Errorf("release %s: %w", variantID, err)
	}
	metrics.StockOperation("release", "ok")
	return nil
}
