package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/storefront-checkout/internal/inventory"
)

// Store is the datastore collaborator. WithTx commits when fn returns nil and
// rolls back on error or panic; nothing fn wrote is visible otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	// Order reads a committed order with its lines; ErrOrderNotFound if absent.
	Order(ctx context.Context, id string) (*Order, error)
}

// Tx is the handle given to WithTx callbacks. Stock writes go through the
// embedded StockStore, and only via inventory.Ledger.
type Tx interface {
	inventory.StockStore

	// Variants returns the variants that exist among ids, keyed by ID.
	Variants(ctx context.Context, ids []string) (map[string]Variant, error)
	// Gift returns ErrGiftNotFound when id is unknown.
	Gift(ctx context.Context, id string) (*Gift, error)
	InsertOrder(ctx context.Context, o *Order) error
	// LockOrder loads an order with its lines and holds it against concurrent
	// status changes until the transaction ends. ErrOrderNotFound if absent.
	LockOrder(ctx context.Context, id string) (*Order, error)
	// UpdateOrderStatus moves id from one status to another and stamps
	// UpdatedAt with at. trackingNumber is stored when non-nil. Reports false
	// when the order was not in from.
	UpdateOrderStatus(ctx context.Context, id string, from, to Status, trackingNumber *string, at time.Time) (bool, error)
}
