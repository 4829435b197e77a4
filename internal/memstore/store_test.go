package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/storefront-checkout/internal/orders"
)

func seeded() *Store {
	s := New()
	s.PutVariant(orders.Variant{ID: "v1", ProductID: "p1", Price: decimal.NewFromInt(10), Stock: 5})
	s.PutGift(orders.Gift{ID: "g1", Name: "Shaker"})
	return s
}

func testOrder(id string) *orders.Order {
	return &orders.Order{
		ID:        id,
		UserID:    "u1",
		Status:    orders.StatusPending,
		Lines:     []orders.OrderLine{{OrderID: id, VariantID: "v1", Quantity: 2, UnitPrice: decimal.NewFromInt(10)}},
		CreatedAt: time.Now().UTC(),
	}
}

func TestWithTx_CommitsOnNil(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx orders.Tx) error {
		ok, err := tx.DecrementStock(ctx, "v1", 2)
		require.True(t, ok)
		require.NoError(t, err)
		return tx.InsertOrder(ctx, testOrder("o1"))
	})
	require.NoError(t, err)

	assert.Equal(t, 3, s.Stock("v1"))
	o, err := s.Order(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, o.Lines, 1)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx orders.Tx) error {
		_, _ = tx.DecrementStock(ctx, "v1", 2)
		_, _ = tx.DecrementStock(ctx, "v1", 1)
		require.NoError(t, tx.InsertOrder(ctx, testOrder("o1")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 5, s.Stock("v1"))
	assert.Equal(t, 0, s.OrderCount())
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(tx orders.Tx) error {
			_, _ = tx.DecrementStock(ctx, "v1", 4)
			panic("kaboom")
		})
	})
	assert.Equal(t, 5, s.Stock("v1"))

	// the lock must have been released
	require.NoError(t, s.WithTx(ctx, func(tx orders.Tx) error { return nil }))
}

func TestWithTx_CancelledContextDoesNotCommit(t *testing.T) {
	s := seeded()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithTx(ctx, func(tx orders.Tx) error {
		_, _ = tx.DecrementStock(ctx, "v1", 1)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, s.Stock("v1"))
}

func TestDecrementStock_IsConditional(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	_ = s.WithTx(ctx, func(tx orders.Tx) error {
		ok, err := tx.DecrementStock(ctx, "v1", 6)
		assert.NoError(t, err)
		assert.False(t, ok)

		ok, err = tx.DecrementStock(ctx, "missing", 1)
		assert.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	assert.Equal(t, 5, s.Stock("v1"))
}

func TestUpdateOrderStatus_RequiresFromStatus(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx orders.Tx) error { return tx.InsertOrder(ctx, testOrder("o1")) }))

	tracking := "TRK-1"
	stamp := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	_ = s.WithTx(ctx, func(tx orders.Tx) error {
		ok, err := tx.UpdateOrderStatus(ctx, "o1", orders.StatusProcessing, orders.StatusShipped, nil, time.Now().UTC())
		assert.NoError(t, err)
		assert.False(t, ok)

		ok, err = tx.UpdateOrderStatus(ctx, "o1", orders.StatusPending, orders.StatusProcessing, &tracking, stamp)
		assert.NoError(t, err)
		assert.True(t, ok)
		return nil
	})

	o, err := s.Order(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessing, o.Status)
	assert.Equal(t, "TRK-1", o.TrackingNumber)
	assert.Equal(t, stamp, o.UpdatedAt)
}

func TestLookupsReportMissing(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	_, err := s.Order(ctx, "nope")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	_ = s.WithTx(ctx, func(tx orders.Tx) error {
		_, err := tx.Gift(ctx, "nope")
		assert.ErrorIs(t, err, orders.ErrGiftNotFound)
		_, err = tx.LockOrder(ctx, "nope")
		assert.ErrorIs(t, err, orders.ErrOrderNotFound)

		vs, err := tx.Variants(ctx, []string{"v1", "nope"})
		assert.NoError(t, err)
		assert.Len(t, vs, 1)
		return nil
	})
}

func TestOrderReturnsCopies(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx orders.Tx) error { return tx.InsertOrder(ctx, testOrder("o1")) }))

	o, err := s.Order(ctx, "o1")
	require.NoError(t, err)
	o.Lines[0].Quantity = 99
	o.Status = orders.StatusDelivered

	again, err := s.Order(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Lines[0].Quantity)
	assert.Equal(t, orders.StatusPending, again.Status)
}
