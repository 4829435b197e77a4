package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ariefcatur/storefront-checkout/internal/inventory"
	"github.com/ariefcatur/storefront-checkout/internal/memstore"
	"github.com/ariefcatur/storefront-checkout/internal/orders"
	"github.com/ariefcatur/storefront-checkout/internal/pricing"
)

type sentEvent struct {
	topic   string
	key     string
	env     orders.Envelope
	headers map[string]string
}

type capturePublisher struct {
	mu     sync.Mutex
	events []sentEvent
}

func (p *capturePublisher) Publish(topic string, key, value []byte, headers map[string]string) {
	var env orders.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		panic(err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{topic: topic, key: string(key), env: env, headers: headers})
}

func (p *capturePublisher) sent() []sentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentEvent(nil), p.events...)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*orders.Manager, *memstore.Store, *capturePublisher) {
	t.Helper()
	store := memstore.New()
	pub := &capturePublisher{}
	m := orders.NewManager(store, inventory.NewLedger(nil), pricing.DefaultPolicy(),
		orders.WithPublisher(pub),
		orders.WithServiceName("checkout-test"),
		orders.WithClock(func() time.Time { return fixedNow }),
	)
	return m, store, pub
}

func variant(id, price string, stock int) orders.Variant {
	return orders.Variant{ID: id, ProductID: "p-" + id, Name: id, Price: decimal.RequireFromString(price), Stock: stock}
}

func checkout(lines ...orders.CartLine) orders.PlaceOrderInput {
	return orders.PlaceOrderInput{
		UserID:          "user-1",
		Lines:           lines,
		ShippingAddress: "Sofia, Bulgaria",
		PaymentMethod:   orders.PaymentCard,
	}
}

func line(id string, qty int) orders.CartLine { return orders.CartLine{VariantID: id, Quantity: qty} }

func TestPlaceOrder_PricesAndReserves(t *testing.T) {
	m, store, pub := newManager(t)
	store.PutVariant(variant("whey-1kg", "10.00", 10))

	in := checkout(line("whey-1kg", 3))
	in.CouponCode = "PROMO10"
	o, err := m.PlaceOrder(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.True(t, decimal.RequireFromString("30").Equal(o.Subtotal))
	assert.True(t, decimal.RequireFromString("5").Equal(o.ShippingCost))
	assert.True(t, decimal.RequireFromString("6").Equal(o.Tax))
	assert.True(t, decimal.RequireFromString("3").Equal(o.Discount))
	assert.True(t, decimal.RequireFromString("38").Equal(o.Total))
	assert.Equal(t, "PROMO10", o.CouponCode)
	assert.Equal(t, fixedNow, o.CreatedAt)
	require.Len(t, o.Lines, 1)
	assert.True(t, decimal.RequireFromString("10").Equal(o.Lines[0].UnitPrice))

	assert.Equal(t, 7, store.Stock("whey-1kg"))

	stored, err := m.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(o.Total))

	events := pub.sent()
	require.Len(t, events, 1)
	assert.Equal(t, orders.TopicOrderPlaced, events[0].topic)
	assert.Equal(t, o.ID, events[0].key)
	assert.Equal(t, orders.EventOrderPlaced, events[0].env.EventType)
	assert.Equal(t, "checkout-test", events[0].env.Producer)
	assert.Equal(t, orders.EventOrderPlaced, events[0].headers["x-event-type"])

	var payload orders.OrderPlacedPayload
	require.NoError(t, json.Unmarshal(events[0].env.Payload, &payload))
	assert.Equal(t, o.ID, payload.OrderID)
	assert.Equal(t, []orders.LineQty{{VariantID: "whey-1kg", Quantity: 3}}, payload.Lines)
}

func TestPlaceOrder_UnitPriceIsFrozen(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("v1", "12.50", 10))

	o, err := m.PlaceOrder(context.Background(), checkout(line("v1", 1)))
	require.NoError(t, err)

	store.PutVariant(variant("v1", "99.00", 9))

	stored, err := m.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.50").Equal(stored.Lines[0].UnitPrice))
	assert.True(t, o.Total.Equal(stored.Total))
}

func TestPlaceOrder_UnknownCouponPricesWithoutDiscount(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("v1", "10.00", 10))

	in := checkout(line("v1", 3))
	in.CouponCode = "FREESTUFF"
	o, err := m.PlaceOrder(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, o.Discount.IsZero())
	assert.Empty(t, o.CouponCode)
	assert.True(t, decimal.RequireFromString("41").Equal(o.Total))
}

func TestPlaceOrder_OutOfStock(t *testing.T) {
	m, store, pub := newManager(t)
	store.PutVariant(variant("v1", "10.00", 0))

	_, err := m.PlaceOrder(context.Background(), checkout(line("v1", 1)))

	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	var ise *inventory.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "v1", ise.VariantID)
	assert.Equal(t, 0, ise.Available)
	assert.Equal(t, 0, store.Stock("v1"))
	assert.Equal(t, 0, store.OrderCount())
	assert.Empty(t, pub.sent())
}

func TestPlaceOrder_FailureLeavesNoTrace(t *testing.T) {
	tests := []struct {
		name  string
		lines []orders.CartLine
		want  error
	}{
		{"second line short", []orders.CartLine{line("a", 2), line("b", 5)}, orders.ErrInsufficientStock},
		{"repeated variant exceeds stock", []orders.CartLine{line("a", 3), line("a", 3)}, orders.ErrInsufficientStock},
		{"unknown variant", []orders.CartLine{line("a", 1), line("ghost", 1)}, orders.ErrVariantNotFound},
		{"zero quantity", []orders.CartLine{line("a", 1), line("b", 0)}, orders.ErrInvalidOrderData},
		{"blank variant id", []orders.CartLine{line("  ", 1)}, orders.ErrInvalidOrderData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, store, pub := newManager(t)
			store.PutVariant(variant("a", "4.00", 5))
			store.PutVariant(variant("b", "6.00", 4))

			_, err := m.PlaceOrder(context.Background(), checkout(tc.lines...))

			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 5, store.Stock("a"))
			assert.Equal(t, 4, store.Stock("b"))
			assert.Equal(t, 0, store.OrderCount())
			assert.Empty(t, pub.sent())
		})
	}
}

func TestPlaceOrder_InvalidOrderData(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*orders.PlaceOrderInput)
	}{
		{"no lines", func(in *orders.PlaceOrderInput) { in.Lines = nil }},
		{"no user", func(in *orders.PlaceOrderInput) { in.UserID = "" }},
		{"blank address", func(in *orders.PlaceOrderInput) { in.ShippingAddress = "   " }},
		{"bad payment method", func(in *orders.PlaceOrderInput) { in.PaymentMethod = "bitcoin" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, store, _ := newManager(t)
			store.PutVariant(variant("v1", "1.00", 3))
			in := checkout(line("v1", 1))
			tc.mutate(&in)

			_, err := m.PlaceOrder(context.Background(), in)
			assert.ErrorIs(t, err, orders.ErrInvalidOrderData)
			assert.Equal(t, 3, store.Stock("v1"))
		})
	}
}

func TestPlaceOrder_DefaultsPaymentMethodToCash(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("v1", "1.00", 3))
	in := checkout(line("v1", 1))
	in.PaymentMethod = ""

	o, err := m.PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentCash, o.PaymentMethod)
}

func TestPlaceOrder_DoesNotMutateCallerLines(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("v1", "1.00", 3))
	lines := []orders.CartLine{{VariantID: " v1 ", Quantity: 1}}

	_, err := m.PlaceOrder(context.Background(), checkout(lines...))
	require.NoError(t, err)
	assert.Equal(t, " v1 ", lines[0].VariantID)
}

func TestPlaceOrder_Gift(t *testing.T) {
	t.Run("attached when eligible", func(t *testing.T) {
		m, store, pub := newManager(t)
		store.PutVariant(variant("v1", "25.00", 3))
		store.PutGift(orders.Gift{ID: "shaker", Name: "Shaker bottle"})

		in := checkout(line("v1", 1))
		in.GiftID = "shaker"
		o, err := m.PlaceOrder(context.Background(), in)
		require.NoError(t, err)

		require.NotNil(t, o.Gift)
		assert.Equal(t, "shaker", o.Gift.GiftID)
		assert.Len(t, o.Lines, 1, "gift is not a variant line")
		assert.Equal(t, 2, store.Stock("v1"))

		var payload orders.OrderPlacedPayload
		require.NoError(t, json.Unmarshal(pub.sent()[0].env.Payload, &payload))
		assert.Equal(t, "shaker", payload.GiftID)
	})

	t.Run("rejected below threshold", func(t *testing.T) {
		m, store, _ := newManager(t)
		store.PutVariant(variant("v1", "5.00", 3))
		store.PutGift(orders.Gift{ID: "shaker", Name: "Shaker bottle"})

		in := checkout(line("v1", 1))
		in.GiftID = "shaker"
		_, err := m.PlaceOrder(context.Background(), in)

		assert.ErrorIs(t, err, orders.ErrGiftNotEligible)
		assert.ErrorIs(t, err, orders.ErrInvalidOrderData)
		assert.Equal(t, 3, store.Stock("v1"))
	})

	t.Run("unknown gift", func(t *testing.T) {
		m, store, _ := newManager(t)
		store.PutVariant(variant("v1", "50.00", 3))

		in := checkout(line("v1", 1))
		in.GiftID = "ghost"
		_, err := m.PlaceOrder(context.Background(), in)

		assert.ErrorIs(t, err, orders.ErrGiftNotFound)
		assert.Equal(t, 0, store.OrderCount())
	})
}

func TestPlaceOrder_ConcurrentCheckoutsDoNotOversell(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, store, _ := newManager(t)
	store.PutVariant(variant("v", "9.99", 5))

	var (
		wg        sync.WaitGroup
		succeeded int
		rejected  int
		mu        sync.Mutex
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.PlaceOrder(context.Background(), checkout(line("v", 3)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, orders.ErrInsufficientStock):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 2, store.Stock("v"))
	assert.Equal(t, 1, store.OrderCount())
}

func TestPlaceOrder_ManyConcurrentCheckouts(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("v", "1.00", 37))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			if _, err := m.PlaceOrder(context.Background(), checkout(line("v", qty))); err == nil {
				mu.Lock()
				reserved += qty
				mu.Unlock()
			}
		}(i%4 + 1)
	}
	wg.Wait()

	assert.LessOrEqual(t, reserved, 37)
	assert.Equal(t, 37-reserved, store.Stock("v"))
}

func TestCancelOrder_RestocksOnce(t *testing.T) {
	m, store, pub := newManager(t)
	store.PutVariant(variant("v1", "10.00", 10))
	ctx := context.Background()

	o, err := m.PlaceOrder(ctx, checkout(line("v1", 2)))
	require.NoError(t, err)
	require.Equal(t, 8, store.Stock("v1"))

	require.NoError(t, m.CancelOrder(ctx, o.ID))
	assert.Equal(t, 10, store.Stock("v1"))

	got, err := m.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)

	err = m.CancelOrder(ctx, o.ID)
	assert.ErrorIs(t, err, orders.ErrOrderNotCancellable)
	assert.Equal(t, 10, store.Stock("v1"))

	events := pub.sent()
	require.Len(t, events, 2)
	assert.Equal(t, orders.TopicOrderCancelled, events[1].topic)
	var payload orders.OrderCancelledPayload
	require.NoError(t, json.Unmarshal(events[1].env.Payload, &payload))
	assert.Equal(t, []orders.LineQty{{VariantID: "v1", Quantity: 2}}, payload.Released)
}

func TestCancelOrder_ConcurrentCancelsReleaseOnce(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("v1", "10.00", 10))
	ctx := context.Background()

	o, err := m.PlaceOrder(ctx, checkout(line("v1", 4)))
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.CancelOrder(ctx, o.ID); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 10, store.Stock("v1"))
}

func TestCancelOrder_NotCancellable(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("v1", "10.00", 10))
	ctx := context.Background()

	err := m.CancelOrder(ctx, "does-not-exist")
	assert.ErrorIs(t, err, orders.ErrOrderNotCancellable)

	o, err := m.PlaceOrder(ctx, checkout(line("v1", 1)))
	require.NoError(t, err)
	_, err = m.UpdateStatus(ctx, o.ID, orders.StatusProcessing, nil)
	require.NoError(t, err)

	err = m.CancelOrder(ctx, o.ID)
	assert.ErrorIs(t, err, orders.ErrOrderNotCancellable)
	assert.Equal(t, 9, store.Stock("v1"))
}

func TestUpdateStatus_ForwardOnly(t *testing.T) {
	m, store, pub := newManager(t)
	store.PutVariant(variant("v1", "10.00", 10))
	ctx := context.Background()

	o, err := m.PlaceOrder(ctx, checkout(line("v1", 1)))
	require.NoError(t, err)

	_, err = m.UpdateStatus(ctx, o.ID, orders.StatusShipped, nil)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)

	_, err = m.UpdateStatus(ctx, o.ID, orders.StatusProcessing, nil)
	require.NoError(t, err)

	tracking := "BG123456789"
	got, err := m.UpdateStatus(ctx, o.ID, orders.StatusShipped, &tracking)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, got.Status)
	assert.Equal(t, tracking, got.TrackingNumber)

	_, err = m.UpdateStatus(ctx, o.ID, orders.StatusDelivered, nil)
	require.NoError(t, err)

	_, err = m.UpdateStatus(ctx, o.ID, orders.StatusRefunded, nil)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition, "delivered is terminal")

	stored, err := m.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, stored.Status)
	assert.Equal(t, tracking, stored.TrackingNumber)
	assert.Equal(t, 9, store.Stock("v1"), "status changes never touch stock")

	var changes int
	for _, e := range pub.sent() {
		if e.topic == orders.TopicOrderStatusChanged {
			changes++
		}
	}
	assert.Equal(t, 3, changes)
}

func TestUpdateStatus_CancelReleasesStock(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("v1", "10.00", 10))
	ctx := context.Background()

	o, err := m.PlaceOrder(ctx, checkout(line("v1", 3)))
	require.NoError(t, err)

	got, err := m.UpdateStatus(ctx, o.ID, orders.StatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, got.Status)
	assert.Equal(t, 10, store.Stock("v1"))
}

func TestUpdateStatus_Errors(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	_, err := m.UpdateStatus(ctx, "missing", orders.StatusProcessing, nil)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	_, err = m.UpdateStatus(ctx, "missing", orders.Status("TELEPORTED"), nil)
	assert.ErrorIs(t, err, orders.ErrInvalidTransition)
}

func TestQuote(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("a", "60.00", 5))
	store.PutVariant(variant("b", "45.00", 1))
	ctx := context.Background()

	totals, err := m.Quote(ctx, orders.QuoteInput{Lines: []orders.CartLine{line("a", 1), line("b", 1)}, CouponCode: "promo10"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("105").Equal(totals.Subtotal))
	assert.True(t, totals.Shipping.IsZero())
	assert.True(t, decimal.RequireFromString("21").Equal(totals.Tax))
	assert.True(t, decimal.RequireFromString("10.5").Equal(totals.Discount))
	assert.True(t, decimal.RequireFromString("115.5").Equal(totals.Total))

	assert.Equal(t, 5, store.Stock("a"), "quote reserves nothing")
	assert.Equal(t, 0, store.OrderCount())

	_, err = m.Quote(ctx, orders.QuoteInput{Lines: []orders.CartLine{line("b", 2)}})
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)

	_, err = m.Quote(ctx, orders.QuoteInput{})
	assert.ErrorIs(t, err, orders.ErrInvalidOrderData)
}

func TestPlaceOrder_CancelledContext(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("v1", "10.00", 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.PlaceOrder(ctx, checkout(line("v1", 1)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, store.Stock("v1"))
}

func ExampleManager_PlaceOrder() {
	store := memstore.New()
	store.PutVariant(orders.Variant{ID: "whey", Price: decimal.RequireFromString("10.00"), Stock: 5})
	m := orders.NewManager(store, nil, pricing.DefaultPolicy())

	o, err := m.PlaceOrder(context.Background(), orders.PlaceOrderInput{
		UserID:          "u1",
		Lines:           []orders.CartLine{{VariantID: "whey", Quantity: 3}},
		ShippingAddress: "Plovdiv, Bulgaria",
		CouponCode:      "PROMO10",
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(o.Status, o.Total.StringFixed(2), store.Stock("whey"))
	// Output: PENDING 38.00 2
}

type stockCall struct {
	op        string
	variantID string
	qty       int
}

// recordingStore logs stock writes in the order transactions make them.
type recordingStore struct {
	*memstore.Store
	mu    sync.Mutex
	calls []stockCall
}

func (s *recordingStore) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx orders.Tx) error {
		return fn(&recordingTx{Tx: tx, s: s})
	})
}

func (s *recordingStore) record(c stockCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

type recordingTx struct {
	orders.Tx
	s *recordingStore
}

func (t *recordingTx) DecrementStock(ctx context.Context, variantID string, qty int) (bool, error) {
	t.s.record(stockCall{"reserve", variantID, qty})
	return t.Tx.DecrementStock(ctx, variantID, qty)
}

func (t *recordingTx) IncrementStock(ctx context.Context, variantID string, qty int) error {
	t.s.record(stockCall{"release", variantID, qty})
	return t.Tx.IncrementStock(ctx, variantID, qty)
}

func TestStockIsLockedInVariantOrder(t *testing.T) {
	store := &recordingStore{Store: memstore.New()}
	for _, id := range []string{"a", "b", "c"} {
		store.PutVariant(variant(id, "5.00", 10))
	}
	m := orders.NewManager(store, nil, pricing.DefaultPolicy())
	ctx := context.Background()

	o, err := m.PlaceOrder(ctx, checkout(line("c", 1), line("a", 2), line("b", 1), line("a", 1)))
	require.NoError(t, err)
	require.NoError(t, m.CancelOrder(ctx, o.ID))

	assert.Equal(t, []stockCall{
		{"reserve", "a", 3}, {"reserve", "b", 1}, {"reserve", "c", 1},
		{"release", "a", 3}, {"release", "b", 1}, {"release", "c", 1},
	}, store.calls)

	got, err := m.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	var ids []string
	for _, l := range got.Lines {
		ids = append(ids, l.VariantID)
	}
	assert.Equal(t, []string{"c", "a", "b", "a"}, ids, "order lines keep cart order")
	assert.Equal(t, 10, store.Stock("a"))
}

func TestUpdateStatus_StampsManagerClock(t *testing.T) {
	store := memstore.New()
	store.PutVariant(variant("v1", "10.00", 10))
	now := fixedNow
	m := orders.NewManager(store, nil, pricing.DefaultPolicy(), orders.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	o, err := m.PlaceOrder(ctx, checkout(line("v1", 1)))
	require.NoError(t, err)

	now = fixedNow.Add(time.Hour)
	got, err := m.UpdateStatus(ctx, o.ID, orders.StatusProcessing, nil)
	require.NoError(t, err)
	stored, err := m.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, now, got.UpdatedAt)
	assert.Equal(t, got.UpdatedAt, stored.UpdatedAt)

	o2, err := m.PlaceOrder(ctx, checkout(line("v1", 1)))
	require.NoError(t, err)
	now = fixedNow.Add(2 * time.Hour)
	require.NoError(t, m.CancelOrder(ctx, o2.ID))
	stored, err = m.GetOrder(ctx, o2.ID)
	require.NoError(t, err)
	assert.Equal(t, now, stored.UpdatedAt)
}

func TestUpdateStatus_CancelRejectsTrackingNumber(t *testing.T) {
	m, store, _ := newManager(t)
	store.PutVariant(variant("v1", "10.00", 10))
	ctx := context.Background()

	o, err := m.PlaceOrder(ctx, checkout(line("v1", 2)))
	require.NoError(t, err)

	tracking := "BG999"
	_, err = m.UpdateStatus(ctx, o.ID, orders.StatusCancelled, &tracking)
	assert.ErrorIs(t, err, orders.ErrInvalidOrderData)

	got, err := m.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Empty(t, got.TrackingNumber)
	assert.Equal(t, 8, store.Stock("v1"))
}
