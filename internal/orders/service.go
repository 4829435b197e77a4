package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/storefront-checkout/internal/inventory"
	"github.com/ariefcatur/storefront-checkout/internal/metrics"
	"github.com/ariefcatur/storefront-checkout/internal/pricing"
)

// Manager owns the order write path: placement, cancellation and status
// transitions. It holds no locks of its own; every consistency guarantee
// comes from Store.WithTx and the ledger's conditional updates.
type Manager struct {
	store     Store
	ledger    *inventory.Ledger
	policy    pricing.Policy
	publisher Publisher
	validate  *validator.Validate
	log       *slog.Logger
	tracer    trace.Tracer
	service   string
	now       func() time.Time
}

type Option func(*Manager)

func WithPublisher(p Publisher) Option { return func(m *Manager) { m.publisher = p } }

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.log = l } }

func WithServiceName(name string) Option { return func(m *Manager) { m.service = name } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(store Store, ledger *inventory.Ledger, policy pricing.Policy, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		ledger:   ledger,
		policy:   policy,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      slog.Default(),
		tracer:   otel.Tracer("github.com/ariefcatur/storefront-checkout/internal/orders"),
		service:  "checkout-api",
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.ledger == nil {
		m.ledger = inventory.NewLedger(m.log)
	}
	m.log = m.log.With("component", "orders")
	return m
}

func (m *Manager) Policy() pricing.Policy { return m.policy }

// PlaceOrder validates the cart, prices it at current variant prices,
// reserves stock for every line and writes the order, all in one
// transaction. On any error nothing is left behind.
func (m *Manager) PlaceOrder(ctx context.Context, in PlaceOrderInput) (order *Order, err error) {
	ctx, span := m.tracer.Start(ctx, "orders.PlaceOrder",
		trace.WithAttributes(attribute.String("user_id", in.UserID), attribute.Int("lines", len(in.Lines))))
	defer func() { m.finish(ctx, span, "place", err) }()

	in.normalize()
	if verr := m.validate.Struct(in); verr != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOrderData, verr.Error())
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentCash
	}

	err = m.store.WithTx(ctx, func(tx Tx) error {
		variants, err := tx.Variants(ctx, distinctVariantIDs(in.Lines))
		if err != nil {
			return fmt.Errorf("load variants: %w", err)
		}
		priced, err := priceLines(in.Lines, variants)
		if err != nil {
			return err
		}
		totals, err := m.policy.Compute(priced, in.CouponCode)
		if err != nil {
			return err
		}

		var gift *GiftLine
		if in.GiftID != "" {
			g, err := tx.Gift(ctx, in.GiftID)
			if err != nil {
				return err
			}
			if !totals.GiftEligible {
				return fmt.Errorf("%w: %w: subtotal %s below %s", ErrInvalidOrderData, ErrGiftNotEligible,
					totals.Subtotal.StringFixed(2), m.policy.GiftThreshold.StringFixed(2))
			}
			gift = &GiftLine{GiftID: g.ID, Name: g.Name}
		}

		for _, q := range stockPlan(in.Lines) {
			if err := m.ledger.Reserve(ctx, tx, q.VariantID, q.Quantity); err != nil {
				return err
			}
		}

		now := m.now().UTC()
		o := &Order{
			ID:              uuid.NewString(),
			UserID:          in.UserID,
			Status:          StatusPending,
			Subtotal:        totals.Subtotal,
			ShippingCost:    totals.Shipping,
			Tax:             totals.Tax,
			Discount:        totals.Discount,
			Total:           totals.Total,
			CouponCode:      totals.CouponCode,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
			Notes:           in.Notes,
			Gift:            gift,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		o.Lines = make([]OrderLine, 0, len(in.Lines))
		for i, l := range in.Lines {
			o.Lines = append(o.Lines, OrderLine{
				OrderID:   o.ID,
				VariantID: l.VariantID,
				Quantity:  l.Quantity,
				UnitPrice: priced[i].UnitPrice,
			})
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order_id", order.ID))
	m.log.InfoContext(ctx, "order placed", "order_id", order.ID, "user_id", order.UserID,
		"total", order.Total.StringFixed(2), "lines", len(order.Lines))
	m.publish(ctx, TopicOrderPlaced, EventOrderPlaced, order.ID, OrderPlacedPayload{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		Total:     order.Total,
		Lines:     lineQtys(order.Lines),
		GiftID:    giftID(order.Gift),
		CreatedAt: order.CreatedAt,
	})
	return order, nil
}

// CancelOrder moves a PENDING order to CANCELLED and puts its stock back in
// the same transaction. A second cancel fails on the status guard, so stock
// is released at most once.
func (m *Manager) CancelOrder(ctx context.Context, orderID string) (err error) {
	ctx, span := m.tracer.Start(ctx, "orders.CancelOrder", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer func() { m.finish(ctx, span, "cancel", err) }()

	var released []OrderLine
	err = m.store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, ErrOrderNotFound) {
			return fmt.Errorf("%w: %w", ErrOrderNotCancellable, err)
		}
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if o.Status != StatusPending {
			return fmt.Errorf("%w: order %s is %s", ErrOrderNotCancellable, orderID, o.Status)
		}
		ok, err := tx.UpdateOrderStatus(ctx, orderID, StatusPending, StatusCancelled, nil, m.now().UTC())
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: order %s changed concurrently", ErrOrderNotCancellable, orderID)
		}
		for _, q := range stockPlan(cartLines(o.Lines)) {
			if err := m.ledger.Release(ctx, tx, q.VariantID, q.Quantity); err != nil {
				return err
			}
		}
		released = o.Lines
		return nil
	})
	if err != nil {
		return err
	}

	m.log.InfoContext(ctx, "order cancelled", "order_id", orderID, "released_lines", len(released))
	m.publish(ctx, TopicOrderCancelled, EventOrderCancelled, orderID, OrderCancelledPayload{
		OrderID:  orderID,
		Released: lineQtys(released),
	})
	return nil
}

// UpdateStatus applies an administrative transition. Cancellation is routed
// through CancelOrder so stock is always released with it.
func (m *Manager) UpdateStatus(ctx context.Context, orderID string, to Status, trackingNumber *string) (order *Order, err error) {
	if to == StatusCancelled {
		if trackingNumber != nil {
			return nil, fmt.Errorf("%w: tracking number can not be set when cancelling", ErrInvalidOrderData)
		}
		if err := m.CancelOrder(ctx, orderID); err != nil {
			return nil, err
		}
		return m.GetOrder(ctx, orderID)
	}

	ctx, span := m.tracer.Start(ctx, "orders.UpdateStatus",
		trace.WithAttributes(attribute.String("order_id", orderID), attribute.String("to", string(to))))
	defer func() { m.finish(ctx, span, "update_status", err) }()

	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	var from Status
	err = m.store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
		}
		now := m.now().UTC()
		ok, err := tx.UpdateOrderStatus(ctx, orderID, o.Status, to, trackingNumber, now)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, orderID)
		}
		from = o.Status
		o.Status = to
		if trackingNumber != nil {
			o.TrackingNumber = *trackingNumber
		}
		o.UpdatedAt = now
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.InfoContext(ctx, "order status changed", "order_id", orderID, "from", from, "to", to)
	m.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, orderID, OrderStatusChangedPayload{
		OrderID:        orderID,
		From:           from,
		To:             to,
		TrackingNumber: order.TrackingNumber,
	})
	return order, nil
}

func (m *Manager) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return m.store.Order(ctx, orderID)
}

// Quote prices a cart at current variant prices without reserving anything.
func (m *Manager) Quote(ctx context.Context, in QuoteInput) (totals pricing.Totals, err error) {
	ctx, span := m.tracer.Start(ctx, "orders.Quote")
	defer func() { m.finish(ctx, span, "quote", err) }()

	in.Lines = trimLines(in.Lines)
	if verr := m.validate.Struct(in); verr != nil {
		return pricing.Totals{}, fmt.Errorf("%w: %s", ErrInvalidOrderData, verr.Error())
	}

	err = m.store.WithTx(ctx, func(tx Tx) error {
		variants, err := tx.Variants(ctx, distinctVariantIDs(in.Lines))
		if err != nil {
			return fmt.Errorf("load variants: %w", err)
		}
		priced, err := priceLines(in.Lines, variants)
		if err != nil {
			return err
		}
		totals, err = m.policy.Compute(priced, in.CouponCode)
		return err
	})
	return totals, err
}

func (m *Manager) finish(ctx context.Context, span trace.Span, op string, err error) {
	metrics.OrderOperation(op, errorClass(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.log.DebugContext(ctx, "order operation failed", "op", op, "err", err)
	}
	span.End()
}

// priceLines checks every line against the loaded variants and returns one
// pricing line per cart line, in order. Quantities of repeated variants are
// summed for the stock check.
func priceLines(lines []CartLine, variants map[string]Variant) ([]pricing.Line, error) {
	want := make(map[string]int, len(variants))
	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		v, ok := variants[l.VariantID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, l.VariantID)
		}
		want[l.VariantID] += l.Quantity
		out = append(out, pricing.Line{UnitPrice: v.Price, Quantity: l.Quantity})
	}
	for _, l := range lines {
		if v := variants[l.VariantID]; want[l.VariantID] > v.Stock {
			return nil, &inventory.InsufficientStockError{
				VariantID: v.ID,
				Requested: want[l.VariantID],
				Available: v.Stock,
			}
		}
	}
	return out, nil
}

// stockPlan sums quantities per variant and orders them by variant ID.
// Every transaction takes stock row locks in that order, so two carts
// naming the same variants in different orders can not deadlock.
func stockPlan(lines []CartLine) []LineQty {
	sum := make(map[string]int, len(lines))
	for _, l := range lines {
		sum[l.VariantID] += l.Quantity
	}
	out := make([]LineQty, 0, len(sum))
	for id, qty := range sum {
		out = append(out, LineQty{VariantID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantID < out[j].VariantID })
	return out
}

func cartLines(lines []OrderLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, CartLine{VariantID: l.VariantID, Quantity: l.Quantity})
	}
	return out
}

func distinctVariantIDs(lines []CartLine) []string {
	seen := make(map[string]bool, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if !seen[l.VariantID] {
			seen[l.VariantID] = true
			ids = append(ids, l.VariantID)
		}
	}
	return ids
}

func (in *PlaceOrderInput) normalize() {
	in.UserID = strings.TrimSpace(in.UserID)
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.CouponCode = strings.TrimSpace(in.CouponCode)
	in.GiftID = strings.TrimSpace(in.GiftID)
	in.Notes = strings.TrimSpace(in.Notes)
	in.PaymentMethod = PaymentMethod(strings.ToLower(strings.TrimSpace(string(in.PaymentMethod))))
	in.Lines = trimLines(in.Lines)
}

// trimLines returns a copy so the caller's slice is never mutated.
func trimLines(lines []CartLine) []CartLine {
	if lines == nil {
		return nil
	}
	out := append([]CartLine(nil), lines...)
	for i := range out {
		out[i].VariantID = strings.TrimSpace(out[i].VariantID)
	}
	return out
}

func giftID(g *GiftLine) string {
	if g == nil {
		return ""
	}
	return g.GiftID
}

func traceID(ctx context.Context) string {
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}
