// Package memstore is an in-process orders.Store for local runs and tests.
// One mutex is held for the whole of each transaction, so transactions are
// serial; writes are journaled and undone on rollback.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/storefront-checkout/internal/orders"
)

type Store struct {
	mu       sync.Mutex
	variants map[string]orders.Variant
	gifts    map[string]orders.Gift
	orders   map[string]*orders.Order
}

func New() *Store {
	return &Store{
		variants: map[string]orders.Variant{},
		gifts:    map[string]orders.Gift{},
		orders:   map[string]*orders.Order{},
	}
}

// PutVariant inserts or replaces a catalog variant.
func (s *Store) PutVariant(v orders.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
}

func (s *Store) PutGift(g orders.Gift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gifts[g.ID] = g
}

// Stock reports the current stock of a variant, -1 if unknown.
func (s *Store) Stock(variantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[variantID]
	if !ok {
		return -1
	}
	return v.Stock
}

// OrderCount reports how many orders have been committed.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) Order(ctx context.Context, id string) (*orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, id)
	}
	return cloneOrder(o), nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	// a cancelled caller gets no commit, same as a database tx
	if err = ctx.Err(); err != nil {
		return err
	}
	return nil
}

type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) DecrementStock(ctx context.Context, variantID string, qty int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, ok := t.s.variants[variantID]
	if !ok || v.Stock < qty {
		return false, nil
	}
	prev := v
	v.Stock -= qty
	t.s.variants[variantID] = v
	t.undo = append(t.undo, func() { t.s.variants[variantID] = prev })
	return true, nil
}

func (t *memTx) IncrementStock(ctx context.Context, variantID string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, ok := t.s.variants[variantID]
	if !ok {
		return fmt.Errorf("%w: %s", orders.ErrVariantNotFound, variantID)
	}
	prev := v
	v.Stock += qty
	t.s.variants[variantID] = v
	t.undo = append(t.undo, func() { t.s.variants[variantID] = prev })
	return nil
}

func (t *memTx) Variants(ctx context.Context, ids []string) (map[string]orders.Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]orders.Variant, len(ids))
	for _, id := range ids {
		if v, ok := t.s.variants[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (t *memTx) Gift(ctx context.Context, id string) (*orders.Gift, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, ok := t.s.gifts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrGiftNotFound, id)
	}
	return &g, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, dup := t.s.orders[o.ID]; dup {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	for _, l := range o.Lines {
		if _, ok := t.s.variants[l.VariantID]; !ok {
			return fmt.Errorf("%w: %s", orders.ErrVariantNotFound, l.VariantID)
		}
	}
	t.s.orders[o.ID] = cloneOrder(o)
	id := o.ID
	t.undo = append(t.undo, func() { delete(t.s.orders, id) })
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, id string) (*orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o, ok := t.s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, id)
	}
	return cloneOrder(o), nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, id string, from, to orders.Status, trackingNumber *string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	o, ok := t.s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	prev := cloneOrder(o)
	o.Status = to
	o.UpdatedAt = at
	if trackingNumber != nil {
		o.TrackingNumber = *trackingNumber
	}
	t.undo = append(t.undo, func() { t.s.orders[id] = prev })
	return true, nil
}

// ListVariants lists catalog variants sorted by ID.
func (s *Store) ListVariants(ctx context.Context) ([]orders.Variant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Variant, 0, len(s.variants))
	for _, v := range s.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneOrder(o *orders.Order) *orders.Order {
	c := *o
	c.Lines = append([]orders.OrderLine(nil), o.Lines...)
	if o.Gift != nil {
		g := *o.Gift
		c.Gift = &g
	}
	return &c
}
