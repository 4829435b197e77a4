package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/storefront-checkout/internal/orders"
)

// Store implements orders.Store on Postgres. Stock is reserved with a single
// conditional UPDATE; order rows are locked with SELECT ... FOR UPDATE.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	// no-op after a successful commit
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Order(ctx context.Context, id string) (*orders.Order, error) {
	return loadOrder(ctx, s.DB, id, false)
}

// ListVariants returns the catalog ordered by ID.
func (s *Store) ListVariants(ctx context.Context) ([]orders.Variant, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, product_id, name, price, stock
	                              FROM product_variants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Variant
	for rows.Next() {
		var v orders.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.Stock); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpsertVariant writes a catalog variant, replacing price and stock if it
// already exists. Used for seeding.
func (s *Store) UpsertVariant(ctx context.Context, v orders.Variant) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO product_variants(id, product_id, name, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET product_id = EXCLUDED.product_id, name = EXCLUDED.name,
		    price = EXCLUDED.price, stock = EXCLUDED.stock, updated_at = now()`,
		v.ID, v.ProductID, v.Name, v.Price, v.Stock)
	return err
}

func (s *Store) UpsertGift(ctx context.Context, g orders.Gift) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO gifts(id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, g.ID, g.Name)
	return err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) DecrementStock(ctx context.Context, variantID string, qty int) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE product_variants SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, variantID, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) IncrementStock(ctx context.Context, variantID string, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE product_variants SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, variantID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s", orders.ErrVariantNotFound, variantID)
	}
	return nil
}

func (t *pgTx) Variants(ctx context.Context, ids []string) (map[string]orders.Variant, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, product_id, name, price, stock
	                              FROM product_variants WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]orders.Variant, len(ids))
	for rows.Next() {
		var v orders.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.Stock); err != nil {
			return nil, err
		}
		out[v.ID] = v
	}
	return out, rows.Err()
}

func (t *pgTx) Gift(ctx context.Context, id string) (*orders.Gift, error) {
	var g orders.Gift
	err := t.tx.QueryRow(ctx, `SELECT id, name FROM gifts WHERE id = $1`, id).Scan(&g.ID, &g.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", orders.ErrGiftNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	var giftID *string
	var giftName string
	if o.Gift != nil {
		giftID, giftName = &o.Gift.GiftID, o.Gift.Name
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, subtotal, shipping_cost, tax, discount, total,
		                   coupon_code, shipping_address, payment_method, notes, tracking_number,
		                   gift_id, gift_name, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		o.ID, o.UserID, string(o.Status), o.Subtotal, o.ShippingCost, o.Tax, o.Discount, o.Total,
		o.CouponCode, o.ShippingAddress, string(o.PaymentMethod), o.Notes, o.TrackingNumber,
		giftID, giftName, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(`INSERT INTO order_items(order_id, line_no, variant_id, quantity, unit_price)
		             VALUES ($1, $2, $3, $4, $5)`, o.ID, i, l.VariantID, l.Quantity, l.UnitPrice)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (*orders.Order, error) {
	return loadOrder(ctx, t.tx, id, true)
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, id string, from, to orders.Status, trackingNumber *string, at time.Time) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status = $3, tracking_number = COALESCE($4, tracking_number), updated_at = $5
		WHERE id = $1 AND status = $2`, id, string(from), string(to), trackingNumber, at)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func loadOrder(ctx context.Context, q querier, id string, forUpdate bool) (*orders.Order, error) {
	sql := `SELECT id, user_id, status, subtotal, shipping_cost, tax, discount, total,
	               coupon_code, shipping_address, payment_method, notes, tracking_number,
	               gift_id, gift_name, created_at, updated_at
	        FROM orders WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}

	var (
		o        orders.Order
		status   string
		payment  string
		giftID   *string
		giftName string
	)
	err := q.QueryRow(ctx, sql, id).Scan(&o.ID, &o.UserID, &status, &o.Subtotal, &o.ShippingCost,
		&o.Tax, &o.Discount, &o.Total, &o.CouponCode, &o.ShippingAddress, &payment, &o.Notes,
		&o.TrackingNumber, &giftID, &giftName, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", orders.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)
	o.PaymentMethod = orders.PaymentMethod(payment)
	if giftID != nil {
		o.Gift = &orders.GiftLine{GiftID: *giftID, Name: giftName}
	}

	rows, err := q.Query(ctx, `SELECT order_id, variant_id, quantity, unit_price
	                           FROM order_items WHERE order_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l orders.OrderLine
		if err := rows.Scan(&l.OrderID, &l.VariantID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	return &o, rows.Err()
}
