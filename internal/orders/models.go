package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentPayPal PaymentMethod = "paypal"
	PaymentCash   PaymentMethod = "cash"
)

// Variant is the sellable unit owned by the catalog. Read here, stock written
// only through the inventory ledger.
type Variant struct {
	ID        string
	ProductID string
	Name      string
	Price     decimal.Decimal
	Stock     int
}

type Gift struct {
	ID   string
	Name string
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"` // see status.go
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	Tax             decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	ShippingAddress string          `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	Notes           string          `json:"notes,omitempty"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	Gift            *GiftLine       `json:"gift,omitempty"`
	Lines           []OrderLine     `json:"lines"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderLine freezes the unit price at purchase time; never updated.
type OrderLine struct {
	OrderID   string          `json:"order_id"`
	VariantID string          `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// GiftLine is the zero-priced promotional gift attached to an order. It is
// not a variant and never touches stock.
type GiftLine struct {
	GiftID string `json:"gift_id"`
	Name   string `json:"name"`
}

// CartLine is caller input; not persisted by this package.
type CartLine struct {
	VariantID string `json:"variant_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type PlaceOrderInput struct {
	UserID          string        `json:"user_id" validate:"required"`
	Lines           []CartLine    `json:"items" validate:"required,min=1,dive"`
	ShippingAddress string        `json:"shipping_address" validate:"required"`
	PaymentMethod   PaymentMethod `json:"payment_method" validate:"omitempty,oneof=card paypal cash"`
	CouponCode      string        `json:"coupon_code,omitempty"`
	Notes           string        `json:"notes,omitempty" validate:"max=2000"`
	GiftID          string        `json:"gift_id,omitempty"`
}

type QuoteInput struct {
	Lines      []CartLine `json:"items" validate:"required,min=1,dive"`
	CouponCode string     `json:"coupon_code,omitempty"`
}
