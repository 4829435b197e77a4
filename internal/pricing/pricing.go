// Package pricing computes checkout totals. Everything here is pure: no I/O,
// no clocks, same inputs give the same Totals.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid pricing input")

// Line is one priced cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Shipping     decimal.Decimal `json:"shipping"`
	Tax          decimal.Decimal `json:"tax"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	CouponCode   string          `json:"coupon_code,omitempty"` // normalized, empty when unknown
	GiftEligible bool            `json:"gift_eligible"`
}

type Policy struct {
	ShippingThreshold decimal.Decimal
	ShippingCost      decimal.Decimal
	TaxRate           decimal.Decimal
	GiftThreshold     decimal.Decimal
	coupons           map[string]decimal.Decimal
}

// DefaultPolicy mirrors the storefront's published rules: free shipping from
// 100, flat 5 otherwise, 20% VAT, PROMO10 for 10% off, a gift from 20.
func DefaultPolicy() Policy {
	p, _ := NewPolicy(
		decimal.NewFromInt(100),
		decimal.NewFromInt(5),
		decimal.RequireFromString("0.20"),
		decimal.NewFromInt(20),
		map[string]decimal.Decimal{"PROMO10": decimal.RequireFromString("0.10")},
	)
	return p
}

func NewPolicy(threshold, shippingCost, taxRate, giftThreshold decimal.Decimal, coupons map[string]decimal.Decimal) (Policy, error) {
	if threshold.IsNegative() || shippingCost.IsNegative() || giftThreshold.IsNegative() {
		return Policy{}, fmt.Errorf("%w: negative amount in policy", ErrInvalidInput)
	}
	if !isRate(taxRate) {
		return Policy{}, fmt.Errorf("%w: tax rate %s outside [0,1]", ErrInvalidInput, taxRate)
	}
	norm := make(map[string]decimal.Decimal, len(coupons))
	for code, rate := range coupons {
		if !isRate(rate) {
			return Policy{}, fmt.Errorf("%w: coupon %s rate %s outside [0,1]", ErrInvalidInput, code, rate)
		}
		norm[normalizeCode(code)] = rate
	}
	return Policy{
		ShippingThreshold: threshold,
		ShippingCost:      shippingCost,
		TaxRate:           taxRate,
		GiftThreshold:     giftThreshold,
		coupons:           norm,
	}, nil
}

// CouponRate reports the discount rate for code. Unknown codes are not an
// error; callers get ok=false and price without a discount.
func (p Policy) CouponRate(code string) (decimal.Decimal, bool) {
	rate, ok := p.coupons[normalizeCode(code)]
	return rate, ok
}

// Compute prices lines. Each component is rounded to cents before the total
// is formed so subtotal+shipping+tax-discount == total exactly.
func (p Policy) Compute(lines []Line, couponCode string) (Totals, error) {
	subtotal := decimal.Zero
	for i, l := range lines {
		if l.Quantity <= 0 {
			return Totals{}, fmt.Errorf("%w: line %d quantity %d", ErrInvalidInput, i, l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("%w: line %d unit price %s", ErrInvalidInput, i, l.UnitPrice)
		}
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = subtotal.Round(2)

	t := Totals{Subtotal: subtotal, Shipping: decimal.Zero, Discount: decimal.Zero}
	if subtotal.LessThan(p.ShippingThreshold) {
		t.Shipping = p.ShippingCost.Round(2)
	}
	t.Tax = subtotal.Mul(p.TaxRate).Round(2)
	if rate, ok := p.CouponRate(couponCode); ok {
		t.Discount = subtotal.Mul(rate).Round(2)
		t.CouponCode = normalizeCode(couponCode)
	}

	t.Total = t.Subtotal.Add(t.Shipping).Add(t.Tax).Sub(t.Discount)
	if t.Total.IsNegative() {
		t.Total = decimal.Zero
	}
	t.GiftEligible = !subtotal.LessThan(p.GiftThreshold)
	return t, nil
}

func isRate(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
