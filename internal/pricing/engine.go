// Package pricing holds the order arithmetic shared by the cart and checkout
// flows. Every amount is rounded half-up to cents.
package pricing

import "github.com/shopspring/decimal"

// Line describes one priced cart or order line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns UnitPrice × Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	Discount         decimal.Decimal `json:"discount"`
	ShippingFee      decimal.Decimal `json:"shippingFee"`
	ShippingDiscount decimal.Decimal `json:"shippingDiscount"`
	Total            decimal.Decimal `json:"total"`
	ItemCount        int             `json:"itemCount"`
}

// Subtotal sums line totals. Lines with a non-positive quantity are ignored.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		sum = sum.Add(l.Total())
	}
	return sum.Round(2)
}

// ItemCount sums line quantities.
func ItemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		if l.Quantity > 0 {
			n += l.Quantity
		}
	}
	return n
}

// ComputeTotal returns max(0, subtotal - discount) + shippingFee. The fee is
// expected to already carry any voucher shipping discount.
func ComputeTotal(lines []Line, discount, shippingFee decimal.Decimal) decimal.Decimal {
	goods := Subtotal(lines).Sub(discount)
	if goods.IsNegative() {
		goods = decimal.Zero
	}
	return goods.Add(shippingFee).Round(2)
}

// ShippingPolicy is the flat-rate fee schedule. Orders whose subtotal reaches
// FreeThreshold ship free; a zero threshold disables that rule.
type ShippingPolicy struct {
	BaseFee       decimal.Decimal
	FreeThreshold decimal.Decimal
}

// Fee returns the shipping fee charged for subtotal. Empty carts ship nothing.
func (p ShippingPolicy) Fee(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	if p.FreeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.BaseFee.Round(2)
}

// EffectiveShipping subtracts a voucher shipping discount from fee, never
// going below zero.
func EffectiveShipping(fee, shippingDiscount decimal.Decimal) decimal.Decimal {
	out := fee.Sub(shippingDiscount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out.Round(2)
}

// Compute prices lines with an item discount and a shipping discount under p.
// The applied shipping discount is capped at the fee actually charged.
func Compute(lines []Line, discount, shippingDiscount decimal.Decimal, p ShippingPolicy) Summary {
	subtotal := Subtotal(lines)
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	fee := p.Fee(subtotal)
	effective := EffectiveShipping(fee, shippingDiscount)
	return Summary{
		Subtotal:         subtotal,
		Discount:         discount.Round(2),
		ShippingFee:      fee,
		ShippingDiscount: fee.Sub(effective),
		Total:            ComputeTotal(lines, discount, effective),
		ItemCount:        ItemCount(lines),
	}
}
