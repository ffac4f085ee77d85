package cart

import (
	"context"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/pricing"
	"github.com/noah-isme/backend-bookstore/internal/voucher"
)

// VoucherValidator evaluates a code against a cart snapshot.
type VoucherValidator interface {
	Validate(ctx context.Context, code string, cart voucher.CartSnapshot) (voucher.Validation, error)
}

// Pricer turns cart lines and an optional voucher code into a priced quote.
// Cart views and checkout share it so both show the same numbers.
type Pricer struct {
	Vouchers VoucherValidator
	Shipping pricing.ShippingPolicy
}

// Line is one priced cart line.
type Line struct {
	BookID    string          `json:"bookId"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Category  string          `json:"category"`
	ImageURL  *string         `json:"imageUrl,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Stock     int             `json:"stock"`
}

// AppliedVoucher reports how the cart's voucher fared against the current
// contents. A voucher that no longer qualifies stays attached but discounts
// nothing.
type AppliedVoucher struct {
	Code      string       `json:"code"`
	Name      string       `json:"name,omitempty"`
	Type      voucher.Type `json:"type,omitempty"`
	Valid     bool         `json:"valid"`
	Error     string       `json:"error,omitempty"`
	ErrorCode string       `json:"errorCode,omitempty"`
}

// Quote is a fully priced cart.
type Quote struct {
	Items   []Line          `json:"items"`
	Voucher *AppliedVoucher `json:"voucher,omitempty"`
	Summary pricing.Summary `json:"summary"`

	validation *voucher.Validation
}

// Validation returns the voucher evaluation behind the quote, if any.
func (q Quote) Validation() *voucher.Validation {
	return q.validation
}

// Snapshot derives the voucher evaluation input from cart lines.
func Snapshot(lines []db.CartLine) voucher.CartSnapshot {
	priced := pricingLines(lines)
	return voucher.CartSnapshot{
		Subtotal:   pricing.Subtotal(priced),
		ItemCount:  pricing.ItemCount(priced),
		Categories: lo.Uniq(lo.Map(lines, func(l db.CartLine, _ int) string { return l.Category })),
	}
}

func pricingLines(lines []db.CartLine) []pricing.Line {
	return lo.Map(lines, func(l db.CartLine, _ int) pricing.Line {
		return pricing.Line{UnitPrice: l.UnitPrice, Quantity: int(l.Quantity)}
	})
}

// Quote prices lines with code applied when it is non-empty. Only faults are
// returned as errors; a rejected voucher is reported on the quote.
func (p Pricer) Quote(ctx context.Context, lines []db.CartLine, code string) (Quote, error) {
	q := Quote{Items: make([]Line, 0, len(lines))}
	for _, l := range lines {
		q.Items = append(q.Items, Line{
			BookID:    l.BookID.String(),
			Title:     l.Title,
			Author:    l.Author,
			Category:  l.Category,
			ImageURL:  l.ImageURL,
			UnitPrice: l.UnitPrice,
			Quantity:  int(l.Quantity),
			LineTotal: pricing.Line{UnitPrice: l.UnitPrice, Quantity: int(l.Quantity)}.Total().Round(2),
			Stock:     int(l.Stock),
		})
	}

	discount, shippingDiscount := decimal.Zero, decimal.Zero
	if code != "" && p.Vouchers != nil {
		v, err := p.Vouchers.Validate(ctx, code, Snapshot(lines))
		if err != nil {
			return Quote{}, err
		}
		q.validation = &v
		applied := &AppliedVoucher{Code: voucher.NormalizeCode(code), Valid: v.Result.Valid}
		if v.Voucher != nil {
			applied.Code, applied.Name, applied.Type = v.Voucher.Code, v.Voucher.Name, v.Voucher.Type
		}
		if v.Result.Valid {
			discount, shippingDiscount = v.Result.Discount, v.Result.ShippingDiscount
		} else {
			applied.Error, applied.ErrorCode = v.Result.Reason, v.Result.Code
		}
		q.Voucher = applied
	}
	q.Summary = pricing.Compute(pricingLines(lines), discount, shippingDiscount, p.Shipping)
	return q, nil
}
