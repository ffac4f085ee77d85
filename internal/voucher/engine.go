package voucher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Type selects how a voucher's value is applied.
type Type string

const (
	TypePercentage  Type = "PERCENTAGE"
	TypeFixedAmount Type = "FIXED_AMOUNT"
	TypeFreeShip    Type = "FREE_SHIP"
)

// Valid reports whether t is a known voucher type.
func (t Type) Valid() bool {
	switch t {
	case TypePercentage, TypeFixedAmount, TypeFreeShip:
		return true
	}
	return false
}

// Rejection codes attached to business rejections.
const (
	CodeNotFound         = "VOUCHER_NOT_FOUND"
	CodeNotActive        = "VOUCHER_NOT_ACTIVE"
	CodeUsageLimit       = "VOUCHER_USAGE_LIMIT_REACHED"
	CodeMinOrder         = "VOUCHER_MIN_ORDER_NOT_MET"
	CodeMinQuantity      = "VOUCHER_MIN_QUANTITY_NOT_MET"
	CodeCategoryMismatch = "VOUCHER_CATEGORY_MISMATCH"
)

var (
	// ErrMalformedVoucher marks a voucher record the engine cannot evaluate.
	ErrMalformedVoucher = errors.New("voucher: malformed voucher record")
	// ErrUsageLimitReached is returned when an atomic usage claim loses the race for the last use.
	ErrUsageLimitReached = errors.New("voucher: usage limit reached")
)

var hundred = decimal.NewFromInt(100)

// Voucher is the evaluation view of a stored voucher.
type Voucher struct {
	ID             uuid.UUID
	Code           string
	Name           string
	Description    string
	Type           Type
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    *decimal.Decimal
	UsageLimit     *int
	UsedCount      int
	MinQuantity    *int
	// ApplicableCategories restricts the voucher when non-empty.
	ApplicableCategories []string
	// CategoriesMalformed is set when the stored category data could not be
	// parsed. Such vouchers are evaluated without a category restriction.
	CategoriesMalformed bool
	ValidFrom           time.Time
	ValidTo             time.Time
	IsActive            bool
}

// CartSnapshot is the part of a cart a voucher is evaluated against.
type CartSnapshot struct {
	Subtotal   decimal.Decimal
	ItemCount  int
	Categories []string
}

// EvaluationResult is the outcome of Evaluate. Rejections carry Valid=false,
// a zero Discount and a human readable Reason.
type EvaluationResult struct {
	Valid            bool
	Discount         decimal.Decimal
	ShippingDiscount decimal.Decimal
	Reason           string
	Code             string
}

// Reject builds a business rejection.
func Reject(code, reason string) EvaluationResult {
	return EvaluationResult{Discount: decimal.Zero, ShippingDiscount: decimal.Zero, Code: code, Reason: reason}
}

// Evaluate applies the voucher rules to cart in order; the first failing rule
// decides the rejection:
//
//  1. validity window
//  2. usage cap
//  3. minimum order amount
//  4. minimum quantity
//  5. category restriction
//
// Amounts are rounded to cents, half up. A non-nil error means the voucher
// record itself is unusable and is never a business rejection.
func Evaluate(v Voucher, cart CartSnapshot, now time.Time) (EvaluationResult, error) {
	if err := checkRecord(v); err != nil {
		return EvaluationResult{}, err
	}

	if now.Before(v.ValidFrom) || now.After(v.ValidTo) {
		return Reject(CodeNotActive, "voucher expired or not yet active"), nil
	}
	if v.UsageLimit != nil && v.UsedCount >= *v.UsageLimit {
		return Reject(CodeUsageLimit, "voucher usage limit reached"), nil
	}
	if cart.Subtotal.LessThan(v.MinOrderAmount) {
		shortfall := v.MinOrderAmount.Sub(cart.Subtotal)
		return Reject(CodeMinOrder, fmt.Sprintf("minimum order amount is %s, add %s more",
			v.MinOrderAmount.StringFixed(2), shortfall.StringFixed(2))), nil
	}
	if v.MinQuantity != nil && cart.ItemCount < *v.MinQuantity {
		return Reject(CodeMinQuantity, fmt.Sprintf("voucher requires at least %d items", *v.MinQuantity)), nil
	}
	if len(v.ApplicableCategories) > 0 && !categoriesIntersect(v.ApplicableCategories, cart.Categories) {
		return Reject(CodeCategoryMismatch, "voucher applies only to categories: "+
			strings.Join(v.ApplicableCategories, ", ")), nil
	}

	res := EvaluationResult{Valid: true, Discount: decimal.Zero, ShippingDiscount: decimal.Zero}
	switch v.Type {
	case TypePercentage:
		d := cart.Subtotal.Mul(v.Value).Div(hundred)
		if v.MaxDiscount != nil && d.GreaterThan(*v.MaxDiscount) {
			d = *v.MaxDiscount
		}
		res.Discount = d.Round(2)
	case TypeFixedAmount:
		res.Discount = decimal.Min(v.Value, cart.Subtotal).Round(2)
	case TypeFreeShip:
		res.ShippingDiscount = v.Value.Round(2)
	}
	return res, nil
}

func checkRecord(v Voucher) error {
	switch {
	case !v.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrMalformedVoucher, v.Type)
	case v.ValidFrom.After(v.ValidTo):
		return fmt.Errorf("%w: valid_from after valid_to", ErrMalformedVoucher)
	case v.Value.IsNegative(), v.MinOrderAmount.IsNegative():
		return fmt.Errorf("%w: negative amount", ErrMalformedVoucher)
	case v.MaxDiscount != nil && v.MaxDiscount.IsNegative():
		return fmt.Errorf("%w: negative max discount", ErrMalformedVoucher)
	}
	return nil
}

func categoriesIntersect(allowed, cart []string) bool {
	return len(lo.Intersect(normalizeCategories(allowed), normalizeCategories(cart))) > 0
}

func normalizeCategories(in []string) []string {
	return lo.FilterMap(in, func(c string, _ int) (string, bool) {
		c = strings.ToLower(strings.TrimSpace(c))
		return c, c != ""
	})
}

// ParseCategories decodes stored category data: a JSON array of strings.
// Missing, empty or null data means no restriction. ok is false when the data
// is present but unparsable; callers then apply no restriction.
func ParseCategories(raw *string) (categories []string, ok bool) {
	if raw == nil {
		return nil, true
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" || trimmed == "null" {
		return nil, true
	}
	var parsed []string
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, false
	}
	cleaned := lo.Uniq(lo.FilterMap(parsed, func(c string, _ int) (string, bool) {
		c = strings.TrimSpace(c)
		return c, c != ""
	}))
	return cleaned, true
}

// EncodeCategories is the inverse of ParseCategories. Empty input stores NULL.
func EncodeCategories(categories []string) *string {
	cleaned := lo.Uniq(lo.FilterMap(categories, func(c string, _ int) (string, bool) {
		c = strings.TrimSpace(c)
		return c, c != ""
	}))
	if len(cleaned) == 0 {
		return nil
	}
	raw, _ := json.Marshal(cleaned)
	s := string(raw)
	return &s
}

// NormalizeCode canonicalises a user supplied code for lookups and storage.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
