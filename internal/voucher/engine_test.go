package voucher

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testNow   = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	testStart = testNow.Add(-24 * time.Hour)
	testEnd   = testNow.Add(24 * time.Hour)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(n int) *int {
	return &n
}

func baseVoucher(t Type, value string) Voucher {
	return Voucher{
		Code:           "TEST",
		Name:           "Test voucher",
		Type:           t,
		Value:          dec(value),
		MinOrderAmount: decimal.Zero,
		ValidFrom:      testStart,
		ValidTo:        testEnd,
		IsActive:       true,
	}
}

func cart(subtotal string, items int, categories ...string) CartSnapshot {
	return CartSnapshot{Subtotal: dec(subtotal), ItemCount: items, Categories: categories}
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s got %s", want, got)
}

func TestEvaluatePercentageClampedToMaxDiscount(t *testing.T) {
	v := baseVoucher(TypePercentage, "10")
	v.MaxDiscount = decPtr("5")

	res, err := Evaluate(v, cart("100", 1), testNow)
	require.NoError(t, err)
	require.True(t, res.Valid)
	requireAmount(t, "5.00", res.Discount)
	requireAmount(t, "0", res.ShippingDiscount)
}

func TestEvaluatePercentageBelowCap(t *testing.T) {
	v := baseVoucher(TypePercentage, "15")
	v.MaxDiscount = decPtr("50")

	res, err := Evaluate(v, cart("80.10", 2), testNow)
	require.NoError(t, err)
	require.True(t, res.Valid)
	// 80.10 * 0.15 = 12.015 rounds half up
	requireAmount(t, "12.02", res.Discount)
}

func TestEvaluateFixedAmountNeverExceedsSubtotal(t *testing.T) {
	res, err := Evaluate(baseVoucher(TypeFixedAmount, "20"), cart("15", 1), testNow)
	require.NoError(t, err)
	require.True(t, res.Valid)
	requireAmount(t, "15.00", res.Discount)

	res, err = Evaluate(baseVoucher(TypeFixedAmount, "20"), cart("45.50", 1), testNow)
	require.NoError(t, err)
	requireAmount(t, "20.00", res.Discount)
}

func TestEvaluateFreeShipOnlyDiscountsShipping(t *testing.T) {
	res, err := Evaluate(baseVoucher(TypeFreeShip, "3.50"), cart("42", 3), testNow)
	require.NoError(t, err)
	require.True(t, res.Valid)
	requireAmount(t, "0", res.Discount)
	requireAmount(t, "3.50", res.ShippingDiscount)
}

func TestEvaluateExpiryDominates(t *testing.T) {
	v := baseVoucher(TypePercentage, "10")
	v.UsageLimit = intPtr(1)
	v.UsedCount = 1
	v.MinOrderAmount = dec("1000")
	v.MinQuantity = intPtr(50)
	v.ApplicableCategories = []string{"Poetry"}

	res, err := Evaluate(v, cart("10", 1, "Fiction"), testEnd.Add(time.Second))
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, CodeNotActive, res.Code)
	require.Equal(t, "voucher expired or not yet active", res.Reason)
	requireAmount(t, "0", res.Discount)

	res, err = Evaluate(v, cart("10", 1, "Fiction"), testStart.Add(-time.Second))
	require.NoError(t, err)
	require.Equal(t, CodeNotActive, res.Code)
}

func TestEvaluateWindowBoundsAreInclusive(t *testing.T) {
	v := baseVoucher(TypeFixedAmount, "1")
	for _, at := range []time.Time{testStart, testEnd} {
		res, err := Evaluate(v, cart("10", 1), at)
		require.NoError(t, err)
		require.True(t, res.Valid, "at %s", at)
	}
}

func TestEvaluateRuleOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Voucher)
		cart   CartSnapshot
		code   string
		reason string
	}{
		{
			name: "usage cap before minimum order",
			mutate: func(v *Voucher) {
				v.UsageLimit = intPtr(10)
				v.UsedCount = 10
				v.MinOrderAmount = dec("500")
			},
			cart:   cart("10", 1),
			code:   CodeUsageLimit,
			reason: "voucher usage limit reached",
		},
		{
			name: "minimum order reports shortfall",
			mutate: func(v *Voucher) {
				v.MinOrderAmount = dec("50")
				v.MinQuantity = intPtr(5)
			},
			cart:   cart("37.50", 1),
			code:   CodeMinOrder,
			reason: "minimum order amount is 50.00, add 12.50 more",
		},
		{
			name: "minimum quantity reports requirement",
			mutate: func(v *Voucher) {
				v.MinQuantity = intPtr(3)
				v.ApplicableCategories = []string{"Poetry"}
			},
			cart:   cart("100", 2, "Fiction"),
			code:   CodeMinQuantity,
			reason: "voucher requires at least 3 items",
		},
		{
			name: "category mismatch lists allowed categories",
			mutate: func(v *Voucher) {
				v.ApplicableCategories = []string{"Poetry", "Science"}
			},
			cart:   cart("100", 2, "Fiction"),
			code:   CodeCategoryMismatch,
			reason: "voucher applies only to categories: Poetry, Science",
		},
		{
			name: "empty cart categories never match a restriction",
			mutate: func(v *Voucher) {
				v.ApplicableCategories = []string{"Poetry"}
			},
			cart:   cart("100", 2),
			code:   CodeCategoryMismatch,
			reason: "voucher applies only to categories: Poetry",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := baseVoucher(TypeFixedAmount, "5")
			tc.mutate(&v)
			res, err := Evaluate(v, tc.cart, testNow)
			require.NoError(t, err)
			require.False(t, res.Valid)
			require.Equal(t, tc.code, res.Code)
			require.Equal(t, tc.reason, res.Reason)
			requireAmount(t, "0", res.Discount)
			requireAmount(t, "0", res.ShippingDiscount)
		})
	}
}

func TestEvaluateAllRulesSatisfied(t *testing.T) {
	v := baseVoucher(TypePercentage, "20")
	v.UsageLimit = intPtr(5)
	v.UsedCount = 4
	v.MinOrderAmount = dec("50")
	v.MinQuantity = intPtr(2)
	v.ApplicableCategories = []string{"Science", "Fiction"}

	res, err := Evaluate(v, cart("50", 2, " fiction ", "History"), testNow)
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Empty(t, res.Reason)
	requireAmount(t, "10.00", res.Discount)
}

func TestEvaluateMalformedCategoriesAreNotARestriction(t *testing.T) {
	raw := `["Poetry",`
	categories, ok := ParseCategories(&raw)
	require.False(t, ok)

	v := baseVoucher(TypeFixedAmount, "5")
	v.ApplicableCategories = categories
	v.CategoriesMalformed = true

	res, err := Evaluate(v, cart("20", 1, "Fiction"), testNow)
	require.NoError(t, err)
	require.True(t, res.Valid)
}

func TestEvaluateMalformedRecordIsFault(t *testing.T) {
	cases := map[string]func(*Voucher){
		"unknown type":     func(v *Voucher) { v.Type = "BOGO" },
		"inverted window":  func(v *Voucher) { v.ValidFrom, v.ValidTo = v.ValidTo, v.ValidFrom },
		"negative value":   func(v *Voucher) { v.Value = dec("-1") },
		"negative maximum": func(v *Voucher) { v.MaxDiscount = decPtr("-2") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := baseVoucher(TypePercentage, "10")
			mutate(&v)
			_, err := Evaluate(v, cart("20", 1), testNow)
			require.True(t, errors.Is(err, ErrMalformedVoucher))
		})
	}
}

func TestParseCategories(t *testing.T) {
	str := func(s string) *string { return &s }

	got, ok := ParseCategories(nil)
	require.True(t, ok)
	require.Nil(t, got)

	got, ok = ParseCategories(str("  "))
	require.True(t, ok)
	require.Nil(t, got)

	got, ok = ParseCategories(str("null"))
	require.True(t, ok)
	require.Nil(t, got)

	got, ok = ParseCategories(str(`["Fiction", " Science ", "", "Fiction"]`))
	require.True(t, ok)
	require.Equal(t, []string{"Fiction", "Science"}, got)

	_, ok = ParseCategories(str(`{"a":1}`))
	require.False(t, ok)
}

func TestEncodeCategories(t *testing.T) {
	require.Nil(t, EncodeCategories(nil))
	require.Nil(t, EncodeCategories([]string{" ", ""}))
	enc := EncodeCategories([]string{"Fiction", "Fiction", " Science"})
	require.NotNil(t, enc)
	require.Equal(t, `["Fiction","Science"]`, *enc)
}

func TestNormalizeCode(t *testing.T) {
	require.Equal(t, "SAVE10", NormalizeCode("  save10 "))
}
