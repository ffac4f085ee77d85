package voucher

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type validateBody struct {
	Valid            bool             `json:"valid"`
	Discount         decimal.Decimal  `json:"discount"`
	ShippingDiscount *decimal.Decimal `json:"shippingDiscount"`
	Voucher          *voucherSummary  `json:"voucher"`
	Error            string           `json:"error"`
	ErrorCode        string           `json:"errorCode"`
}

func postValidate(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, validateBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/vouchers/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Validate(rec, req)

	var out validateBody
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func newTestHandler(t *testing.T, q *stubQuerier) *Handler {
	svc, _ := newTestService(t, q)
	return &Handler{Svc: svc, Logger: zerolog.Nop()}
}

func TestValidateHandlerRequiresCodeAndTotal(t *testing.T) {
	h := newTestHandler(t, newStubQuerier())
	cases := map[string]string{
		"missing code":  `{"orderTotal": 10}`,
		"blank code":    `{"code": "   ", "orderTotal": 10}`,
		"missing total": `{"code": "SAVE10"}`,
		"empty body":    ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec, _ := postValidate(t, h, body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestValidateHandlerSuccessShape(t *testing.T) {
	h := newTestHandler(t, newStubQuerier(storedVoucher("SAVE10", "PERCENTAGE", "10")))

	rec, body := postValidate(t, h, `{"code":"save10","orderTotal":"60.00","itemCount":2,"bookCategories":["Fiction"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, body.Valid)
	requireAmount(t, "6.00", body.Discount)
	require.NotNil(t, body.ShippingDiscount)
	requireAmount(t, "0", *body.ShippingDiscount)
	require.NotNil(t, body.Voucher)
	require.Equal(t, "SAVE10", body.Voucher.Code)
	require.Equal(t, TypePercentage, body.Voucher.Type)
	require.Empty(t, body.Error)
}

func TestValidateHandlerRejectionShape(t *testing.T) {
	v := storedVoucher("BIG", "FIXED_AMOUNT", "10")
	v.MinOrderAmount = dec("100")
	h := newTestHandler(t, newStubQuerier(v))

	rec, body := postValidate(t, h, `{"code":"BIG","orderTotal":40,"itemCount":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, body.Valid)
	requireAmount(t, "0", body.Discount)
	require.Nil(t, body.Voucher)
	require.Equal(t, CodeMinOrder, body.ErrorCode)
	require.Contains(t, body.Error, "60.00")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.NotContains(t, raw, "shippingDiscount")
}

func TestValidateHandlerNotFound(t *testing.T) {
	h := newTestHandler(t, newStubQuerier())
	rec, body := postValidate(t, h, `{"code":"GHOST","orderTotal":40}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, body.Valid)
	require.Equal(t, CodeNotFound, body.ErrorCode)
}

func TestValidateHandlerHidesInternalFaults(t *testing.T) {
	q := newStubQuerier()
	q.lookupErr = errors.New("pq: password authentication failed for user bookstore")
	h := newTestHandler(t, q)

	rec, _ := postValidate(t, h, `{"code":"ANY","orderTotal":40}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "password")
	require.Contains(t, rec.Body.String(), "could not validate voucher")
}
