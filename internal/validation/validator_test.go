package validation

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bookstore/internal/common"
)

type sample struct {
	Code  string           `json:"code" validate:"required"`
	Total *decimal.Decimal `json:"orderTotal" validate:"required,gte=0"`
	Qty   int              `json:"quantity" validate:"gte=1,lte=99"`
}

func decode(t *testing.T, body string) error {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dst sample
	return Decode(req, &dst)
}

func TestDecodeValid(t *testing.T) {
	require.NoError(t, decode(t, `{"code":"SAVE10","orderTotal":0,"quantity":2}`))
	require.NoError(t, decode(t, `{"code":"SAVE10","orderTotal":"12.50","quantity":2}`))
}

func TestDecodeReportsJSONFieldNames(t *testing.T) {
	err := decode(t, `{"orderTotal":-1,"quantity":0}`)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["code"])
	require.Contains(t, details["orderTotal"], "greater than or equal to 0")
	require.Contains(t, details, "quantity")
}

func TestDecodeMissingTotal(t *testing.T) {
	err := decode(t, `{"code":"SAVE10","quantity":1}`)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "is required", appErr.Details.(map[string]string)["orderTotal"])
}

func TestDecodeMalformedJSON(t *testing.T) {
	err := decode(t, `{"code":`)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "BAD_REQUEST", appErr.Code)

	err = decode(t, ``)
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "request body required", appErr.Message)
}
