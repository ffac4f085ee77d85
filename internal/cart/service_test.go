package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/pricing"
	"github.com/noah-isme/backend-bookstore/internal/voucher"
)

type memQueries struct {
	books   map[uuid.UUID]db.Book
	items   map[uuid.UUID]map[uuid.UUID]int32
	added   map[uuid.UUID]time.Time
	voucher map[uuid.UUID]*string
}

func newMemQueries(books ...db.Book) *memQueries {
	q := &memQueries{
		books:   map[uuid.UUID]db.Book{},
		items:   map[uuid.UUID]map[uuid.UUID]int32{},
		added:   map[uuid.UUID]time.Time{},
		voucher: map[uuid.UUID]*string{},
	}
	for _, b := range books {
		q.books[b.ID] = b
	}
	return q
}

func (m *memQueries) GetBook(_ context.Context, id uuid.UUID) (db.Book, error) {
	b, ok := m.books[id]
	if !ok {
		return db.Book{}, db.ErrNotFound
	}
	return b, nil
}

func (m *memQueries) GetCart(_ context.Context, userID uuid.UUID) (db.Cart, error) {
	code, ok := m.voucher[userID]
	if !ok {
		return db.Cart{}, db.ErrNotFound
	}
	return db.Cart{UserID: userID, VoucherCode: code}, nil
}

func (m *memQueries) SetCartVoucher(_ context.Context, userID uuid.UUID, code *string) error {
	m.voucher[userID] = code
	return nil
}

func (m *memQueries) ListCartLines(_ context.Context, userID uuid.UUID) ([]db.CartLine, error) {
	lines := []db.CartLine{}
	for bookID, qty := range m.items[userID] {
		b := m.books[bookID]
		lines = append(lines, db.CartLine{
			BookID: b.ID, Title: b.Title, Category: b.Category, UnitPrice: b.Price,
			Quantity: qty, Stock: b.Stock, AddedAt: m.added[bookID],
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].AddedAt.Before(lines[j].AddedAt) })
	return lines, nil
}

func (m *memQueries) GetCartItemQuantity(_ context.Context, userID, bookID uuid.UUID) (int32, error) {
	return m.items[userID][bookID], nil
}

func (m *memQueries) UpsertCartItem(_ context.Context, userID, bookID uuid.UUID, qty int32) error {
	if m.items[userID] == nil {
		m.items[userID] = map[uuid.UUID]int32{}
	}
	if _, ok := m.added[bookID]; !ok {
		m.added[bookID] = time.Now().Add(time.Duration(len(m.added)) * time.Second)
	}
	m.items[userID][bookID] = qty
	return nil
}

func (m *memQueries) DeleteCartItem(_ context.Context, userID, bookID uuid.UUID) (int64, error) {
	if _, ok := m.items[userID][bookID]; !ok {
		return 0, nil
	}
	delete(m.items[userID], bookID)
	return 1, nil
}

func (m *memQueries) ClearCart(_ context.Context, userID uuid.UUID) error {
	delete(m.items, userID)
	m.voucher[userID] = nil
	return nil
}

// fixedVouchers evaluates with the real engine over an in-memory catalogue.
type fixedVouchers map[string]voucher.Voucher

func (f fixedVouchers) Validate(_ context.Context, code string, snap voucher.CartSnapshot) (voucher.Validation, error) {
	v, ok := f[voucher.NormalizeCode(code)]
	if !ok {
		return voucher.Validation{Result: voucher.Reject(voucher.CodeNotFound, "voucher not found")}, nil
	}
	res, err := voucher.Evaluate(v, snap, time.Now())
	if err != nil {
		return voucher.Validation{}, err
	}
	return voucher.Validation{Result: res, Voucher: &v}, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func book(title, category, price string, stock int32) db.Book {
	return db.Book{ID: uuid.New(), Title: title, Category: category, Price: d(price), Stock: stock}
}

func testVouchers() fixedVouchers {
	window := func(v voucher.Voucher) voucher.Voucher {
		v.ID = uuid.New()
		v.Name = v.Code + " promo"
		v.IsActive = true
		v.ValidFrom = time.Now().Add(-time.Hour)
		v.ValidTo = time.Now().Add(time.Hour)
		return v
	}
	minQty := 3
	return fixedVouchers{
		"TENOFF":   window(voucher.Voucher{Code: "TENOFF", Type: voucher.TypePercentage, Value: d("10")}),
		"SHIPFREE": window(voucher.Voucher{Code: "SHIPFREE", Type: voucher.TypeFreeShip, Value: d("5")}),
		"BULK":     window(voucher.Voucher{Code: "BULK", Type: voucher.TypeFixedAmount, Value: d("4"), MinQuantity: &minQty}),
	}
}

func newTestService(books ...db.Book) (*Service, *memQueries) {
	q := newMemQueries(books...)
	return &Service{
		Q: q,
		Pricer: Pricer{
			Vouchers: testVouchers(),
			Shipping: pricing.ShippingPolicy{BaseFee: d("5"), FreeThreshold: d("50")},
		},
		Logger: zerolog.Nop(),
	}, q
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, d(want).Equal(got), "want %s got %s", want, got)
}

func appCode(t *testing.T, err error) (string, int) {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code, appErr.HTTPStatus
}

func TestAddItemMergesAndPrices(t *testing.T) {
	dune := book("Dune", "Fiction", "9.99", 10)
	svc, _ := newTestService(dune)
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.AddItem(ctx, user, dune.ID, 1)
	require.NoError(t, err)
	q, err := svc.AddItem(ctx, user, dune.ID, 2)
	require.NoError(t, err)

	require.Len(t, q.Items, 1)
	require.Equal(t, 3, q.Items[0].Quantity)
	requireAmount(t, "29.97", q.Items[0].LineTotal)
	requireAmount(t, "29.97", q.Summary.Subtotal)
	requireAmount(t, "5.00", q.Summary.ShippingFee)
	requireAmount(t, "34.97", q.Summary.Total)
	require.Nil(t, q.Voucher)
}

func TestAddItemRespectsStock(t *testing.T) {
	rare := book("Rare", "History", "120", 1)
	svc, _ := newTestService(rare)
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.AddItem(ctx, user, rare.ID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, user, rare.ID, 1)
	code, status := appCode(t, err)
	require.Equal(t, "INSUFFICIENT_STOCK", code)
	require.Equal(t, http.StatusConflict, status)

	_, err = svc.AddItem(ctx, user, uuid.New(), 1)
	code, _ = appCode(t, err)
	require.Equal(t, "NOT_FOUND", code)
}

func TestSetQuantityZeroRemoves(t *testing.T) {
	dune := book("Dune", "Fiction", "9.99", 10)
	svc, _ := newTestService(dune)
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.AddItem(ctx, user, dune.ID, 2)
	require.NoError(t, err)
	q, err := svc.SetQuantity(ctx, user, dune.ID, 0)
	require.NoError(t, err)
	require.Empty(t, q.Items)
	requireAmount(t, "0", q.Summary.Total)

	_, err = svc.SetQuantity(ctx, user, dune.ID, 1)
	code, _ := appCode(t, err)
	require.Equal(t, "NOT_FOUND", code)
}

func TestApplyVoucher(t *testing.T) {
	dune := book("Dune", "Fiction", "20", 10)
	svc, mem := newTestService(dune)
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.ApplyVoucher(ctx, user, "TENOFF")
	code, _ := appCode(t, err)
	require.Equal(t, "BAD_REQUEST", code, "empty cart")

	_, err = svc.AddItem(ctx, user, dune.ID, 2)
	require.NoError(t, err)

	_, err = svc.ApplyVoucher(ctx, user, "BULK")
	code, status := appCode(t, err)
	require.Equal(t, voucher.CodeMinQuantity, code)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Nil(t, mem.voucher[user])

	_, err = svc.ApplyVoucher(ctx, user, "nothing")
	code, _ = appCode(t, err)
	require.Equal(t, voucher.CodeNotFound, code)

	q, err := svc.ApplyVoucher(ctx, user, "tenoff")
	require.NoError(t, err)
	require.Equal(t, "TENOFF", *mem.voucher[user])
	require.True(t, q.Voucher.Valid)
	requireAmount(t, "4.00", q.Summary.Discount)
	requireAmount(t, "41.00", q.Summary.Total)
}

func TestFreeShipVoucherReducesShipping(t *testing.T) {
	dune := book("Dune", "Fiction", "12", 10)
	svc, _ := newTestService(dune)
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.AddItem(ctx, user, dune.ID, 1)
	require.NoError(t, err)
	q, err := svc.ApplyVoucher(ctx, user, "SHIPFREE")
	require.NoError(t, err)
	requireAmount(t, "0", q.Summary.Discount)
	requireAmount(t, "5.00", q.Summary.ShippingDiscount)
	requireAmount(t, "12.00", q.Summary.Total)
}

func TestStaleVoucherStaysAttachedWithoutDiscount(t *testing.T) {
	dune := book("Dune", "Fiction", "10", 10)
	svc, _ := newTestService(dune)
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.AddItem(ctx, user, dune.ID, 3)
	require.NoError(t, err)
	_, err = svc.ApplyVoucher(ctx, user, "BULK")
	require.NoError(t, err)

	q, err := svc.SetQuantity(ctx, user, dune.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, q.Voucher)
	require.False(t, q.Voucher.Valid)
	require.Equal(t, voucher.CodeMinQuantity, q.Voucher.ErrorCode)
	requireAmount(t, "0", q.Summary.Discount)

	q, err = svc.RemoveVoucher(ctx, user)
	require.NoError(t, err)
	require.Nil(t, q.Voucher)
}

func TestHandlerRequiresUser(t *testing.T) {
	svc, _ := newTestService()
	h := &Handler{Svc: svc}
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerAddItem(t *testing.T) {
	dune := book("Dune", "Fiction", "9.99", 10)
	svc, _ := newTestService(dune)
	h := &Handler{Svc: svc}
	user := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"bookId":"`+dune.ID.String()+`"}`))
	req = req.WithContext(common.WithUserID(req.Context(), user.String()))
	rec := httptest.NewRecorder()
	h.AddItem(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Items, 1)
	require.Equal(t, 1, body.Data.Items[0].Quantity)
	require.Equal(t, 1, body.Data.Summary.ItemCount)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"bookId":"nope"}`))
	req = req.WithContext(common.WithUserID(req.Context(), user.String()))
	rec = httptest.NewRecorder()
	h.AddItem(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
