package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bookstore/internal/cart"
	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/lock"
	"github.com/noah-isme/backend-bookstore/internal/order"
	"github.com/noah-isme/backend-bookstore/internal/pricing"
	"github.com/noah-isme/backend-bookstore/internal/tasks"
	"github.com/noah-isme/backend-bookstore/internal/voucher"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// memStore is a transactional in-memory backing store; rollback restores the
// snapshot taken when the transaction began.
type memStore struct {
	books    map[uuid.UUID]db.Book
	cart     map[uuid.UUID]int32
	cartCode *string
	used     map[uuid.UUID]int32
	limits   map[uuid.UUID]int32
	orders   []db.Order
	items    []db.OrderItem
}

func (m *memStore) snapshot() memStore {
	c := *m
	c.books = maps.Clone(m.books)
	c.cart = maps.Clone(m.cart)
	c.used = maps.Clone(m.used)
	c.orders = append([]db.Order(nil), m.orders...)
	c.items = append([]db.OrderItem(nil), m.items...)
	return c
}

func (m *memStore) runTx(ctx context.Context, fn func(Querier) error) error {
	saved := m.snapshot()
	if err := fn(m); err != nil {
		*m = saved
		return err
	}
	return nil
}

func (m *memStore) GetCart(_ context.Context, userID uuid.UUID) (db.Cart, error) {
	return db.Cart{UserID: userID, VoucherCode: m.cartCode}, nil
}

func (m *memStore) ListCartLines(context.Context, uuid.UUID) ([]db.CartLine, error) {
	lines := []db.CartLine{}
	for id, qty := range m.cart {
		b := m.books[id]
		lines = append(lines, db.CartLine{BookID: id, Title: b.Title, Category: b.Category, UnitPrice: b.Price, Quantity: qty, Stock: b.Stock})
	}
	return lines, nil
}

func (m *memStore) ReserveBookStock(_ context.Context, id uuid.UUID, qty int32) (int64, error) {
	b, ok := m.books[id]
	if !ok || b.Stock < qty {
		return 0, nil
	}
	b.Stock -= qty
	m.books[id] = b
	return 1, nil
}

func (m *memStore) CreateOrder(_ context.Context, arg db.CreateOrderParams) (db.Order, error) {
	o := db.Order{
		ID: uuid.New(), UserID: arg.UserID, Status: order.StatusPending,
		Subtotal: arg.Subtotal, Discount: arg.Discount, ShippingFee: arg.ShippingFee,
		ShippingDiscount: arg.ShippingDiscount, Total: arg.Total, VoucherID: arg.VoucherID,
		VoucherCode: arg.VoucherCode, RecipientName: arg.RecipientName, Phone: arg.Phone,
		Address: arg.Address, PaymentMethod: arg.PaymentMethod, Note: arg.Note, CreatedAt: testNow,
	}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *memStore) CreateOrderItem(_ context.Context, arg db.CreateOrderItemParams) (db.OrderItem, error) {
	it := db.OrderItem{
		ID: uuid.New(), OrderID: arg.OrderID, BookID: arg.BookID, Title: arg.Title, Category: arg.Category,
		UnitPrice: arg.UnitPrice, Quantity: arg.Quantity, LineTotal: arg.LineTotal,
	}
	m.items = append(m.items, it)
	return it, nil
}

func (m *memStore) ClearCart(context.Context, uuid.UUID) error {
	m.cart = map[uuid.UUID]int32{}
	m.cartCode = nil
	return nil
}

func (m *memStore) ClaimVoucherUsage(_ context.Context, id uuid.UUID) (int64, error) {
	if limit, ok := m.limits[id]; ok && m.used[id] >= limit {
		return 0, nil
	}
	m.used[id]++
	return 1, nil
}

func (m *memStore) ReleaseVoucherUsage(_ context.Context, id uuid.UUID) error {
	m.used[id]--
	return nil
}

// voucherRows serves GetActiveVoucherByCode; other Querier methods are unused.
type voucherRows struct {
	voucher.Querier
	rows map[string]db.Voucher
}

func (v voucherRows) GetActiveVoucherByCode(_ context.Context, code string) (db.Voucher, error) {
	row, ok := v.rows[code]
	if !ok {
		return db.Voucher{}, db.ErrNotFound
	}
	return row, nil
}

type recordingPublisher struct{ placed []tasks.OrderPlaced }

func (p *recordingPublisher) OrderPlaced(_ context.Context, payload tasks.OrderPlaced) error {
	p.placed = append(p.placed, payload)
	return nil
}

type fixture struct {
	svc    *Service
	store  *memStore
	events *recordingPublisher
	user   uuid.UUID
	dune   uuid.UUID
	poems  uuid.UUID
	vouchs map[string]db.Voucher
	mr     *miniredis.Miniredis
	locker lock.Locker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dune, poems := uuid.New(), uuid.New()
	store := &memStore{
		books: map[uuid.UUID]db.Book{
			dune:  {ID: dune, Title: "Dune", Category: "Fiction", Price: decimal.RequireFromString("10.00"), Stock: 5},
			poems: {ID: poems, Title: "Poems", Category: "Poetry", Price: decimal.RequireFromString("5.00"), Stock: 1},
		},
		cart:   map[uuid.UUID]int32{dune: 2, poems: 1},
		used:   map[uuid.UUID]int32{},
		limits: map[uuid.UUID]int32{},
	}
	rows := map[string]db.Voucher{}
	addVoucher := func(code, typ, value string, limit *int32) {
		row := db.Voucher{
			ID: uuid.New(), Code: code, Name: code, Type: typ, Value: decimal.RequireFromString(value),
			UsageLimit: limit, ValidFrom: testNow.Add(-time.Hour), ValidTo: testNow.Add(time.Hour), IsActive: true,
		}
		rows[code] = row
		if limit != nil {
			store.limits[row.ID] = *limit
		}
	}
	one := int32(1)
	addVoucher("SAVE10", "PERCENTAGE", "10", nil)
	addVoucher("SHIPFREE", "FREE_SHIP", "5", nil)
	addVoucher("LASTONE", "FIXED_AMOUNT", "3", &one)
	future := rows["SAVE10"]
	future.Code, future.ID, future.ValidFrom = "LATER", uuid.New(), testNow.Add(time.Hour)
	future.ValidTo = testNow.Add(2 * time.Hour)
	rows["LATER"] = future

	vouchers := &voucher.Service{Q: voucherRows{rows: rows}, Now: func() time.Time { return testNow }, Logger: zerolog.Nop()}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, Wait: 20 * time.Millisecond}

	events := &recordingPublisher{}
	svc := &Service{
		Tx:       store.runTx,
		Pricer:   cart.Pricer{Vouchers: vouchers, Shipping: pricing.ShippingPolicy{BaseFee: decimal.RequireFromString("5.00")}},
		Vouchers: vouchers,
		Locker:   locker,
		LockTTL:  time.Minute,
		Events:   events,
		Logger:   zerolog.Nop(),
	}
	return &fixture{svc: svc, store: store, events: events, user: uuid.New(), dune: dune, poems: poems, vouchs: rows, mr: mr, locker: locker}
}

func validInput() Input {
	return Input{RecipientName: " Ana ", Phone: "0812345678", Address: "Jl. Merdeka 1", PaymentMethod: PaymentCOD}
}

func errCode(t *testing.T, err error) (string, int) {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code, appErr.HTTPStatus
}

func TestPlaceOrderWithoutVoucher(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.PlaceOrder(context.Background(), f.user, validInput())
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, v.Status)
	require.Equal(t, "25", v.Subtotal.String())
	require.Equal(t, "30", v.Total.String())
	require.Equal(t, "Ana", v.RecipientName)
	require.Len(t, v.Items, 2)

	require.Equal(t, int32(3), f.store.books[f.dune].Stock)
	require.Equal(t, int32(0), f.store.books[f.poems].Stock)
	require.Empty(t, f.store.cart)
	require.Len(t, f.events.placed, 1)
	require.Equal(t, v.ID, f.events.placed[0].OrderID.String())
	require.False(t, f.mr.Exists(f.locker.Key("checkout", f.user.String())))
}

func TestPlaceOrderAppliesBodyVoucherAndClaimsUse(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	code := " save10 "
	in.VoucherCode = &code

	v, err := f.svc.PlaceOrder(context.Background(), f.user, in)
	require.NoError(t, err)
	require.Equal(t, "2.5", v.Discount.String())
	require.Equal(t, "27.5", v.Total.String())
	require.Equal(t, "SAVE10", *v.VoucherCode)
	require.Equal(t, int32(1), f.store.used[f.vouchs["SAVE10"].ID])
	require.Equal(t, "SAVE10", f.events.placed[0].VoucherCode)
}

func TestPlaceOrderUsesCartVoucherForShipping(t *testing.T) {
	f := newFixture(t)
	code := "SHIPFREE"
	f.store.cartCode = &code

	v, err := f.svc.PlaceOrder(context.Background(), f.user, validInput())
	require.NoError(t, err)
	require.True(t, v.Discount.IsZero())
	require.Equal(t, "5", v.ShippingDiscount.String())
	require.Equal(t, "25", v.Total.String())
}

func TestPlaceOrderRejectionsRollBack(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	code := "LATER"
	in.VoucherCode = &code

	_, err := f.svc.PlaceOrder(context.Background(), f.user, in)
	c, status := errCode(t, err)
	require.Equal(t, voucher.CodeNotActive, c)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	code = "NOPE"
	_, err = f.svc.PlaceOrder(context.Background(), f.user, in)
	c, _ = errCode(t, err)
	require.Equal(t, voucher.CodeNotFound, c)

	require.Len(t, f.store.cart, 2)
	require.Equal(t, int32(5), f.store.books[f.dune].Stock)
	require.Empty(t, f.store.orders)
	require.Empty(t, f.events.placed)
}

func TestPlaceOrderOutOfStockRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.cart[f.poems] = 2

	_, err := f.svc.PlaceOrder(context.Background(), f.user, validInput())
	c, status := errCode(t, err)
	require.Equal(t, "OUT_OF_STOCK", c)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, int32(5), f.store.books[f.dune].Stock)
	require.Len(t, f.store.cart, 2)
}

func TestPlaceOrderUsageLimitRace(t *testing.T) {
	f := newFixture(t)
	in := validInput()
	code := "LASTONE"
	in.VoucherCode = &code
	// The cached evaluation still sees a free use; the atomic claim does not.
	f.store.used[f.vouchs["LASTONE"].ID] = 1

	_, err := f.svc.PlaceOrder(context.Background(), f.user, in)
	c, status := errCode(t, err)
	require.Equal(t, voucher.CodeUsageLimit, c)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, int32(5), f.store.books[f.dune].Stock)
	require.Empty(t, f.store.orders)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture(t)
	f.store.cart = map[uuid.UUID]int32{}

	_, err := f.svc.PlaceOrder(context.Background(), f.user, validInput())
	c, status := errCode(t, err)
	require.Equal(t, "BAD_REQUEST", c)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestPlaceOrderWhileLocked(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mr.Set(f.locker.Key("checkout", f.user.String()), "other-request"))

	_, err := f.svc.PlaceOrder(context.Background(), f.user, validInput())
	c, status := errCode(t, err)
	require.Equal(t, "CHECKOUT_IN_PROGRESS", c)
	require.Equal(t, http.StatusConflict, status)
	require.Len(t, f.store.cart, 2)
}

func TestCheckoutHandler(t *testing.T) {
	f := newFixture(t)
	h := &Handler{Svc: f.svc}

	post := func(body string, authed bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(body))
		if authed {
			req = req.WithContext(common.WithUserID(req.Context(), f.user.String()))
		}
		rec := httptest.NewRecorder()
		h.Checkout(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, post(`{}`, false).Code)

	rec := post(`{"recipientName":"Ana","phone":"0812345678","address":"x","paymentMethod":"CASH"}`, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "paymentMethod")

	rec = post(`{"recipientName":"Ana","phone":"0812345678","address":"Jl. Merdeka 1","paymentMethod":"EWALLET"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		Data order.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "EWALLET", body.Data.PaymentMethod)
	require.True(t, body.Data.Total.Equal(decimal.NewFromInt(30)))
}
