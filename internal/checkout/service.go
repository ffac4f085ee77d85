package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/cart"
	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/lock"
	"github.com/noah-isme/backend-bookstore/internal/obs"
	"github.com/noah-isme/backend-bookstore/internal/order"
	"github.com/noah-isme/backend-bookstore/internal/tasks"
	"github.com/noah-isme/backend-bookstore/internal/voucher"
)

// Payment methods accepted at checkout.
const (
	PaymentCOD          = "COD"
	PaymentBankTransfer = "BANK_TRANSFER"
	PaymentEWallet      = "EWALLET"
)

// Querier is the transaction-bound query set used to place an order.
type Querier interface {
	voucher.UsageStore
	GetCart(ctx context.Context, userID uuid.UUID) (db.Cart, error)
	ListCartLines(ctx context.Context, userID uuid.UUID) ([]db.CartLine, error)
	ReserveBookStock(ctx context.Context, id uuid.UUID, qty int32) (int64, error)
	CreateOrder(ctx context.Context, arg db.CreateOrderParams) (db.Order, error)
	CreateOrderItem(ctx context.Context, arg db.CreateOrderItemParams) (db.OrderItem, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

// TxRunner runs fn inside a database transaction.
type TxRunner func(ctx context.Context, fn func(Querier) error) error

// Locker serialises checkouts per user.
type Locker interface {
	Key(scope, id string) string
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// VoucherClaimer takes one voucher use inside the order transaction.
type VoucherClaimer interface {
	Claim(ctx context.Context, store voucher.UsageStore, v voucher.Voucher) error
}

// Publisher hands a placed order to the worker.
type Publisher interface {
	OrderPlaced(ctx context.Context, payload tasks.OrderPlaced) error
}

// Input is the checkout request body.
type Input struct {
	RecipientName string  `json:"recipientName" validate:"required,max=120"`
	Phone         string  `json:"phone" validate:"required,min=6,max=32"`
	Address       string  `json:"address" validate:"required,max=500"`
	PaymentMethod string  `json:"paymentMethod" validate:"required,oneof=COD BANK_TRANSFER EWALLET"`
	Note          *string `json:"note" validate:"omitempty,max=500"`
	VoucherCode   *string `json:"voucherCode" validate:"omitempty,max=64"`
}

// Service places orders from carts.
type Service struct {
	Tx       TxRunner
	Pricer   cart.Pricer
	Vouchers VoucherClaimer
	Locker   Locker
	LockTTL  time.Duration
	Events   Publisher
	Logger   zerolog.Logger
}

var (
	errEmptyCart  = common.BadRequest("cart is empty", nil)
	errInProgress = common.Conflict("CHECKOUT_IN_PROGRESS", "another checkout for this account is in progress", nil)
)

// PlaceOrder converts the user's cart into a PENDING order. Stock and voucher
// usage are taken atomically in the same transaction that writes the order,
// so a failure at any step leaves the cart and inventory untouched.
func (s *Service) PlaceOrder(ctx context.Context, userID uuid.UUID, in Input) (order.View, error) {
	if s == nil || s.Tx == nil {
		return order.View{}, errors.New("checkout service not configured")
	}
	var (
		placed db.Order
		items  []db.OrderItem
	)
	place := func(ctx context.Context) error {
		return s.Tx(ctx, func(q Querier) error {
			var err error
			placed, items, err = s.place(ctx, q, userID, in)
			return err
		})
	}

	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, s.Locker.Key("checkout", userID.String()), s.LockTTL, place)
		if errors.Is(err, lock.ErrBusy) {
			return order.View{}, errInProgress
		}
	} else {
		err = place(ctx)
	}
	if err != nil {
		return order.View{}, err
	}

	obs.OrdersPlaced.WithLabelValues(placed.PaymentMethod).Inc()
	obs.OrderRevenue.Add(placed.Total.InexactFloat64())
	log := s.Logger.Info().
		Str("order_id", placed.ID.String()).
		Str("user_id", userID.String()).
		Str("total", placed.Total.StringFixed(2))
	if placed.VoucherCode != nil {
		log = log.Str("voucher", *placed.VoucherCode)
	}
	log.Msg("order placed")

	if s.Events != nil {
		payload := tasks.OrderPlaced{
			OrderID:       placed.ID,
			UserID:        userID,
			Total:         placed.Total,
			PaymentMethod: placed.PaymentMethod,
		}
		if placed.VoucherCode != nil {
			payload.VoucherCode = *placed.VoucherCode
		}
		if err := s.Events.OrderPlaced(ctx, payload); err != nil {
			s.Logger.Error().Err(err).Str("order_id", placed.ID.String()).Msg("enqueue order placed failed")
		}
	}
	return order.NewView(placed, items), nil
}

func (s *Service) place(ctx context.Context, q Querier, userID uuid.UUID, in Input) (db.Order, []db.OrderItem, error) {
	lines, err := q.ListCartLines(ctx, userID)
	if err != nil {
		return db.Order{}, nil, fmt.Errorf("list cart lines: %w", err)
	}
	if len(lines) == 0 {
		return db.Order{}, nil, errEmptyCart
	}
	code, err := s.voucherCode(ctx, q, userID, in)
	if err != nil {
		return db.Order{}, nil, err
	}
	quote, err := s.Pricer.Quote(ctx, lines, code)
	if err != nil {
		return db.Order{}, nil, fmt.Errorf("price cart: %w", err)
	}

	var applied *voucher.Voucher
	if v := quote.Validation(); v != nil {
		if !v.Result.Valid {
			return db.Order{}, nil, cart.VoucherRejected(v.Result)
		}
		applied = v.Voucher
	}

	for _, l := range lines {
		n, err := q.ReserveBookStock(ctx, l.BookID, l.Quantity)
		if err != nil {
			return db.Order{}, nil, fmt.Errorf("reserve stock: %w", err)
		}
		if n == 0 {
			return db.Order{}, nil, common.Conflict("OUT_OF_STOCK", fmt.Sprintf("%q does not have enough stock", l.Title), nil).
				WithDetails(map[string]any{"bookId": l.BookID.String(), "requested": l.Quantity})
		}
	}

	params := db.CreateOrderParams{
		UserID:           userID,
		Subtotal:         quote.Summary.Subtotal,
		Discount:         quote.Summary.Discount,
		ShippingFee:      quote.Summary.ShippingFee,
		ShippingDiscount: quote.Summary.ShippingDiscount,
		Total:            quote.Summary.Total,
		RecipientName:    strings.TrimSpace(in.RecipientName),
		Phone:            strings.TrimSpace(in.Phone),
		Address:          strings.TrimSpace(in.Address),
		PaymentMethod:    in.PaymentMethod,
		Note:             trimmed(in.Note),
	}
	if applied != nil {
		if err := s.Vouchers.Claim(ctx, q, *applied); err != nil {
			if errors.Is(err, voucher.ErrUsageLimitReached) {
				return db.Order{}, nil, common.NewAppError(voucher.CodeUsageLimit, "voucher usage limit reached", http.StatusUnprocessableEntity, err)
			}
			return db.Order{}, nil, err
		}
		params.VoucherID = uuid.NullUUID{UUID: applied.ID, Valid: true}
		params.VoucherCode = &applied.Code
	}

	created, err := q.CreateOrder(ctx, params)
	if err != nil {
		return db.Order{}, nil, fmt.Errorf("create order: %w", err)
	}
	items := make([]db.OrderItem, 0, len(lines))
	for _, l := range lines {
		it, err := q.CreateOrderItem(ctx, db.CreateOrderItemParams{
			OrderID:   created.ID,
			BookID:    l.BookID,
			Title:     l.Title,
			Category:  l.Category,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			LineTotal: l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)).Round(2),
		})
		if err != nil {
			return db.Order{}, nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, it)
	}
	if err := q.ClearCart(ctx, userID); err != nil {
		return db.Order{}, nil, fmt.Errorf("clear cart: %w", err)
	}
	return created, items, nil
}

// voucherCode prefers the code in the request over the one on the cart.
func (s *Service) voucherCode(ctx context.Context, q Querier, userID uuid.UUID, in Input) (string, error) {
	if in.VoucherCode != nil {
		if code := strings.TrimSpace(*in.VoucherCode); code != "" {
			return code, nil
		}
	}
	c, err := q.GetCart(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("load cart: %w", err)
	}
	if c.VoucherCode == nil {
		return "", nil
	}
	return *c.VoucherCode, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
