package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/voucher"
)

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 99

// Querier captures the cart queries the service needs.
type Querier interface {
	GetBook(ctx context.Context, id uuid.UUID) (db.Book, error)
	GetCart(ctx context.Context, userID uuid.UUID) (db.Cart, error)
	SetCartVoucher(ctx context.Context, userID uuid.UUID, code *string) error
	ListCartLines(ctx context.Context, userID uuid.UUID) ([]db.CartLine, error)
	GetCartItemQuantity(ctx context.Context, userID, bookID uuid.UUID) (int32, error)
	UpsertCartItem(ctx context.Context, userID, bookID uuid.UUID, qty int32) error
	DeleteCartItem(ctx context.Context, userID, bookID uuid.UUID) (int64, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

// Service encapsulates cart domain operations.
type Service struct {
	Q      Querier
	Pricer Pricer
	Logger zerolog.Logger
}

// VoucherRejected converts a business rejection into a 422 carrying the
// rejection code.
func VoucherRejected(res voucher.EvaluationResult) error {
	return common.NewAppError(res.Code, res.Reason, http.StatusUnprocessableEntity, nil)
}

// Get prices the user's cart, re-evaluating any applied voucher.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (Quote, error) {
	lines, err := s.Q.ListCartLines(ctx, userID)
	if err != nil {
		return Quote{}, fmt.Errorf("list cart lines: %w", err)
	}
	code, err := s.voucherCode(ctx, userID)
	if err != nil {
		return Quote{}, err
	}
	q, err := s.Pricer.Quote(ctx, lines, code)
	if err != nil {
		return Quote{}, fmt.Errorf("price cart: %w", err)
	}
	return q, nil
}

func (s *Service) voucherCode(ctx context.Context, userID uuid.UUID) (string, error) {
	c, err := s.Q.GetCart(ctx, userID)
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

// AddItem adds qty copies of a book, merging with an existing line.
func (s *Service) AddItem(ctx context.Context, userID, bookID uuid.UUID, qty int) (Quote, error) {
	if qty <= 0 {
		return Quote{}, common.BadRequest("quantity must be positive", nil)
	}
	current, err := s.Q.GetCartItemQuantity(ctx, userID, bookID)
	if err != nil {
		return Quote{}, fmt.Errorf("load cart item: %w", err)
	}
	if err := s.setQuantity(ctx, userID, bookID, int(current)+qty); err != nil {
		return Quote{}, err
	}
	return s.Get(ctx, userID)
}

// SetQuantity sets a line's absolute quantity. Zero removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, bookID uuid.UUID, qty int) (Quote, error) {
	if qty < 0 {
		return Quote{}, common.BadRequest("quantity must not be negative", nil)
	}
	if qty == 0 {
		return s.RemoveItem(ctx, userID, bookID)
	}
	current, err := s.Q.GetCartItemQuantity(ctx, userID, bookID)
	if err != nil {
		return Quote{}, fmt.Errorf("load cart item: %w", err)
	}
	if current == 0 {
		return Quote{}, common.NotFound("book is not in the cart")
	}
	if err := s.setQuantity(ctx, userID, bookID, qty); err != nil {
		return Quote{}, err
	}
	return s.Get(ctx, userID)
}

func (s *Service) setQuantity(ctx context.Context, userID, bookID uuid.UUID, qty int) error {
	if qty > MaxLineQuantity {
		return common.BadRequest(fmt.Sprintf("at most %d copies per book", MaxLineQuantity), nil)
	}
	book, err := s.Q.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return common.NotFound("book not found")
		}
		return fmt.Errorf("load book: %w", err)
	}
	if int(book.Stock) < qty {
		return common.Conflict("INSUFFICIENT_STOCK", fmt.Sprintf("only %d copies of %q in stock", book.Stock, book.Title), nil)
	}
	if err := s.Q.UpsertCartItem(ctx, userID, bookID, int32(qty)); err != nil {
		return fmt.Errorf("save cart item: %w", err)
	}
	return nil
}

// RemoveItem drops a book from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, bookID uuid.UUID) (Quote, error) {
	n, err := s.Q.DeleteCartItem(ctx, userID, bookID)
	if err != nil {
		return Quote{}, fmt.Errorf("delete cart item: %w", err)
	}
	if n == 0 {
		return Quote{}, common.NotFound("book is not in the cart")
	}
	return s.Get(ctx, userID)
}

// Clear empties the cart and detaches its voucher.
func (s *Service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.Q.ClearCart(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// ApplyVoucher validates code against the current cart and attaches it.
// Rejections are returned as 422 errors carrying the rejection code.
func (s *Service) ApplyVoucher(ctx context.Context, userID uuid.UUID, code string) (Quote, error) {
	normalized := voucher.NormalizeCode(code)
	if normalized == "" {
		return Quote{}, common.BadRequest("code is required", nil)
	}
	lines, err := s.Q.ListCartLines(ctx, userID)
	if err != nil {
		return Quote{}, fmt.Errorf("list cart lines: %w", err)
	}
	if len(lines) == 0 {
		return Quote{}, common.BadRequest("cart is empty", nil)
	}
	q, err := s.Pricer.Quote(ctx, lines, normalized)
	if err != nil {
		return Quote{}, fmt.Errorf("price cart: %w", err)
	}
	if v := q.Validation(); v != nil && !v.Result.Valid {
		return Quote{}, VoucherRejected(v.Result)
	}
	if err := s.Q.SetCartVoucher(ctx, userID, &normalized); err != nil {
		return Quote{}, fmt.Errorf("save cart voucher: %w", err)
	}
	return q, nil
}

// RemoveVoucher detaches any voucher from the cart.
func (s *Service) RemoveVoucher(ctx context.Context, userID uuid.UUID) (Quote, error) {
	if err := s.Q.SetCartVoucher(ctx, userID, nil); err != nil {
		return Quote{}, fmt.Errorf("clear cart voucher: %w", err)
	}
	return s.Get(ctx, userID)
}
