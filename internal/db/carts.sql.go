package db

import (
	"context"

	"github.com/google/uuid"
)

const getCart = `SELECT user_id, voucher_code, updated_at FROM carts WHERE user_id = $1`

// GetCart returns ErrNotFound when the user has never touched a cart.
func (q *Queries) GetCart(ctx context.Context, userID uuid.UUID) (Cart, error) {
	var c Cart
	err := q.db.QueryRow(ctx, getCart, userID).Scan(&c.UserID, &c.VoucherCode, &c.UpdatedAt)
	return c, notFound(err)
}

const setCartVoucher = `INSERT INTO carts (user_id, voucher_code, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET voucher_code = EXCLUDED.voucher_code, updated_at = now()`

// SetCartVoucher stores (or clears, with nil) the code applied to the cart.
func (q *Queries) SetCartVoucher(ctx context.Context, userID uuid.UUID, code *string) error {
	_, err := q.db.Exec(ctx, setCartVoucher, userID, code)
	return err
}

const listCartLines = `SELECT b.id, b.title, b.author, b.category, b.image_url, b.price, ci.quantity, b.stock, ci.created_at
FROM cart_items ci
JOIN books b ON b.id = ci.book_id
WHERE ci.user_id = $1
ORDER BY ci.created_at, b.id`

func (q *Queries) ListCartLines(ctx context.Context, userID uuid.UUID) ([]CartLine, error) {
	rows, err := q.db.Query(ctx, listCartLines, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []CartLine{}
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.BookID, &l.Title, &l.Author, &l.Category, &l.ImageURL, &l.UnitPrice,
			&l.Quantity, &l.Stock, &l.AddedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

const getCartItemQuantity = `SELECT quantity FROM cart_items WHERE user_id = $1 AND book_id = $2`

// GetCartItemQuantity returns 0 when the book is not in the cart.
func (q *Queries) GetCartItemQuantity(ctx context.Context, userID, bookID uuid.UUID) (int32, error) {
	var qty int32
	err := q.db.QueryRow(ctx, getCartItemQuantity, userID, bookID).Scan(&qty)
	if err = notFound(err); err == ErrNotFound {
		return 0, nil
	}
	return qty, err
}

const upsertCartItem = `INSERT INTO cart_items (user_id, book_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, book_id) DO UPDATE SET quantity = EXCLUDED.quantity`

// UpsertCartItem sets the absolute quantity for a book in the cart.
func (q *Queries) UpsertCartItem(ctx context.Context, userID, bookID uuid.UUID, qty int32) error {
	_, err := q.db.Exec(ctx, upsertCartItem, userID, bookID, qty)
	return err
}

const deleteCartItem = `DELETE FROM cart_items WHERE user_id = $1 AND book_id = $2`

func (q *Queries) DeleteCartItem(ctx context.Context, userID, bookID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteCartItem, userID, bookID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const clearCartItems = `DELETE FROM cart_items WHERE user_id = $1`

// ClearCart removes every line and the applied voucher.
func (q *Queries) ClearCart(ctx context.Context, userID uuid.UUID) error {
	if _, err := q.db.Exec(ctx, clearCartItems, userID); err != nil {
		return err
	}
	return q.SetCartVoucher(ctx, userID, nil)
}
