package db

import (
	"context"

	"github.com/google/uuid"
)

const listWishlist = `SELECT b.id, b.title, b.author, b.category, b.price, b.stock, b.image_url, w.created_at
FROM wishlist_items w
JOIN books b ON b.id = w.book_id
WHERE w.user_id = $1
ORDER BY w.created_at DESC, b.id`

func (q *Queries) ListWishlist(ctx context.Context, userID uuid.UUID) ([]WishlistEntry, error) {
	rows, err := q.db.Query(ctx, listWishlist, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []WishlistEntry{}
	for rows.Next() {
		var e WishlistEntry
		if err := rows.Scan(&e.BookID, &e.Title, &e.Author, &e.Category, &e.Price, &e.Stock, &e.ImageURL,
			&e.AddedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const addWishlistItem = `INSERT INTO wishlist_items (user_id, book_id) VALUES ($1, $2)
ON CONFLICT (user_id, book_id) DO NOTHING`

// AddWishlistItem reports whether a new row was inserted.
func (q *Queries) AddWishlistItem(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, addWishlistItem, userID, bookID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const removeWishlistItem = `DELETE FROM wishlist_items WHERE user_id = $1 AND book_id = $2`

// RemoveWishlistItem reports whether a row was deleted.
func (q *Queries) RemoveWishlistItem(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, removeWishlistItem, userID, bookID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const wishlistContains = `SELECT EXISTS (SELECT 1 FROM wishlist_items WHERE user_id = $1 AND book_id = $2)`

func (q *Queries) WishlistContains(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, wishlistContains, userID, bookID).Scan(&ok)
	return ok, err
}
