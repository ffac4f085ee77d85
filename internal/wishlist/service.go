package wishlist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
)

// Querier captures the wishlist queries.
type Querier interface {
	ListWishlist(ctx context.Context, userID uuid.UUID) ([]db.WishlistEntry, error)
	AddWishlistItem(ctx context.Context, userID, bookID uuid.UUID) (bool, error)
	RemoveWishlistItem(ctx context.Context, userID, bookID uuid.UUID) (bool, error)
	WishlistContains(ctx context.Context, userID, bookID uuid.UUID) (bool, error)
}

// Service manages a customer's saved books.
type Service struct {
	Q Querier
}

// Entry is a saved book.
type Entry struct {
	BookID   string          `json:"bookId"`
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	InStock  bool            `json:"inStock"`
	ImageURL *string         `json:"imageUrl,omitempty"`
	AddedAt  time.Time       `json:"addedAt"`
}

// List returns the user's wishlist, most recently added first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Entry, error) {
	rows, err := s.Q.ListWishlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{
			BookID:   r.BookID.String(),
			Title:    r.Title,
			Author:   r.Author,
			Category: r.Category,
			Price:    r.Price,
			InStock:  r.Stock > 0,
			ImageURL: r.ImageURL,
			AddedAt:  r.AddedAt,
		})
	}
	return out, nil
}

// Toggle removes the book when saved and saves it otherwise. It reports
// whether the book is saved afterwards.
func (s *Service) Toggle(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	removed, err := s.Q.RemoveWishlistItem(ctx, userID, bookID)
	if err != nil {
		return false, fmt.Errorf("remove wishlist item: %w", err)
	}
	if removed {
		return false, nil
	}
	if err := s.add(ctx, userID, bookID); err != nil {
		return false, err
	}
	return true, nil
}

// Contains reports whether the book is saved.
func (s *Service) Contains(ctx context.Context, userID, bookID uuid.UUID) (bool, error) {
	ok, err := s.Q.WishlistContains(ctx, userID, bookID)
	if err != nil {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	return ok, nil
}

// Remove deletes the book from the wishlist. Removing an unsaved book is a
// no-op.
func (s *Service) Remove(ctx context.Context, userID, bookID uuid.UUID) error {
	if _, err := s.Q.RemoveWishlistItem(ctx, userID, bookID); err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}
	return nil
}

func (s *Service) add(ctx context.Context, userID, bookID uuid.UUID) error {
	if _, err := s.Q.AddWishlistItem(ctx, userID, bookID); err != nil {
		if db.IsForeignKeyViolation(err) {
			return common.NotFound("book not found")
		}
		return fmt.Errorf("add wishlist item: %w", err)
	}
	return nil
}
