package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const bookColumns = `id, title, author, description, category, price, stock, image_url, published_year, created_at, updated_at`

func scanBook(row interface{ Scan(...any) error }) (Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.Category, &b.Price, &b.Stock,
		&b.ImageURL, &b.PublishedYear, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// BookFilter narrows book listings. Empty fields do not filter.
type BookFilter struct {
	Query    string
	Category string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	InStock  bool
}

const bookWhere = `
WHERE ($1::text = '' OR lower(title) LIKE '%' || lower($1) || '%' OR lower(author) LIKE '%' || lower($1) || '%')
  AND ($2::text = '' OR category = $2)
  AND ($3::numeric IS NULL OR price >= $3)
  AND ($4::numeric IS NULL OR price <= $4)
  AND (NOT $5::bool OR stock > 0)`

const listBooks = `SELECT ` + bookColumns + ` FROM books` + bookWhere + `
ORDER BY
  CASE WHEN $6 = 'price_asc' THEN price END ASC,
  CASE WHEN $6 = 'price_desc' THEN price END DESC,
  CASE WHEN $6 = 'title' THEN lower(title) END ASC,
  created_at DESC, id
LIMIT $7 OFFSET $8`

type ListBooksParams struct {
	BookFilter
	Sort   string
	Limit  int32
	Offset int32
}

func (q *Queries) ListBooks(ctx context.Context, arg ListBooksParams) ([]Book, error) {
	rows, err := q.db.Query(ctx, listBooks, arg.Query, arg.Category, arg.MinPrice, arg.MaxPrice, arg.InStock,
		arg.Sort, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const countBooks = `SELECT count(*) FROM books` + bookWhere

func (q *Queries) CountBooks(ctx context.Context, f BookFilter) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countBooks, f.Query, f.Category, f.MinPrice, f.MaxPrice, f.InStock).Scan(&n)
	return n, err
}

const getBook = `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

func (q *Queries) GetBook(ctx context.Context, id uuid.UUID) (Book, error) {
	b, err := scanBook(q.db.QueryRow(ctx, getBook, id))
	return b, notFound(err)
}

type BookParams struct {
	Title         string
	Author        string
	Description   *string
	Category      string
	Price         decimal.Decimal
	Stock         int32
	ImageURL      *string
	PublishedYear *int32
}

const createBook = `INSERT INTO books (title, author, description, category, price, stock, image_url, published_year)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + bookColumns

func (q *Queries) CreateBook(ctx context.Context, arg BookParams) (Book, error) {
	return scanBook(q.db.QueryRow(ctx, createBook, arg.Title, arg.Author, arg.Description, arg.Category,
		arg.Price, arg.Stock, arg.ImageURL, arg.PublishedYear))
}

const updateBook = `UPDATE books SET
  title = $2, author = $3, description = $4, category = $5, price = $6, stock = $7,
  image_url = $8, published_year = $9, updated_at = now()
WHERE id = $1
RETURNING ` + bookColumns

func (q *Queries) UpdateBook(ctx context.Context, id uuid.UUID, arg BookParams) (Book, error) {
	b, err := scanBook(q.db.QueryRow(ctx, updateBook, id, arg.Title, arg.Author, arg.Description, arg.Category,
		arg.Price, arg.Stock, arg.ImageURL, arg.PublishedYear))
	return b, notFound(err)
}

const deleteBook = `DELETE FROM books WHERE id = $1`

func (q *Queries) DeleteBook(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteBook, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type CategoryCount struct {
	Name  string
	Books int64
}

const listCategories = `SELECT category, count(*) FROM books GROUP BY category ORDER BY category`

func (q *Queries) ListCategories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Name, &c.Books); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const reserveBookStock = `UPDATE books SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2`

// ReserveBookStock decrements stock only when enough remains. Zero rows
// affected means the book is missing or short.
func (q *Queries) ReserveBookStock(ctx context.Context, id uuid.UUID, qty int32) (int64, error) {
	tag, err := q.db.Exec(ctx, reserveBookStock, id, qty)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const restockBook = `UPDATE books SET stock = stock + $2, updated_at = now() WHERE id = $1`

func (q *Queries) RestockBook(ctx context.Context, id uuid.UUID, qty int32) error {
	_, err := q.db.Exec(ctx, restockBook, id, qty)
	return err
}
