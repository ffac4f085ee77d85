package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/cache"
	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
)

const cacheFamily = "books"

type queryProvider interface {
	ListBooks(ctx context.Context, arg db.ListBooksParams) ([]db.Book, error)
	CountBooks(ctx context.Context, f db.BookFilter) (int64, error)
	GetBook(ctx context.Context, id uuid.UUID) (db.Book, error)
	CreateBook(ctx context.Context, arg db.BookParams) (db.Book, error)
	UpdateBook(ctx context.Context, id uuid.UUID, arg db.BookParams) (db.Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) (int64, error)
	ListCategories(ctx context.Context) ([]db.CategoryCount, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries      queryProvider
	cache        *cache.JSON
	logger       zerolog.Logger
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *cache.JSON
	Logger       zerolog.Logger
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for book listing.
type ListParams struct {
	Query    string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  bool
	Sort     string
	Page     int
	Limit    int
}

// Book is the public book payload.
type Book struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Author        string          `json:"author"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock"`
	InStock       bool            `json:"inStock"`
	ImageURL      *string         `json:"imageUrl,omitempty"`
	PublishedYear *int32          `json:"publishedYear,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Category represents the public category payload.
type Category struct {
	Name  string `json:"name"`
	Books int64  `json:"books"`
}

// BookListResult contains list data and pagination metadata.
type BookListResult struct {
	Items []Book `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"-"`
	Limit int    `json:"-"`
}

// BookInput is the admin payload for creating or replacing a book.
type BookInput struct {
	Title         string          `json:"title" validate:"required,max=200"`
	Author        string          `json:"author" validate:"required,max=120"`
	Description   string          `json:"description" validate:"max=4000"`
	Category      string          `json:"category" validate:"required,max=64"`
	Price         decimal.Decimal `json:"price" validate:"gt=0"`
	Stock         int             `json:"stock" validate:"gte=0"`
	ImageURL      string          `json:"imageUrl" validate:"omitempty,url,max=500"`
	PublishedYear *int            `json:"publishedYear" validate:"omitempty,gte=1450,lte=2100"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(l, s.maxLimit)
	}

	var err error
	if params.MinPrice, err = parsePrice(values, "minPrice"); err != nil {
		return params, err
	}
	if params.MaxPrice, err = parsePrice(values, "maxPrice"); err != nil {
		return params, err
	}
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		return params, badRequest("price", "minPrice cannot be greater than maxPrice", nil)
	}

	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, badRequest("inStock", "inStock must be true or false", err)
		}
		params.InStock = b
	}

	sort, ok := normalizeSort(values.Get("sort"))
	if !ok {
		return params, badRequest("sort", "sort must be one of newest, price_asc, price_desc, title", nil)
	}
	params.Sort = sort
	return params, nil
}

func parsePrice(values url.Values, field string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(values.Get(field))
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return nil, badRequest(field, field+" must be a non-negative number", err)
	}
	return &d, nil
}

// ListCategories returns each category with its book count.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	key := "categories:v" + s.cache.Version(ctx, cacheFamily)
	var cached []Category
	if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	rows, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	result := make([]Category, 0, len(rows))
	for _, row := range rows {
		result = append(result, Category{Name: row.Name, Books: row.Books})
	}
	s.store(ctx, key, result)
	return result, nil
}

// ListBooks returns a filtered page of books.
func (s *Service) ListBooks(ctx context.Context, params ListParams) (BookListResult, error) {
	key := s.listCacheKey(ctx, params)
	var cached BookListResult
	if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
		cached.Page, cached.Limit = params.Page, params.Limit
		return cached, nil
	}

	filter := db.BookFilter{
		Query:    params.Query,
		Category: params.Category,
		MinPrice: nullDecimal(params.MinPrice),
		MaxPrice: nullDecimal(params.MaxPrice),
		InStock:  params.InStock,
	}
	total, err := s.queries.CountBooks(ctx, filter)
	if err != nil {
		return BookListResult{}, fmt.Errorf("count books: %w", err)
	}
	rows, err := s.queries.ListBooks(ctx, db.ListBooksParams{
		BookFilter: filter,
		Sort:       params.Sort,
		Limit:      int32(params.Limit),
		Offset:     common.Offset(params.Page, params.Limit),
	})
	if err != nil {
		return BookListResult{}, fmt.Errorf("list books: %w", err)
	}
	items := make([]Book, 0, len(rows))
	for _, row := range rows {
		items = append(items, NewBook(row))
	}
	result := BookListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	s.store(ctx, key, result)
	return result, nil
}

// GetBook returns one book.
func (s *Service) GetBook(ctx context.Context, id uuid.UUID) (Book, error) {
	key := "book:v" + s.cache.Version(ctx, cacheFamily) + ":" + id.String()
	var cached Book
	if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	row, err := s.queries.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Book{}, common.NotFound("book not found")
		}
		return Book{}, fmt.Errorf("get book: %w", err)
	}
	book := NewBook(row)
	s.store(ctx, key, book)
	return book, nil
}

// CreateBook adds a book to the catalog.
func (s *Service) CreateBook(ctx context.Context, in BookInput) (Book, error) {
	row, err := s.queries.CreateBook(ctx, in.params())
	if err != nil {
		return Book{}, fmt.Errorf("create book: %w", err)
	}
	s.invalidate(ctx)
	return NewBook(row), nil
}

// UpdateBook replaces a book's fields.
func (s *Service) UpdateBook(ctx context.Context, id uuid.UUID, in BookInput) (Book, error) {
	row, err := s.queries.UpdateBook(ctx, id, in.params())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Book{}, common.NotFound("book not found")
		}
		return Book{}, fmt.Errorf("update book: %w", err)
	}
	s.invalidate(ctx)
	return NewBook(row), nil
}

// DeleteBook removes a book that no order references.
func (s *Service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	n, err := s.queries.DeleteBook(ctx, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return common.Conflict("BOOK_IN_USE", "book is referenced by existing orders", err)
		}
		return fmt.Errorf("delete book: %w", err)
	}
	if n == 0 {
		return common.NotFound("book not found")
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if err := s.cache.Set(ctx, key, v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx, cacheFamily); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

func (s *Service) listCacheKey(ctx context.Context, p ListParams) string {
	var b strings.Builder
	b.WriteString("list:v")
	b.WriteString(s.cache.Version(ctx, cacheFamily))
	fmt.Fprintf(&b, ":q=%s:c=%s:s=%s:st=%t:p=%d:l=%d", strings.ToLower(p.Query), p.Category, p.Sort, p.InStock, p.Page, p.Limit)
	if p.MinPrice != nil {
		b.WriteString(":min=" + p.MinPrice.String())
	}
	if p.MaxPrice != nil {
		b.WriteString(":max=" + p.MaxPrice.String())
	}
	return b.String()
}

func (in BookInput) params() db.BookParams {
	p := db.BookParams{
		Title:    strings.TrimSpace(in.Title),
		Author:   strings.TrimSpace(in.Author),
		Category: strings.TrimSpace(in.Category),
		Price:    in.Price.Round(2),
		Stock:    int32(in.Stock),
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		p.Description = &d
	}
	if u := strings.TrimSpace(in.ImageURL); u != "" {
		p.ImageURL = &u
	}
	if in.PublishedYear != nil {
		y := int32(*in.PublishedYear)
		p.PublishedYear = &y
	}
	return p
}

// NewBook renders a stored book for API responses.
func NewBook(row db.Book) Book {
	b := Book{
		ID:            row.ID.String(),
		Title:         row.Title,
		Author:        row.Author,
		Category:      row.Category,
		Price:         row.Price,
		Stock:         int(row.Stock),
		InStock:       row.Stock > 0,
		ImageURL:      row.ImageURL,
		PublishedYear: row.PublishedYear,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.Description != nil {
		b.Description = *row.Description
	}
	return b
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func normalizeSort(s string) (string, bool) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "", "newest":
		return "", true
	case "price_asc", "price_desc", "title":
		return s, true
	default:
		return "", false
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return common.BadRequest(message, err).WithDetails(map[string]any{"field": field})
}
