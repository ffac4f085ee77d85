package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/cache"
	"github.com/noah-isme/backend-bookstore/internal/db"
)

// cacheFamily versions every cached analytics key so Invalidate can drop them
// all at once.
const cacheFamily = "stats"

const dayLayout = "2006-01-02"

// Querier defines the aggregate queries behind the dashboard.
type Querier interface {
	DashboardTotals(ctx context.Context, lowStockThreshold int32) (db.DashboardTotals, error)
	OrderStatusCounts(ctx context.Context) ([]db.StatusCount, error)
	SalesByDay(ctx context.Context, from, to time.Time) ([]db.SalesDay, error)
	TopBooks(ctx context.Context, since time.Time, limit int32) ([]db.TopBook, error)
}

// Service provides cached dashboard figures.
type Service struct {
	Q                 Querier
	Cache             *cache.JSON
	LowStockThreshold int32
	Now               func() time.Time
	Logger            zerolog.Logger
}

// Dashboard holds the headline admin figures.
type Dashboard struct {
	Revenue        decimal.Decimal  `json:"revenue"`
	Orders         int64            `json:"orders"`
	Customers      int64            `json:"customers"`
	Books          int64            `json:"books"`
	LowStockBooks  int64            `json:"lowStockBooks"`
	OrdersByStatus map[string]int64 `json:"ordersByStatus"`
}

// SalesPoint is one day of the revenue series.
type SalesPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int64           `json:"orders"`
}

// TopBook is a best seller by units sold.
type TopBook struct {
	BookID   string          `json:"bookId"`
	Title    string          `json:"title"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Dashboard returns revenue, counts and the order status breakdown. Revenue
// excludes cancelled orders.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	return cached(ctx, s, "dashboard", func() (Dashboard, error) {
		totals, err := s.Q.DashboardTotals(ctx, s.LowStockThreshold)
		if err != nil {
			return Dashboard{}, fmt.Errorf("dashboard totals: %w", err)
		}
		counts, err := s.Q.OrderStatusCounts(ctx)
		if err != nil {
			return Dashboard{}, fmt.Errorf("order status counts: %w", err)
		}
		d := Dashboard{
			Revenue:        totals.Revenue.Round(2),
			Orders:         totals.Orders,
			Customers:      totals.Customers,
			Books:          totals.Books,
			LowStockBooks:  totals.LowStock,
			OrdersByStatus: make(map[string]int64, len(counts)),
		}
		for _, c := range counts {
			d.OrdersByStatus[c.Status] = c.Orders
		}
		return d, nil
	})
}

// Sales returns one point per UTC day for the last days days, today
// included. Days without orders are reported as zero.
func (s *Service) Sales(ctx context.Context, days int) ([]SalesPoint, error) {
	if days < 1 {
		days = 1
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)
	key := fmt.Sprintf("sales:%s:%d", today.Format(dayLayout), days)

	return cached(ctx, s, key, func() ([]SalesPoint, error) {
		rows, err := s.Q.SalesByDay(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("sales by day: %w", err)
		}
		byDay := make(map[string]db.SalesDay, len(rows))
		for _, r := range rows {
			byDay[r.Day.UTC().Format(dayLayout)] = r
		}
		series := make([]SalesPoint, 0, days)
		for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
			label := d.Format(dayLayout)
			p := SalesPoint{Date: label, Revenue: decimal.Zero}
			if r, ok := byDay[label]; ok {
				p.Revenue, p.Orders = r.Revenue.Round(2), r.Orders
			}
			series = append(series, p)
		}
		return series, nil
	})
}

// TopBooks returns the best sellers by units over the last days days, or
// all time when days is zero.
func (s *Service) TopBooks(ctx context.Context, limit, days int) ([]TopBook, error) {
	if limit < 1 {
		limit = defaultTopLimit
	}
	var since time.Time
	if days > 0 {
		since = s.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	}
	key := fmt.Sprintf("top:%d:%s", limit, since.Format(dayLayout))

	return cached(ctx, s, key, func() ([]TopBook, error) {
		rows, err := s.Q.TopBooks(ctx, since, int32(limit))
		if err != nil {
			return nil, fmt.Errorf("top books: %w", err)
		}
		books := make([]TopBook, 0, len(rows))
		for _, r := range rows {
			books = append(books, TopBook{
				BookID:   r.BookID.String(),
				Title:    r.Title,
				Quantity: r.Quantity,
				Revenue:  r.Revenue.Round(2),
			})
		}
		return books, nil
	})
}

// Invalidate drops every cached figure.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.Cache.Bump(ctx, cacheFamily)
}

// cached reads key from the cache, computing and storing it on a miss.
// Cache failures only cost a recomputation.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	full := key + ":v" + s.Cache.Version(ctx, cacheFamily)
	var out T
	hit, err := s.Cache.Get(ctx, full, &out)
	if err != nil {
		s.Logger.Warn().Err(err).Str("key", full).Msg("analytics cache read failed")
	}
	if hit {
		return out, nil
	}
	out, err = load()
	if err != nil {
		return out, err
	}
	if err := s.Cache.Set(ctx, full, out); err != nil {
		s.Logger.Warn().Err(err).Str("key", full).Msg("analytics cache write failed")
	}
	return out, nil
}
