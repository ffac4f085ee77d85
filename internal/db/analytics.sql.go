package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DashboardTotals struct {
	Revenue   decimal.Decimal
	Orders    int64
	Customers int64
	Books     int64
	LowStock  int64
}

const dashboardTotals = `SELECT
  (SELECT COALESCE(sum(total), 0) FROM orders WHERE status <> 'CANCELLED'),
  (SELECT count(*) FROM orders),
  (SELECT count(*) FROM users WHERE role = 'customer'),
  (SELECT count(*) FROM books),
  (SELECT count(*) FROM books WHERE stock <= $1)`

func (q *Queries) DashboardTotals(ctx context.Context, lowStockThreshold int32) (DashboardTotals, error) {
	var t DashboardTotals
	err := q.db.QueryRow(ctx, dashboardTotals, lowStockThreshold).Scan(&t.Revenue, &t.Orders, &t.Customers, &t.Books, &t.LowStock)
	return t, err
}

type StatusCount struct {
	Status string
	Orders int64
}

const orderStatusCounts = `SELECT status, count(*) FROM orders GROUP BY status ORDER BY status`

func (q *Queries) OrderStatusCounts(ctx context.Context) ([]StatusCount, error) {
	rows, err := q.db.Query(ctx, orderStatusCounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StatusCount{}
	for rows.Next() {
		var s StatusCount
		if err := rows.Scan(&s.Status, &s.Orders); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

type SalesDay struct {
	Day     time.Time
	Revenue decimal.Decimal
	Orders  int64
}

const salesByDay = `SELECT date_trunc('day', created_at) AS day, COALESCE(sum(total), 0), count(*)
FROM orders
WHERE status <> 'CANCELLED' AND created_at >= $1 AND created_at < $2
GROUP BY day
ORDER BY day`

// SalesByDay aggregates non-cancelled orders in [from, to). Days without
// orders are absent; callers fill the gaps.
func (q *Queries) SalesByDay(ctx context.Context, from, to time.Time) ([]SalesDay, error) {
	rows, err := q.db.Query(ctx, salesByDay, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SalesDay{}
	for rows.Next() {
		var s SalesDay
		if err := rows.Scan(&s.Day, &s.Revenue, &s.Orders); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

type TopBook struct {
	BookID   uuid.UUID
	Title    string
	Quantity int64
	Revenue  decimal.Decimal
}

const topBooks = `SELECT oi.book_id, max(oi.title), sum(oi.quantity)::bigint, sum(oi.line_total)
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.status <> 'CANCELLED' AND o.created_at >= $1
GROUP BY oi.book_id
ORDER BY sum(oi.quantity) DESC, max(oi.title)
LIMIT $2`

func (q *Queries) TopBooks(ctx context.Context, since time.Time, limit int32) ([]TopBook, error) {
	rows, err := q.db.Query(ctx, topBooks, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []TopBook{}
	for rows.Next() {
		var b TopBook
		if err := rows.Scan(&b.BookID, &b.Title, &b.Quantity, &b.Revenue); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}
