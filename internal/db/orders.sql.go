package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, status, subtotal, discount, shipping_fee, shipping_discount, total, voucher_id,
voucher_code, recipient_name, phone, address, payment_method, note, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Subtotal, &o.Discount, &o.ShippingFee, &o.ShippingDiscount,
		&o.Total, &o.VoucherID, &o.VoucherCode, &o.RecipientName, &o.Phone, &o.Address, &o.PaymentMethod,
		&o.Note, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func collectOrders(ctx context.Context, q *Queries, sql string, args ...any) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

type CreateOrderParams struct {
	UserID           uuid.UUID
	Subtotal         decimal.Decimal
	Discount         decimal.Decimal
	ShippingFee      decimal.Decimal
	ShippingDiscount decimal.Decimal
	Total            decimal.Decimal
	VoucherID        uuid.NullUUID
	VoucherCode      *string
	RecipientName    string
	Phone            string
	Address          string
	PaymentMethod    string
	Note             *string
}

const createOrder = `INSERT INTO orders (user_id, status, subtotal, discount, shipping_fee, shipping_discount, total,
  voucher_id, voucher_code, recipient_name, phone, address, payment_method, note)
VALUES ($1, 'PENDING', $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder, arg.UserID, arg.Subtotal, arg.Discount, arg.ShippingFee,
		arg.ShippingDiscount, arg.Total, arg.VoucherID, arg.VoucherCode, arg.RecipientName, arg.Phone, arg.Address,
		arg.PaymentMethod, arg.Note))
}

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	BookID    uuid.UUID
	Title     string
	Category  string
	UnitPrice decimal.Decimal
	Quantity  int32
	LineTotal decimal.Decimal
}

const createOrderItem = `INSERT INTO order_items (order_id, book_id, title, category, unit_price, quantity, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, book_id, title, category, unit_price, quantity, line_total`

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var it OrderItem
	err := q.db.QueryRow(ctx, createOrderItem, arg.OrderID, arg.BookID, arg.Title, arg.Category, arg.UnitPrice,
		arg.Quantity, arg.LineTotal).Scan(&it.ID, &it.OrderID, &it.BookID, &it.Title, &it.Category, &it.UnitPrice,
		&it.Quantity, &it.LineTotal)
	return it, err
}

const listOrderItems = `SELECT id, order_id, book_id, title, category, unit_price, quantity, line_total
FROM order_items WHERE order_id = $1 ORDER BY title, id`

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.BookID, &it.Title, &it.Category, &it.UnitPrice,
			&it.Quantity, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, getOrder, id))
	return o, notFound(err)
}

const getOrderForUpdate = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

// GetOrderForUpdate locks the order row for the rest of the transaction.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
	return o, notFound(err)
}

const listOrdersByUser = `SELECT ` + orderColumns + ` FROM orders
WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`

func (q *Queries) ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]Order, error) {
	return collectOrders(ctx, q, listOrdersByUser, userID, limit, offset)
}

const countOrdersByUser = `SELECT count(*) FROM orders WHERE user_id = $1`

func (q *Queries) CountOrdersByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countOrdersByUser, userID).Scan(&n)
	return n, err
}

const listOrders = `SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text = '' OR status = $1)
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`

func (q *Queries) ListOrders(ctx context.Context, status string, limit, offset int32) ([]Order, error) {
	return collectOrders(ctx, q, listOrders, status, limit, offset)
}

const countOrders = `SELECT count(*) FROM orders WHERE ($1::text = '' OR status = $1)`

func (q *Queries) CountOrders(ctx context.Context, status string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countOrders, status).Scan(&n)
	return n, err
}

const updateOrderStatus = `UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (Order, error) {
	o, err := scanOrder(q.db.QueryRow(ctx, updateOrderStatus, id, status))
	return o, notFound(err)
}
