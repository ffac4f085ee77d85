package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/tasks"
	"github.com/noah-isme/backend-bookstore/internal/voucher"
)

// Querier covers the read side of orders.
type Querier interface {
	GetOrder(ctx context.Context, id uuid.UUID) (db.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]db.OrderItem, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, limit, offset int32) ([]db.Order, error)
	CountOrdersByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ListOrders(ctx context.Context, status string, limit, offset int32) ([]db.Order, error)
	CountOrders(ctx context.Context, status string) (int64, error)
}

// TxQuerier is the transaction-bound subset used by status changes.
type TxQuerier interface {
	voucher.UsageStore
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (db.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]db.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (db.Order, error)
	RestockBook(ctx context.Context, id uuid.UUID, qty int32) error
}

// TxRunner runs fn inside a database transaction.
type TxRunner func(ctx context.Context, fn func(TxQuerier) error) error

// VoucherReleaser gives back a voucher use when an order is cancelled.
type VoucherReleaser interface {
	Release(ctx context.Context, store voucher.UsageStore, id uuid.UUID, code string) error
}

// StatusPublisher announces status transitions to the worker.
type StatusPublisher interface {
	OrderStatusChanged(ctx context.Context, payload tasks.OrderStatusChanged) error
}

// Service implements customer and admin order operations.
type Service struct {
	Q        Querier
	Tx       TxRunner
	Vouchers VoucherReleaser
	Events   StatusPublisher
	Logger   zerolog.Logger
}

var (
	errOrderNotFound = common.NotFound("order not found")
	errNotCancelable = common.Conflict("ORDER_NOT_CANCELLABLE", "only pending orders can be cancelled", nil)
)

// ListForUser returns the caller's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, page, perPage int) ([]View, common.Pagination, error) {
	total, err := s.Q.CountOrdersByUser(ctx, userID)
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Q.ListOrdersByUser(ctx, userID, int32(perPage), common.Offset(page, perPage))
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("list orders: %w", err)
	}
	return views(rows), common.NewPagination(page, perPage, total), nil
}

// GetForUser returns one of the caller's orders with its items. Orders owned
// by someone else are reported as missing.
func (s *Service) GetForUser(ctx context.Context, userID, id uuid.UUID) (View, error) {
	o, err := s.Q.GetOrder(ctx, id)
	if err != nil {
		return View{}, lookupErr(err)
	}
	if o.UserID != userID {
		return View{}, errOrderNotFound
	}
	return s.withItems(ctx, o)
}

// List returns all orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, page, perPage int) ([]View, common.Pagination, error) {
	if status != "" && !ValidStatus(status) {
		return nil, common.Pagination{}, common.BadRequest("unknown status "+status, nil)
	}
	total, err := s.Q.CountOrders(ctx, status)
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Q.ListOrders(ctx, status, int32(perPage), common.Offset(page, perPage))
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("list orders: %w", err)
	}
	return views(rows), common.NewPagination(page, perPage, total), nil
}

// Get returns any order with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	o, err := s.Q.GetOrder(ctx, id)
	if err != nil {
		return View{}, lookupErr(err)
	}
	return s.withItems(ctx, o)
}

// Cancel cancels one of the caller's pending orders, returning reserved stock
// and any voucher use.
func (s *Service) Cancel(ctx context.Context, userID, id uuid.UUID) (View, error) {
	return s.transition(ctx, id, StatusCancelled, func(o db.Order) error {
		if o.UserID != userID {
			return errOrderNotFound
		}
		if o.Status != StatusPending {
			return errNotCancelable
		}
		return nil
	})
}

// UpdateStatus moves an order along the fulfilment path.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (View, error) {
	if !ValidStatus(status) {
		return View{}, common.BadRequest("unknown status "+status, nil)
	}
	return s.transition(ctx, id, status, func(o db.Order) error {
		if !CanTransition(o.Status, status) {
			return common.Conflict("INVALID_STATUS_TRANSITION",
				fmt.Sprintf("cannot move order from %s to %s", o.Status, status), nil)
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to string, check func(db.Order) error) (View, error) {
	var (
		updated db.Order
		items   []db.OrderItem
		from    string
	)
	err := s.Tx(ctx, func(q TxQuerier) error {
		current, err := q.GetOrderForUpdate(ctx, id)
		if err != nil {
			return lookupErr(err)
		}
		if err := check(current); err != nil {
			return err
		}
		from = current.Status
		if items, err = q.ListOrderItems(ctx, id); err != nil {
			return fmt.Errorf("list order items: %w", err)
		}
		if to == StatusCancelled {
			if err := s.release(ctx, q, current, items); err != nil {
				return err
			}
		}
		if updated, err = q.UpdateOrderStatus(ctx, id, to); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return View{}, err
	}

	s.Logger.Info().
		Str("order_id", id.String()).
		Str("from", from).
		Str("to", to).
		Msg("order status changed")
	if s.Events != nil {
		if err := s.Events.OrderStatusChanged(ctx, tasks.OrderStatusChanged{
			OrderID: updated.ID,
			UserID:  updated.UserID,
			From:    from,
			To:      to,
		}); err != nil {
			s.Logger.Error().Err(err).Str("order_id", id.String()).Msg("publish status change failed")
		}
	}
	return NewView(updated, items), nil
}

func (s *Service) release(ctx context.Context, q TxQuerier, o db.Order, items []db.OrderItem) error {
	for _, it := range items {
		if err := q.RestockBook(ctx, it.BookID, it.Quantity); err != nil {
			return fmt.Errorf("restock %s: %w", it.BookID, err)
		}
	}
	if !o.VoucherID.Valid || s.Vouchers == nil {
		return nil
	}
	code := ""
	if o.VoucherCode != nil {
		code = *o.VoucherCode
	}
	return s.Vouchers.Release(ctx, q, o.VoucherID.UUID, code)
}

func (s *Service) withItems(ctx context.Context, o db.Order) (View, error) {
	items, err := s.Q.ListOrderItems(ctx, o.ID)
	if err != nil {
		return View{}, fmt.Errorf("list order items: %w", err)
	}
	return NewView(o, items), nil
}

func views(rows []db.Order) []View {
	out := make([]View, 0, len(rows))
	for _, o := range rows {
		out = append(out, NewView(o, nil))
	}
	return out
}

func lookupErr(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return errOrderNotFound
	}
	return fmt.Errorf("load order: %w", err)
}
