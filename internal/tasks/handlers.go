package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/notify"
	"github.com/noah-isme/backend-bookstore/internal/obs"
)

// OrderReader loads what a notification needs.
type OrderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (db.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]db.OrderItem, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (db.User, error)
}

// Notifier informs customers about their orders.
type Notifier interface {
	OrderPlaced(ctx context.Context, msg notify.OrderMessage) error
	OrderStatusChanged(ctx context.Context, msg notify.OrderMessage) error
}

// Invalidator drops cached dashboard figures.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// OrderHandlers processes order tasks.
type OrderHandlers struct {
	Orders    OrderReader
	Notifier  Notifier
	Analytics Invalidator
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Register attaches the handlers to mux.
func (h OrderHandlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeOrderPlaced, h.HandleOrderPlaced)
	mux.HandleFunc(TypeOrderStatusChanged, h.HandleOrderStatusChanged)
}

// HandleOrderPlaced sends the confirmation and refreshes analytics.
func (h OrderHandlers) HandleOrderPlaced(ctx context.Context, t *asynq.Task) error {
	var p OrderPlaced
	if err := decode(t, &p); err != nil {
		return h.done(t, err)
	}
	if p.OrderID == uuid.Nil {
		return h.done(t, fmt.Errorf("payload without order id: %w", asynq.SkipRetry))
	}
	msg, err := h.message(ctx, p.OrderID)
	if err != nil {
		return h.done(t, err)
	}
	if err := h.Notifier.OrderPlaced(ctx, msg); err != nil {
		return h.done(t, err)
	}
	h.invalidate(ctx)
	h.Logger.Info().
		Str("order_id", p.OrderID.String()).
		Str("total", p.Total.StringFixed(2)).
		Str("payment_method", p.PaymentMethod).
		Msg("order confirmation sent")
	return h.done(t, nil)
}

// HandleOrderStatusChanged notifies the customer of a transition.
func (h OrderHandlers) HandleOrderStatusChanged(ctx context.Context, t *asynq.Task) error {
	var p OrderStatusChanged
	if err := decode(t, &p); err != nil {
		return h.done(t, err)
	}
	if p.OrderID == uuid.Nil {
		return h.done(t, fmt.Errorf("payload without order id: %w", asynq.SkipRetry))
	}
	msg, err := h.message(ctx, p.OrderID)
	if err != nil {
		return h.done(t, err)
	}
	msg.Status = p.To
	if err := h.Notifier.OrderStatusChanged(ctx, msg); err != nil {
		return h.done(t, err)
	}
	h.invalidate(ctx)
	h.Logger.Info().
		Str("order_id", p.OrderID.String()).
		Str("from", p.From).
		Str("to", p.To).
		Msg("order status notification sent")
	return h.done(t, nil)
}

func decode(t *asynq.Task, dst any) error {
	if err := json.Unmarshal(t.Payload(), dst); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

func (h OrderHandlers) message(ctx context.Context, orderID uuid.UUID) (notify.OrderMessage, error) {
	order, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return notify.OrderMessage{}, fmt.Errorf("order %s: %w", orderID, asynq.SkipRetry)
		}
		return notify.OrderMessage{}, fmt.Errorf("load order: %w", err)
	}
	items, err := h.Orders.ListOrderItems(ctx, orderID)
	if err != nil {
		return notify.OrderMessage{}, fmt.Errorf("load order items: %w", err)
	}
	user, err := h.Orders.GetUserByID(ctx, order.UserID)
	if err != nil {
		return notify.OrderMessage{}, fmt.Errorf("load customer: %w", err)
	}
	count := 0
	for _, it := range items {
		count += int(it.Quantity)
	}
	msg := notify.OrderMessage{
		OrderID:    order.ID.String(),
		Email:      user.Email,
		Name:       user.Name,
		Status:     order.Status,
		Total:      order.Total,
		ItemCount:  count,
		OccurredAt: h.now(),
	}
	if order.VoucherCode != nil {
		msg.Voucher = *order.VoucherCode
	}
	return msg, nil
}

func (h OrderHandlers) invalidate(ctx context.Context) {
	if h.Analytics == nil {
		return
	}
	if err := h.Analytics.Invalidate(ctx); err != nil {
		h.Logger.Warn().Err(err).Msg("analytics cache invalidation failed")
	}
}

func (h OrderHandlers) done(t *asynq.Task, err error) error {
	result := "ok"
	switch {
	case errors.Is(err, asynq.SkipRetry):
		result = "dropped"
		h.Logger.Error().Err(err).Str("task_type", t.Type()).Msg("task dropped")
	case err != nil:
		result = "retry"
		h.Logger.Warn().Err(err).Str("task_type", t.Type()).Msg("task failed")
	}
	obs.TasksProcessed.WithLabelValues(t.Type(), result).Inc()
	return err
}

func (h OrderHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
