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
	"github.com/shopspring/decimal"
)

// Task types handled by the worker.
const (
	TypeOrderPlaced        = "order:placed"
	TypeOrderStatusChanged = "order:status_changed"
)

// DefaultQueue is the asynq queue order tasks are published to.
const DefaultQueue = "default"

// OrderPlaced is the payload of TypeOrderPlaced.
type OrderPlaced struct {
	OrderID       uuid.UUID       `json:"orderId"`
	UserID        uuid.UUID       `json:"userId"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	VoucherCode   string          `json:"voucherCode,omitempty"`
}

// OrderStatusChanged is the payload of TypeOrderStatusChanged.
type OrderStatusChanged struct {
	OrderID uuid.UUID `json:"orderId"`
	UserID  uuid.UUID `json:"userId"`
	From    string    `json:"from"`
	To      string    `json:"to"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher enqueues order tasks. Task ids are derived from the order so a
// retried publish never produces a second task.
type Publisher struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// OrderPlaced publishes the post-checkout task.
func (p Publisher) OrderPlaced(ctx context.Context, payload OrderPlaced) error {
	return p.enqueue(ctx, TypeOrderPlaced, "placed:"+payload.OrderID.String(), payload)
}

// OrderStatusChanged publishes a status transition.
func (p Publisher) OrderStatusChanged(ctx context.Context, payload OrderStatusChanged) error {
	id := fmt.Sprintf("status:%s:%s", payload.OrderID, payload.To)
	return p.enqueue(ctx, TypeOrderStatusChanged, id, payload)
}

func (p Publisher) enqueue(ctx context.Context, typ, id string, payload any) error {
	if p.Client == nil {
		return errors.New("tasks: client not configured")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("tasks: encode %s: %w", typ, err)
	}
	info, err := p.Client.EnqueueContext(ctx, asynq.NewTask(typ, raw), p.options(id)...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			p.Logger.Debug().Str("task_type", typ).Str("task_id", id).Msg("task already enqueued")
			return nil
		}
		return fmt.Errorf("tasks: enqueue %s: %w", typ, err)
	}
	p.Logger.Debug().Str("task_type", typ).Str("task_id", info.ID).Str("queue", info.Queue).Msg("task enqueued")
	return nil
}

func (p Publisher) options(id string) []asynq.Option {
	queue := p.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	maxRetry := p.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 10
	}
	opts := []asynq.Option{asynq.Queue(queue), asynq.MaxRetry(maxRetry), asynq.TaskID(id)}
	if p.Timeout > 0 {
		opts = append(opts, asynq.Timeout(p.Timeout))
	}
	return opts
}
