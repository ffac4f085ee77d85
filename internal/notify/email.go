package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes messages to the log instead of a mail server.
type LogMailer struct {
	Logger zerolog.Logger
}

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.Logger.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("email sent")
	return nil
}

// OrderMessage is the data needed to tell a customer about their order.
type OrderMessage struct {
	OrderID    string
	Email      string
	Name       string
	Status     string
	Total      decimal.Decimal
	ItemCount  int
	Voucher    string
	OccurredAt time.Time
}

// OrderNotifier emails customers when orders are placed or change status.
type OrderNotifier struct {
	Mail    Mailer
	Enabled bool
}

// OrderPlaced sends the order confirmation.
func (n OrderNotifier) OrderPlaced(ctx context.Context, msg OrderMessage) error {
	return n.send(ctx, "Order received", msg)
}

// OrderStatusChanged tells the customer about a status transition.
func (n OrderNotifier) OrderStatusChanged(ctx context.Context, msg OrderMessage) error {
	return n.send(ctx, subjectFor(msg.Status), msg)
}

func (n OrderNotifier) send(ctx context.Context, subject string, msg OrderMessage) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	to := strings.TrimSpace(msg.Email)
	if to == "" {
		return nil
	}
	if err := n.Mail.Send(ctx, to, subject, bodyFor(msg)); err != nil {
		return fmt.Errorf("email notify: %w", err)
	}
	return nil
}

func subjectFor(status string) string {
	switch status {
	case "CONFIRMED":
		return "Order confirmed"
	case "SHIPPING":
		return "Your order is on its way"
	case "DELIVERED":
		return "Order delivered"
	case "CANCELLED":
		return "Order cancelled"
	default:
		return fmt.Sprintf("Order update: %s", status)
	}
}

func bodyFor(msg OrderMessage) string {
	var b strings.Builder
	if msg.Name != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", msg.Name)
	}
	fmt.Fprintf(&b, "Order %s is now %s.\n", msg.OrderID, msg.Status)
	if msg.ItemCount > 0 {
		fmt.Fprintf(&b, "Items: %d\n", msg.ItemCount)
	}
	fmt.Fprintf(&b, "Total: %s\n", msg.Total.StringFixed(2))
	if msg.Voucher != "" {
		fmt.Fprintf(&b, "Voucher: %s\n", msg.Voucher)
	}
	if !msg.OccurredAt.IsZero() {
		fmt.Fprintf(&b, "\n%s\n", msg.OccurredAt.UTC().Format(time.RFC1123))
	}
	return b.String()
}
