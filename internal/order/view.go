package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/db"
)

// Item is one order line as shown to clients.
type Item struct {
	BookID    string          `json:"bookId"`
	Title     string          `json:"title"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// View is the API representation of an order. Items is only filled for
// single-order reads.
type View struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Status           string          `json:"status"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Discount         decimal.Decimal `json:"discount"`
	ShippingFee      decimal.Decimal `json:"shippingFee"`
	ShippingDiscount decimal.Decimal `json:"shippingDiscount"`
	Total            decimal.Decimal `json:"total"`
	VoucherCode      *string         `json:"voucherCode,omitempty"`
	RecipientName    string          `json:"recipientName"`
	Phone            string          `json:"phone"`
	Address          string          `json:"address"`
	PaymentMethod    string          `json:"paymentMethod"`
	Note             *string         `json:"note,omitempty"`
	Items            []Item          `json:"items,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// NewView converts an order row and its items.
func NewView(o db.Order, items []db.OrderItem) View {
	v := View{
		ID:               o.ID.String(),
		UserID:           o.UserID.String(),
		Status:           o.Status,
		Subtotal:         o.Subtotal,
		Discount:         o.Discount,
		ShippingFee:      o.ShippingFee,
		ShippingDiscount: o.ShippingDiscount,
		Total:            o.Total,
		VoucherCode:      o.VoucherCode,
		RecipientName:    o.RecipientName,
		Phone:            o.Phone,
		Address:          o.Address,
		PaymentMethod:    o.PaymentMethod,
		Note:             o.Note,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if len(items) > 0 {
		v.Items = make([]Item, 0, len(items))
		for _, it := range items {
			v.Items = append(v.Items, Item{
				BookID:    it.BookID.String(),
				Title:     it.Title,
				Category:  it.Category,
				UnitPrice: it.UnitPrice,
				Quantity:  int(it.Quantity),
				LineTotal: it.LineTotal,
			})
		}
	}
	return v
}
