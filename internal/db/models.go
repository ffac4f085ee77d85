package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Book struct {
	ID            uuid.UUID
	Title         string
	Author        string
	Description   *string
	Category      string
	Price         decimal.Decimal
	Stock         int32
	ImageURL      *string
	PublishedYear *int32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Voucher mirrors the vouchers table. ApplicableCategories holds the raw JSON
// text exactly as stored; decoding is left to the voucher package.
type Voucher struct {
	ID                   uuid.UUID
	Code                 string
	Name                 string
	Description          *string
	Type                 string
	Value                decimal.Decimal
	MinOrderAmount       decimal.Decimal
	MaxDiscount          decimal.NullDecimal
	UsageLimit           *int32
	UsedCount            int32
	MinQuantity          *int32
	ApplicableCategories *string
	ValidFrom            time.Time
	ValidTo              time.Time
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Cart struct {
	UserID      uuid.UUID
	VoucherCode *string
	UpdatedAt   time.Time
}

// CartLine is a cart item joined with its book.
type CartLine struct {
	BookID    uuid.UUID
	Title     string
	Author    string
	Category  string
	ImageURL  *string
	UnitPrice decimal.Decimal
	Quantity  int32
	Stock     int32
	AddedAt   time.Time
}

type Order struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Status           string
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
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	BookID    uuid.UUID
	Title     string
	Category  string
	UnitPrice decimal.Decimal
	Quantity  int32
	LineTotal decimal.Decimal
}

// WishlistEntry is a wishlist row joined with its book.
type WishlistEntry struct {
	BookID   uuid.UUID
	Title    string
	Author   string
	Category string
	Price    decimal.Decimal
	Stock    int32
	ImageURL *string
	AddedAt  time.Time
}
