// Command seeder loads an admin account, a sample catalog and a few vouchers.
// Rows that already exist are left alone, so it is safe to run repeatedly.
package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/app"
	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/obs"
	"github.com/noah-isme/backend-bookstore/internal/voucher"
)

// seedStore is the slice of db.Queries the seeder writes through.
type seedStore interface {
	CreateUser(ctx context.Context, arg db.CreateUserParams) (db.User, error)
	CountBooks(ctx context.Context, f db.BookFilter) (int64, error)
	CreateBook(ctx context.Context, arg db.BookParams) (db.Book, error)
	CreateVoucher(ctx context.Context, arg db.VoucherParams) (db.Voucher, error)
}

type seedUser struct {
	name, email, role string
}

var users = []seedUser{
	{"Store Admin", "admin@bookstore.local", common.RoleAdmin},
	{"Ada Reader", "ada@example.com", common.RoleCustomer},
	{"Linus Reader", "linus@example.com", common.RoleCustomer},
}

var books = []db.BookParams{
	book("The Go Programming Language", "Alan Donovan", "Programming", "39.99", 25, 2015),
	book("Concurrency in Go", "Katherine Cox-Buday", "Programming", "34.50", 18, 2017),
	book("Designing Data-Intensive Applications", "Martin Kleppmann", "Programming", "45.00", 12, 2017),
	book("Dune", "Frank Herbert", "Fiction", "12.99", 40, 1965),
	book("The Left Hand of Darkness", "Ursula K. Le Guin", "Fiction", "10.50", 22, 1969),
	book("A Brief History of Time", "Stephen Hawking", "Science", "15.75", 30, 1988),
	book("The Selfish Gene", "Richard Dawkins", "Science", "14.20", 3, 1976),
	book("Sapiens", "Yuval Noah Harari", "History", "18.90", 16, 2011),
}

func book(title, author, category, price string, stock int32, year int32) db.BookParams {
	return db.BookParams{
		Title:         title,
		Author:        author,
		Category:      category,
		Price:         decimal.RequireFromString(price),
		Stock:         stock,
		PublishedYear: &year,
	}
}

func vouchers(now time.Time) []db.VoucherParams {
	limit := int32(100)
	minQty := int32(2)
	return []db.VoucherParams{
		{
			Code: "WELCOME10", Name: "10% off your first order", Type: string(voucher.TypePercentage),
			Value: decimal.NewFromInt(10), MinOrderAmount: decimal.NewFromInt(20),
			MaxDiscount: decimal.NewNullDecimal(decimal.NewFromInt(15)),
			UsageLimit:  &limit, ValidFrom: now, ValidTo: now.AddDate(0, 3, 0), IsActive: true,
		},
		{
			Code: "CODE5", Name: "5 off programming books", Type: string(voucher.TypeFixedAmount),
			Value: decimal.NewFromInt(5), MinOrderAmount: decimal.NewFromInt(30), MinQuantity: &minQty,
			ApplicableCategories: voucher.EncodeCategories([]string{"Programming"}),
			ValidFrom:            now, ValidTo: now.AddDate(0, 1, 0), IsActive: true,
		},
		{
			Code: "SHIPFREE", Name: "Free shipping", Type: string(voucher.TypeFreeShip),
			Value: decimal.Zero, MinOrderAmount: decimal.NewFromInt(25),
			ValidFrom: now, ValidTo: now.AddDate(1, 0, 0), IsActive: true,
		},
	}
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger(envOr("OBS_LOG_FORMAT", "console"), envOr("OBS_LOG_LEVEL", "info")).
		With().Str("component", "seeder").Logger()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	if err := db.Migrate(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pool, err := app.OpenPostgres(ctx, dbURL, "bookstore-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	password := envOr("SEED_PASSWORD", "changeme123")
	if err := seed(ctx, db.New(pool), password, time.Now().UTC(), logger); err != nil {
		logger.Fatal().Err(err).Msg("seeding failed")
	}
	logger.Info().Msg("seeding completed")
}

func seed(ctx context.Context, store seedStore, password string, now time.Time, logger zerolog.Logger) error {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return err
	}
	for _, u := range users {
		_, err := store.CreateUser(ctx, db.CreateUserParams{Name: u.name, Email: u.email, PasswordHash: hash, Role: u.role})
		if err := skipExisting(err, logger, "user", u.email); err != nil {
			return err
		}
	}

	existing, err := store.CountBooks(ctx, db.BookFilter{})
	if err != nil {
		return err
	}
	if existing > 0 {
		logger.Info().Int64("books", existing).Msg("catalog already seeded")
	} else {
		for _, b := range books {
			if _, err := store.CreateBook(ctx, b); err != nil {
				return err
			}
		}
		logger.Info().Int("books", len(books)).Msg("catalog seeded")
	}

	for _, v := range vouchers(now) {
		_, err := store.CreateVoucher(ctx, v)
		if err := skipExisting(err, logger, "voucher", v.Code); err != nil {
			return err
		}
	}
	return nil
}

func skipExisting(err error, logger zerolog.Logger, kind, key string) error {
	switch {
	case err == nil:
		logger.Info().Str(kind, key).Msg("created")
		return nil
	case db.IsUniqueViolation(err):
		logger.Info().Str(kind, key).Msg("already present")
		return nil
	default:
		return errors.Join(errors.New(kind+" "+key), err)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
