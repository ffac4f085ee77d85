package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const voucherColumns = `id, code, name, description, type, value, min_order_amount, max_discount, usage_limit, used_count,
min_quantity, applicable_categories, valid_from, valid_to, is_active, created_at, updated_at`

func scanVoucher(row interface{ Scan(...any) error }) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.Code, &v.Name, &v.Description, &v.Type, &v.Value, &v.MinOrderAmount, &v.MaxDiscount,
		&v.UsageLimit, &v.UsedCount, &v.MinQuantity, &v.ApplicableCategories, &v.ValidFrom, &v.ValidTo,
		&v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func collectVouchers(ctx context.Context, q *Queries, sql string, args ...any) ([]Voucher, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Voucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

const getActiveVoucherByCode = `SELECT ` + voucherColumns + ` FROM vouchers
WHERE upper(code) = upper($1) AND is_active`

// GetActiveVoucherByCode matches codes case-insensitively and skips inactive vouchers.
func (q *Queries) GetActiveVoucherByCode(ctx context.Context, code string) (Voucher, error) {
	v, err := scanVoucher(q.db.QueryRow(ctx, getActiveVoucherByCode, code))
	return v, notFound(err)
}

const getVoucherByID = `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`

func (q *Queries) GetVoucherByID(ctx context.Context, id uuid.UUID) (Voucher, error) {
	v, err := scanVoucher(q.db.QueryRow(ctx, getVoucherByID, id))
	return v, notFound(err)
}

const listVouchers = `SELECT ` + voucherColumns + ` FROM vouchers
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2`

func (q *Queries) ListVouchers(ctx context.Context, limit, offset int32) ([]Voucher, error) {
	return collectVouchers(ctx, q, listVouchers, limit, offset)
}

const countVouchers = `SELECT count(*) FROM vouchers`

func (q *Queries) CountVouchers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countVouchers).Scan(&n)
	return n, err
}

const listAvailableVouchers = `SELECT ` + voucherColumns + ` FROM vouchers
WHERE is_active AND valid_from <= $1 AND valid_to >= $1
  AND (usage_limit IS NULL OR used_count < usage_limit)
ORDER BY valid_to, code`

// ListAvailableVouchers returns active vouchers inside their window with uses left.
func (q *Queries) ListAvailableVouchers(ctx context.Context, now time.Time) ([]Voucher, error) {
	return collectVouchers(ctx, q, listAvailableVouchers, now)
}

type VoucherParams struct {
	Code                 string
	Name                 string
	Description          *string
	Type                 string
	Value                decimal.Decimal
	MinOrderAmount       decimal.Decimal
	MaxDiscount          decimal.NullDecimal
	UsageLimit           *int32
	MinQuantity          *int32
	ApplicableCategories *string
	ValidFrom            time.Time
	ValidTo              time.Time
	IsActive             bool
}

const createVoucher = `INSERT INTO vouchers (code, name, description, type, value, min_order_amount, max_discount,
  usage_limit, min_quantity, applicable_categories, valid_from, valid_to, is_active)
VALUES (upper($1), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + voucherColumns

func (q *Queries) CreateVoucher(ctx context.Context, arg VoucherParams) (Voucher, error) {
	return scanVoucher(q.db.QueryRow(ctx, createVoucher, arg.Code, arg.Name, arg.Description, arg.Type, arg.Value,
		arg.MinOrderAmount, arg.MaxDiscount, arg.UsageLimit, arg.MinQuantity, arg.ApplicableCategories,
		arg.ValidFrom, arg.ValidTo, arg.IsActive))
}

const updateVoucher = `UPDATE vouchers SET
  code = upper($2), name = $3, description = $4, type = $5, value = $6, min_order_amount = $7, max_discount = $8,
  usage_limit = $9, min_quantity = $10, applicable_categories = $11, valid_from = $12, valid_to = $13,
  is_active = $14, updated_at = now()
WHERE id = $1
RETURNING ` + voucherColumns

func (q *Queries) UpdateVoucher(ctx context.Context, id uuid.UUID, arg VoucherParams) (Voucher, error) {
	v, err := scanVoucher(q.db.QueryRow(ctx, updateVoucher, id, arg.Code, arg.Name, arg.Description, arg.Type,
		arg.Value, arg.MinOrderAmount, arg.MaxDiscount, arg.UsageLimit, arg.MinQuantity, arg.ApplicableCategories,
		arg.ValidFrom, arg.ValidTo, arg.IsActive))
	return v, notFound(err)
}

const deleteVoucher = `DELETE FROM vouchers WHERE id = $1`

func (q *Queries) DeleteVoucher(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteVoucher, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const claimVoucherUsage = `UPDATE vouchers SET used_count = used_count + 1, updated_at = now()
WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`

// ClaimVoucherUsage atomically takes one use of a voucher. Zero rows affected
// means the cap was reached by a concurrent order.
func (q *Queries) ClaimVoucherUsage(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, claimVoucherUsage, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const releaseVoucherUsage = `UPDATE vouchers SET used_count = used_count - 1, updated_at = now()
WHERE id = $1 AND used_count > 0`

// ReleaseVoucherUsage gives back a use taken by an order that was cancelled.
func (q *Queries) ReleaseVoucherUsage(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, releaseVoucherUsage, id)
	return err
}
