package voucher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/cache"
	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/db"
	"github.com/noah-isme/backend-bookstore/internal/obs"
)

// Querier captures the database methods required by the voucher service.
type Querier interface {
	GetActiveVoucherByCode(ctx context.Context, code string) (db.Voucher, error)
	GetVoucherByID(ctx context.Context, id uuid.UUID) (db.Voucher, error)
	ListVouchers(ctx context.Context, limit, offset int32) ([]db.Voucher, error)
	CountVouchers(ctx context.Context) (int64, error)
	ListAvailableVouchers(ctx context.Context, now time.Time) ([]db.Voucher, error)
	CreateVoucher(ctx context.Context, arg db.VoucherParams) (db.Voucher, error)
	UpdateVoucher(ctx context.Context, id uuid.UUID, arg db.VoucherParams) (db.Voucher, error)
	DeleteVoucher(ctx context.Context, id uuid.UUID) (int64, error)
}

// UsageStore is implemented by the transaction-bound queries that persist
// voucher usage alongside an order.
type UsageStore interface {
	ClaimVoucherUsage(ctx context.Context, id uuid.UUID) (int64, error)
	ReleaseVoucherUsage(ctx context.Context, id uuid.UUID) error
}

// Validation pairs an evaluation with the voucher it was computed for.
// Voucher is nil when the code matched nothing.
type Validation struct {
	Result  EvaluationResult
	Voucher *Voucher
}

// Service encapsulates voucher lookup, evaluation and administration.
type Service struct {
	Q      Querier
	Cache  *cache.JSON
	Now    func() time.Time
	Logger zerolog.Logger
}

// Lookup resolves an active voucher by code through the cache. found is false
// when no active voucher has that code.
func (s *Service) Lookup(ctx context.Context, code string) (v Voucher, found bool, err error) {
	if s == nil || s.Q == nil {
		return Voucher{}, false, errors.New("voucher service not configured")
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return Voucher{}, false, nil
	}
	key := "code:" + normalized
	if hit, cacheErr := s.Cache.Get(ctx, key, &v); cacheErr != nil {
		s.Logger.Warn().Err(cacheErr).Str("code", normalized).Msg("voucher cache read failed")
	} else if hit {
		return v, true, nil
	}

	row, err := s.Q.GetActiveVoucherByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Voucher{}, false, nil
		}
		return Voucher{}, false, fmt.Errorf("lookup voucher: %w", err)
	}
	v = FromModel(row)
	if v.CategoriesMalformed {
		s.Logger.Warn().Str("code", v.Code).Msg("voucher has unparsable categories; evaluating without category restriction")
	}
	if err := s.Cache.Set(ctx, key, v); err != nil {
		s.Logger.Warn().Err(err).Str("code", normalized).Msg("voucher cache write failed")
	}
	return v, true, nil
}

// Validate looks up code and evaluates it against cart at the current time.
// Unknown codes are business rejections; the error is reserved for faults.
func (s *Service) Validate(ctx context.Context, code string, cart CartSnapshot) (Validation, error) {
	v, found, err := s.Lookup(ctx, code)
	if err != nil {
		obs.VoucherEvaluations.WithLabelValues("error").Inc()
		return Validation{}, err
	}
	if !found {
		obs.VoucherEvaluations.WithLabelValues("not_found").Inc()
		return Validation{Result: Reject(CodeNotFound, "voucher not found")}, nil
	}
	res, err := Evaluate(v, cart, s.now())
	if err != nil {
		obs.VoucherEvaluations.WithLabelValues("error").Inc()
		return Validation{}, fmt.Errorf("evaluate voucher %s: %w", v.Code, err)
	}
	if res.Valid {
		obs.VoucherEvaluations.WithLabelValues("accepted").Inc()
	} else {
		obs.VoucherEvaluations.WithLabelValues("rejected").Inc()
	}
	return Validation{Result: res, Voucher: &v}, nil
}

// Claim takes one use of the voucher through store. It returns
// ErrUsageLimitReached when a concurrent order took the last use.
func (s *Service) Claim(ctx context.Context, store UsageStore, v Voucher) error {
	n, err := store.ClaimVoucherUsage(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("claim voucher usage: %w", err)
	}
	if n == 0 {
		return ErrUsageLimitReached
	}
	s.invalidate(ctx, v.Code)
	return nil
}

// Release returns a previously claimed use.
func (s *Service) Release(ctx context.Context, store UsageStore, id uuid.UUID, code string) error {
	if err := store.ReleaseVoucherUsage(ctx, id); err != nil {
		return fmt.Errorf("release voucher usage: %w", err)
	}
	s.invalidate(ctx, code)
	return nil
}

// Available lists vouchers a customer could use right now.
func (s *Service) Available(ctx context.Context) ([]View, error) {
	rows, err := s.Q.ListAvailableVouchers(ctx, s.now())
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewView(FromModel(row)))
	}
	return out, nil
}

// List pages through every voucher for administration.
func (s *Service) List(ctx context.Context, page, perPage int) ([]View, common.Pagination, error) {
	total, err := s.Q.CountVouchers(ctx)
	if err != nil {
		return nil, common.Pagination{}, err
	}
	rows, err := s.Q.ListVouchers(ctx, int32(perPage), common.Offset(page, perPage))
	if err != nil {
		return nil, common.Pagination{}, err
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewView(FromModel(row)))
	}
	return out, common.NewPagination(page, perPage, total), nil
}

// Get returns one voucher by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	row, err := s.Q.GetVoucherByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return View{}, common.NotFound("voucher not found")
		}
		return View{}, err
	}
	return NewView(FromModel(row)), nil
}

// Create stores a new voucher.
func (s *Service) Create(ctx context.Context, in Input) (View, error) {
	params, err := in.params()
	if err != nil {
		return View{}, err
	}
	row, err := s.Q.CreateVoucher(ctx, params)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return View{}, common.Conflict("VOUCHER_CODE_TAKEN", "voucher code already exists", err)
		}
		return View{}, err
	}
	return NewView(FromModel(row)), nil
}

// Update replaces a voucher's definition. The usage counter is preserved and
// a new usage limit may not drop below it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (View, error) {
	params, err := in.params()
	if err != nil {
		return View{}, err
	}
	existing, err := s.Q.GetVoucherByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return View{}, common.NotFound("voucher not found")
		}
		return View{}, err
	}
	if params.UsageLimit != nil && *params.UsageLimit < existing.UsedCount {
		return View{}, common.Conflict("USAGE_LIMIT_BELOW_USED",
			fmt.Sprintf("usage limit cannot be lower than current usage (%d)", existing.UsedCount), nil)
	}
	row, err := s.Q.UpdateVoucher(ctx, id, params)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			return View{}, common.NotFound("voucher not found")
		case db.IsUniqueViolation(err):
			return View{}, common.Conflict("VOUCHER_CODE_TAKEN", "voucher code already exists", err)
		}
		return View{}, err
	}
	s.invalidate(ctx, existing.Code, row.Code)
	return NewView(FromModel(row)), nil
}

// Delete removes a voucher. Orders keep their copy of the code.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.Q.GetVoucherByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return common.NotFound("voucher not found")
		}
		return err
	}
	if _, err := s.Q.DeleteVoucher(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, existing.Code)
	return nil
}

func (s *Service) invalidate(ctx context.Context, codes ...string) {
	keys := make([]string, 0, len(codes))
	for _, c := range codes {
		if n := NormalizeCode(c); n != "" {
			keys = append(keys, "code:"+n)
		}
	}
	if err := s.Cache.Delete(ctx, keys...); err != nil {
		s.Logger.Warn().Err(err).Strs("codes", codes).Msg("voucher cache invalidation failed")
	}
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Input is the admin payload for creating or replacing a voucher.
type Input struct {
	Code                 string           `json:"code" validate:"required,min=3,max=32,alphanum"`
	Name                 string           `json:"name" validate:"required,max=120"`
	Description          string           `json:"description" validate:"max=500"`
	Type                 Type             `json:"type" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT FREE_SHIP"`
	Value                decimal.Decimal  `json:"value" validate:"gt=0"`
	MinOrderAmount       decimal.Decimal  `json:"minOrderAmount" validate:"gte=0"`
	MaxDiscount          *decimal.Decimal `json:"maxDiscount" validate:"omitempty,gt=0"`
	UsageLimit           *int             `json:"usageLimit" validate:"omitempty,gte=1"`
	MinQuantity          *int             `json:"minQuantity" validate:"omitempty,gte=1"`
	ApplicableCategories []string         `json:"applicableCategories" validate:"omitempty,dive,required,max=64"`
	ValidFrom            time.Time        `json:"validFrom" validate:"required"`
	ValidTo              time.Time        `json:"validTo" validate:"required,gtefield=ValidFrom"`
	IsActive             *bool            `json:"isActive"`
}

func (in Input) params() (db.VoucherParams, error) {
	if in.Type == TypePercentage && in.Value.GreaterThan(hundred) {
		return db.VoucherParams{}, common.NewAppError("VALIDATION_ERROR", "percentage value must not exceed 100",
			http.StatusBadRequest, nil).WithDetails(map[string]string{"value": "must be at most 100"})
	}
	if in.ValidFrom.After(in.ValidTo) {
		return db.VoucherParams{}, common.NewAppError("VALIDATION_ERROR", "validFrom must not be after validTo",
			http.StatusBadRequest, nil)
	}
	p := db.VoucherParams{
		Code:                 NormalizeCode(in.Code),
		Name:                 strings.TrimSpace(in.Name),
		Type:                 string(in.Type),
		Value:                in.Value.Round(2),
		MinOrderAmount:       in.MinOrderAmount.Round(2),
		ApplicableCategories: EncodeCategories(in.ApplicableCategories),
		ValidFrom:            in.ValidFrom,
		ValidTo:              in.ValidTo,
		IsActive:             in.IsActive == nil || *in.IsActive,
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		p.Description = &d
	}
	if in.MaxDiscount != nil {
		p.MaxDiscount = decimal.NewNullDecimal(in.MaxDiscount.Round(2))
	}
	if in.UsageLimit != nil {
		n := int32(*in.UsageLimit)
		p.UsageLimit = &n
	}
	if in.MinQuantity != nil {
		n := int32(*in.MinQuantity)
		p.MinQuantity = &n
	}
	return p, nil
}

// FromModel converts a stored voucher into its evaluation view.
func FromModel(row db.Voucher) Voucher {
	v := Voucher{
		ID:             row.ID,
		Code:           row.Code,
		Name:           row.Name,
		Type:           Type(row.Type),
		Value:          row.Value,
		MinOrderAmount: row.MinOrderAmount,
		UsedCount:      int(row.UsedCount),
		ValidFrom:      row.ValidFrom,
		ValidTo:        row.ValidTo,
		IsActive:       row.IsActive,
	}
	if row.Description != nil {
		v.Description = *row.Description
	}
	if row.MaxDiscount.Valid {
		d := row.MaxDiscount.Decimal
		v.MaxDiscount = &d
	}
	if row.UsageLimit != nil {
		n := int(*row.UsageLimit)
		v.UsageLimit = &n
	}
	if row.MinQuantity != nil {
		n := int(*row.MinQuantity)
		v.MinQuantity = &n
	}
	categories, ok := ParseCategories(row.ApplicableCategories)
	v.ApplicableCategories = categories
	v.CategoriesMalformed = !ok
	return v
}

// View is the JSON representation of a voucher.
type View struct {
	ID                   string           `json:"id"`
	Code                 string           `json:"code"`
	Name                 string           `json:"name"`
	Description          string           `json:"description,omitempty"`
	Type                 Type             `json:"type"`
	Value                decimal.Decimal  `json:"value"`
	MinOrderAmount       decimal.Decimal  `json:"minOrderAmount"`
	MaxDiscount          *decimal.Decimal `json:"maxDiscount,omitempty"`
	UsageLimit           *int             `json:"usageLimit,omitempty"`
	UsedCount            int              `json:"usedCount"`
	MinQuantity          *int             `json:"minQuantity,omitempty"`
	ApplicableCategories []string         `json:"applicableCategories"`
	ValidFrom            time.Time        `json:"validFrom"`
	ValidTo              time.Time        `json:"validTo"`
	IsActive             bool             `json:"isActive"`
}

// NewView renders v for API responses.
func NewView(v Voucher) View {
	categories := v.ApplicableCategories
	if categories == nil {
		categories = []string{}
	}
	return View{
		ID:                   v.ID.String(),
		Code:                 v.Code,
		Name:                 v.Name,
		Description:          v.Description,
		Type:                 v.Type,
		Value:                v.Value,
		MinOrderAmount:       v.MinOrderAmount,
		MaxDiscount:          v.MaxDiscount,
		UsageLimit:           v.UsageLimit,
		UsedCount:            v.UsedCount,
		MinQuantity:          v.MinQuantity,
		ApplicableCategories: categories,
		ValidFrom:            v.ValidFrom,
		ValidTo:              v.ValidTo,
		IsActive:             v.IsActive,
	}
}
