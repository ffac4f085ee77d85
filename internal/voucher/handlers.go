package voucher

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/validation"
)

// Handler exposes voucher validation and administration endpoints.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

type validateRequest struct {
	Code           string           `json:"code" validate:"required"`
	OrderTotal     *decimal.Decimal `json:"orderTotal" validate:"required,gte=0"`
	ItemCount      int              `json:"itemCount" validate:"gte=0"`
	BookCategories []string         `json:"bookCategories"`
}

type voucherSummary struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
	Type Type   `json:"type"`
}

type validateResponse struct {
	Valid            bool             `json:"valid"`
	Discount         decimal.Decimal  `json:"discount"`
	ShippingDiscount *decimal.Decimal `json:"shippingDiscount,omitempty"`
	Voucher          *voucherSummary  `json:"voucher,omitempty"`
	Error            string           `json:"error,omitempty"`
	ErrorCode        string           `json:"errorCode,omitempty"`
}

// Validate handles POST /api/v1/vouchers/validate. Business rejections are
// 200 responses with valid=false; only malformed input is a client error.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := validation.Decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		common.WriteError(w, common.BadRequest("code is required", nil).WithDetails(map[string]string{"code": "is required"}))
		return
	}
	snapshot := CartSnapshot{
		Subtotal:   req.OrderTotal.Round(2),
		ItemCount:  req.ItemCount,
		Categories: req.BookCategories,
	}
	res, err := h.Svc.Validate(r.Context(), code, snapshot)
	if err != nil {
		h.Logger.Error().Err(err).Str("code", NormalizeCode(code)).Msg("voucher validation failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not validate voucher", nil)
		return
	}
	common.JSON(w, http.StatusOK, newValidateResponse(res))
}

func newValidateResponse(v Validation) validateResponse {
	if !v.Result.Valid {
		return validateResponse{Valid: false, Discount: decimal.Zero, Error: v.Result.Reason, ErrorCode: v.Result.Code}
	}
	shipping := v.Result.ShippingDiscount
	return validateResponse{
		Valid:            true,
		Discount:         v.Result.Discount,
		ShippingDiscount: &shipping,
		Voucher: &voucherSummary{
			ID:   v.Voucher.ID.String(),
			Code: v.Voucher.Code,
			Name: v.Voucher.Name,
			Type: v.Voucher.Type,
		},
	}
}

// Available handles GET /api/v1/vouchers.
func (h *Handler) Available(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.Available(r.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("list available vouchers")
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// List handles GET /api/v1/admin/vouchers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	items, p, err := h.Svc.List(r.Context(), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Page(w, items, p)
}

// Get handles GET /api/v1/admin/vouchers/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	v, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, v)
}

// Create handles POST /api/v1/admin/vouchers.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := validation.Decode(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	v, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.Logger.Info().Str("code", v.Code).Msg("voucher created")
	common.Data(w, http.StatusCreated, v)
}

// Update handles PUT /api/v1/admin/vouchers/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var in Input
	if err := validation.Decode(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	v, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, v)
}

// Delete handles DELETE /api/v1/admin/vouchers/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
