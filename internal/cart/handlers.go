package cart

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/validation"
)

// Handler wires cart services to HTTP. Every route requires authentication.
type Handler struct {
	Svc *Service
}

type addItemRequest struct {
	BookID   string `json:"bookId" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"omitempty,gte=1,lte=99"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=99"`
}

type voucherRequest struct {
	Code string `json:"code" validate:"required"`
}

// Get handles GET /api/v1/cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	h.respond(w, func() (Quote, error) { return h.Svc.Get(r.Context(), userID) })
}

// AddItem handles POST /api/v1/cart/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := validation.Decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	bookID := uuid.MustParse(req.BookID)
	h.respond(w, func() (Quote, error) { return h.Svc.AddItem(r.Context(), userID, bookID, qty) })
}

// UpdateItem handles PATCH /api/v1/cart/items/{bookId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	bookID, err := common.URLParamUUID(r, "bookId")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req quantityRequest
	if err := validation.Decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respond(w, func() (Quote, error) { return h.Svc.SetQuantity(r.Context(), userID, bookID, *req.Quantity) })
}

// RemoveItem handles DELETE /api/v1/cart/items/{bookId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	bookID, err := common.URLParamUUID(r, "bookId")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.respond(w, func() (Quote, error) { return h.Svc.RemoveItem(r.Context(), userID, bookID) })
}

// Clear handles DELETE /api/v1/cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Clear(r.Context(), userID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyVoucher handles POST /api/v1/cart/voucher.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var req voucherRequest
	if err := validation.Decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respond(w, func() (Quote, error) { return h.Svc.ApplyVoucher(r.Context(), userID, req.Code) })
}

// RemoveVoucher handles DELETE /api/v1/cart/voucher.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	h.respond(w, func() (Quote, error) { return h.Svc.RemoveVoucher(r.Context(), userID) })
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
	}
	return id, ok
}

func (h *Handler) respond(w http.ResponseWriter, fn func() (Quote, error)) {
	q, err := fn()
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, q)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !common.IsAppError(err) {
		h.Svc.Logger.Error().Err(err).Msg("cart request failed")
	}
	common.WriteError(w, err)
}
