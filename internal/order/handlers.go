package order

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/validation"
)

// Handler exposes customer order endpoints.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := user(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	items, p, err := h.Svc.ListForUser(r.Context(), userID, page, perPage)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(p.TotalItems))
	common.Page(w, items, p)
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := user(w, r)
	if !ok {
		return
	}
	id, err := common.URLParamUUID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	v, err := h.Svc.GetForUser(r.Context(), userID, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, v)
}

// Cancel handles POST /api/v1/orders/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := user(w, r)
	if !ok {
		return
	}
	id, err := common.URLParamUUID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	v, err := h.Svc.Cancel(r.Context(), userID, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, v)
}

// AdminHandler provides administrative order management endpoints.
type AdminHandler struct {
	Svc *Service
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING CONFIRMED SHIPPING DELIVERED CANCELLED"`
}

// List handles GET /api/v1/admin/orders?status=.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	items, p, err := h.Svc.List(r.Context(), status, page, perPage)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(p.TotalItems))
	common.Page(w, items, p)
}

// Get handles GET /api/v1/admin/orders/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	v, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, v)
}

// PatchStatus handles PATCH /api/v1/admin/orders/{id}/status.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req statusRequest
	if err := validation.Decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	v, err := h.Svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, v)
}

func (h *AdminHandler) fail(w http.ResponseWriter, err error) {
	(&Handler{Svc: h.Svc}).fail(w, err)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !common.IsAppError(err) {
		h.Svc.Logger.Error().Err(err).Msg("order request failed")
	}
	common.WriteError(w, err)
}

func user(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
	}
	return id, ok
}
