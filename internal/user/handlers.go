package user

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/validation"
)

// Handler exposes admin user management endpoints.
type Handler struct {
	Service *Service
	Logger  zerolog.Logger
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=customer admin"`
}

// List handles GET /api/v1/admin/users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	users, p, err := h.Service.List(r.Context(), r.URL.Query().Get("role"), page, perPage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Page(w, users, p)
}

// UpdateRole handles PATCH /api/v1/admin/users/{id}/role.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	target, err := common.URLParamUUID(r, "id")
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var req roleRequest
	if err := validation.Decode(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	u, err := h.Service.UpdateRole(r.Context(), actor, target, req.Role)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.Logger.Info().Str("actor", actor.String()).Str("user_id", u.ID).Str("role", u.Role).Msg("user role changed")
	common.Data(w, http.StatusOK, u)
}
