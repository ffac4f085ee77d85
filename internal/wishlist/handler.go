package wishlist

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bookstore/internal/common"
)

// Handler exposes /api/v1/wishlist. Every route requires authentication.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

type status struct {
	BookID     string `json:"bookId"`
	Wishlisted bool   `json:"wishlisted"`
}

// List handles GET /api/v1/wishlist.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	items, err := h.Svc.List(r.Context(), userID)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Toggle handles POST /api/v1/wishlist/{bookId}/toggle.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := h.target(w, r)
	if !ok {
		return
	}
	saved, err := h.Svc.Toggle(r.Context(), userID, bookID)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, status{BookID: bookID.String(), Wishlisted: saved})
}

// Check handles GET /api/v1/wishlist/{bookId}.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := h.target(w, r)
	if !ok {
		return
	}
	saved, err := h.Svc.Contains(r.Context(), userID, bookID)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, status{BookID: bookID.String(), Wishlisted: saved})
}

// Remove handles DELETE /api/v1/wishlist/{bookId}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Remove(r.Context(), userID, bookID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
	}
	return id, ok
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := h.user(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	bookID, err := common.URLParamUUID(r, "bookId")
	if err != nil {
		common.WriteError(w, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, bookID, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !common.IsAppError(err) {
		h.Logger.Error().Err(err).Msg("wishlist request failed")
	}
	common.WriteError(w, err)
}
