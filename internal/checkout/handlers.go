package checkout

import (
	"net/http"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/validation"
)

// Handler exposes POST /api/v1/checkout.
type Handler struct {
	Svc *Service
}

// Checkout places an order from the caller's cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	userID, ok := common.UserUUID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	var in Input
	if err := validation.Decode(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	out, err := h.Svc.PlaceOrder(r.Context(), userID, in)
	if err != nil {
		if !common.IsAppError(err) {
			h.Svc.Logger.Error().Err(err).Str("user_id", userID.String()).Msg("checkout failed")
		}
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, out)
}
