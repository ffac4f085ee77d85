package analytics

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/backend-bookstore/internal/common"
)

const (
	defaultSalesDays = 30
	maxSalesDays     = 365
	defaultTopLimit  = 10
	maxTopLimit      = 50
)

// Handler exposes the admin dashboard endpoints.
type Handler struct {
	Svc *Service
}

// Dashboard returns headline totals and the order status breakdown.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Svc.Dashboard(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, d)
}

// Sales returns the daily revenue series for ?days (default 30).
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(w, r, "days", defaultSalesDays, maxSalesDays)
	if !ok {
		return
	}
	series, err := h.Svc.Sales(r.Context(), days)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, series)
}

// TopBooks returns best sellers. ?days narrows the window, all time by default.
func (h *Handler) TopBooks(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultTopLimit, maxTopLimit)
	if !ok {
		return
	}
	days, ok := intParam(w, r, "days", 0, maxSalesDays)
	if !ok {
		return
	}
	books, err := h.Svc.TopBooks(r.Context(), limit, days)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, books)
}

// intParam reads a bounded positive query parameter, writing a 400 when it is
// malformed or out of range.
func intParam(w http.ResponseWriter, r *http.Request, name string, def, max int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		common.WriteError(w, common.BadRequest(name+" must be between 1 and "+strconv.Itoa(max), err).
			WithDetails(map[string]any{name: raw}))
		return 0, false
	}
	return n, true
}
