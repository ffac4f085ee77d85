package catalog

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-bookstore/internal/common"
	"github.com/noah-isme/backend-bookstore/internal/validation"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service *Service
	logger  zerolog.Logger
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
	Logger  zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, logger: cfg.Logger}
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, rows)
}

// Books handles GET /api/v1/books with filters, sorting, and pagination.
func (h *Handler) Books(w http.ResponseWriter, r *http.Request) {
	params, err := h.service.ParseListParams(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.service.ListBooks(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(result.Total, 10))
	common.Page(w, result.Items, common.NewPagination(result.Page, result.Limit, result.Total))
}

// Book handles GET /api/v1/books/{id}.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, book)
}

// Create handles POST /api/v1/admin/books.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in BookInput
	if err := validation.Decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	book, err := h.service.CreateBook(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info().Str("book_id", book.ID).Msg("book created")
	common.Data(w, http.StatusCreated, book)
}

// Update handles PUT /api/v1/admin/books/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in BookInput
	if err := validation.Decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	book, err := h.service.UpdateBook(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, book)
}

// Delete handles DELETE /api/v1/admin/books/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := common.URLParamUUID(r, "id")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if !common.IsAppError(err) {
		h.logger.Error().Err(err).Msg("catalog request failed")
	}
	common.WriteError(w, err)
}
