package records

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/trainrec/trainrec/internal/platform/httpx"
	"github.com/trainrec/trainrec/internal/shared"
)

// Handler exposes training-record endpoints. Authentication happens at the
// upstream gateway; the acting user arrives in the request context.
type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs a records handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, validate: validator.New(), logger: logger}
}

// MountRoutes attaches record routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/records", h.create)
	r.Get("/records/{id}", h.get)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	creatorID := shared.UserIDFromContext(r.Context())
	if creatorID == 0 {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing acting user")
		return
	}

	var req CreateRecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	record, err := h.service.Create(r.Context(), creatorID, req)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "creator not found")
			return
		}
		h.logger.Error("create record", slog.Int64("creator_id", creatorID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid record id")
		return
	}
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "record not found")
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}
