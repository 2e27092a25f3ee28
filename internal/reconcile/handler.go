package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/trainrec/trainrec/internal/platform/httpx"
	"github.com/trainrec/trainrec/internal/shared"
)

// Enqueuer submits reconciliation runs to the job queue.
type Enqueuer interface {
	EnqueueReconcileRun(ctx context.Context, trigger string) (*asynq.TaskInfo, error)
}

// Handler exposes the operational surface: trigger a run, inspect the last.
type Handler struct {
	enqueuer Enqueuer
	reports  *ReportStore
	logger   *slog.Logger
}

// NewHandler constructs the ops handler.
func NewHandler(enqueuer Enqueuer, reports *ReportStore, logger *slog.Logger) *Handler {
	return &Handler{enqueuer: enqueuer, reports: reports, logger: logger}
}

// MountRoutes attaches ops routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reconcile", h.trigger)
	r.Get("/reconcile/last", h.last)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	info, err := h.enqueuer.EnqueueReconcileRun(r.Context(), "manual")
	if err != nil {
		h.logger.Error("enqueue reconciliation", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID, "queue": info.Queue})
}

func (h *Handler) last(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Last(r.Context())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no completed run yet")
			return
		}
		h.logger.Error("load last report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
