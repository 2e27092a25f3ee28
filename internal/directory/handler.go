package directory

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trainrec/trainrec/internal/orghier"
	"github.com/trainrec/trainrec/internal/platform/httpx"
	"github.com/trainrec/trainrec/internal/rbac"
	"github.com/trainrec/trainrec/internal/roster"
	"github.com/trainrec/trainrec/internal/shared"
)

// Handler serves the directory read API.
type Handler struct {
	depts  orghier.Repository
	users  roster.Repository
	groups rbac.Repository
	logger *slog.Logger
	clock  func() time.Time
}

// NewHandler constructs a directory handler.
func NewHandler(depts orghier.Repository, users roster.Repository, groups rbac.Repository, logger *slog.Logger) *Handler {
	return &Handler{
		depts:  depts,
		users:  users,
		groups: groups,
		logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// MountRoutes attaches directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/departments", h.listDepartments)
	r.Get("/departments/{externalID}", h.getDepartment)
	r.Get("/users/{externalID}", h.getUser)
}

func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	depts, err := h.depts.ListAll(r.Context())
	if err != nil {
		h.logger.Error("list departments", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	byID := make(map[int64]orghier.Department, len(depts))
	for _, d := range depts {
		byID[d.ID] = d
	}
	views := make([]DepartmentView, 0, len(depts))
	for _, d := range depts {
		view := DepartmentView{
			ExternalID:   d.ExternalID,
			Name:         d.Name,
			BoundaryType: string(d.Boundary),
		}
		if d.ParentID != nil {
			if parent, ok := byID[*d.ParentID]; ok {
				view.ParentExternalID = &parent.ExternalID
			}
		}
		views = append(views, view)
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) getDepartment(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	dept, err := h.depts.GetByExternalID(r.Context(), externalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "department not found")
			return
		}
		h.logger.Error("get department", slog.String("external_id", externalID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	view := DepartmentView{
		ExternalID:   dept.ExternalID,
		Name:         dept.Name,
		BoundaryType: string(dept.Boundary),
	}
	chain, err := h.depts.AncestorChain(r.Context(), dept.ID)
	if err == nil && len(chain) > 0 {
		admin := chain[len(chain)-1]
		view.AdministrativeID = &admin.ExternalID
		view.AdministrativeName = &admin.Name
		if len(chain) > 1 {
			view.ParentExternalID = &chain[1].ExternalID
		}
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	externalID := chi.URLParam(r, "externalID")
	user, err := h.users.GetByExternalID(r.Context(), externalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
			return
		}
		h.logger.Error("get user", slog.String("external_id", externalID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	view := UserView{
		ExternalID:   user.ExternalID,
		Name:         user.Name,
		Title:        user.Title,
		TenureStatus: user.TenureStatus,
		Education:    user.Education,
		TeachingType: user.TeachingType,
		Age:          user.Age(h.clock()),
		Phone:        user.Phone,
		Email:        user.Email,
		UpdatedAt:    user.UpdatedAt,
		Groups:       []GroupView{},
	}

	if user.DepartmentID != nil {
		chain, err := h.depts.AncestorChain(r.Context(), *user.DepartmentID)
		if err == nil && len(chain) > 0 {
			view.DepartmentExternalID = &chain[0].ExternalID
			admin := chain[len(chain)-1]
			view.AdministrativeID = &admin.ExternalID
		}
	}

	groups, err := h.groups.GroupsForUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("user groups", slog.String("external_id", externalID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	for _, g := range groups {
		view.Groups = append(view.Groups, GroupView{Name: g.Name, Role: string(g.Role)})
	}
	httpx.JSON(w, http.StatusOK, view)
}
