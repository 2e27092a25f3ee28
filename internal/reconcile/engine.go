// Package reconcile implements the periodic batch synchronization of the
// department forest and user roster against the external feeds.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/trainrec/trainrec/internal/feed"
	"github.com/trainrec/trainrec/internal/membership"
	"github.com/trainrec/trainrec/internal/orghier"
	"github.com/trainrec/trainrec/internal/rbac"
	"github.com/trainrec/trainrec/internal/roster"
	"github.com/trainrec/trainrec/internal/shared"
)

const birthDateLayout = "2006-01-02"

// Config collects the dependencies an Engine needs.
type Config struct {
	Store       *orghier.Store
	Users       roster.Repository
	Groups      rbac.Repository
	Provisioner *rbac.Provisioner
	Source      feed.Source
	Tables      roster.Tables
	Lock        *RunLock
	Reports     *ReportStore
	Logger      *slog.Logger
}

// Engine orchestrates a full reconciliation run. A run is single-writer and
// run-to-completion: the three phases execute strictly in sequence, and an
// unrecovered error aborts the remainder of the run.
type Engine struct {
	store       *orghier.Store
	users       roster.Repository
	groups      rbac.Repository
	provisioner *rbac.Provisioner
	source      feed.Source
	tables      roster.Tables
	validate    *validator.Validate
	lock        *RunLock
	reports     *ReportStore
	logger      *slog.Logger
	clock       func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		store:       cfg.Store,
		users:       cfg.Users,
		groups:      cfg.Groups,
		provisioner: cfg.Provisioner,
		source:      cfg.Source,
		tables:      cfg.Tables,
		validate:    validator.New(),
		lock:        cfg.Lock,
		reports:     cfg.Reports,
		logger:      cfg.Logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Run executes one full reconciliation pass. Safe to invoke repeatedly: all
// writes are idempotent upserts, and a failed run is retried wholesale on
// the next scheduled invocation.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	runID := uuid.NewString()
	if e.lock != nil {
		if err := e.lock.Acquire(ctx, runID); err != nil {
			return nil, err
		}
		defer func() {
			if err := e.lock.Release(context.WithoutCancel(ctx), runID); err != nil {
				e.logger.Warn("release run lock", slog.Any("error", err))
			}
		}()
	}

	report := &RunReport{RunID: runID, StartedAt: e.clock()}
	logger := e.logger.With(slog.String("run_id", runID))

	if err := e.store.Load(ctx); err != nil {
		return report, err
	}

	var deptRows []feed.DepartmentRow
	var rosterRows []feed.RosterRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		deptRows, err = e.source.Departments(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		rosterRows, err = e.source.Roster(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("reconcile: fetch feeds: %w", err)
	}

	cascade := membership.NewCascader(e.groups, e.store.Forest(), logger)

	touched, err := e.departmentPhase(ctx, logger, report, cascade, deptRows)
	if err != nil {
		report.FinishedAt = e.clock()
		return report, err
	}
	if err := e.administrativePhase(logger, touched); err != nil {
		report.FinishedAt = e.clock()
		return report, err
	}
	if err := e.rosterPhase(ctx, logger, report, cascade, rosterRows); err != nil {
		report.FinishedAt = e.clock()
		return report, err
	}

	report.FinishedAt = e.clock()
	if e.reports != nil {
		if err := e.reports.Save(ctx, report); err != nil {
			logger.Warn("save run report", slog.Any("error", err))
		}
	}
	logger.Info("reconciliation run complete",
		slog.Int("departments_seen", report.DepartmentsSeen),
		slog.Int("departments_created", report.DepartmentsCreated),
		slog.Int("users_seen", report.UsersSeen),
		slog.Int("users_created", report.UsersCreated),
		slog.Int("users_reassigned", report.UsersReassigned),
		slog.Int("problems", len(report.Problems)))
	return report, nil
}

// departmentPhase upserts every active department row. Feeds are not
// topologically sorted, so rows whose parent has no node yet are deferred
// to later sub-passes; the loop ends when a pass resolves nothing new, and
// whatever remains is reported as an external-data error, never silently
// dropped.
func (e *Engine) departmentPhase(ctx context.Context, logger *slog.Logger, report *RunReport, cascade *membership.Cascader, rows []feed.DepartmentRow) ([]string, error) {
	pending := make([]feed.DepartmentRow, 0, len(rows))
	for _, row := range rows {
		if err := e.validate.Struct(row); err != nil {
			logger.Warn("invalid department row",
				slog.String("external_id", row.ExternalID),
				slog.Any("error", err))
			report.Problems = append(report.Problems, Problem{Phase: PhaseDepartments, ExternalID: row.ExternalID, Reason: "failed validation"})
			continue
		}
		if !row.Active {
			continue
		}
		pending = append(pending, row)
	}
	report.DepartmentsSeen = len(pending)

	var touched []string
	processed := 0
	total := len(pending)
	for len(pending) > 0 {
		var deferred []feed.DepartmentRow
		progressed := false
		for _, row := range pending {
			created, err := e.applyDepartmentRow(ctx, report, cascade, row)
			if errors.Is(err, orghier.ErrParentUnknown) {
				deferred = append(deferred, row)
				continue
			}
			if err != nil {
				logger.Error("department row failed",
					slog.String("external_id", row.ExternalID),
					slog.String("parent_external_id", row.ParentExternalID),
					slog.Any("error", err))
				return nil, &RunError{Phase: PhaseDepartments, Row: row.ExternalID, Processed: processed, Total: total, Err: err}
			}
			progressed = true
			processed++
			touched = append(touched, row.ExternalID)
			if created {
				report.DepartmentsCreated++
			}
		}
		if !progressed {
			for _, row := range deferred {
				logger.Error("department parent unresolved after full retry",
					slog.String("external_id", row.ExternalID),
					slog.String("parent_external_id", row.ParentExternalID))
				report.Problems = append(report.Problems, Problem{
					Phase:      PhaseDepartments,
					ExternalID: row.ExternalID,
					Reason:     fmt.Sprintf("parent %q not present in feed", row.ParentExternalID),
				})
			}
			break
		}
		pending = deferred
	}
	return touched, nil
}

// applyDepartmentRow upserts a single department. When the row moves an
// existing department under a new parent, every user anywhere in the old
// subtree is detached from their chain before the parent pointer changes
// and re-attached along the new chain afterwards.
func (e *Engine) applyDepartmentRow(ctx context.Context, report *RunReport, cascade *membership.Cascader, row feed.DepartmentRow) (bool, error) {
	boundary := orghier.ParseBoundary(row.BoundaryTypeCode)

	var moved []roster.User
	if old, exists := e.store.Lookup(row.ExternalID); exists {
		parentKnown, parentChanged := e.parentChange(old, row.ParentExternalID)
		if !parentKnown {
			return false, orghier.ErrParentUnknown
		}
		if parentChanged {
			subtree, err := e.store.Forest().Subtree(row.ExternalID)
			if err != nil {
				return false, err
			}
			ids := make([]int64, len(subtree))
			for i, d := range subtree {
				ids[i] = d.ID
			}
			moved, err = e.users.ListByDepartmentIDs(ctx, ids)
			if err != nil {
				return false, err
			}
			for _, u := range moved {
				dept, ok := e.store.Forest().LookupByID(*u.DepartmentID)
				if !ok {
					continue
				}
				if err := cascade.DetachFromChain(ctx, u.ID, dept); err != nil {
					return false, err
				}
			}
		}
	}

	dept, created, err := e.store.Upsert(ctx, row.ExternalID, row.DisplayName, row.ParentExternalID, boundary)
	if err != nil {
		return false, err
	}

	if created {
		admin, member, fresh, err := e.provisioner.EnsureGroups(ctx, dept)
		if err != nil {
			return false, err
		}
		if fresh {
			if err := e.provisioner.SeedBaseline(ctx, admin, member); err != nil {
				return false, err
			}
			report.GroupsProvisioned += 2
		}
	}

	for _, u := range moved {
		dept, ok := e.store.Forest().LookupByID(*u.DepartmentID)
		if !ok {
			continue
		}
		if err := cascade.AttachToChain(ctx, u.ID, dept); err != nil {
			return false, err
		}
	}
	return created, nil
}

// parentChange compares a department's stored parent against the feed row's.
func (e *Engine) parentChange(old orghier.Department, parentExternalID string) (known, changed bool) {
	if parentExternalID == "" {
		return true, old.ParentID != nil
	}
	parent, ok := e.store.Lookup(parentExternalID)
	if !ok {
		return false, false
	}
	return true, old.ParentID == nil || *old.ParentID != parent.ID
}

// administrativePhase resolves the administrative department for everything
// touched this run. Resolution failure here means the parent graph is not a
// forest, which is a fatal input error.
func (e *Engine) administrativePhase(logger *slog.Logger, touched []string) error {
	forest := e.store.Forest()
	for i, ext := range touched {
		if _, err := forest.ResolveAdministrative(ext); err != nil {
			logger.Error("administrative resolution failed",
				slog.String("external_id", ext),
				slog.Any("error", err))
			return &RunError{Phase: PhaseAdministrative, Row: ext, Processed: i, Total: len(touched), Err: err}
		}
	}
	return nil
}

// rosterPhase mirrors every roster row onto the user table. A row
// referencing an unknown department detaches the user and continues; any
// other failure aborts the run with the offending row's context.
func (e *Engine) rosterPhase(ctx context.Context, logger *slog.Logger, report *RunReport, cascade *membership.Cascader, rows []feed.RosterRow) error {
	for i, row := range rows {
		if err := e.validate.Struct(row); err != nil {
			logger.Warn("invalid roster row",
				slog.String("external_id", row.ExternalID),
				slog.Any("error", err))
			report.Problems = append(report.Problems, Problem{Phase: PhaseRoster, ExternalID: row.ExternalID, Reason: "failed validation"})
			continue
		}
		report.UsersSeen++
		if err := e.applyRosterRow(ctx, logger, report, cascade, row); err != nil {
			logger.Error("roster row failed",
				slog.String("external_id", row.ExternalID),
				slog.String("department_external_id", row.DepartmentExternalID),
				slog.Any("error", err))
			return &RunError{Phase: PhaseRoster, Row: row.ExternalID, Processed: i, Total: len(rows), Err: err}
		}
	}
	return nil
}

func (e *Engine) applyRosterRow(ctx context.Context, logger *slog.Logger, report *RunReport, cascade *membership.Cascader, row feed.RosterRow) error {
	forest := e.store.Forest()

	var dept *orghier.Department
	var adminDeptID *int64
	if row.DepartmentExternalID != "" {
		if d, ok := e.store.Lookup(row.DepartmentExternalID); ok {
			admin, err := forest.ResolveAdministrative(d.ExternalID)
			if err != nil {
				return err
			}
			dept = &d
			adminDeptID = &admin.ID
		} else {
			logger.Warn("roster row references unknown department",
				slog.String("external_id", row.ExternalID),
				slog.String("department_external_id", row.DepartmentExternalID))
			report.Problems = append(report.Problems, Problem{
				Phase:      PhaseRoster,
				ExternalID: row.ExternalID,
				Reason:     fmt.Sprintf("unknown department %q", row.DepartmentExternalID),
			})
		}
	}

	var deptID *int64
	if dept != nil {
		deptID = &dept.ID
	}

	existing, err := e.users.GetByExternalID(ctx, row.ExternalID)
	if errors.Is(err, shared.ErrNotFound) {
		user := e.userFromRow(row)
		user.DepartmentID = deptID
		user.AdminDepartmentID = adminDeptID
		created, err := e.users.Create(ctx, user)
		if err != nil {
			return err
		}
		report.UsersCreated++
		if dept != nil {
			return cascade.AttachToChain(ctx, created.ID, *dept)
		}
		return nil
	}
	if err != nil {
		return err
	}

	changed := !idEqual(existing.DepartmentID, deptID)

	updated := existing
	e.applyProfile(&updated, row)
	updated.DepartmentID = deptID
	updated.AdminDepartmentID = adminDeptID
	if err := e.users.Update(ctx, updated); err != nil {
		return err
	}

	if changed {
		var oldDept *orghier.Department
		if existing.DepartmentID != nil {
			if d, ok := forest.LookupByID(*existing.DepartmentID); ok {
				oldDept = &d
			}
		}
		if err := cascade.Reassign(ctx, existing.ID, oldDept, dept); err != nil {
			return err
		}
		report.UsersReassigned++
	}
	return nil
}

// userFromRow builds a new user from a roster row. New users receive an
// unusable credential, never a default password.
func (e *Engine) userFromRow(row feed.RosterRow) roster.User {
	user := roster.User{
		ExternalID:   row.ExternalID,
		PasswordHash: roster.UnusablePassword(),
	}
	e.applyProfile(&user, row)
	return user
}

// applyProfile copies the mirrored profile fields verbatim, resolving
// enumerated codes through the static tables.
func (e *Engine) applyProfile(user *roster.User, row feed.RosterRow) {
	user.Name = row.DisplayName
	user.TenureStatus = e.tables.TenureStatus.Label(row.TenureStatusCode)
	user.Education = e.tables.Education.Label(row.EducationCode)
	user.Title = e.tables.Title.Label(row.TitleCode)
	user.TeachingType = e.tables.TeachingType.Label(row.TeachingTypeCode)
	user.Phone = row.Phone
	user.Email = row.Email
	if row.BirthDate != "" {
		if t, err := time.Parse(birthDateLayout, row.BirthDate); err == nil {
			user.BirthDate = &t
		}
	}
}

func idEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
