package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/trainrec/trainrec/internal/jobs"
	"github.com/trainrec/trainrec/internal/reconcile"
)

// TaskReconcileRun triggers a full reconciliation run.
const TaskReconcileRun = "reconcile:run"

// ReconcileRunPayload records what triggered the run, for log correlation.
type ReconcileRunPayload struct {
	Trigger string `json:"trigger"`
}

// Reconciler is the behaviour the job needs from the engine.
type Reconciler interface {
	Run(ctx context.Context) (*reconcile.RunReport, error)
}

// ReconcileRunJob adapts the reconciliation engine to the worker runtime.
type ReconcileRunJob struct {
	Engine  Reconciler
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReconcileRunJob constructs the job handler.
func NewReconcileRunJob(engine Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileRunJob {
	return &ReconcileRunJob{Engine: engine, Logger: logger, Metrics: metrics}
}

// NewReconcileRunTask creates an Asynq task for a reconciliation run.
func NewReconcileRunTask(trigger string) (*asynq.Task, error) {
	if trigger == "" {
		trigger = "schedule"
	}
	body, err := json.Marshal(ReconcileRunPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileRun, body, asynq.Queue(QueueDefault)), nil
}

// Handle executes one reconciliation run.
func (j *ReconcileRunJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Engine == nil {
		return errors.New("reconcile run: dependencies not configured")
	}
	var payload ReconcileRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskReconcileRun)
	report, err := j.Engine.Run(ctx)
	err = tracker.End(err)
	if errors.Is(err, reconcile.ErrRunInProgress) {
		// Another run holds the lock; the next scheduled invocation covers us.
		j.Logger.Info("reconciliation already running", slog.String("trigger", payload.Trigger))
		return nil
	}
	if err != nil {
		var runErr *reconcile.RunError
		if errors.As(err, &runErr) {
			j.Logger.Error("reconciliation run aborted",
				slog.String("trigger", payload.Trigger),
				slog.String("phase", runErr.Phase),
				slog.String("row", runErr.Row),
				slog.Int("processed", runErr.Processed),
				slog.Int("total", runErr.Total),
				slog.Any("error", runErr.Err))
		} else {
			j.Logger.Error("reconciliation run failed",
				slog.String("trigger", payload.Trigger),
				slog.Any("error", err))
		}
		return err
	}

	j.Metrics.AddRows(reconcile.PhaseDepartments, "processed", report.DepartmentsSeen)
	j.Metrics.AddRows(reconcile.PhaseRoster, "processed", report.UsersSeen)
	problems := make(map[string]int)
	for _, p := range report.Problems {
		problems[p.Phase]++
	}
	for phase, n := range problems {
		j.Metrics.AddRows(phase, "problem", n)
	}
	j.Logger.Info("reconciliation run finished",
		slog.String("trigger", payload.Trigger),
		slog.String("run_id", report.RunID),
		slog.Int("departments_created", report.DepartmentsCreated),
		slog.Int("users_created", report.UsersCreated))
	return nil
}
