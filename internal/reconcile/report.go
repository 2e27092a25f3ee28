package reconcile

import (
	"fmt"
	"time"
)

// Phase names used in reports, errors and logs.
const (
	PhaseDepartments    = "departments"
	PhaseAdministrative = "administrative"
	PhaseRoster         = "roster"
)

// Problem records a recovered per-row anomaly: the run continued, the row
// did not take full effect.
type Problem struct {
	Phase      string `json:"phase"`
	ExternalID string `json:"external_id"`
	Reason     string `json:"reason"`
}

// RunReport summarizes one reconciliation run for operators.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	DepartmentsSeen    int `json:"departments_seen"`
	DepartmentsCreated int `json:"departments_created"`
	GroupsProvisioned  int `json:"groups_provisioned"`
	UsersSeen          int `json:"users_seen"`
	UsersCreated       int `json:"users_created"`
	UsersReassigned    int `json:"users_reassigned"`

	Problems []Problem `json:"problems,omitempty"`
}

// RunError reports an unrecovered failure that aborted the run, with enough
// context to identify the offending external row. The run is expected to be
// retried wholesale on the next scheduled invocation.
type RunError struct {
	Phase     string
	Row       string
	Processed int
	Total     int
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("reconcile: %s phase failed after %d of %d rows at row %q: %v",
		e.Phase, e.Processed, e.Total, e.Row, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
