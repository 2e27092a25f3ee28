package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trainrec/trainrec/internal/shared"
)

// ErrRunInProgress indicates another reconciliation run holds the lock.
var ErrRunInProgress = errors.New("reconcile: run already in progress")

// RunLock serializes reconciliation runs across processes. The TTL bounds
// lock leakage after a crashed run; it should exceed the longest expected
// run by a comfortable margin.
type RunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRunLock constructs a RunLock.
func NewRunLock(client *redis.Client, ttl time.Duration) *RunLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RunLock{client: client, key: shared.ReconcileLockKey(), ttl: ttl}
}

// Acquire takes the lock for the given run id. Returns ErrRunInProgress
// when another run holds it.
func (l *RunLock) Acquire(ctx context.Context, runID string) error {
	ok, err := l.client.SetNX(ctx, l.key, runID, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("reconcile: acquire lock: %w", err)
	}
	if !ok {
		return ErrRunInProgress
	}
	return nil
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release frees the lock, but only when this run still owns it.
func (l *RunLock) Release(ctx context.Context, runID string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, runID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("reconcile: release lock: %w", err)
	}
	return nil
}

// ReportStore keeps the most recent run report for the ops surface.
type ReportStore struct {
	client *redis.Client
}

// NewReportStore constructs a ReportStore.
func NewReportStore(client *redis.Client) *ReportStore {
	return &ReportStore{client: client}
}

// Save stores the report as the latest.
func (s *ReportStore) Save(ctx context.Context, report *RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("reconcile: marshal report: %w", err)
	}
	if err := s.client.Set(ctx, shared.ReconcileReportKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("reconcile: save report: %w", err)
	}
	return nil
}

// Last returns the most recent run report, or shared.ErrNotFound when no
// run has completed yet.
func (s *ReportStore) Last(ctx context.Context) (*RunReport, error) {
	data, err := s.client.Get(ctx, shared.ReconcileReportKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("reconcile: load report: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("reconcile: unmarshal report: %w", err)
	}
	return &report, nil
}
