package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Job kinds.
const (
	KindImport = "import"
	KindReport = "report"
)

// Job states. Completed-with-errors means the job ran to the end but some
// rows were rejected; callers use it to decide whether to surface warnings.
const (
	StatePending             = "pending"
	StateRunning             = "running"
	StateCompleted           = "completed"
	StateCompletedWithErrors = "completed_with_errors"
	StateFailed              = "failed"
	StateCancelled           = "cancelled"
)

var (
	ErrNotFound  = errors.New("jobs: job not found")
	ErrQueueFull = errors.New("jobs: queue full")
	// ErrCompletedWithErrors is returned (possibly wrapped) by a run
	// function that finished but rejected some of its input.
	ErrCompletedWithErrors = errors.New("jobs: completed with errors")
)

// Job is the persisted state of one background run. Details carry
// {counts, errorLog} for imports and the report payload for reports.
type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	State      string          `json:"state"`
	Details    json.RawMessage `json:"details,omitempty"`
	FailReason string          `json:"failReason,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	StartedAt  *time.Time      `json:"startedAt,omitempty"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// Store persists job records so jobs survive process restarts and stay
// queryable after completion.
type Store interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, job Job) error
	JobByID(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context, kind string, limit int) ([]Job, error)
}
