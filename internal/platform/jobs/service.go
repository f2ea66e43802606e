package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunFunc does the actual work of a job. The returned value is persisted as
// the job's details; returning ErrCompletedWithErrors (wrapped or not) marks
// the job completed_with_errors instead of failed.
type RunFunc func(ctx context.Context) (any, error)

type task struct {
	id  string
	run RunFunc
}

// Service runs submitted jobs on a bounded worker pool and keeps their state
// in the Store. Each running job gets its own cancellable context so a batch
// or report can be cancelled without touching its committed work.
type Service struct {
	store   Store
	queue   chan task
	workers int

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func New(store Store, workers, queueSize int) *Service {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Service{
		store:   store,
		queue:   make(chan task, queueSize),
		workers: workers,
		cancels: map[string]context.CancelFunc{},
	}
}

func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx)
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.queue:
			s.runJob(ctx, t)
		}
	}
}

// Submit registers a pending job and enqueues it, returning the job ID the
// caller polls. A full queue is reported to the caller instead of blocking
// the request path.
func (s *Service) Submit(ctx context.Context, kind string, run RunFunc) (string, error) {
	job := Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		State:     StatePending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return "", err
	}
	select {
	case s.queue <- task{id: job.ID, run: run}:
		return job.ID, nil
	default:
		job.State = StateFailed
		job.FailReason = ErrQueueFull.Error()
		if err := s.store.UpdateJob(ctx, job); err != nil {
			slog.Warn("job update failed", "jobId", job.ID, "err", err)
		}
		return "", ErrQueueFull
	}
}

// RunNow executes a job synchronously, for small bounded-scope work that
// does not warrant a handle.
func (s *Service) RunNow(ctx context.Context, kind string, run RunFunc) (any, error) {
	job := Job{ID: uuid.NewString(), Kind: kind, State: StatePending, CreatedAt: time.Now().UTC()}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return s.execute(ctx, job.ID, run)
}

// Cancel stops a pending or running job. Work already committed stays
// committed; the job ends as cancelled, not failed.
func (s *Service) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	cancel, running := s.cancels[id]
	s.mu.Unlock()
	if running {
		cancel()
		return nil
	}

	job, err := s.store.JobByID(ctx, id)
	if err != nil {
		return err
	}
	if job.State != StatePending {
		return nil
	}
	now := time.Now().UTC()
	job.State = StateCancelled
	job.FinishedAt = &now
	return s.store.UpdateJob(ctx, job)
}

func (s *Service) Status(ctx context.Context, id string) (Job, error) {
	return s.store.JobByID(ctx, id)
}

func (s *Service) List(ctx context.Context, kind string, limit int) ([]Job, error) {
	return s.store.ListJobs(ctx, kind, limit)
}

func (s *Service) runJob(ctx context.Context, t task) {
	job, err := s.store.JobByID(ctx, t.id)
	if err != nil {
		slog.Warn("job lookup failed", "jobId", t.id, "err", err)
		return
	}
	if job.State == StateCancelled {
		return
	}
	if _, err := s.execute(ctx, t.id, t.run); err != nil {
		slog.Warn("job run failed", "jobId", t.id, "err", err)
	}
}

func (s *Service) execute(ctx context.Context, id string, run RunFunc) (any, error) {
	job, err := s.store.JobByID(ctx, id)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.cancels, id)
		s.mu.Unlock()
	}()

	now := time.Now().UTC()
	job.State = StateRunning
	job.StartedAt = &now
	if err := s.store.UpdateJob(ctx, job); err != nil {
		slog.Warn("job update failed", "jobId", id, "err", err)
	}

	details, runErr := run(runCtx)

	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "jobId", id, "err", marshalErr)
		detailsJSON = []byte("{}")
	}

	finished := time.Now().UTC()
	job.Details = detailsJSON
	job.FinishedAt = &finished
	switch {
	case runErr == nil:
		job.State = StateCompleted
	case errors.Is(runErr, ErrCompletedWithErrors):
		job.State = StateCompletedWithErrors
	case errors.Is(runErr, context.Canceled):
		job.State = StateCancelled
	default:
		job.State = StateFailed
		job.FailReason = runErr.Error()
	}

	// Persist the outcome even when the worker context is going away.
	updateCtx, cancelUpdate := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancelUpdate()
	if err := s.store.UpdateJob(updateCtx, job); err != nil {
		slog.Warn("job update failed", "jobId", id, "err", err)
	}
	return details, runErr
}
