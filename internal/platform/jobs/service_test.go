package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitForState(t *testing.T, svc *Service, id string, states ...string) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		for _, state := range states {
			if job.State == state {
				return job
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := svc.Status(context.Background(), id)
	t.Fatalf("job %s stuck in state %s, want one of %v", id, job.State, states)
	return Job{}
}

func TestSubmitRunsToCompletion(t *testing.T) {
	svc := New(NewMemoryStore(), 1, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	id, err := svc.Submit(ctx, KindImport, func(ctx context.Context) (any, error) {
		return map[string]int{"accepted": 3}, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	job := waitForState(t, svc, id, StateCompleted)
	if job.StartedAt == nil || job.FinishedAt == nil {
		t.Error("timestamps not set")
	}
	if string(job.Details) == "" {
		t.Error("details not persisted")
	}
}

func TestCompletedWithErrorsClassification(t *testing.T) {
	svc := New(NewMemoryStore(), 1, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	id, err := svc.Submit(ctx, KindImport, func(ctx context.Context) (any, error) {
		return map[string]int{"rejected": 2}, errors.New("wrapped: " + ErrCompletedWithErrors.Error())
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// A plain error string does not count; the sentinel must be wrapped.
	job := waitForState(t, svc, id, StateFailed)
	if job.FailReason == "" {
		t.Error("fail reason missing")
	}

	id, err = svc.Submit(ctx, KindImport, func(ctx context.Context) (any, error) {
		return map[string]int{"rejected": 2}, ErrCompletedWithErrors
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForState(t, svc, id, StateCompletedWithErrors)
}

func TestCancelRunningJob(t *testing.T) {
	svc := New(NewMemoryStore(), 1, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	started := make(chan struct{})
	id, err := svc.Submit(ctx, KindReport, func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	<-started
	if err := svc.Cancel(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	waitForState(t, svc, id, StateCancelled)
}

func TestQueueFullFailsFast(t *testing.T) {
	svc := New(NewMemoryStore(), 1, 1)
	// No workers started: the queue fills immediately.

	blocker := func(ctx context.Context) (any, error) { return nil, nil }
	if _, err := svc.Submit(context.Background(), KindImport, blocker); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := svc.Submit(context.Background(), KindImport, blocker)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestCancelPendingJob(t *testing.T) {
	svc := New(NewMemoryStore(), 1, 4)
	// Not started: submitted jobs stay pending in the queue.

	id, err := svc.Submit(context.Background(), KindImport, func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Cancel(context.Background(), id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	job, err := svc.Status(context.Background(), id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if job.State != StateCancelled {
		t.Errorf("state = %s", job.State)
	}
}
