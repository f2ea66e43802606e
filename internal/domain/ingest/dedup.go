package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"transparencia/internal/domain/registry"
)

// Outcome of one row through the dedup and upsert engine.
type Outcome string

const (
	Inserted         Outcome = "inserted"
	Updated          Outcome = "updated"
	SkippedDuplicate Outcome = "skipped_duplicate"
)

// Policy fixes the re-import behavior for differing values on an existing
// period record: overwrite and log the diff (the default), or refuse the
// update and keep the stored version.
type Policy struct {
	KeepExisting bool
}

const lockStripes = 256

// Engine decides, per resolved record, whether it is new, an update, or a
// duplicate, and applies idempotent writes. One engine is shared by all
// batches in the process: writes touching the same employee identity
// serialize on its stripe lock, so overlapping imports never lose updates.
type Engine struct {
	store  registry.Store
	policy Policy
	locks  [lockStripes]sync.Mutex
}

func NewEngine(store registry.Store, policy Policy) *Engine {
	return &Engine{store: store, policy: policy}
}

func (e *Engine) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &e.locks[h.Sum32()%lockStripes]
}

func (e *Engine) Apply(ctx context.Context, resolved Resolved) (Outcome, error) {
	switch record := resolved.Record.(type) {
	case EmployeeRecord:
		return e.applyEmployee(ctx, resolved)
	case RoleRecord:
		return e.applyRole(ctx, resolved)
	case RemunerationRecord:
		return e.applyRemuneration(ctx, resolved, record)
	case LeaveRecord:
		return e.applyLeave(ctx, resolved, record)
	case RemarkRecord:
		return e.applyRemark(ctx, resolved, record)
	default:
		return "", fmt.Errorf("ingest: unhandled record type %T", resolved.Record)
	}
}

func (e *Engine) applyEmployee(ctx context.Context, resolved Resolved) (Outcome, error) {
	employee := resolved.Employee
	lock := e.lockFor(employee.Document)
	lock.Lock()
	defer lock.Unlock()

	write := registry.RowWrite{Employee: employee, Role: resolved.Role}

	// Re-read under the lock: a staged identity may have been committed by
	// an earlier row of this or a concurrent batch.
	existing, err := e.store.EmployeeByDocument(ctx, employee.Document)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		if err := e.store.ApplyRow(ctx, write); err != nil {
			return "", err
		}
		return Inserted, nil
	case err != nil:
		return "", err
	}

	incoming := *employee
	incoming.ID = existing.ID
	if existing == incoming {
		return SkippedDuplicate, nil
	}
	if err := e.store.ApplyRow(ctx, write); err != nil {
		return "", err
	}
	return Updated, nil
}

func (e *Engine) applyRole(ctx context.Context, resolved Resolved) (Outcome, error) {
	role := resolved.Role
	lock := e.lockFor(role.Key())
	lock.Lock()
	defer lock.Unlock()

	existing, err := e.store.RoleByKey(ctx, role.Key())
	switch {
	case errors.Is(err, registry.ErrNotFound):
		if err := e.store.ApplyRow(ctx, registry.RowWrite{Role: role}); err != nil {
			return "", err
		}
		return Inserted, nil
	case err != nil:
		return "", err
	}

	incoming := *role
	incoming.ID = existing.ID
	if rolesEqual(existing, incoming) {
		return SkippedDuplicate, nil
	}
	if err := e.store.ApplyRow(ctx, registry.RowWrite{Role: role}); err != nil {
		return "", err
	}
	return Updated, nil
}

func rolesEqual(a, b registry.Role) bool {
	if a.Code != b.Code || a.Title != b.Title || a.Category != b.Category || a.Class != b.Class {
		return false
	}
	if a.Level == nil || b.Level == nil {
		return a.Level == b.Level
	}
	return *a.Level == *b.Level
}

// applyRemuneration keys on (employee, period): absent inserts, bit-identical
// values skip, differing values update per policy with the diff logged.
func (e *Engine) applyRemuneration(ctx context.Context, resolved Resolved, record RemunerationRecord) (Outcome, error) {
	employee := resolved.Employee
	lock := e.lockFor(employee.Document)
	lock.Lock()
	defer lock.Unlock()

	incoming := registry.Remuneration{
		ID:         uuid.NewString(),
		EmployeeID: employee.ID,
		Period:     record.Period,
		Gross:      record.Gross,
		Net:        record.Net,
		Components: record.Components,
	}

	existing, err := e.store.RemunerationFor(ctx, employee.ID, record.Period)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		if err := e.store.ApplyRow(ctx, registry.RowWrite{Remuneration: &incoming}); err != nil {
			return "", err
		}
		return Inserted, nil
	case err != nil:
		return "", err
	}

	if existing.Equal(incoming) {
		return SkippedDuplicate, nil
	}
	if e.policy.KeepExisting {
		return SkippedDuplicate, nil
	}

	incoming.ID = existing.ID
	slog.Info("remuneration updated on re-import",
		"employee", employee.Document,
		"period", record.Period.String(),
		"grossBefore", existing.Gross.String(),
		"grossAfter", incoming.Gross.String(),
		"netBefore", existing.Net.String(),
		"netAfter", incoming.Net.String())
	if err := e.store.ApplyRow(ctx, registry.RowWrite{Remuneration: &incoming}); err != nil {
		return "", err
	}
	return Updated, nil
}

// applyLeave keys on (employee, start date, reason). Overlapping but
// non-identical ranges are a conflict, never a merge.
func (e *Engine) applyLeave(ctx context.Context, resolved Resolved, record LeaveRecord) (Outcome, error) {
	employee := resolved.Employee
	lock := e.lockFor(employee.Document)
	lock.Lock()
	defer lock.Unlock()

	incoming := registry.Leave{
		ID:         uuid.NewString(),
		EmployeeID: employee.ID,
		Period:     record.Period,
		StartDate:  record.StartDate,
		EndDate:    record.EndDate,
		ReasonCode: record.Reason,
	}

	stored, err := e.store.LeavesForEmployee(ctx, employee.ID)
	if err != nil {
		return "", err
	}
	for _, leave := range stored {
		sameKey := leave.StartDate.Equal(incoming.StartDate) && leave.ReasonCode == incoming.ReasonCode
		if sameKey && sameEndDate(leave.EndDate, incoming.EndDate) {
			return SkippedDuplicate, nil
		}
		if leave.Overlaps(incoming) {
			return "", &ConflictError{Reason: fmt.Sprintf(
				"leave starting %s overlaps stored leave starting %s for employee %s",
				incoming.StartDate.Format("2006-01-02"), leave.StartDate.Format("2006-01-02"), employee.Document)}
		}
	}

	if err := e.store.ApplyRow(ctx, registry.RowWrite{Leave: &incoming}); err != nil {
		return "", err
	}
	return Inserted, nil
}

// applyRemark appends unconditionally: remarks are free text tied to a
// moment in time and carry no dedup key.
func (e *Engine) applyRemark(ctx context.Context, resolved Resolved, record RemarkRecord) (Outcome, error) {
	employee := resolved.Employee
	lock := e.lockFor(employee.Document)
	lock.Lock()
	defer lock.Unlock()

	remark := registry.Remark{
		ID:           uuid.NewString(),
		EmployeeID:   employee.ID,
		Period:       record.Period,
		Text:         record.Text,
		AboveCeiling: aboveCeiling(record.Text),
		RecordedAt:   time.Now().UTC(),
	}
	if err := e.store.ApplyRow(ctx, registry.RowWrite{Remark: &remark}); err != nil {
		return "", err
	}
	return Inserted, nil
}

// aboveCeiling flags remarks about pay capped at the constitutional ceiling,
// the portal's "ACIMA DO TETO" marker.
func aboveCeiling(text string) bool {
	return strings.Contains(strings.ToUpper(text), "ACIMA DO TETO")
}

func sameEndDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
