package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"transparencia/internal/domain/registry"
)

// Resolved binds a normalized record to canonical identities. Staged
// identities are minted but not yet persisted; the dedup stage commits them,
// which keeps resolution free of side effects and retryable.
type Resolved struct {
	Record      Record
	Employee    *registry.Employee
	NewEmployee bool
	Role        *registry.Role
	NewRole     bool
}

// Resolver maps records to identities for one batch. Two rows in the same
// batch resolving to the same not-yet-persisted key get the same minted
// identity, never two.
type Resolver struct {
	store registry.Store

	mu              sync.Mutex
	stagedEmployees map[string]*registry.Employee // by document
	stagedRoles     map[string]*registry.Role     // by logical key
}

func NewResolver(store registry.Store) *Resolver {
	return &Resolver{
		store:           store,
		stagedEmployees: map[string]*registry.Employee{},
		stagedRoles:     map[string]*registry.Role{},
	}
}

func (r *Resolver) Resolve(ctx context.Context, record Record) (Resolved, error) {
	switch rec := record.(type) {
	case EmployeeRecord:
		return r.resolveEmployee(ctx, rec)
	case RoleRecord:
		return r.resolveRole(ctx, rec)
	case RemunerationRecord:
		return r.requireEmployee(ctx, record, rec.Document)
	case LeaveRecord:
		return r.requireEmployee(ctx, record, rec.Document)
	case RemarkRecord:
		return r.requireEmployee(ctx, record, rec.Document)
	default:
		return Resolved{}, fmt.Errorf("ingest: unhandled record type %T", record)
	}
}

func (r *Resolver) resolveEmployee(ctx context.Context, record EmployeeRecord) (Resolved, error) {
	resolved := Resolved{Record: record}

	employee, isNew, err := r.employeeIdentity(ctx, record.Document)
	if err != nil {
		return Resolved{}, err
	}
	employee.CPF = record.CPF
	employee.Name = record.Name
	employee.RoleTitle = record.RoleTitle
	employee.SuperiorOrg = record.SuperiorOrg
	employee.Org = record.Org
	employee.Regime = record.Regime
	employee.WorkSchedule = record.WorkSchedule

	if record.RoleTitle != "" {
		role, isNewRole, err := r.roleIdentity(ctx, registry.Role{Title: record.RoleTitle})
		if err != nil {
			return Resolved{}, err
		}
		employee.RoleID = role.ID
		resolved.Role = role
		resolved.NewRole = isNewRole
	}

	resolved.Employee = employee
	resolved.NewEmployee = isNew
	return resolved, nil
}

func (r *Resolver) resolveRole(ctx context.Context, record RoleRecord) (Resolved, error) {
	role, isNew, err := r.roleIdentity(ctx, registry.Role{
		Code:     record.Code,
		Title:    record.Title,
		Category: record.Category,
		Class:    record.Class,
		Level:    record.Level,
	})
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Record: record, Role: role, NewRole: isNew}, nil
}

// requireEmployee binds a period-bound record to an existing identity.
// Unknown documents are a resolution failure, not an implicit creation:
// remunerations and leaves never invent employees.
func (r *Resolver) requireEmployee(ctx context.Context, record Record, document string) (Resolved, error) {
	r.mu.Lock()
	staged := r.stagedEmployees[document]
	r.mu.Unlock()
	if staged != nil {
		return Resolved{Record: record, Employee: staged}, nil
	}

	employee, err := r.store.EmployeeByDocument(ctx, document)
	if errors.Is(err, registry.ErrNotFound) {
		return Resolved{}, &ResolutionError{Kind: ResolutionNotFound, Document: document}
	}
	if errors.Is(err, registry.ErrAmbiguous) {
		return Resolved{}, &ResolutionError{Kind: ResolutionAmbiguous, Document: document}
	}
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Record: record, Employee: &employee}, nil
}

func (r *Resolver) employeeIdentity(ctx context.Context, document string) (*registry.Employee, bool, error) {
	r.mu.Lock()
	if staged := r.stagedEmployees[document]; staged != nil {
		r.mu.Unlock()
		copied := *staged
		return &copied, true, nil
	}
	r.mu.Unlock()

	existing, err := r.store.EmployeeByDocument(ctx, document)
	switch {
	case err == nil:
		return &existing, false, nil
	case errors.Is(err, registry.ErrAmbiguous):
		return nil, false, &ResolutionError{Kind: ResolutionAmbiguous, Document: document}
	case errors.Is(err, registry.ErrNotFound):
		// Mint under the lock so concurrent rows share one identity.
		r.mu.Lock()
		defer r.mu.Unlock()
		if staged := r.stagedEmployees[document]; staged != nil {
			copied := *staged
			return &copied, true, nil
		}
		minted := &registry.Employee{ID: uuid.NewString(), Document: document}
		r.stagedEmployees[document] = minted
		copied := *minted
		return &copied, true, nil
	default:
		return nil, false, err
	}
}

func (r *Resolver) roleIdentity(ctx context.Context, role registry.Role) (*registry.Role, bool, error) {
	key := role.Key()

	r.mu.Lock()
	if staged := r.stagedRoles[key]; staged != nil {
		r.mu.Unlock()
		copied := *staged
		return &copied, true, nil
	}
	r.mu.Unlock()

	existing, err := r.store.RoleByKey(ctx, key)
	switch {
	case err == nil:
		return &existing, false, nil
	case errors.Is(err, registry.ErrNotFound):
		r.mu.Lock()
		defer r.mu.Unlock()
		if staged := r.stagedRoles[key]; staged != nil {
			copied := *staged
			return &copied, true, nil
		}
		role.ID = uuid.NewString()
		minted := role
		r.stagedRoles[key] = &minted
		copied := minted
		return &copied, true, nil
	default:
		return nil, false, err
	}
}
