package registry

import "context"

// RowWrite carries everything one accepted import row produces. ApplyRow
// commits all non-nil parts atomically: a remuneration is never persisted
// without its owning employee.
type RowWrite struct {
	Employee     *Employee
	Role         *Role
	Remuneration *Remuneration
	Leave        *Leave
	Remark       *Remark
}

// Store is the persistence boundary for the normalized store. Implementations
// guarantee transactional atomicity per ApplyRow and read-your-writes within
// a batch; the ingestion and analytics code is agnostic to the engine behind
// it.
type Store interface {
	EmployeeByDocument(ctx context.Context, document string) (Employee, error)
	EmployeeByID(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)

	RoleByKey(ctx context.Context, key string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)

	RemunerationFor(ctx context.Context, employeeID string, period Period) (Remuneration, error)
	ListRemunerations(ctx context.Context, scope Scope) ([]Remuneration, error)

	LeavesForEmployee(ctx context.Context, employeeID string) ([]Leave, error)
	ListLeaves(ctx context.Context, scope Scope) ([]Leave, error)

	ListRemarks(ctx context.Context, scope Scope) ([]Remark, error)

	ApplyRow(ctx context.Context, write RowWrite) error

	CreateBatch(ctx context.Context, batch Batch) error
	UpdateBatch(ctx context.Context, batch Batch) error
	FinalizeBatch(ctx context.Context, batch Batch) error
	BatchByID(ctx context.Context, id string) (Batch, error)
	BatchByChecksum(ctx context.Context, checksum string) (Batch, error)
}
