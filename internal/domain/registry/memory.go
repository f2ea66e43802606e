package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory is the single-process Store used by tests and dev mode. Writes take
// the store-wide lock, which gives ApplyRow its atomicity for free.
type Memory struct {
	mu            sync.RWMutex
	employees     map[string]Employee // by ID
	documentIndex map[string][]string // document -> employee IDs
	roles         map[string]Role     // by logical key
	remunerations map[string]Remuneration
	leaves        map[string][]Leave // by employee ID
	remarks       []Remark
	batches       map[string]Batch
}

func NewMemory() *Memory {
	return &Memory{
		employees:     map[string]Employee{},
		documentIndex: map[string][]string{},
		roles:         map[string]Role{},
		remunerations: map[string]Remuneration{},
		leaves:        map[string][]Leave{},
		batches:       map[string]Batch{},
	}
}

func remunerationKey(employeeID string, p Period) string {
	return employeeID + "|" + p.String()
}

func (m *Memory) EmployeeByDocument(ctx context.Context, document string) (Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.documentIndex[document]
	switch len(ids) {
	case 0:
		return Employee{}, ErrNotFound
	case 1:
		return m.employees[ids[0]], nil
	default:
		return Employee{}, ErrAmbiguous
	}
}

func (m *Memory) EmployeeByID(ctx context.Context, id string) (Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	employee, ok := m.employees[id]
	if !ok {
		return Employee{}, ErrNotFound
	}
	return employee, nil
}

func (m *Memory) ListEmployees(ctx context.Context) ([]Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Employee, 0, len(m.employees))
	for _, employee := range m.employees {
		out = append(out, employee)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Document < out[j].Document })
	return out, nil
}

func (m *Memory) RoleByKey(ctx context.Context, key string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[key]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (m *Memory) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *Memory) RemunerationFor(ctx context.Context, employeeID string, period Period) (Remuneration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	remuneration, ok := m.remunerations[remunerationKey(employeeID, period)]
	if !ok {
		return Remuneration{}, ErrNotFound
	}
	return cloneRemuneration(remuneration), nil
}

func (m *Memory) ListRemunerations(ctx context.Context, scope Scope) ([]Remuneration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Remuneration
	for _, remuneration := range m.remunerations {
		if !scope.ContainsPeriod(remuneration.Period) {
			continue
		}
		if !m.matchesOrgLocked(remuneration.EmployeeID, scope) {
			continue
		}
		out = append(out, cloneRemuneration(remuneration))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].Period.Before(out[j].Period)
	})
	return out, nil
}

func (m *Memory) matchesOrgLocked(employeeID string, scope Scope) bool {
	if scope.Org == "" && scope.RoleID == "" {
		return true
	}
	employee, ok := m.employees[employeeID]
	if !ok {
		return false
	}
	if scope.Org != "" && employee.Org != scope.Org && employee.SuperiorOrg != scope.Org {
		return false
	}
	if scope.RoleID != "" && employee.RoleID != scope.RoleID {
		return false
	}
	return true
}

func (m *Memory) LeavesForEmployee(ctx context.Context, employeeID string) ([]Leave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Leave, len(m.leaves[employeeID]))
	copy(out, m.leaves[employeeID])
	return out, nil
}

func (m *Memory) ListLeaves(ctx context.Context, scope Scope) ([]Leave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Leave
	for _, leaves := range m.leaves {
		for _, leave := range leaves {
			if scope.ContainsPeriod(leave.Period) && m.matchesOrgLocked(leave.EmployeeID, scope) {
				out = append(out, leave)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *Memory) ListRemarks(ctx context.Context, scope Scope) ([]Remark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Remark
	for _, remark := range m.remarks {
		if scope.ContainsPeriod(remark.Period) && m.matchesOrgLocked(remark.EmployeeID, scope) {
			out = append(out, remark)
		}
	}
	return out, nil
}

func (m *Memory) ApplyRow(ctx context.Context, write RowWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	employeeID := ""
	if write.Employee != nil {
		employee := *write.Employee
		if ids := m.documentIndex[employee.Document]; len(ids) > 0 {
			// Existing identity wins; incoming attributes update in place.
			existing := m.employees[ids[0]]
			employee.ID = existing.ID
		} else {
			m.documentIndex[employee.Document] = append(m.documentIndex[employee.Document], employee.ID)
		}
		m.employees[employee.ID] = employee
		employeeID = employee.ID
	}
	if write.Role != nil {
		role := *write.Role
		if existing, ok := m.roles[role.Key()]; ok {
			role.ID = existing.ID
		}
		m.roles[role.Key()] = role
	}
	if write.Remuneration != nil {
		remuneration := cloneRemuneration(*write.Remuneration)
		if employeeID != "" {
			remuneration.EmployeeID = employeeID
		}
		m.remunerations[remunerationKey(remuneration.EmployeeID, remuneration.Period)] = remuneration
	}
	if write.Leave != nil {
		leave := *write.Leave
		if employeeID != "" {
			leave.EmployeeID = employeeID
		}
		m.leaves[leave.EmployeeID] = append(m.leaves[leave.EmployeeID], leave)
	}
	if write.Remark != nil {
		remark := *write.Remark
		if employeeID != "" {
			remark.EmployeeID = employeeID
		}
		m.remarks = append(m.remarks, remark)
	}
	return nil
}

func (m *Memory) CreateBatch(ctx context.Context, batch Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batch.ID] = cloneBatch(batch)
	return nil
}

func (m *Memory) UpdateBatch(ctx context.Context, batch Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.batches[batch.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.FinalizedAt != nil {
		return ErrBatchFinalized
	}
	m.batches[batch.ID] = cloneBatch(batch)
	return nil
}

func (m *Memory) FinalizeBatch(ctx context.Context, batch Batch) error {
	if batch.FinalizedAt == nil {
		return ErrBatchFinalized
	}
	return m.UpdateBatch(ctx, batch)
}

func (m *Memory) BatchByID(ctx context.Context, id string) (Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	batch, ok := m.batches[id]
	if !ok {
		return Batch{}, ErrNotFound
	}
	return cloneBatch(batch), nil
}

func (m *Memory) BatchByChecksum(ctx context.Context, checksum string) (Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, batch := range m.batches {
		if batch.Checksum == checksum && checksum != "" {
			return cloneBatch(batch), nil
		}
	}
	return Batch{}, ErrNotFound
}

func cloneRemuneration(r Remuneration) Remuneration {
	out := r
	if r.Components != nil {
		out.Components = make(map[string]decimal.Decimal, len(r.Components))
		for name, amount := range r.Components {
			out.Components[name] = amount
		}
	}
	return out
}

func cloneBatch(b Batch) Batch {
	out := b
	out.Errors = make([]RowError, len(b.Errors))
	copy(out.Errors, b.Errors)
	return out
}
