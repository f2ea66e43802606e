package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres is the pgx-backed Store.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{DB: pool}
}

const employeeColumns = `id, document, COALESCE(cpf,''), name, COALESCE(role_id::text,''), COALESCE(role_title,''),
       COALESCE(superior_org,''), COALESCE(org,''), COALESCE(regime,''), COALESCE(work_schedule,'')`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Document, &e.CPF, &e.Name, &e.RoleID, &e.RoleTitle,
		&e.SuperiorOrg, &e.Org, &e.Regime, &e.WorkSchedule)
	return e, err
}

func (p *Postgres) EmployeeByDocument(ctx context.Context, document string) (Employee, error) {
	rows, err := p.DB.Query(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE document = $1
  `, document)
	if err != nil {
		return Employee{}, err
	}
	defer rows.Close()

	var matches []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Document, &e.CPF, &e.Name, &e.RoleID, &e.RoleTitle,
			&e.SuperiorOrg, &e.Org, &e.Regime, &e.WorkSchedule); err != nil {
			return Employee{}, err
		}
		matches = append(matches, e)
	}
	switch len(matches) {
	case 0:
		return Employee{}, ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return Employee{}, ErrAmbiguous
	}
}

func (p *Postgres) EmployeeByID(ctx context.Context, id string) (Employee, error) {
	employee, err := scanEmployee(p.DB.QueryRow(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	return employee, err
}

func (p *Postgres) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := p.DB.Query(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    ORDER BY document
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Document, &e.CPF, &e.Name, &e.RoleID, &e.RoleTitle,
			&e.SuperiorOrg, &e.Org, &e.Regime, &e.WorkSchedule); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) RoleByKey(ctx context.Context, key string) (Role, error) {
	var role Role
	err := p.DB.QueryRow(ctx, `
    SELECT id, COALESCE(code,''), title, COALESCE(category,''), COALESCE(class,''), level
    FROM roles
    WHERE logical_key = $1
  `, key).Scan(&role.ID, &role.Code, &role.Title, &role.Category, &role.Class, &role.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return role, err
}

func (p *Postgres) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := p.DB.Query(ctx, `
    SELECT id, COALESCE(code,''), title, COALESCE(category,''), COALESCE(class,''), level
    FROM roles
    ORDER BY title
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Title, &role.Category, &role.Class, &role.Level); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (p *Postgres) RemunerationFor(ctx context.Context, employeeID string, period Period) (Remuneration, error) {
	var r Remuneration
	var gross, net string
	var components []byte
	err := p.DB.QueryRow(ctx, `
    SELECT id, employee_id, year, month, gross::text, net::text, components_json
    FROM remunerations
    WHERE employee_id = $1 AND year = $2 AND month = $3
  `, employeeID, period.Year, period.Month).Scan(&r.ID, &r.EmployeeID, &r.Period.Year, &r.Period.Month, &gross, &net, &components)
	if errors.Is(err, pgx.ErrNoRows) {
		return Remuneration{}, ErrNotFound
	}
	if err != nil {
		return Remuneration{}, err
	}
	return decodeRemuneration(r, gross, net, components)
}

func (p *Postgres) ListRemunerations(ctx context.Context, scope Scope) ([]Remuneration, error) {
	query := `
    SELECT r.id, r.employee_id, r.year, r.month, r.gross::text, r.net::text, r.components_json
    FROM remunerations r
    JOIN employees e ON r.employee_id = e.id
    WHERE 1=1
  `
	query, args := scopeFilter(query, nil, scope)
	query += " ORDER BY r.employee_id, r.year, r.month"

	rows, err := p.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Remuneration
	for rows.Next() {
		var r Remuneration
		var gross, net string
		var components []byte
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.Period.Year, &r.Period.Month, &gross, &net, &components); err != nil {
			return nil, err
		}
		decoded, err := decodeRemuneration(r, gross, net, components)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, rows.Err()
}

// scopeFilter appends period and organizational predicates shared by the
// period-keyed listings. Callers start from a query ending in WHERE 1=1.
func scopeFilter(query string, args []any, scope Scope) (string, []any) {
	if !scope.From.IsZero() {
		args = append(args, scope.From.Year*12+scope.From.Month-1)
		query += fmt.Sprintf(" AND (r.year*12 + r.month - 1) >= $%d", len(args))
	}
	if !scope.To.IsZero() {
		args = append(args, scope.To.Year*12+scope.To.Month-1)
		query += fmt.Sprintf(" AND (r.year*12 + r.month - 1) <= $%d", len(args))
	}
	if scope.Org != "" {
		args = append(args, scope.Org)
		query += fmt.Sprintf(" AND (e.org = $%d OR e.superior_org = $%d)", len(args), len(args))
	}
	if scope.RoleID != "" {
		args = append(args, scope.RoleID)
		query += fmt.Sprintf(" AND e.role_id = $%d", len(args))
	}
	return query, args
}

func (p *Postgres) LeavesForEmployee(ctx context.Context, employeeID string) ([]Leave, error) {
	rows, err := p.DB.Query(ctx, `
    SELECT id, employee_id, year, month, start_date, end_date, COALESCE(reason_code,'')
    FROM leaves
    WHERE employee_id = $1
    ORDER BY start_date
  `, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeaves(rows)
}

func (p *Postgres) ListLeaves(ctx context.Context, scope Scope) ([]Leave, error) {
	query := `
    SELECT r.id, r.employee_id, r.year, r.month, r.start_date, r.end_date, COALESCE(r.reason_code,'')
    FROM leaves r
    JOIN employees e ON r.employee_id = e.id
    WHERE 1=1
  `
	query, args := scopeFilter(query, nil, scope)
	query += " ORDER BY r.start_date"

	rows, err := p.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeaves(rows)
}

func collectLeaves(rows pgx.Rows) ([]Leave, error) {
	var out []Leave
	for rows.Next() {
		var leave Leave
		if err := rows.Scan(&leave.ID, &leave.EmployeeID, &leave.Period.Year, &leave.Period.Month,
			&leave.StartDate, &leave.EndDate, &leave.ReasonCode); err != nil {
			return nil, err
		}
		out = append(out, leave)
	}
	return out, rows.Err()
}

func (p *Postgres) ListRemarks(ctx context.Context, scope Scope) ([]Remark, error) {
	query := `
    SELECT r.id, r.employee_id, r.year, r.month, r.text, r.above_ceiling, r.recorded_at
    FROM remarks r
    JOIN employees e ON r.employee_id = e.id
    WHERE 1=1
  `
	query, args := scopeFilter(query, nil, scope)
	query += " ORDER BY r.recorded_at"

	rows, err := p.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Remark
	for rows.Next() {
		var remark Remark
		if err := rows.Scan(&remark.ID, &remark.EmployeeID, &remark.Period.Year, &remark.Period.Month,
			&remark.Text, &remark.AboveCeiling, &remark.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, remark)
	}
	return out, rows.Err()
}

// ApplyRow commits one accepted row inside a single transaction. The employee
// upsert keeps the stored identity on conflict, so child writes always point
// at the canonical ID even when the resolver staged a fresh one.
func (p *Postgres) ApplyRow(ctx context.Context, write RowWrite) error {
	tx, err := p.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	employeeID := ""
	if write.Employee != nil {
		e := write.Employee
		if err := tx.QueryRow(ctx, `
      INSERT INTO employees (id, document, cpf, name, role_id, role_title, superior_org, org, regime, work_schedule)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
      ON CONFLICT (document) DO UPDATE SET
        cpf = EXCLUDED.cpf,
        name = EXCLUDED.name,
        role_id = COALESCE(EXCLUDED.role_id, employees.role_id),
        role_title = EXCLUDED.role_title,
        superior_org = EXCLUDED.superior_org,
        org = EXCLUDED.org,
        regime = EXCLUDED.regime,
        work_schedule = EXCLUDED.work_schedule
      RETURNING id
    `, e.ID, e.Document, e.CPF, e.Name, nullIfEmpty(e.RoleID), e.RoleTitle,
			e.SuperiorOrg, e.Org, e.Regime, e.WorkSchedule).Scan(&employeeID); err != nil {
			return err
		}
	}
	if write.Role != nil {
		role := write.Role
		if _, err := tx.Exec(ctx, `
      INSERT INTO roles (id, logical_key, code, title, category, class, level)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
      ON CONFLICT (logical_key) DO UPDATE SET
        code = EXCLUDED.code,
        title = EXCLUDED.title,
        category = EXCLUDED.category,
        class = EXCLUDED.class,
        level = EXCLUDED.level
    `, role.ID, role.Key(), role.Code, role.Title, role.Category, role.Class, role.Level); err != nil {
			return err
		}
	}
	if write.Remuneration != nil {
		r := write.Remuneration
		if employeeID == "" {
			employeeID = r.EmployeeID
		}
		componentsJSON, err := encodeComponents(r.Components)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
      INSERT INTO remunerations (id, employee_id, year, month, gross, net, components_json)
      VALUES ($1,$2,$3,$4,$5::numeric,$6::numeric,$7)
      ON CONFLICT (employee_id, year, month) DO UPDATE SET
        gross = EXCLUDED.gross,
        net = EXCLUDED.net,
        components_json = EXCLUDED.components_json
    `, r.ID, employeeID, r.Period.Year, r.Period.Month, r.Gross.String(), r.Net.String(), componentsJSON); err != nil {
			return err
		}
	}
	if write.Leave != nil {
		leave := write.Leave
		if employeeID == "" {
			employeeID = leave.EmployeeID
		}
		if _, err := tx.Exec(ctx, `
      INSERT INTO leaves (id, employee_id, year, month, start_date, end_date, reason_code)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
      ON CONFLICT (employee_id, start_date, reason_code) DO NOTHING
    `, leave.ID, employeeID, leave.Period.Year, leave.Period.Month, leave.StartDate, leave.EndDate, leave.ReasonCode); err != nil {
			return err
		}
	}
	if write.Remark != nil {
		remark := write.Remark
		if employeeID == "" {
			employeeID = remark.EmployeeID
		}
		if _, err := tx.Exec(ctx, `
      INSERT INTO remarks (id, employee_id, year, month, text, above_ceiling, recorded_at)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, remark.ID, employeeID, remark.Period.Year, remark.Period.Month, remark.Text, remark.AboveCeiling, remark.RecordedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func decodeRemuneration(r Remuneration, gross, net string, componentsJSON []byte) (Remuneration, error) {
	var err error
	if r.Gross, err = decimal.NewFromString(gross); err != nil {
		return Remuneration{}, fmt.Errorf("decode gross: %w", err)
	}
	if r.Net, err = decimal.NewFromString(net); err != nil {
		return Remuneration{}, fmt.Errorf("decode net: %w", err)
	}
	if len(componentsJSON) > 0 {
		raw := map[string]string{}
		if err := json.Unmarshal(componentsJSON, &raw); err != nil {
			return Remuneration{}, fmt.Errorf("decode components: %w", err)
		}
		r.Components = make(map[string]decimal.Decimal, len(raw))
		for name, amount := range raw {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return Remuneration{}, fmt.Errorf("decode component %s: %w", name, err)
			}
			r.Components[name] = value
		}
	}
	return r, nil
}

// encodeComponents stores amounts as strings so numeric values round-trip
// without float formatting.
func encodeComponents(components map[string]decimal.Decimal) ([]byte, error) {
	raw := make(map[string]string, len(components))
	for name, amount := range components {
		raw[name] = amount.String()
	}
	return json.Marshal(raw)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
