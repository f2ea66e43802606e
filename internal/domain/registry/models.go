package registry

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the canonical identity for a public servant. Document is the
// identity key: one employee per unique document, name changes update in place.
type Employee struct {
	ID           string `json:"id"`
	Document     string `json:"document"`
	CPF          string `json:"cpf,omitempty"`
	Name         string `json:"name"`
	RoleID       string `json:"roleId,omitempty"`
	RoleTitle    string `json:"roleTitle"`
	SuperiorOrg  string `json:"superiorOrg"`
	Org          string `json:"org"`
	Regime       string `json:"regime"`
	WorkSchedule string `json:"workSchedule"`
}

// Role is a position shared by many employees.
type Role struct {
	ID       string `json:"id"`
	Code     string `json:"code,omitempty"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Class    string `json:"class,omitempty"`
	Level    *int64 `json:"level,omitempty"`
}

// Key is the logical dedup key for a role: distinct field combinations are
// distinct roles, matching ones resolve to the same identity.
func (r Role) Key() string {
	level := ""
	if r.Level != nil {
		level = itoa64(*r.Level)
	}
	parts := []string{r.Code, r.Title, r.Category, r.Class, level}
	for i, p := range parts {
		parts[i] = strings.ToUpper(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// Remuneration is one employee's pay for one period. Components itemize the
// pay slip by component name; Gross and Net are the headline amounts.
type Remuneration struct {
	ID         string                     `json:"id"`
	EmployeeID string                     `json:"employeeId"`
	Period     Period                     `json:"period"`
	Gross      decimal.Decimal            `json:"gross"`
	Net        decimal.Decimal            `json:"net"`
	Components map[string]decimal.Decimal `json:"components,omitempty"`
}

// Equal reports whether two remunerations carry identical values, the
// duplicate test on re-import.
func (r Remuneration) Equal(other Remuneration) bool {
	if !r.Gross.Equal(other.Gross) || !r.Net.Equal(other.Net) {
		return false
	}
	if len(r.Components) != len(other.Components) {
		return false
	}
	for name, amount := range r.Components {
		theirs, ok := other.Components[name]
		if !ok || !amount.Equal(theirs) {
			return false
		}
	}
	return true
}

// Leave is an absence event. EndDate nil means ongoing.
type Leave struct {
	ID         string     `json:"id"`
	EmployeeID string     `json:"employeeId"`
	Period     Period     `json:"period"`
	StartDate  time.Time  `json:"startDate"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	ReasonCode string     `json:"reasonCode,omitempty"`
}

// Overlaps reports whether two leave ranges intersect. An open-ended leave
// overlaps everything from its start onward.
func (l Leave) Overlaps(other Leave) bool {
	if other.EndDate != nil && other.EndDate.Before(l.StartDate) {
		return false
	}
	if l.EndDate != nil && l.EndDate.Before(other.StartDate) {
		return false
	}
	return true
}

// Remark is a free-text note tied to a moment in time; append-only.
type Remark struct {
	ID           string    `json:"id"`
	EmployeeID   string    `json:"employeeId"`
	Period       Period    `json:"period"`
	Text         string    `json:"text"`
	AboveCeiling bool      `json:"aboveCeiling"`
	RecordedAt   time.Time `json:"recordedAt"`
}

// Batch states.
const (
	BatchPending             = "pending"
	BatchRunning             = "running"
	BatchCompleted           = "completed"
	BatchCompletedWithErrors = "completed_with_errors"
	BatchFailed              = "failed"
	BatchCancelled           = "cancelled"
)

// RowError is one rejected row in a batch error log.
type RowError struct {
	Row    int    `json:"row"`
	Kind   string `json:"kind"`
	Field  string `json:"field,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// Batch is the audit trail for one bounded import run over a single file.
// It references entities but never owns them: a failed batch leaves
// previously committed entities untouched.
type Batch struct {
	ID          string     `json:"id"`
	FileName    string     `json:"fileName"`
	Checksum    string     `json:"checksum,omitempty"`
	State       string     `json:"state"`
	Accepted    int        `json:"accepted"`
	Updated     int        `json:"updated"`
	Duplicates  int        `json:"duplicates"`
	Rejected    int        `json:"rejected"`
	Errors      []RowError `json:"errors,omitempty"`
	FailReason  string     `json:"failReason,omitempty"`
	LastRow     int        `json:"lastRow"`
	CreatedAt   time.Time  `json:"createdAt"`
	FinalizedAt *time.Time `json:"finalizedAt,omitempty"`
}

// Scope bounds an analytics query by period range and organizational filter.
// Zero-valued bounds are unbounded.
type Scope struct {
	From   Period `json:"from,omitempty"`
	To     Period `json:"to,omitempty"`
	Org    string `json:"org,omitempty"`
	RoleID string `json:"roleId,omitempty"`
}

func (s Scope) ContainsPeriod(p Period) bool {
	if !s.From.IsZero() && p.Index() < s.From.Index() {
		return false
	}
	if !s.To.IsZero() && p.Index() > s.To.Index() {
		return false
	}
	return true
}

func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}
