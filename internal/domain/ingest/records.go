package ingest

import (
	"time"

	"github.com/shopspring/decimal"

	"transparencia/internal/domain/registry"
)

// Record is a normalized, validated row awaiting resolution.
type Record interface {
	RecordKind() Kind
}

type EmployeeRecord struct {
	Document     string
	CPF          string
	Name         string
	RoleTitle    string
	SuperiorOrg  string
	Org          string
	Regime       string
	WorkSchedule string
}

func (EmployeeRecord) RecordKind() Kind { return KindEmployee }

type RoleRecord struct {
	Code     string
	Title    string
	Category string
	Class    string
	Level    *int64
}

func (RoleRecord) RecordKind() Kind { return KindRole }

type RemunerationRecord struct {
	Document   string
	Period     registry.Period
	Gross      decimal.Decimal
	Net        decimal.Decimal
	Components map[string]decimal.Decimal
}

func (RemunerationRecord) RecordKind() Kind { return KindRemuneration }

type LeaveRecord struct {
	Document  string
	Period    registry.Period
	StartDate time.Time
	EndDate   *time.Time
	Reason    string
}

func (LeaveRecord) RecordKind() Kind { return KindLeave }

type RemarkRecord struct {
	Document string
	Period   registry.Period
	Text     string
}

func (RemarkRecord) RecordKind() Kind { return KindRemark }
