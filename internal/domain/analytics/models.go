package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"transparencia/internal/domain/registry"
)

// Stats are exact aggregates over one metric. Min and Max are nil when no
// value was observed: absence of data is reported as null, never as zero.
type Stats struct {
	Count int              `json:"count"`
	Sum   decimal.Decimal  `json:"sum"`
	Mean  decimal.Decimal  `json:"mean"`
	Min   *decimal.Decimal `json:"min"`
	Max   *decimal.Decimal `json:"max"`
}

// RoleSummary aggregates one role within one period.
type RoleSummary struct {
	RoleTitle string `json:"roleTitle"`
	Employees int    `json:"employees"`
	Net       Stats  `json:"net"`
}

// PeriodSummary aggregates one reporting period.
type PeriodSummary struct {
	Period     registry.Period  `json:"period"`
	Employees  int              `json:"employees"`
	Records    int              `json:"records"`
	Gross      Stats            `json:"gross"`
	Net        Stats            `json:"net"`
	Components map[string]Stats `json:"components,omitempty"`
	ByRole     []RoleSummary    `json:"byRole,omitempty"`
}

// Summary is the exact aggregation the export boundary consumes.
type Summary struct {
	Scope   registry.Scope  `json:"scope"`
	Periods []PeriodSummary `json:"periods"`
}

// EmployeeDelta compares one employee's net remuneration across two periods.
// Employees present in only one period are entered or exited, never dropped.
type EmployeeDelta struct {
	Document string           `json:"document"`
	Name     string           `json:"name"`
	Status   string           `json:"status"` // present, entered, exited
	NetA     *decimal.Decimal `json:"netA"`
	NetB     *decimal.Decimal `json:"netB"`
	Delta    *decimal.Decimal `json:"delta,omitempty"`
}

const (
	StatusPresent = "present"
	StatusEntered = "entered"
	StatusExited  = "exited"
)

// Comparison is the month-over-month delta report between periods A and B.
type Comparison struct {
	PeriodA    registry.Period `json:"periodA"`
	PeriodB    registry.Period `json:"periodB"`
	Present    int             `json:"present"`
	Entered    int             `json:"entered"`
	Exited     int             `json:"exited"`
	TotalA     decimal.Decimal `json:"totalA"`
	TotalB     decimal.Decimal `json:"totalB"`
	TotalDelta decimal.Decimal `json:"totalDelta"`
	Employees  []EmployeeDelta `json:"employees"`
}

// YearComparison mirrors the portal's year-over-year endpoint.
type YearComparison struct {
	YearA        int              `json:"yearA"`
	YearB        int              `json:"yearB"`
	ActiveA      int              `json:"activeA"`
	ActiveB      int              `json:"activeB"`
	ActiveDelta  int              `json:"activeDelta"`
	MeanNetA     decimal.Decimal  `json:"meanNetA"`
	MeanNetB     decimal.Decimal  `json:"meanNetB"`
	MeanNetDelta decimal.Decimal  `json:"meanNetDelta"`
	MeanNetPct   *decimal.Decimal `json:"meanNetVariationPct"`
}

// Insight is one derived finding, shaped like the portal's insight cards.
type Insight struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Period      string `json:"period,omitempty"`
}

// CountItem is one bucket of an organizational distribution.
type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// MonthCount is the monthly leave distribution bucket.
type MonthCount struct {
	Month int `json:"month"`
	Count int `json:"count"`
}

// InsightReport is the derived-insight section of a full report.
type InsightReport struct {
	Year                int              `json:"year"`
	TotalEmployees      int              `json:"totalEmployees"`
	ActiveEmployees     int              `json:"activeEmployees"`
	ActivityRatePct     *decimal.Decimal `json:"activityRatePct"`
	TotalNet            decimal.Decimal  `json:"totalNet"`
	MeanNet             decimal.Decimal  `json:"meanNet"`
	DisparityRatio      *decimal.Decimal `json:"disparityRatio"`
	TotalLeaves         int              `json:"totalLeaves"`
	LeaveRatePct        *decimal.Decimal `json:"leaveRatePct"`
	LeavesByMonth       []MonthCount     `json:"leavesByMonth,omitempty"`
	AboveCeilingRemarks int              `json:"aboveCeilingRemarks"`
	TopRoles            []RoleSummary    `json:"topRoles,omitempty"`
	BySuperiorOrg       []CountItem      `json:"bySuperiorOrg,omitempty"`
	ByOrg               []CountItem      `json:"byOrg,omitempty"`
	ByRegime            []CountItem      `json:"byRegime,omitempty"`
	ByWorkSchedule      []CountItem      `json:"byWorkSchedule,omitempty"`
	Insights            []Insight        `json:"insights,omitempty"`
}

// Report is the full multi-section payload produced by a report job. The
// export boundary renders it; this package never formats bytes.
type Report struct {
	GeneratedAt time.Time      `json:"generatedAt"`
	Scope       registry.Scope `json:"scope"`
	Summary     Summary        `json:"summary"`
	Insights    *InsightReport `json:"insights,omitempty"`
	Comparison  *Comparison    `json:"comparison,omitempty"`
}

// Row is the flat (period, group, metric, value) shape handed to external
// serializers. Values are exact decimal strings.
type Row struct {
	Period string `csv:"period" json:"period"`
	Group  string `csv:"group" json:"group"`
	Metric string `csv:"metric" json:"metric"`
	Value  string `csv:"value" json:"value"`
}
