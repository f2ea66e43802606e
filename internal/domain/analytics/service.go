package analytics

import (
	"context"
	"time"

	"transparencia/internal/domain/registry"
)

// Service answers analytical queries over the normalized store. Reads only;
// every derived number is computed in exact decimal arithmetic.
type Service struct {
	store registry.Store
}

func New(store registry.Store) *Service {
	return &Service{store: store}
}

func (s *Service) employeesByID(ctx context.Context) (map[string]registry.Employee, []registry.Employee, error) {
	emps, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]registry.Employee, len(emps))
	for _, emp := range emps {
		byID[emp.ID] = emp
	}
	return byID, emps, nil
}

// Summary aggregates remuneration events in scope per period and role.
func (s *Service) Summary(ctx context.Context, scope registry.Scope) (Summary, error) {
	recs, err := s.store.ListRemunerations(ctx, scope)
	if err != nil {
		return Summary{}, err
	}
	byID, _, err := s.employeesByID(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(scope, recs, byID), nil
}

// ComparePeriods loads both periods under the same org and role filters and
// pairs employees by document.
func (s *Service) ComparePeriods(ctx context.Context, a, b registry.Period, org, roleID string) (Comparison, error) {
	recsA, err := s.store.ListRemunerations(ctx, registry.Scope{From: a, To: a, Org: org, RoleID: roleID})
	if err != nil {
		return Comparison{}, err
	}
	recsB, err := s.store.ListRemunerations(ctx, registry.Scope{From: b, To: b, Org: org, RoleID: roleID})
	if err != nil {
		return Comparison{}, err
	}
	byID, _, err := s.employeesByID(ctx)
	if err != nil {
		return Comparison{}, err
	}
	return ComparePeriods(a, b, recsA, recsB, byID), nil
}

func yearScope(year int) registry.Scope {
	return registry.Scope{
		From: registry.Period{Year: year, Month: 1},
		To:   registry.Period{Year: year, Month: 12},
	}
}

// CompareYears reduces two whole years to headcount and mean net deltas.
func (s *Service) CompareYears(ctx context.Context, yearA, yearB int) (YearComparison, error) {
	recsA, err := s.store.ListRemunerations(ctx, yearScope(yearA))
	if err != nil {
		return YearComparison{}, err
	}
	recsB, err := s.store.ListRemunerations(ctx, yearScope(yearB))
	if err != nil {
		return YearComparison{}, err
	}
	return CompareYears(yearA, yearB, recsA, recsB), nil
}

// Insights derives the findings for one year.
func (s *Service) Insights(ctx context.Context, year int) (*InsightReport, error) {
	scope := yearScope(year)
	recs, err := s.store.ListRemunerations(ctx, scope)
	if err != nil {
		return nil, err
	}
	leaves, err := s.store.ListLeaves(ctx, scope)
	if err != nil {
		return nil, err
	}
	remarks, err := s.store.ListRemarks(ctx, scope)
	if err != nil {
		return nil, err
	}
	_, emps, err := s.employeesByID(ctx)
	if err != nil {
		return nil, err
	}
	return BuildInsights(year, emps, recs, leaves, remarks), nil
}

// FullReport assembles the payload a report job persists: the summary, the
// insight section when the scope stays within one year, and the comparison
// of the two most recent periods in scope.
func (s *Service) FullReport(ctx context.Context, scope registry.Scope) (Report, error) {
	summary, err := s.Summary(ctx, scope)
	if err != nil {
		return Report{}, err
	}
	report := Report{
		GeneratedAt: time.Now().UTC(),
		Scope:       scope,
		Summary:     summary,
	}

	if scope.From.Year != 0 && scope.From.Year == scope.To.Year {
		insights, err := s.Insights(ctx, scope.From.Year)
		if err != nil {
			return Report{}, err
		}
		report.Insights = insights
	}

	if n := len(summary.Periods); n >= 2 {
		a := summary.Periods[n-2].Period
		b := summary.Periods[n-1].Period
		cmp, err := s.ComparePeriods(ctx, a, b, scope.Org, scope.RoleID)
		if err != nil {
			return Report{}, err
		}
		report.Comparison = &cmp
	}
	return report, nil
}
