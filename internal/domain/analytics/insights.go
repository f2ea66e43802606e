package analytics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"transparencia/internal/domain/registry"
)

const topRolesLimit = 5

// BuildInsights derives the portal-style findings for one year: activity
// rate, pay disparity, leave pressure, organizational distribution and
// above-ceiling remarks. Employees holds the whole registry; recs, leaves
// and remarks are already filtered to the year.
func BuildInsights(year int, employees []registry.Employee, recs []registry.Remuneration, leaves []registry.Leave, remarks []registry.Remark) *InsightReport {
	report := &InsightReport{Year: year, TotalEmployees: len(employees)}

	byID := make(map[string]registry.Employee, len(employees))
	for _, emp := range employees {
		byID[emp.ID] = emp
	}

	active := map[string]struct{}{}
	var net accumulator
	byRole := map[string]*accumulator{}
	roleHeads := map[string]map[string]struct{}{}
	for _, rec := range recs {
		active[rec.EmployeeID] = struct{}{}
		net.add(rec.Net)

		title := byID[rec.EmployeeID].RoleTitle
		if title == "" {
			title = "(sem cargo)"
		}
		acc := byRole[title]
		if acc == nil {
			acc = &accumulator{}
			byRole[title] = acc
			roleHeads[title] = map[string]struct{}{}
		}
		acc.add(rec.Net)
		roleHeads[title][rec.EmployeeID] = struct{}{}
	}
	report.ActiveEmployees = len(active)
	stats := net.stats()
	report.TotalNet = stats.Sum
	report.MeanNet = stats.Mean

	if report.TotalEmployees > 0 {
		rate := decimal.NewFromInt(int64(report.ActiveEmployees)).
			Div(decimal.NewFromInt(int64(report.TotalEmployees))).
			Mul(decimal.NewFromInt(100)).
			Round(meanScale)
		report.ActivityRatePct = &rate
	}
	if stats.Min != nil && stats.Max != nil && !stats.Min.IsZero() {
		ratio := stats.Max.Div(*stats.Min).Round(meanScale)
		report.DisparityRatio = &ratio
	}

	for title, acc := range byRole {
		report.TopRoles = append(report.TopRoles, RoleSummary{
			RoleTitle: title,
			Employees: len(roleHeads[title]),
			Net:       acc.stats(),
		})
	}
	sort.Slice(report.TopRoles, func(i, j int) bool {
		a, b := report.TopRoles[i], report.TopRoles[j]
		if !a.Net.Mean.Equal(b.Net.Mean) {
			return a.Net.Mean.GreaterThan(b.Net.Mean)
		}
		return a.RoleTitle < b.RoleTitle
	})
	if len(report.TopRoles) > topRolesLimit {
		report.TopRoles = report.TopRoles[:topRolesLimit]
	}

	report.TotalLeaves = len(leaves)
	onLeave := map[string]struct{}{}
	months := map[int]int{}
	for _, lv := range leaves {
		onLeave[lv.EmployeeID] = struct{}{}
		months[int(lv.StartDate.Month())]++
	}
	for month := 1; month <= 12; month++ {
		if n := months[month]; n > 0 {
			report.LeavesByMonth = append(report.LeavesByMonth, MonthCount{Month: month, Count: n})
		}
	}
	if report.ActiveEmployees > 0 {
		rate := decimal.NewFromInt(int64(len(onLeave))).
			Div(decimal.NewFromInt(int64(report.ActiveEmployees))).
			Mul(decimal.NewFromInt(100)).
			Round(meanScale)
		report.LeaveRatePct = &rate
	}

	for _, rm := range remarks {
		if rm.AboveCeiling {
			report.AboveCeilingRemarks++
		}
	}

	report.BySuperiorOrg = distribution(employees, active, func(e registry.Employee) string { return e.SuperiorOrg })
	report.ByOrg = distribution(employees, active, func(e registry.Employee) string { return e.Org })
	report.ByRegime = distribution(employees, active, func(e registry.Employee) string { return e.Regime })
	report.ByWorkSchedule = distribution(employees, active, func(e registry.Employee) string { return e.WorkSchedule })

	report.Insights = cards(report)
	return report
}

// distribution buckets the active population by one employee attribute,
// largest bucket first.
func distribution(employees []registry.Employee, active map[string]struct{}, key func(registry.Employee) string) []CountItem {
	counts := map[string]int{}
	for _, emp := range employees {
		if _, ok := active[emp.ID]; !ok {
			continue
		}
		k := key(emp)
		if k == "" {
			k = "(sem informação)"
		}
		counts[k]++
	}
	out := make([]CountItem, 0, len(counts))
	for k, n := range counts {
		out = append(out, CountItem{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func cards(r *InsightReport) []Insight {
	period := fmt.Sprintf("%d", r.Year)
	var out []Insight
	if r.ActivityRatePct != nil {
		out = append(out, Insight{
			Type:        "activity",
			Title:       "Taxa de atividade",
			Value:       r.ActivityRatePct.String() + "%",
			Description: fmt.Sprintf("%d de %d servidores com remuneração registrada", r.ActiveEmployees, r.TotalEmployees),
			Period:      period,
		})
	}
	if r.DisparityRatio != nil {
		out = append(out, Insight{
			Type:        "disparity",
			Title:       "Razão entre maior e menor remuneração",
			Value:       r.DisparityRatio.String() + "x",
			Description: "Maior remuneração líquida dividida pela menor no período",
			Period:      period,
		})
	}
	if r.LeaveRatePct != nil && r.TotalLeaves > 0 {
		out = append(out, Insight{
			Type:        "leave",
			Title:       "Servidores com afastamento",
			Value:       r.LeaveRatePct.String() + "%",
			Description: fmt.Sprintf("%d afastamentos registrados no ano", r.TotalLeaves),
			Period:      period,
		})
	}
	if r.AboveCeilingRemarks > 0 {
		out = append(out, Insight{
			Type:        "ceiling",
			Title:       "Remunerações acima do teto",
			Value:       fmt.Sprintf("%d", r.AboveCeilingRemarks),
			Description: "Observações marcadas como acima do teto constitucional",
			Period:      period,
		})
	}
	if len(r.TopRoles) > 0 {
		top := r.TopRoles[0]
		out = append(out, Insight{
			Type:        "role",
			Title:       "Cargo com maior remuneração média",
			Value:       top.RoleTitle,
			Description: "Média líquida de " + top.Net.Mean.String(),
			Period:      period,
		})
	}
	return out
}
