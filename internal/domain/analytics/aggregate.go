package analytics

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"transparencia/internal/domain/registry"
)

// meanScale is the rounding applied to derived ratios. Sums are never
// rounded; they stay exact.
const meanScale = 2

type accumulator struct {
	count int
	sum   decimal.Decimal
	min   decimal.Decimal
	max   decimal.Decimal
}

func (a *accumulator) add(v decimal.Decimal) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		if v.LessThan(a.min) {
			a.min = v
		}
		if v.GreaterThan(a.max) {
			a.max = v
		}
	}
	a.count++
	a.sum = a.sum.Add(v)
}

func (a *accumulator) stats() Stats {
	s := Stats{Count: a.count, Sum: a.sum}
	if a.count == 0 {
		return s
	}
	s.Mean = a.sum.DivRound(decimal.NewFromInt(int64(a.count)), meanScale)
	min, max := a.min, a.max
	s.Min = &min
	s.Max = &max
	return s
}

// Summarize folds remuneration events into per-period aggregates, grouped by
// role via the owning employee. Pure over its inputs so tests can feed it
// directly.
func Summarize(scope registry.Scope, recs []registry.Remuneration, employees map[string]registry.Employee) Summary {
	type periodAgg struct {
		gross      accumulator
		net        accumulator
		components map[string]*accumulator
		byRole     map[string]*accumulator
		employees  map[string]struct{}
	}

	byPeriod := map[registry.Period]*periodAgg{}
	records := map[registry.Period]int{}
	for _, rec := range recs {
		agg, ok := byPeriod[rec.Period]
		if !ok {
			agg = &periodAgg{
				components: map[string]*accumulator{},
				byRole:     map[string]*accumulator{},
				employees:  map[string]struct{}{},
			}
			byPeriod[rec.Period] = agg
		}
		records[rec.Period]++
		agg.employees[rec.EmployeeID] = struct{}{}
		agg.gross.add(rec.Gross)
		agg.net.add(rec.Net)
		for name, amount := range rec.Components {
			comp := agg.components[name]
			if comp == nil {
				comp = &accumulator{}
				agg.components[name] = comp
			}
			comp.add(amount)
		}

		title := ""
		if emp, ok := employees[rec.EmployeeID]; ok {
			title = emp.RoleTitle
		}
		if title == "" {
			title = "(sem cargo)"
		}
		role := agg.byRole[title]
		if role == nil {
			role = &accumulator{}
			agg.byRole[title] = role
		}
		role.add(rec.Net)
	}

	periods := make([]registry.Period, 0, len(byPeriod))
	for p := range byPeriod {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	out := Summary{Scope: scope}
	for _, p := range periods {
		agg := byPeriod[p]
		ps := PeriodSummary{
			Period:    p,
			Employees: len(agg.employees),
			Records:   records[p],
			Gross:     agg.gross.stats(),
			Net:       agg.net.stats(),
		}
		if len(agg.components) > 0 {
			ps.Components = make(map[string]Stats, len(agg.components))
			for name, comp := range agg.components {
				ps.Components[name] = comp.stats()
			}
		}
		titles := make([]string, 0, len(agg.byRole))
		for title := range agg.byRole {
			titles = append(titles, title)
		}
		sort.Strings(titles)
		for _, title := range titles {
			role := agg.byRole[title]
			ps.ByRole = append(ps.ByRole, RoleSummary{
				RoleTitle: title,
				Employees: role.count,
				Net:       role.stats(),
			})
		}
		out.Periods = append(out.Periods, ps)
	}
	return out
}

// Rows flattens a summary into the (period, group, metric, value) shape the
// export writers consume. Decimal values keep their exact text form.
func (s Summary) Rows() []Row {
	var rows []Row
	add := func(period, group string, stats Stats, prefix string) {
		rows = append(rows,
			Row{Period: period, Group: group, Metric: prefix + "_count", Value: intString(stats.Count)},
			Row{Period: period, Group: group, Metric: prefix + "_sum", Value: stats.Sum.String()},
			Row{Period: period, Group: group, Metric: prefix + "_mean", Value: stats.Mean.String()},
			Row{Period: period, Group: group, Metric: prefix + "_min", Value: decString(stats.Min)},
			Row{Period: period, Group: group, Metric: prefix + "_max", Value: decString(stats.Max)},
		)
	}
	for _, ps := range s.Periods {
		period := ps.Period.String()
		rows = append(rows,
			Row{Period: period, Group: "total", Metric: "employees", Value: intString(ps.Employees)},
			Row{Period: period, Group: "total", Metric: "records", Value: intString(ps.Records)},
		)
		add(period, "total", ps.Gross, "gross")
		add(period, "total", ps.Net, "net")
		names := make([]string, 0, len(ps.Components))
		for name := range ps.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			add(period, "component:"+name, ps.Components[name], "amount")
		}
		for _, role := range ps.ByRole {
			add(period, "role:"+role.RoleTitle, role.Net, "net")
		}
	}
	return rows
}

func intString(n int) string {
	return strconv.Itoa(n)
}

func decString(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
