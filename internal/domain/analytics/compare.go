package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"transparencia/internal/domain/registry"
)

// ComparePeriods pairs employees across two periods by document. An employee
// with a record only in B entered, only in A exited; both sides get a delta.
func ComparePeriods(a, b registry.Period, recsA, recsB []registry.Remuneration, employees map[string]registry.Employee) Comparison {
	type side struct {
		document string
		name     string
		net      decimal.Decimal
	}
	index := func(recs []registry.Remuneration) map[string]side {
		out := make(map[string]side, len(recs))
		for _, rec := range recs {
			emp, ok := employees[rec.EmployeeID]
			if !ok {
				continue
			}
			s := out[emp.Document]
			s.document = emp.Document
			s.name = emp.Name
			s.net = s.net.Add(rec.Net)
			out[emp.Document] = s
		}
		return out
	}
	sideA := index(recsA)
	sideB := index(recsB)

	documents := make([]string, 0, len(sideA)+len(sideB))
	seen := map[string]struct{}{}
	for doc := range sideA {
		documents = append(documents, doc)
		seen[doc] = struct{}{}
	}
	for doc := range sideB {
		if _, ok := seen[doc]; !ok {
			documents = append(documents, doc)
		}
	}
	sort.Strings(documents)

	cmp := Comparison{PeriodA: a, PeriodB: b}
	for _, doc := range documents {
		inA, okA := sideA[doc]
		inB, okB := sideB[doc]
		delta := EmployeeDelta{Document: doc}
		switch {
		case okA && okB:
			delta.Name = inB.name
			delta.Status = StatusPresent
			netA, netB := inA.net, inB.net
			diff := netB.Sub(netA)
			delta.NetA, delta.NetB, delta.Delta = &netA, &netB, &diff
			cmp.Present++
			cmp.TotalA = cmp.TotalA.Add(netA)
			cmp.TotalB = cmp.TotalB.Add(netB)
		case okB:
			delta.Name = inB.name
			delta.Status = StatusEntered
			netB := inB.net
			delta.NetB = &netB
			cmp.Entered++
			cmp.TotalB = cmp.TotalB.Add(netB)
		default:
			delta.Name = inA.name
			delta.Status = StatusExited
			netA := inA.net
			delta.NetA = &netA
			cmp.Exited++
			cmp.TotalA = cmp.TotalA.Add(netA)
		}
		cmp.Employees = append(cmp.Employees, delta)
	}
	cmp.TotalDelta = cmp.TotalB.Sub(cmp.TotalA)
	return cmp
}

// CompareYears reduces each year's remunerations to active headcount and
// mean net, then reports the deltas and the percentage variation of the mean.
func CompareYears(yearA, yearB int, recsA, recsB []registry.Remuneration) YearComparison {
	reduce := func(recs []registry.Remuneration) (int, decimal.Decimal) {
		active := map[string]struct{}{}
		var acc accumulator
		for _, rec := range recs {
			active[rec.EmployeeID] = struct{}{}
			acc.add(rec.Net)
		}
		return len(active), acc.stats().Mean
	}
	activeA, meanA := reduce(recsA)
	activeB, meanB := reduce(recsB)

	out := YearComparison{
		YearA:        yearA,
		YearB:        yearB,
		ActiveA:      activeA,
		ActiveB:      activeB,
		ActiveDelta:  activeB - activeA,
		MeanNetA:     meanA,
		MeanNetB:     meanB,
		MeanNetDelta: meanB.Sub(meanA),
	}
	if !meanA.IsZero() {
		pct := meanB.Sub(meanA).
			Div(meanA).
			Mul(decimal.NewFromInt(100)).
			Round(meanScale)
		out.MeanNetPct = &pct
	}
	return out
}
