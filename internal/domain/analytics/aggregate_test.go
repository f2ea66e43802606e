package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transparencia/internal/domain/registry"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func employees() map[string]registry.Employee {
	return map[string]registry.Employee{
		"e1": {ID: "e1", Document: "1", Name: "ALICE", RoleTitle: "ANALISTA"},
		"e2": {ID: "e2", Document: "2", Name: "BRUNO", RoleTitle: "ANALISTA"},
		"e3": {ID: "e3", Document: "3", Name: "CLARA", RoleTitle: "TECNICO"},
	}
}

func TestSummarizeExactSums(t *testing.T) {
	p := registry.Period{Year: 2023, Month: 1}
	recs := []registry.Remuneration{
		{EmployeeID: "e1", Period: p, Gross: dec("1500.00"), Net: dec("1000.01")},
		{EmployeeID: "e2", Period: p, Gross: dec("1500.00"), Net: dec("1000.02")},
		{EmployeeID: "e3", Period: p, Gross: dec("1500.00"), Net: dec("1000.03")},
	}

	summary := Summarize(registry.Scope{}, recs, employees())
	require.Len(t, summary.Periods, 1)

	ps := summary.Periods[0]
	assert.Equal(t, 3, ps.Employees)
	assert.Equal(t, 3, ps.Records)
	// Binary floats would drift here; the sum must be exact.
	assert.True(t, ps.Net.Sum.Equal(dec("3000.06")), "net sum = %s", ps.Net.Sum)
	assert.True(t, ps.Net.Mean.Equal(dec("1000.02")), "net mean = %s", ps.Net.Mean)
	require.NotNil(t, ps.Net.Min)
	require.NotNil(t, ps.Net.Max)
	assert.True(t, ps.Net.Min.Equal(dec("1000.01")))
	assert.True(t, ps.Net.Max.Equal(dec("1000.03")))

	require.Len(t, ps.ByRole, 2)
	assert.Equal(t, "ANALISTA", ps.ByRole[0].RoleTitle)
	assert.Equal(t, 2, ps.ByRole[0].Employees)
	assert.Equal(t, "TECNICO", ps.ByRole[1].RoleTitle)
}

func TestSummarizeAbsentIsNullNotZero(t *testing.T) {
	summary := Summarize(registry.Scope{}, nil, employees())
	assert.Empty(t, summary.Periods)

	var empty accumulator
	stats := empty.stats()
	assert.Equal(t, 0, stats.Count)
	assert.Nil(t, stats.Min, "no data must report null, not zero")
	assert.Nil(t, stats.Max)
}

func TestSummarizeComponents(t *testing.T) {
	p := registry.Period{Year: 2023, Month: 2}
	recs := []registry.Remuneration{
		{EmployeeID: "e1", Period: p, Gross: dec("100"), Net: dec("90"),
			Components: map[string]decimal.Decimal{"irrf": dec("10.50")}},
		{EmployeeID: "e2", Period: p, Gross: dec("100"), Net: dec("90"),
			Components: map[string]decimal.Decimal{"irrf": dec("20.25")}},
	}
	summary := Summarize(registry.Scope{}, recs, employees())
	require.Len(t, summary.Periods, 1)

	irrf, ok := summary.Periods[0].Components["irrf"]
	require.True(t, ok)
	assert.Equal(t, 2, irrf.Count)
	assert.True(t, irrf.Sum.Equal(dec("30.75")), "irrf sum = %s", irrf.Sum)
}

func TestRowsFlattening(t *testing.T) {
	p := registry.Period{Year: 2023, Month: 1}
	recs := []registry.Remuneration{
		{EmployeeID: "e1", Period: p, Gross: dec("100"), Net: dec("90")},
	}
	rows := Summarize(registry.Scope{}, recs, employees()).Rows()
	require.NotEmpty(t, rows)

	byMetric := map[string]Row{}
	for _, row := range rows {
		if row.Group == "total" {
			byMetric[row.Metric] = row
		}
	}
	assert.Equal(t, "1", byMetric["employees"].Value)
	assert.Equal(t, "90", byMetric["net_sum"].Value)
	assert.Equal(t, "2023-01", byMetric["net_sum"].Period)
}
