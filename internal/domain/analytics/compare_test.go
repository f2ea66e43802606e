package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transparencia/internal/domain/registry"
)

func TestComparePeriodsEnteredExited(t *testing.T) {
	a := registry.Period{Year: 2023, Month: 1}
	b := registry.Period{Year: 2023, Month: 2}
	recsA := []registry.Remuneration{
		{EmployeeID: "e1", Period: a, Net: dec("1000.00")},
		{EmployeeID: "e2", Period: a, Net: dec("2000.00")},
	}
	recsB := []registry.Remuneration{
		{EmployeeID: "e1", Period: b, Net: dec("1100.00")},
		{EmployeeID: "e3", Period: b, Net: dec("3000.00")},
	}

	cmp := ComparePeriods(a, b, recsA, recsB, employees())
	assert.Equal(t, 1, cmp.Present)
	assert.Equal(t, 1, cmp.Entered)
	assert.Equal(t, 1, cmp.Exited)
	require.Len(t, cmp.Employees, 3)

	byDoc := map[string]EmployeeDelta{}
	for _, delta := range cmp.Employees {
		byDoc[delta.Document] = delta
	}

	present := byDoc["1"]
	assert.Equal(t, StatusPresent, present.Status)
	require.NotNil(t, present.Delta)
	assert.True(t, present.Delta.Equal(dec("100.00")), "delta = %s", present.Delta)

	exited := byDoc["2"]
	assert.Equal(t, StatusExited, exited.Status)
	assert.Nil(t, exited.NetB, "exited employee has no second-period value")

	entered := byDoc["3"]
	assert.Equal(t, StatusEntered, entered.Status)
	assert.Nil(t, entered.NetA)

	assert.True(t, cmp.TotalA.Equal(dec("3000.00")))
	assert.True(t, cmp.TotalB.Equal(dec("4100.00")))
	assert.True(t, cmp.TotalDelta.Equal(dec("1100.00")))
}

func TestCompareYears(t *testing.T) {
	recsA := []registry.Remuneration{
		{EmployeeID: "e1", Period: registry.Period{Year: 2022, Month: 1}, Net: dec("1000")},
		{EmployeeID: "e2", Period: registry.Period{Year: 2022, Month: 1}, Net: dec("2000")},
	}
	recsB := []registry.Remuneration{
		{EmployeeID: "e1", Period: registry.Period{Year: 2023, Month: 1}, Net: dec("1800")},
	}

	cmp := CompareYears(2022, 2023, recsA, recsB)
	assert.Equal(t, 2, cmp.ActiveA)
	assert.Equal(t, 1, cmp.ActiveB)
	assert.Equal(t, -1, cmp.ActiveDelta)
	assert.True(t, cmp.MeanNetA.Equal(dec("1500")), "meanA = %s", cmp.MeanNetA)
	assert.True(t, cmp.MeanNetB.Equal(dec("1800")))
	require.NotNil(t, cmp.MeanNetPct)
	assert.True(t, cmp.MeanNetPct.Equal(dec("20")), "pct = %s", cmp.MeanNetPct)
}
