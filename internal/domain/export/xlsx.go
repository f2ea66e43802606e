package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"transparencia/internal/domain/analytics"
)

// WriteXLSX renders the report as a workbook: one sheet with the flat
// metrics, plus a comparison sheet when the report carries one. Decimal
// values are written as their exact text so the spreadsheet never rounds.
func WriteXLSX(w io.Writer, report analytics.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	const metrics = "Metricas"
	f.SetSheetName(f.GetSheetName(0), metrics)
	header := []any{"periodo", "grupo", "metrica", "valor"}
	if err := f.SetSheetRow(metrics, "A1", &header); err != nil {
		return err
	}
	for i, row := range report.Summary.Rows() {
		cell := fmt.Sprintf("A%d", i+2)
		values := []any{row.Period, row.Group, row.Metric, row.Value}
		if err := f.SetSheetRow(metrics, cell, &values); err != nil {
			return err
		}
	}

	if cmp := report.Comparison; cmp != nil {
		const sheet = "Comparativo"
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		header := []any{"documento", "nome", "situacao",
			"liquido_" + cmp.PeriodA.String(), "liquido_" + cmp.PeriodB.String(), "variacao"}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
		for i, emp := range cmp.Employees {
			cell := fmt.Sprintf("A%d", i+2)
			values := []any{emp.Document, emp.Name, emp.Status,
				decCell(emp.NetA), decCell(emp.NetB), decCell(emp.Delta)}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

func decCell(d *decimal.Decimal) any {
	if d == nil {
		return ""
	}
	return d.String()
}
