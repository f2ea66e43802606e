package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"transparencia/internal/domain/analytics"
)

// WritePDF renders a one-page-per-period summary document.
func WritePDF(w io.Writer, report analytics.Report) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, tr("Relatório de Remunerações"))
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, "Gerado em: "+report.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.Ln(7)
	if !report.Scope.From.IsZero() || !report.Scope.To.IsZero() {
		pdf.Cell(0, 7, fmt.Sprintf("Escopo: %s a %s", report.Scope.From, report.Scope.To))
		pdf.Ln(7)
	}
	pdf.Ln(3)

	for _, ps := range report.Summary.Periods {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, tr("Período ")+ps.Period.String())
		pdf.Ln(9)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 7, fmt.Sprintf("Servidores: %d    Registros: %d", ps.Employees, ps.Records))
		pdf.Ln(7)
		pdf.Cell(0, 7, tr("Bruto total: ")+ps.Gross.Sum.String())
		pdf.Ln(7)
		pdf.Cell(0, 7, tr("Líquido total: ")+ps.Net.Sum.String()+tr("    Média: ")+ps.Net.Mean.String())
		pdf.Ln(10)
	}

	if ins := report.Insights; ins != nil && len(ins.Insights) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.Cell(0, 8, "Destaques")
		pdf.Ln(9)
		pdf.SetFont("Helvetica", "", 11)
		for _, card := range ins.Insights {
			pdf.Cell(0, 7, tr(card.Title+": "+card.Value))
			pdf.Ln(6)
			pdf.SetFont("Helvetica", "I", 9)
			pdf.Cell(0, 5, tr(card.Description))
			pdf.Ln(7)
			pdf.SetFont("Helvetica", "", 11)
		}
	}

	return pdf.Output(w)
}
