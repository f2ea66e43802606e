package export

import (
	"encoding/csv"
	"io"

	"github.com/gocarina/gocsv"

	"transparencia/internal/domain/analytics"
)

// WriteCSV emits the flat metric rows with the portal's conventions:
// semicolon separator and CRLF line endings.
func WriteCSV(w io.Writer, rows []analytics.Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	cw.UseCRLF = true
	return gocsv.MarshalCSV(&rows, cw)
}
