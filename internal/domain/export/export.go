package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"transparencia/internal/domain/analytics"
)

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

var ErrUnsupportedFormat = errors.New("export: unsupported format")

// ContentType maps a format to its HTTP media type.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Write renders the report in the requested format.
func Write(w io.Writer, format string, report analytics.Report) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, report.Summary.Rows())
	case FormatXLSX:
		return WriteXLSX(w, report)
	case FormatPDF:
		return WritePDF(w, report)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// WriteFile renders the report into dir under a stable name and returns the
// path, so a report job can leave its artifact on disk for later download.
func WriteFile(dir, name, format string, report analytics.Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+"."+format)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := Write(f, format, report); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
