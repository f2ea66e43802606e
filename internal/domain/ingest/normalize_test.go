package ingest

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func remunerationBinding(t *testing.T) Binding {
	t.Helper()
	layout := Layout{
		Kind: KindRemuneration,
		Columns: map[string]string{
			"DOC":   FieldDocument,
			"ANO":   FieldYear,
			"MES":   FieldMonth,
			"BRUTO": FieldGross,
			"IRRF":  ComponentPrefix + "irrf",
			"LIQ":   FieldNet,
		},
	}
	binding, err := layout.Bind([]string{"DOC", "ANO", "MES", "BRUTO", "IRRF", "LIQ"})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	return binding
}

func TestNormalizeRemuneration(t *testing.T) {
	n := NewNormalizer(nil)
	binding := remunerationBinding(t)

	record, err := n.Normalize(binding, []string{"12345", "2023", "5", "1.234,56", "123,45", "1.111,11"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	rem, ok := record.(RemunerationRecord)
	if !ok {
		t.Fatalf("expected RemunerationRecord, got %T", record)
	}
	if rem.Document != "12345" {
		t.Errorf("document = %q", rem.Document)
	}
	if rem.Period.Year != 2023 || rem.Period.Month != 5 {
		t.Errorf("period = %v", rem.Period)
	}
	if !rem.Gross.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("gross = %s", rem.Gross)
	}
	if !rem.Net.Equal(decimal.RequireFromString("1111.11")) {
		t.Errorf("net = %s", rem.Net)
	}
	if !rem.Components["irrf"].Equal(decimal.RequireFromString("123.45")) {
		t.Errorf("irrf = %s", rem.Components["irrf"])
	}
}

func TestNormalizeRemunerationRejections(t *testing.T) {
	n := NewNormalizer(nil)
	binding := remunerationBinding(t)

	tests := []struct {
		name  string
		row   []string
		field string
	}{
		{"missing document", []string{"", "2023", "5", "100", "0", "90"}, FieldDocument},
		{"non numeric document", []string{"abc-1", "2023", "5", "100", "0", "90"}, FieldDocument},
		{"bad year", []string{"1", "20x3", "5", "100", "0", "90"}, FieldYear},
		{"month out of range", []string{"1", "2023", "13", "100", "0", "90"}, FieldMonth},
		{"negative gross", []string{"1", "2023", "5", "-100", "0", "90"}, FieldGross},
		{"malformed amount", []string{"1", "2023", "5", "12,34,56", "0", "90"}, FieldGross},
		{"missing net", []string{"1", "2023", "5", "100", "0", ""}, FieldNet},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := n.Normalize(binding, tc.row)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationErr.Field != tc.field {
				t.Errorf("field = %q, want %q", validationErr.Field, tc.field)
			}
		})
	}
}

func TestNormalizeDecimalConventions(t *testing.T) {
	tests := []struct {
		name       string
		convention string
		raw        string
		want       string
	}{
		{"br dot is thousands separator", DecimalBR, "1.234", "1234"},
		{"br full form", DecimalBR, "1.234,56", "1234.56"},
		{"br comma only", DecimalBR, "1234,56", "1234.56"},
		{"plain dot is decimal mark", DecimalPlain, "1234.56", "1234.56"},
		{"plain small value", DecimalPlain, "1.234", "1.234"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseAmount(tc.raw, tc.convention)
			if err != nil {
				t.Fatalf("parseAmount(%q, %q): %v", tc.raw, tc.convention, err)
			}
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("parseAmount(%q, %q) = %s, want %s", tc.raw, tc.convention, got, tc.want)
			}
		})
	}
}

func TestNormalizePlainDecimalLayout(t *testing.T) {
	n := NewNormalizer(nil)
	layout := Layout{
		Kind:    KindRemuneration,
		Decimal: DecimalPlain,
		Columns: map[string]string{
			"DOC": FieldDocument, "ANO": FieldYear, "MES": FieldMonth,
			"BRUTO": FieldGross, "LIQ": FieldNet,
		},
	}
	binding, err := layout.Bind([]string{"DOC", "ANO", "MES", "BRUTO", "LIQ"})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	record, err := n.Normalize(binding, []string{"1", "2023", "5", "1500.25", "1000.01"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	rem := record.(RemunerationRecord)
	if !rem.Gross.Equal(decimal.RequireFromString("1500.25")) {
		t.Errorf("gross = %s", rem.Gross)
	}
	if !rem.Net.Equal(decimal.RequireFromString("1000.01")) {
		t.Errorf("net = %s", rem.Net)
	}
}

func TestNormalizeEmptyComponentIsZero(t *testing.T) {
	n := NewNormalizer(nil)
	binding := remunerationBinding(t)
	record, err := n.Normalize(binding, []string{"1", "2023", "5", "100", "", "90"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	rem := record.(RemunerationRecord)
	if !rem.Components["irrf"].IsZero() {
		t.Errorf("empty component should be zero, got %s", rem.Components["irrf"])
	}
}

func TestNormalizeLeaveDates(t *testing.T) {
	n := NewNormalizer(nil)
	layout := Layout{
		Kind: KindLeave,
		Columns: map[string]string{
			"DOC":     FieldDocument,
			"ANO":     FieldYear,
			"MES":     FieldMonth,
			"INICIO":  FieldStartDate,
			"TERMINO": FieldEndDate,
			"MOTIVO":  FieldReason,
		},
	}
	binding, err := layout.Bind([]string{"DOC", "ANO", "MES", "INICIO", "TERMINO", "MOTIVO"})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	record, err := n.Normalize(binding, []string{"1", "2023", "5", "02/05/2023", "10/05/2023", "licença"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	leave := record.(LeaveRecord)
	if leave.StartDate.Day() != 2 || leave.StartDate.Month() != 5 {
		t.Errorf("start = %v", leave.StartDate)
	}
	if leave.EndDate == nil || leave.EndDate.Day() != 10 {
		t.Errorf("end = %v", leave.EndDate)
	}
	if leave.Reason != "LICENÇA" {
		t.Errorf("reason = %q", leave.Reason)
	}

	if _, err := n.Normalize(binding, []string{"1", "2023", "5", "10/05/2023", "02/05/2023", ""}); err == nil {
		t.Fatal("end before start should be rejected")
	}
}

func TestNormalizeRoleLevelCleanup(t *testing.T) {
	n := NewNormalizer(nil)
	layout := Layout{
		Kind: KindRole,
		Columns: map[string]string{
			"CARGO": FieldRoleTitle,
			"NIVEL": FieldRoleLevel,
		},
	}
	binding, err := layout.Bind([]string{"CARGO", "NIVEL"})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	record, err := n.Normalize(binding, []string{"Analista", "-1"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if record.(RoleRecord).Level != nil {
		t.Error("level -1 should normalize to nil")
	}

	record, err = n.Normalize(binding, []string{"Analista", "3"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if lvl := record.(RoleRecord).Level; lvl == nil || *lvl != 3 {
		t.Errorf("level = %v", lvl)
	}

	if _, err := n.Normalize(binding, []string{"sem informação", ""}); err == nil {
		t.Fatal("placeholder title should be rejected")
	}
}

func TestBindMissingRequiredColumn(t *testing.T) {
	layout := Layout{
		Kind:    KindRemuneration,
		Columns: map[string]string{"DOC": FieldDocument, "ANO": FieldYear, "MES": FieldMonth, "BRUTO": FieldGross, "LIQ": FieldNet},
	}
	_, err := layout.Bind([]string{"DOC", "ANO", "MES", "BRUTO"})
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}
