package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"transparencia/internal/domain/registry"
)

// DefaultDocumentPattern accepts the numeric portal identifiers the federal
// extracts use as the servant's document key.
var DefaultDocumentPattern = regexp.MustCompile(`^\d{1,20}$`)

// Normalizer turns one raw CSV row into a typed record or a ValidationError.
// It is a pure function over (binding, row): no batching, no counting, no
// store access.
type Normalizer struct {
	DocumentPattern *regexp.Regexp
}

func NewNormalizer(documentPattern *regexp.Regexp) Normalizer {
	if documentPattern == nil {
		documentPattern = DefaultDocumentPattern
	}
	return Normalizer{DocumentPattern: documentPattern}
}

func (n Normalizer) Normalize(binding Binding, row []string) (Record, error) {
	switch binding.Kind() {
	case KindEmployee:
		return n.normalizeEmployee(binding, row)
	case KindRole:
		return n.normalizeRole(binding, row)
	case KindRemuneration:
		return n.normalizeRemuneration(binding, row)
	case KindLeave:
		return n.normalizeLeave(binding, row)
	case KindRemark:
		return n.normalizeRemark(binding, row)
	default:
		return nil, &ValidationError{Field: "kind", RawValue: string(binding.Kind()), Reason: "unknown record kind"}
	}
}

func (n Normalizer) document(binding Binding, row []string) (string, error) {
	raw, _ := binding.value(row, FieldDocument)
	if raw == "" {
		return "", &ValidationError{Field: FieldDocument, Reason: "required field missing"}
	}
	if !n.DocumentPattern.MatchString(raw) {
		return "", &ValidationError{Field: FieldDocument, RawValue: raw, Reason: "does not match document pattern"}
	}
	return raw, nil
}

func (n Normalizer) normalizeEmployee(binding Binding, row []string) (Record, error) {
	document, err := n.document(binding, row)
	if err != nil {
		return nil, err
	}
	name, _ := binding.value(row, FieldName)
	if name == "" {
		return nil, &ValidationError{Field: FieldName, Reason: "required field missing"}
	}
	record := EmployeeRecord{Document: document, Name: name}
	record.CPF, _ = binding.value(row, FieldCPF)
	record.RoleTitle, _ = binding.value(row, FieldRoleTitle)
	// Organizational attributes are upper-cased so distributions group on a
	// single spelling, matching the source portal's convention.
	record.SuperiorOrg = upper(binding, row, FieldSuperiorOrg)
	record.Org = upper(binding, row, FieldOrg)
	record.Regime = upper(binding, row, FieldRegime)
	record.WorkSchedule = upper(binding, row, FieldWorkSchedule)
	return record, nil
}

func (n Normalizer) normalizeRole(binding Binding, row []string) (Record, error) {
	title, _ := binding.value(row, FieldRoleTitle)
	title = cleanInformational(title)
	if title == "" {
		return nil, &ValidationError{Field: FieldRoleTitle, Reason: "required field missing"}
	}
	record := RoleRecord{Title: title}
	record.Code = cleanInformational(valueOf(binding, row, FieldRoleCode))
	record.Category = cleanInformational(valueOf(binding, row, FieldRoleCategory))
	record.Class = cleanInformational(valueOf(binding, row, FieldRoleClass))
	if raw := valueOf(binding, row, FieldRoleLevel); raw != "" {
		level, err := parseLevel(raw)
		if err != nil {
			return nil, &ValidationError{Field: FieldRoleLevel, RawValue: raw, Reason: "not a valid level"}
		}
		record.Level = level
	}
	return record, nil
}

func (n Normalizer) normalizeRemuneration(binding Binding, row []string) (Record, error) {
	document, err := n.document(binding, row)
	if err != nil {
		return nil, err
	}
	period, err := parsePeriod(binding, row)
	if err != nil {
		return nil, err
	}

	gross, err := parseAmountField(binding, row, FieldGross)
	if err != nil {
		return nil, err
	}
	net, err := parseAmountField(binding, row, FieldNet)
	if err != nil {
		return nil, err
	}

	record := RemunerationRecord{Document: document, Period: period, Gross: gross, Net: net}
	if len(binding.components) > 0 {
		record.Components = make(map[string]decimal.Decimal, len(binding.components))
		for name, position := range binding.components {
			raw := ""
			if position < len(row) {
				raw = strings.TrimSpace(row[position])
			}
			amount, err := parseAmount(raw, binding.layout.decimal())
			if err != nil {
				return nil, &ValidationError{Field: ComponentPrefix + name, RawValue: raw, Reason: "not a valid amount"}
			}
			record.Components[name] = amount
		}
	}
	return record, nil
}

func (n Normalizer) normalizeLeave(binding Binding, row []string) (Record, error) {
	document, err := n.document(binding, row)
	if err != nil {
		return nil, err
	}
	period, err := parsePeriod(binding, row)
	if err != nil {
		return nil, err
	}

	rawStart, _ := binding.value(row, FieldStartDate)
	if rawStart == "" {
		return nil, &ValidationError{Field: FieldStartDate, Reason: "required field missing"}
	}
	start, err := time.Parse(binding.layout.dateFormat(), rawStart)
	if err != nil {
		return nil, &ValidationError{Field: FieldStartDate, RawValue: rawStart, Reason: "not a valid date"}
	}

	record := LeaveRecord{Document: document, Period: period, StartDate: start}
	if rawEnd := valueOf(binding, row, FieldEndDate); rawEnd != "" {
		end, err := time.Parse(binding.layout.dateFormat(), rawEnd)
		if err != nil {
			return nil, &ValidationError{Field: FieldEndDate, RawValue: rawEnd, Reason: "not a valid date"}
		}
		if end.Before(start) {
			return nil, &ValidationError{Field: FieldEndDate, RawValue: rawEnd, Reason: "end date before start date"}
		}
		record.EndDate = &end
	}
	record.Reason = strings.ToUpper(valueOf(binding, row, FieldReason))
	return record, nil
}

func (n Normalizer) normalizeRemark(binding Binding, row []string) (Record, error) {
	document, err := n.document(binding, row)
	if err != nil {
		return nil, err
	}
	period, err := parsePeriod(binding, row)
	if err != nil {
		return nil, err
	}
	text, _ := binding.value(row, FieldText)
	if text == "" {
		return nil, &ValidationError{Field: FieldText, Reason: "required field missing"}
	}
	return RemarkRecord{Document: document, Period: period, Text: text}, nil
}

func parsePeriod(binding Binding, row []string) (registry.Period, error) {
	rawYear, _ := binding.value(row, FieldYear)
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		return registry.Period{}, &ValidationError{Field: FieldYear, RawValue: rawYear, Reason: "not a valid year"}
	}
	rawMonth, _ := binding.value(row, FieldMonth)
	month, err := strconv.Atoi(rawMonth)
	if err != nil {
		return registry.Period{}, &ValidationError{Field: FieldMonth, RawValue: rawMonth, Reason: "not a valid month"}
	}
	period := registry.Period{Year: year, Month: month}
	if !period.Valid() {
		return registry.Period{}, &ValidationError{Field: FieldMonth, RawValue: rawYear + "/" + rawMonth, Reason: "period out of range"}
	}
	return period, nil
}

func parseAmountField(binding Binding, row []string, field string) (decimal.Decimal, error) {
	raw, _ := binding.value(row, field)
	if raw == "" {
		return decimal.Decimal{}, &ValidationError{Field: field, Reason: "required field missing"}
	}
	amount, err := parseAmount(raw, binding.layout.decimal())
	if err != nil {
		return decimal.Decimal{}, &ValidationError{Field: field, RawValue: raw, Reason: "not a valid amount"}
	}
	if amount.IsNegative() {
		return decimal.Decimal{}, &ValidationError{Field: field, RawValue: raw, Reason: "negative amount"}
	}
	return amount, nil
}

// parseAmount reads an amount under the layout's declared decimal
// convention. Under DecimalBR every dot is a thousands separator, so
// "1.234" is 1234 whether or not a decimal comma follows. An empty string
// is zero, matching the source extracts where blank means unpaid.
func parseAmount(raw, convention string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	if convention == DecimalBR {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	return decimal.NewFromString(raw)
}

// parseLevel mirrors the portal's cargo-level cleanup: -1 and 0 mean absent.
func parseLevel(raw string) (*int64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, err
	}
	if value == 0 || value == -1 {
		return nil, nil
	}
	level := int64(value)
	return &level, nil
}

// cleanInformational drops the portal's "sem informação" placeholders.
func cleanInformational(value string) string {
	trimmed := strings.TrimSpace(value)
	lowered := strings.ToLower(trimmed)
	if lowered == "sem informação" || lowered == "sem informaç" {
		return ""
	}
	return trimmed
}

func valueOf(binding Binding, row []string, field string) string {
	value, _ := binding.value(row, field)
	return value
}

func upper(binding Binding, row []string, field string) string {
	return strings.ToUpper(valueOf(binding, row, field))
}
