package ingest

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Kind identifies which entity shape a source file carries. Each file holds
// rows of exactly one kind; the layouts vary by source and reporting period.
type Kind string

const (
	KindEmployee     Kind = "employee"
	KindRole         Kind = "role"
	KindRemuneration Kind = "remuneration"
	KindLeave        Kind = "leave"
	KindRemark       Kind = "remark"
)

// Canonical field names a layout can map CSV headers onto.
const (
	FieldDocument     = "document"
	FieldCPF          = "cpf"
	FieldName         = "name"
	FieldRoleTitle    = "role_title"
	FieldSuperiorOrg  = "superior_org"
	FieldOrg          = "org"
	FieldRegime       = "regime"
	FieldWorkSchedule = "work_schedule"
	FieldYear         = "year"
	FieldMonth        = "month"
	FieldGross        = "gross"
	FieldNet          = "net"
	FieldStartDate    = "start_date"
	FieldEndDate      = "end_date"
	FieldReason       = "reason"
	FieldText         = "text"
	FieldRoleCode     = "role_code"
	FieldRoleCategory = "role_category"
	FieldRoleClass    = "role_class"
	FieldRoleLevel    = "role_level"

	// ComponentPrefix maps a column onto a named remuneration component,
	// e.g. "IRRF (R$)" -> "component:irrf".
	ComponentPrefix = "component:"
)

var requiredFields = map[Kind][]string{
	KindEmployee:     {FieldDocument, FieldName},
	KindRole:         {FieldRoleTitle},
	KindRemuneration: {FieldDocument, FieldYear, FieldMonth, FieldGross, FieldNet},
	KindLeave:        {FieldDocument, FieldYear, FieldMonth, FieldStartDate},
	KindRemark:       {FieldDocument, FieldYear, FieldMonth, FieldText},
}

// Decimal conventions a layout can declare for its amount columns.
const (
	// DecimalBR reads "1.234,56": dots are thousands separators, the comma
	// is the decimal mark. "1.234" therefore means 1234, never 1.234.
	DecimalBR = "br"
	// DecimalPlain reads "1234.56" as-is.
	DecimalPlain = "plain"
)

// Layout is the external column-schema configuration for one source file
// variant: CSV header name to canonical field. The normalizer never assumes
// a hardcoded schema.
type Layout struct {
	Kind       Kind              `json:"kind"`
	Columns    map[string]string `json:"columns"`
	Comma      rune              `json:"comma,omitempty"`
	DateFormat string            `json:"dateFormat,omitempty"`
	Decimal    string            `json:"decimal,omitempty"`  // "br" (default) or "plain"
	Encoding   string            `json:"encoding,omitempty"` // "utf-8" (default) or "latin-1"
}

func (l Layout) comma() rune {
	if l.Comma == 0 {
		return ';'
	}
	return l.Comma
}

func (l Layout) decimal() string {
	if l.Decimal == "" {
		return DecimalBR
	}
	return l.Decimal
}

func (l Layout) dateFormat() string {
	if l.DateFormat == "" {
		return "02/01/2006"
	}
	return l.DateFormat
}

// Reader wraps the raw file stream with the charset the layout declares.
// Government extracts are frequently Latin-1.
func (l Layout) Reader(r io.Reader) io.Reader {
	switch strings.ToLower(l.Encoding) {
	case "latin-1", "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	default:
		return r
	}
}

// Binding is a layout resolved against a concrete header row: canonical
// field to column index.
type Binding struct {
	layout     Layout
	fields     map[string]int
	components map[string]int
}

func (b Binding) Kind() Kind { return b.layout.Kind }

// Bind resolves the layout against the file's header row. A missing required
// column is batch-fatal, matching how the source extracts are rejected
// whole when their shape is wrong.
func (l Layout) Bind(header []string) (Binding, error) {
	binding := Binding{
		layout:     l,
		fields:     map[string]int{},
		components: map[string]int{},
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for column, field := range l.Columns {
		position, ok := index[column]
		if !ok {
			continue
		}
		if strings.HasPrefix(field, ComponentPrefix) {
			binding.components[strings.TrimPrefix(field, ComponentPrefix)] = position
			continue
		}
		binding.fields[field] = position
	}
	for _, field := range requiredFields[l.Kind] {
		if _, ok := binding.fields[field]; !ok {
			return Binding{}, fmt.Errorf("%w: no column mapped to %q for kind %s", ErrMissingColumn, field, l.Kind)
		}
	}
	return binding, nil
}

func (b Binding) value(row []string, field string) (string, bool) {
	position, ok := b.fields[field]
	if !ok || position >= len(row) {
		return "", false
	}
	return strings.TrimSpace(row[position]), true
}

// DefaultLayouts reproduces the column shapes of the federal transparency
// portal extracts this service was built around. Callers supply their own
// layouts for other sources.
func DefaultLayouts() map[Kind]Layout {
	return map[Kind]Layout{
		KindEmployee: {
			Kind: KindEmployee,
			Columns: map[string]string{
				"Id_SERVIDOR_PORTAL":  FieldDocument,
				"NOME":                FieldName,
				"CPF":                 FieldCPF,
				"DESCRICAO_CARGO":     FieldRoleTitle,
				"ORGSUP_EXERCICIO":    FieldSuperiorOrg,
				"ORG_EXERCICIO":       FieldOrg,
				"REGIME_JURIDICO":     FieldRegime,
				"JORNADA_DE_TRABALHO": FieldWorkSchedule,
			},
			Encoding: "latin-1",
		},
		KindRole: {
			Kind: KindRole,
			Columns: map[string]string{
				"DESCRICAO_CARGO": FieldRoleTitle,
				"CLASSE_CARGO":    FieldRoleClass,
				"NIVEL_CARGO":     FieldRoleLevel,
				"FUNCAO":          FieldRoleCode,
				"NIVEL_FUNCAO":    FieldRoleCategory,
			},
			Encoding: "latin-1",
		},
		KindRemuneration: {
			Kind: KindRemuneration,
			Columns: map[string]string{
				"Id_SERVIDOR_PORTAL": FieldDocument,
				"ANO":                FieldYear,
				"MES":                FieldMonth,
				"REMUNERAÇÃO BÁSICA BRUTA (R$)":                  FieldGross,
				"IRRF (R$)":                                      ComponentPrefix + "irrf",
				"PSS/RPGS (R$)":                                  ComponentPrefix + "pss_rpgs",
				"REMUNERAÇÃO APÓS DEDUÇÕES OBRIGATÓRIAS (R$)":    FieldNet,
			},
			Encoding: "latin-1",
		},
		KindLeave: {
			Kind: KindLeave,
			Columns: map[string]string{
				"Id_SERVIDOR_PORTAL":       FieldDocument,
				"ANO":                      FieldYear,
				"MES":                      FieldMonth,
				"DATA_INICIO_AFASTAMENTO":  FieldStartDate,
				"DATA_TERMINO_AFASTAMENTO": FieldEndDate,
				"MOTIVO":                   FieldReason,
			},
			Encoding: "latin-1",
		},
		KindRemark: {
			Kind: KindRemark,
			Columns: map[string]string{
				"Id_SERVIDOR_PORTAL": FieldDocument,
				"ANO":                FieldYear,
				"MES":                FieldMonth,
				"OBSERVACAO":         FieldText,
			},
			Encoding: "latin-1",
		},
	}
}
