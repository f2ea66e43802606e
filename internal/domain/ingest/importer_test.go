package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"transparencia/internal/domain/registry"
)

func testEmployeeLayout() Layout {
	return Layout{
		Kind: KindEmployee,
		Columns: map[string]string{
			"DOC":   FieldDocument,
			"NOME":  FieldName,
			"CARGO": FieldRoleTitle,
			"ORGAO": FieldOrg,
		},
	}
}

func testRemunerationLayout() Layout {
	return Layout{
		Kind: KindRemuneration,
		Columns: map[string]string{
			"DOC":   FieldDocument,
			"ANO":   FieldYear,
			"MES":   FieldMonth,
			"BRUTO": FieldGross,
			"LIQ":   FieldNet,
		},
	}
}

func testLeaveLayout() Layout {
	return Layout{
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
}

func newTestImporter(store registry.Store, opts Options) *Importer {
	return NewImporter(store, NewNormalizer(nil), NewEngine(store, Policy{}), opts)
}

func runImport(t *testing.T, imp *Importer, id, csv string, layout Layout) registry.Batch {
	t.Helper()
	batch, err := imp.Run(context.Background(), registry.Batch{ID: id, FileName: id + ".csv"}, strings.NewReader(csv), layout)
	if err != nil {
		t.Fatalf("run %s: %v", id, err)
	}
	return batch
}

func seedEmployees(t *testing.T, imp *Importer) {
	t.Helper()
	csv := "DOC;NOME;CARGO;ORGAO\n" +
		"1001;ALICE;ANALISTA;FAZENDA\n" +
		"1002;BRUNO;ANALISTA;FAZENDA\n" +
		"1003;CLARA;TECNICO;SAUDE\n"
	batch := runImport(t, imp, "emp-seed", csv, testEmployeeLayout())
	if batch.State != registry.BatchCompleted {
		t.Fatalf("employee batch state = %s, errors = %v", batch.State, batch.Errors)
	}
}

const remunerationCSV = "DOC;ANO;MES;BRUTO;LIQ\n" +
	"1001;2023;1;1500,00;1000,01\n" +
	"1002;2023;1;1500,00;1000,02\n" +
	"1003;2023;1;1500,00;1000,03\n"

func TestImportDecimalExactness(t *testing.T) {
	store := registry.NewMemory()
	imp := newTestImporter(store, Options{Workers: 2})
	seedEmployees(t, imp)

	batch := runImport(t, imp, "rem-1", remunerationCSV, testRemunerationLayout())
	if batch.State != registry.BatchCompleted {
		t.Fatalf("state = %s, errors = %v", batch.State, batch.Errors)
	}
	if batch.Accepted != 3 {
		t.Fatalf("accepted = %d", batch.Accepted)
	}

	recs, err := store.ListRemunerations(context.Background(), registry.Scope{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sum := decimal.Zero
	for _, rec := range recs {
		sum = sum.Add(rec.Net)
	}
	if want := decimal.RequireFromString("3000.06"); !sum.Equal(want) {
		t.Errorf("net sum = %s, want %s", sum, want)
	}
}

func TestReimportIsIdempotent(t *testing.T) {
	store := registry.NewMemory()
	imp := newTestImporter(store, Options{Workers: 2})
	seedEmployees(t, imp)

	first := runImport(t, imp, "rem-1", remunerationCSV, testRemunerationLayout())
	if first.Accepted != 3 {
		t.Fatalf("first accepted = %d", first.Accepted)
	}

	second := runImport(t, imp, "rem-2", remunerationCSV, testRemunerationLayout())
	if second.State != registry.BatchCompleted {
		t.Fatalf("second state = %s, errors = %v", second.State, second.Errors)
	}
	if second.Accepted != 0 || second.Updated != 0 || second.Duplicates != 3 {
		t.Errorf("second counts = accepted %d updated %d duplicates %d",
			second.Accepted, second.Updated, second.Duplicates)
	}

	recs, err := store.ListRemunerations(context.Background(), registry.Scope{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 3 {
		t.Errorf("record count after re-import = %d", len(recs))
	}
}

func TestReimportUpdatesChangedValues(t *testing.T) {
	store := registry.NewMemory()
	imp := newTestImporter(store, Options{Workers: 2})
	seedEmployees(t, imp)
	runImport(t, imp, "rem-1", remunerationCSV, testRemunerationLayout())

	changed := "DOC;ANO;MES;BRUTO;LIQ\n" +
		"1001;2023;1;1500,00;2000,00\n"
	batch := runImport(t, imp, "rem-3", changed, testRemunerationLayout())
	if batch.Updated != 1 {
		t.Fatalf("updated = %d", batch.Updated)
	}

	emp, err := store.EmployeeByDocument(context.Background(), "1001")
	if err != nil {
		t.Fatalf("employee: %v", err)
	}
	rec, err := store.RemunerationFor(context.Background(), emp.ID, registry.Period{Year: 2023, Month: 1})
	if err != nil {
		t.Fatalf("remuneration: %v", err)
	}
	if !rec.Net.Equal(decimal.RequireFromString("2000.00")) {
		t.Errorf("net after update = %s", rec.Net)
	}
}

func TestBadRowIsIsolated(t *testing.T) {
	store := registry.NewMemory()
	imp := newTestImporter(store, Options{Workers: 2})
	seedEmployees(t, imp)

	csv := "DOC;ANO;MES;BRUTO;LIQ\n" +
		"1001;2023;1;1500,00;1000,01\n" +
		"1002;2023;13;1500,00;1000,02\n" +
		"1003;2023;1;1500,00;1000,03\n"
	batch := runImport(t, imp, "rem-bad", csv, testRemunerationLayout())
	if batch.State != registry.BatchCompletedWithErrors {
		t.Fatalf("state = %s", batch.State)
	}
	if batch.Accepted != 2 || batch.Rejected != 1 {
		t.Fatalf("accepted = %d, rejected = %d", batch.Accepted, batch.Rejected)
	}
	if len(batch.Errors) != 1 || batch.Errors[0].Row != 2 {
		t.Fatalf("errors = %+v", batch.Errors)
	}
	if batch.Errors[0].Kind != ErrKindValidation {
		t.Errorf("error kind = %s", batch.Errors[0].Kind)
	}
}

func TestUnknownDocumentIsResolutionError(t *testing.T) {
	store := registry.NewMemory()
	imp := newTestImporter(store, Options{Workers: 2})
	seedEmployees(t, imp)

	csv := "DOC;ANO;MES;BRUTO;LIQ\n9999;2023;1;100;90\n"
	batch := runImport(t, imp, "rem-unknown", csv, testRemunerationLayout())
	if batch.State != registry.BatchCompletedWithErrors {
		t.Fatalf("state = %s", batch.State)
	}
	if len(batch.Errors) != 1 || batch.Errors[0].Kind != ErrKindResolution {
		t.Fatalf("errors = %+v", batch.Errors)
	}
}

func TestLeaveOverlapIsConflict(t *testing.T) {
	store := registry.NewMemory()
	imp := newTestImporter(store, Options{Workers: 1})
	seedEmployees(t, imp)

	first := "DOC;ANO;MES;INICIO;TERMINO;MOTIVO\n" +
		"1001;2023;5;02/05/2023;20/05/2023;LICENCA\n"
	batch := runImport(t, imp, "leave-1", first, testLeaveLayout())
	if batch.State != registry.BatchCompleted {
		t.Fatalf("first leave batch state = %s, errors = %v", batch.State, batch.Errors)
	}

	overlapping := "DOC;ANO;MES;INICIO;TERMINO;MOTIVO\n" +
		"1001;2023;5;10/05/2023;25/05/2023;LICENCA\n"
	batch = runImport(t, imp, "leave-2", overlapping, testLeaveLayout())
	if batch.State != registry.BatchCompletedWithErrors {
		t.Fatalf("overlap batch state = %s", batch.State)
	}
	if len(batch.Errors) != 1 || batch.Errors[0].Kind != ErrKindConflict {
		t.Fatalf("errors = %+v", batch.Errors)
	}

	identical := runImport(t, imp, "leave-3", first, testLeaveLayout())
	if identical.Duplicates != 1 {
		t.Errorf("identical leave duplicates = %d", identical.Duplicates)
	}
}

func TestErrorThresholdAbortsBatch(t *testing.T) {
	store := registry.NewMemory()
	imp := newTestImporter(store, Options{Workers: 1, ErrorRateThreshold: 0.5, ThresholdMinRows: 4})
	seedEmployees(t, imp)

	var sb strings.Builder
	sb.WriteString("DOC;ANO;MES;BRUTO;LIQ\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "9%03d;2023;1;100;90\n", i)
	}
	batch, err := imp.Run(context.Background(),
		registry.Batch{ID: "rem-threshold", FileName: "rem-threshold.csv"},
		strings.NewReader(sb.String()), testRemunerationLayout())

	var thresholdErr *ThresholdExceededError
	if !errors.As(err, &thresholdErr) {
		t.Fatalf("expected ThresholdExceededError, got %v", err)
	}
	if batch.State != registry.BatchFailed {
		t.Errorf("state = %s", batch.State)
	}
}

func TestMalformedCSVLineIsRowLocal(t *testing.T) {
	store := registry.NewMemory()
	imp := newTestImporter(store, Options{Workers: 1})
	seedEmployees(t, imp)

	csv := "DOC;ANO;MES;BRUTO;LIQ\n" +
		"1001;2023;1;1500,00;1000,01\n" +
		"\"1002;2023;1;100;90\n" +
		"1003;2023;1;1500,00;1000,03\n"
	batch := runImport(t, imp, "rem-malformed", csv, testRemunerationLayout())
	if batch.State != registry.BatchCompletedWithErrors {
		t.Fatalf("state = %s, errors = %v", batch.State, batch.Errors)
	}
	// The stray quote rejects its own line and nothing else.
	if batch.Accepted != 2 || batch.Rejected != 1 {
		t.Fatalf("accepted = %d, rejected = %d, errors = %+v", batch.Accepted, batch.Rejected, batch.Errors)
	}
	if len(batch.Errors) != 1 || batch.Errors[0].Row != 2 {
		t.Fatalf("errors = %+v", batch.Errors)
	}

	emp, err := store.EmployeeByDocument(context.Background(), "1003")
	if err != nil {
		t.Fatalf("employee: %v", err)
	}
	rec, err := store.RemunerationFor(context.Background(), emp.ID, registry.Period{Year: 2023, Month: 1})
	if err != nil {
		t.Fatalf("row after the malformed line was not committed: %v", err)
	}
	if !rec.Net.Equal(decimal.RequireFromString("1000.03")) {
		t.Errorf("net = %s", rec.Net)
	}
}

func TestRunTransitionsPendingBatch(t *testing.T) {
	store := registry.NewMemory()
	imp := newTestImporter(store, Options{Workers: 1})
	seedEmployees(t, imp)

	pending := registry.Batch{ID: "rem-pending", FileName: "rem-pending.csv", State: registry.BatchPending}
	if err := store.CreateBatch(context.Background(), pending); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	batch, err := imp.Run(context.Background(), pending,
		strings.NewReader(remunerationCSV), testRemunerationLayout())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if batch.State != registry.BatchCompleted {
		t.Fatalf("state = %s", batch.State)
	}

	stored, err := store.BatchByID(context.Background(), "rem-pending")
	if err != nil {
		t.Fatalf("batch lookup: %v", err)
	}
	if stored.State != registry.BatchCompleted || stored.Accepted != 3 {
		t.Errorf("stored batch = state %s accepted %d", stored.State, stored.Accepted)
	}
	if stored.FinalizedAt == nil {
		t.Error("finalized timestamp not set")
	}
}

func TestCancelledRunEndsCancelled(t *testing.T) {
	store := registry.NewMemory()
	imp := newTestImporter(store, Options{Workers: 1})
	seedEmployees(t, imp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch, err := imp.Run(ctx,
		registry.Batch{ID: "rem-cancelled", FileName: "rem-cancelled.csv"},
		strings.NewReader(remunerationCSV), testRemunerationLayout())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if batch.State != registry.BatchCancelled {
		t.Errorf("state = %s", batch.State)
	}
}
