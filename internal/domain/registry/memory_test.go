package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestMemoryApplyRowKeepsExistingIdentity(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := Employee{ID: "id-1", Document: "77", Name: "ALICE"}
	if err := m.ApplyRow(ctx, RowWrite{Employee: &first}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// Same document, fresh minted ID: the stored identity must win.
	second := Employee{ID: "id-2", Document: "77", Name: "ALICE A."}
	rem := Remuneration{
		ID:         "rem-1",
		EmployeeID: "id-2",
		Period:     Period{Year: 2023, Month: 1},
		Gross:      decimal.RequireFromString("100.00"),
		Net:        decimal.RequireFromString("90.00"),
	}
	if err := m.ApplyRow(ctx, RowWrite{Employee: &second, Remuneration: &rem}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	stored, err := m.EmployeeByDocument(ctx, "77")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.ID != "id-1" {
		t.Errorf("identity = %s, want id-1", stored.ID)
	}
	if stored.Name != "ALICE A." {
		t.Errorf("name = %s, attributes should update in place", stored.Name)
	}

	// The remuneration was rewritten onto the canonical identity.
	if _, err := m.RemunerationFor(ctx, "id-1", Period{Year: 2023, Month: 1}); err != nil {
		t.Errorf("remuneration not bound to canonical identity: %v", err)
	}
}

func TestMemoryScopeFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	emp := Employee{ID: "id-1", Document: "1", Name: "A", Org: "FAZENDA"}
	if err := m.ApplyRow(ctx, RowWrite{Employee: &emp}); err != nil {
		t.Fatal(err)
	}
	for month := 1; month <= 3; month++ {
		rem := Remuneration{
			ID:         "rem",
			EmployeeID: "id-1",
			Period:     Period{Year: 2023, Month: month},
			Gross:      decimal.New(100, 0),
			Net:        decimal.New(90, 0),
		}
		if err := m.ApplyRow(ctx, RowWrite{Remuneration: &rem}); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := m.ListRemunerations(ctx, Scope{From: Period{2023, 2}, To: Period{2023, 3}})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("period filter matched %d records", len(recs))
	}

	recs, err = m.ListRemunerations(ctx, Scope{Org: "SAUDE"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("org filter matched %d records", len(recs))
	}
}

func TestMemoryBatchFinalizeGuard(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	batch := Batch{ID: "b-1", FileName: "a.csv", State: BatchRunning, CreatedAt: time.Now()}
	if err := m.CreateBatch(ctx, batch); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	batch.State = BatchCompleted
	batch.FinalizedAt = &now
	if err := m.FinalizeBatch(ctx, batch); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Finalized batches reject further updates.
	batch.Accepted = 10
	if err := m.UpdateBatch(ctx, batch); !errors.Is(err, ErrBatchFinalized) {
		t.Errorf("update after finalize = %v, want ErrBatchFinalized", err)
	}
}

func TestMemoryAmbiguousDocument(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.mu.Lock()
	m.employees["a"] = Employee{ID: "a", Document: "9"}
	m.employees["b"] = Employee{ID: "b", Document: "9"}
	m.documentIndex["9"] = []string{"a", "b"}
	m.mu.Unlock()

	_, err := m.EmployeeByDocument(ctx, "9")
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("err = %v, want ErrAmbiguous", err)
	}
}
