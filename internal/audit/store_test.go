package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndQuery(t *testing.T) {
	store := newTestStore(t)

	entries := []Entry{
		{RequestID: "r1", TextLength: 42, Success: true, PrimaryCategory: "Anxiety & Panic", ModelUsed: "llama3-70b-8192", ProcessingMs: 420},
		{RequestID: "r2", TextLength: 10, Success: false, ModelUsed: "llama3-70b-8192", ProcessingMs: 50},
		{RequestID: "r3", TextLength: 99, Success: true, FallbackUsed: true, PrimaryCategory: "General Support", ModelUsed: "fallback_rules", ProcessingMs: 3},
	}
	for _, e := range entries {
		if err := store.Record(e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	all, err := store.Query(FilterOptions{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}
	for _, e := range all {
		if e.ID == "" {
			t.Error("Entry should get a generated ID")
		}
	}

	success := true
	successful, err := store.Query(FilterOptions{Success: &success})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(successful) != 2 {
		t.Errorf("Expected 2 successful entries, got %d", len(successful))
	}

	fallback := true
	fb, err := store.Query(FilterOptions{FallbackUsed: &fallback})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(fb) != 1 || fb[0].ModelUsed != "fallback_rules" {
		t.Errorf("Fallback query = %+v", fb)
	}

	byModel, err := store.Query(FilterOptions{Model: "llama3-70b-8192"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(byModel) != 2 {
		t.Errorf("Expected 2 entries for model, got %d", len(byModel))
	}
}

func TestQueryLimit(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		if err := store.Record(Entry{RequestID: "r", Success: true}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	limited, err := store.Query(FilterOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 entries with limit, got %d", len(limited))
	}
}

func TestCountAndPrune(t *testing.T) {
	store := newTestStore(t)

	old := Entry{RequestID: "old", CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	recent := Entry{RequestID: "recent", Success: true}
	if err := store.Record(old); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record(recent); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}

	pruned, err := store.Prune(time.Now().UTC().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Pruned = %d, want 1", pruned)
	}

	count, _ = store.Count()
	if count != 1 {
		t.Errorf("Count after prune = %d, want 1", count)
	}
}
