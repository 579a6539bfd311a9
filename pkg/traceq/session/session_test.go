package session

import (
	"testing"
)

func TestRecordOrderAndIDs(t *testing.T) {
	log := NewLog()

	a := log.Record(Entry{QueryText: "?- frame(X, Y, Z, W).", Valid: true, Success: true})
	b := log.Record(Entry{QueryText: "?- nonsense", Valid: false})

	if a.ID == "" || b.ID == "" {
		t.Fatal("entries should be stamped with IDs")
	}
	if a.ID == b.ID {
		t.Error("entry IDs should be unique")
	}
	if a.ID >= b.ID {
		t.Errorf("IDs should sort in record order: %s then %s", a.ID, b.ID)
	}

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].QueryText != a.QueryText || entries[1].QueryText != b.QueryText {
		t.Error("entries returned out of order")
	}
	if log.QueriesAsked() != 2 {
		t.Errorf("QueriesAsked = %d, want 2", log.QueriesAsked())
	}
}

func TestDiscoveries(t *testing.T) {
	log := NewLog()
	if got := log.Discoveries(); len(got) != 0 {
		t.Fatalf("fresh log discoveries = %v", got)
	}

	log.Record(Entry{QueryText: "q1", Valid: true, Significant: true, Category: "memoryAnomaly"})
	log.Record(Entry{QueryText: "q2", Valid: true, Significant: true, Category: "error"})
	log.Record(Entry{QueryText: "q3", Valid: true, Significant: true, Category: "error"})
	log.Record(Entry{QueryText: "q4", Valid: true, Significant: false, Category: ""})

	got := log.Discoveries()
	want := []string{"error", "memoryAnomaly"}
	if len(got) != len(want) {
		t.Fatalf("discoveries = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("discoveries[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEntriesCopy(t *testing.T) {
	log := NewLog()
	log.Record(Entry{QueryText: "q"})

	entries := log.Entries()
	entries[0].QueryText = "mutated"

	if log.Entries()[0].QueryText != "q" {
		t.Error("Entries should return a copy")
	}
}
