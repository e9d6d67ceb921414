package history

import (
	"testing"
	"time"
)

func TestRing_RecordWithinCapacity(t *testing.T) {
	r := New(3)
	now := time.Now()
	r.Record(Entry{Namespace: "ns", ID: "a", Timestamp: now, Kind: KindSet})
	r.Record(Entry{Namespace: "ns", ID: "b", Timestamp: now, Kind: KindDelete})

	recent := r.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].ID != "a" || recent[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", recent)
	}
}

func TestRing_EvictsOldestOnOverflow(t *testing.T) {
	r := New(2)
	now := time.Now()
	r.Record(Entry{ID: "a", Timestamp: now})
	r.Record(Entry{ID: "b", Timestamp: now})
	r.Record(Entry{ID: "c", Timestamp: now})

	recent := r.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected ring capped at 2, got %d", len(recent))
	}
	if recent[0].ID != "b" || recent[1].ID != "c" {
		t.Fatalf("expected oldest evicted, got %+v", recent)
	}
}

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{KindSet: "set", KindDelete: "delete", KindExpire: "expire", Kind(99): "unknown"}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestRing_ZeroCapacityClampedToOne(t *testing.T) {
	r := New(0)
	r.Record(Entry{ID: "a"})
	r.Record(Entry{ID: "b"})
	if r.Len() != 1 {
		t.Fatalf("expected capacity clamped to 1, got Len=%d", r.Len())
	}
}
