package trajectory

import (
	"testing"
	"time"

	"github.com/pkvartsianyi/spatio/pkg/geo"
)

func TestStore_AppendOutOfOrderStaysSorted(t *testing.T) {
	s := New()
	base := time.Unix(1000, 0)

	s.Append("ns", "veh1", Entry{Timestamp: base.Add(2 * time.Second), Point: geo.Point3D{X: 2}})
	s.Append("ns", "veh1", Entry{Timestamp: base, Point: geo.Point3D{X: 0}})
	s.Append("ns", "veh1", Entry{Timestamp: base.Add(time.Second), Point: geo.Point3D{X: 1}})

	all := s.Query("ns", "veh1", base.Add(-time.Hour), base.Add(time.Hour), 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	for i, e := range all {
		if e.Point.X != float64(i) {
			t.Fatalf("entries not sorted ascending by timestamp: %+v", all)
		}
	}
}

func TestStore_QueryRangeBounds(t *testing.T) {
	s := New()
	base := time.Unix(2000, 0)
	for i := 0; i < 5; i++ {
		s.Append("ns", "veh1", Entry{Timestamp: base.Add(time.Duration(i) * time.Minute), Point: geo.Point3D{X: float64(i)}})
	}

	got := s.Query("ns", "veh1", base.Add(time.Minute), base.Add(3*time.Minute), 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 entries in range, got %d: %+v", len(got), got)
	}
	if got[0].Point.X != 1 || got[2].Point.X != 3 {
		t.Fatalf("unexpected range boundaries: %+v", got)
	}
}

func TestStore_QueryLimitTruncatesOldestFirst(t *testing.T) {
	s := New()
	base := time.Unix(3000, 0)
	for i := 0; i < 5; i++ {
		s.Append("ns", "veh1", Entry{Timestamp: base.Add(time.Duration(i) * time.Minute), Point: geo.Point3D{X: float64(i)}})
	}

	got := s.Query("ns", "veh1", base, base.Add(time.Hour), 2)
	if len(got) != 2 {
		t.Fatalf("expected limit=2 to truncate, got %d: %+v", len(got), got)
	}
	if got[0].Point.X != 0 || got[1].Point.X != 1 {
		t.Fatalf("expected the two oldest entries, got %+v", got)
	}
}

func TestStore_QueryEmptySeries(t *testing.T) {
	s := New()
	got := s.Query("ns", "nope", time.Unix(0, 0), time.Unix(100, 0), 0)
	if got != nil {
		t.Fatalf("expected nil for unknown series, got %v", got)
	}
}

func TestStore_DeleteAndLen(t *testing.T) {
	s := New()
	base := time.Now()
	s.Append("ns", "veh1", Entry{Timestamp: base})
	if s.Len("ns", "veh1") != 1 {
		t.Fatal("expected Len 1")
	}
	s.Delete("ns", "veh1")
	if s.Len("ns", "veh1") != 0 {
		t.Fatal("expected Len 0 after Delete")
	}
}

func TestStore_DeleteNamespace(t *testing.T) {
	s := New()
	base := time.Now()
	s.Append("ns1", "a", Entry{Timestamp: base})
	s.Append("ns2", "a", Entry{Timestamp: base})

	s.DeleteNamespace("ns1")
	if s.Len("ns1", "a") != 0 {
		t.Fatal("expected ns1 series gone")
	}
	if s.Len("ns2", "a") != 1 {
		t.Fatal("expected ns2 series intact")
	}
}
