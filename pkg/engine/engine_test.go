package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkvartsianyi/spatio/pkg/batch"
	"github.com/pkvartsianyi/spatio/pkg/config"
	"github.com/pkvartsianyi/spatio/pkg/geo"
	"github.com/pkvartsianyi/spatio/pkg/record"
	"github.com/pkvartsianyi/spatio/pkg/trajectory"
)

func nycPoint() geo.Point3D {
	return geo.Point3D{X: -74.0060, Y: 40.7128, Z: 10}
}

func TestEngine_UpsertGetDelete(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	if err := e.Upsert("fleet", "truck-1", nycPoint(), []byte("hello"), record.UpsertOptions{}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rec, ok, err := e.Get("fleet", "truck-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if rec.Point != nycPoint() {
		t.Errorf("point mismatch: got %v", rec.Point)
	}

	deleted, err := e.Delete("fleet", "truck-1")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}

	if _, ok, _ := e.Get("fleet", "truck-1"); ok {
		t.Error("expected record to be gone after delete")
	}
}

func TestEngine_StoreAndIndexStayConsistent(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	e.Upsert("fleet", "a", nycPoint(), nil, record.UpsertOptions{})
	hits, err := e.QueryRadius("fleet", nycPoint(), 100, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Fatalf("expected 1 hit for a, got %v", hits)
	}

	e.Delete("fleet", "a")
	hits, err = e.QueryRadius("fleet", nycPoint(), 100, 0)
	if err != nil {
		t.Fatalf("query after delete: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits after delete, got %v", hits)
	}
}

func TestEngine_LazyExpiry(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	past := time.Now().UTC().Add(-time.Hour)
	e.Upsert("fleet", "stale", nycPoint(), nil, record.UpsertOptions{ExpiresAt: &past})

	if _, ok, _ := e.Get("fleet", "stale"); ok {
		t.Error("expected expired record to be hidden by Get before any sweep")
	}

	n, err := e.CleanupExpired()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 record swept, got %d", n)
	}
}

func TestEngine_AtomicBatchAllOrNothing(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	err := e.Atomic(func(b *batch.Batch) error {
		b.Upsert("fleet", "a", nycPoint(), nil, record.UpsertOptions{})
		b.Upsert("fleet", "b", geo.Point3D{X: 1000, Y: 0, Z: 0}, nil, record.UpsertOptions{}) // invalid longitude
		return nil
	})
	if err == nil {
		t.Fatal("expected validation error from invalid point in batch")
	}

	if _, ok, _ := e.Get("fleet", "a"); ok {
		t.Error("expected no partial effect: 'a' should not have been applied")
	}

	err = e.Atomic(func(b *batch.Batch) error {
		b.Upsert("fleet", "a", nycPoint(), nil, record.UpsertOptions{})
		b.Upsert("fleet", "c", geo.Point3D{X: -73.9, Y: 40.8, Z: 0}, nil, record.UpsertOptions{})
		return nil
	})
	if err != nil {
		t.Fatalf("valid batch should succeed: %v", err)
	}
	if _, ok, _ := e.Get("fleet", "a"); !ok {
		t.Error("expected 'a' present after valid batch commit")
	}
	if _, ok, _ := e.Get("fleet", "c"); !ok {
		t.Error("expected 'c' present after valid batch commit")
	}
}

func TestEngine_SnapshotAndRecoveryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()

	e, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e.Upsert("fleet", "a", nycPoint(), []byte("payload"), record.UpsertOptions{})
	e.Upsert("fleet", "b", geo.Point3D{X: 2, Y: 2, Z: 2}, nil, record.UpsertOptions{})
	if err := e.Snapshot(); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	e.Upsert("fleet", "c", geo.Point3D{X: 3, Y: 3, Z: 3}, nil, record.UpsertOptions{})
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e2.Close()

	for _, id := range []string{"a", "b", "c"} {
		if _, ok, _ := e2.Get("fleet", id); !ok {
			t.Errorf("expected %q to survive recovery", id)
		}
	}
}

func TestEngine_Recovery_OverwriteClearsStaleTTL(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()

	e, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	future := time.Now().UTC().Add(time.Hour)
	e.Upsert("fleet", "k", nycPoint(), nil, record.UpsertOptions{ExpiresAt: &future})
	// Overwrite with no TTL: the record should no longer expire.
	e.Upsert("fleet", "k", nycPoint(), nil, record.UpsertOptions{})
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e2.Close()

	rec, ok, err := e2.Get("fleet", "k")
	if err != nil || !ok {
		t.Fatalf("expected 'k' to survive recovery: ok=%v err=%v", ok, err)
	}
	if rec.ExpiresAt != nil {
		t.Fatalf("expected no expiration after overwrite, got %v", rec.ExpiresAt)
	}

	n, err := e2.CleanupExpired()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 0 {
		t.Errorf("expected CleanupExpired to find nothing, got %d", n)
	}
	if _, ok, _ := e2.Get("fleet", "k"); !ok {
		t.Error("expected 'k' to remain live after cleanup — a stale TTL entry must not delete it")
	}
}

func TestEngine_CrashSafety_TruncatedAOFTail(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()

	e, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	e.Upsert("fleet", "a", nycPoint(), nil, record.UpsertOptions{})
	if err := e.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	e.Close()

	aofPath := filepath.Join(dir, aofFileName)
	truncateFileByOneByte(t, aofPath)

	e2, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("reopen after truncation should tolerate a torn tail: %v", err)
	}
	defer e2.Close()
}

func TestEngine_RadiusAndKNN(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	e.Upsert("fleet", "near", geo.Point3D{X: -74.0061, Y: 40.7129, Z: 10}, nil, record.UpsertOptions{})
	e.Upsert("fleet", "far", geo.Point3D{X: 2.3522, Y: 48.8566, Z: 35}, nil, record.UpsertOptions{}) // Paris

	hits, err := e.QueryRadius("fleet", nycPoint(), 1000, 0)
	if err != nil {
		t.Fatalf("query radius: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "near" {
		t.Fatalf("expected only 'near' within 1km, got %v", hits)
	}

	knn, err := e.KNN("fleet", nycPoint(), 1)
	if err != nil {
		t.Fatalf("knn: %v", err)
	}
	if len(knn) != 1 || knn[0].ID != "near" {
		t.Fatalf("expected 'near' as nearest neighbor, got %v", knn)
	}
}

func TestEngine_QueryRadius_NYCLondonScenario(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	e.Upsert("cities", "nyc", geo.Point3D{X: -74.0060, Y: 40.7128, Z: 0}, []byte("{}"), record.UpsertOptions{})
	e.Upsert("cities", "lon", geo.Point3D{X: -0.1278, Y: 51.5074, Z: 0}, []byte("{}"), record.UpsertOptions{})

	hits, err := e.QueryRadius("cities", geo.Point3D{X: -0.1278, Y: 51.5074, Z: 0}, 500000, 10)
	if err != nil {
		t.Fatalf("query radius: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "lon" {
		t.Fatalf("expected exactly [lon], got %v", hits)
	}
}

func TestEngine_QueryRadius_LimitTruncatesSortedResults(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	e.Upsert("fleet", "nyc", nycPoint(), nil, record.UpsertOptions{})
	e.Upsert("fleet", "newark", geo.Point3D{X: -74.1724, Y: 40.7357, Z: 5}, nil, record.UpsertOptions{})
	e.Upsert("fleet", "paris", geo.Point3D{X: 2.3522, Y: 48.8566, Z: 35}, nil, record.UpsertOptions{})

	hits, err := e.QueryRadius("fleet", nycPoint(), 7000000, 1)
	if err != nil {
		t.Fatalf("query radius: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "nyc" {
		t.Fatalf("expected limit=1 to keep only the nearest hit, got %v", hits)
	}
}

func TestEngine_ConvexHullAndBoundingRect_ExcludeExpiredUnswept(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	e.Upsert("fleet", "a", geo.Point3D{X: 0, Y: 0, Z: 0}, nil, record.UpsertOptions{})
	e.Upsert("fleet", "b", geo.Point3D{X: 10, Y: 0, Z: 0}, nil, record.UpsertOptions{})
	e.Upsert("fleet", "c", geo.Point3D{X: 10, Y: 10, Z: 0}, nil, record.UpsertOptions{})

	past := time.Now().UTC().Add(time.Millisecond)
	// Far outlier that would otherwise dominate both the hull and the
	// bounding rect, expiring almost immediately and deliberately never
	// swept by CleanupExpired before the assertions below run.
	e.Upsert("fleet", "outlier", geo.Point3D{X: 100, Y: 80, Z: 0}, nil, record.UpsertOptions{ExpiresAt: &past})
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := e.Get("fleet", "outlier"); ok {
		t.Fatal("expected outlier to read as expired via Get")
	}

	rect, ok, err := e.BoundingRect("fleet")
	if err != nil || !ok {
		t.Fatalf("BoundingRect: ok=%v err=%v", ok, err)
	}
	if rect.MaxX != 10 || rect.MaxY != 10 {
		t.Fatalf("expected the expired outlier excluded from the bounding rect, got %+v", rect)
	}

	hull, err := e.ConvexHull("fleet")
	if err != nil {
		t.Fatalf("ConvexHull: %v", err)
	}
	for _, p := range hull {
		if p.X == 100 {
			t.Fatalf("expected the expired outlier excluded from the hull, got %+v", hull)
		}
	}
}

func TestEngine_QueryTrajectory_RangeAndLimit(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := e.InsertTrajectory("veh", "v1", trajectory.Entry{
			Timestamp: t0.Add(time.Duration(i*10) * time.Second),
			Point:     geo.Point3D{X: float64(i), Y: float64(i), Z: 0},
		})
		if err != nil {
			t.Fatalf("insert trajectory: %v", err)
		}
	}

	got := e.QueryTrajectory("veh", "v1", t0.Add(10*time.Second), t0.Add(30*time.Second), 100)
	if len(got) != 3 {
		t.Fatalf("expected exactly 3 points in [t+10,t+30], got %d", len(got))
	}
	want := []time.Duration{10 * time.Second, 20 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got[i].Timestamp != t0.Add(w) {
			t.Errorf("point %d: expected timestamp %v, got %v", i, t0.Add(w), got[i].Timestamp)
		}
	}

	limited := e.QueryTrajectory("veh", "v1", t0, t0.Add(time.Minute), 2)
	if len(limited) != 2 {
		t.Fatalf("expected limit=2 to truncate, got %d", len(limited))
	}
}

func TestEngine_ValidationBoundary(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	err := e.Upsert("fleet", "bad", geo.Point3D{X: 200, Y: 0, Z: 0}, nil, record.UpsertOptions{})
	if err == nil {
		t.Fatal("expected validation error for out-of-range longitude")
	}

	_, err = e.QueryRadius("fleet", nycPoint(), -5, 0)
	if err == nil {
		t.Fatal("expected validation error for negative radius")
	}
}

func TestEngine_TrajectoryInsertAndQuery(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := e.InsertTrajectory("fleet", "truck-1", trajectory.Entry{
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Point:     geo.Point3D{X: float64(i), Y: float64(i), Z: 0},
		})
		if err != nil {
			t.Fatalf("insert trajectory: %v", err)
		}
	}

	got := e.QueryTrajectory("fleet", "truck-1", t0, t0.Add(10*time.Minute), 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
}

func TestEngine_StatsReportsOperationsCount(t *testing.T) {
	e := OpenInMemory(config.Default())
	defer e.Close()

	e.Upsert("fleet", "a", nycPoint(), nil, record.UpsertOptions{})
	e.Upsert("fleet", "b", nycPoint(), nil, record.UpsertOptions{})
	e.Delete("fleet", "a")

	stats := e.Stats()
	if stats.OperationsCount != 3 {
		t.Errorf("expected 3 operations, got %d", stats.OperationsCount)
	}
	if stats.Records != 1 {
		t.Errorf("expected 1 live record, got %d", stats.Records)
	}
	if stats.Namespaces != 1 {
		t.Errorf("expected 1 namespace, got %d", stats.Namespaces)
	}
}

func TestEngine_ClosedRejectsOperations(t *testing.T) {
	e := OpenInMemory(config.Default())
	e.Close()

	if err := e.Upsert("fleet", "a", nycPoint(), nil, record.UpsertOptions{}); err == nil {
		t.Error("expected error on upsert after close")
	}
	if _, _, err := e.Get("fleet", "a"); err == nil {
		t.Error("expected error on get after close")
	}
}

func TestEngine_AutoSnapshotTriggersAfterNOps(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.SnapshotAutoOps = 3

	e, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()

	snapshotPath := filepath.Join(dir, snapshotFileName)
	if _, err := os.Stat(snapshotPath); !os.IsNotExist(err) {
		t.Fatalf("expected no snapshot file yet, stat err=%v", err)
	}

	e.Upsert("fleet", "a", nycPoint(), nil, record.UpsertOptions{})
	e.Upsert("fleet", "b", nycPoint(), nil, record.UpsertOptions{})
	if _, err := os.Stat(snapshotPath); !os.IsNotExist(err) {
		t.Fatalf("expected no snapshot file before the 3rd mutation, stat err=%v", err)
	}

	e.Upsert("fleet", "c", nycPoint(), nil, record.UpsertOptions{})
	if _, err := os.Stat(snapshotPath); err != nil {
		t.Fatalf("expected auto-snapshot after 3 mutations: %v", err)
	}
	if e.opsSinceSnapshot != 0 {
		t.Errorf("expected opsSinceSnapshot reset after auto-snapshot, got %d", e.opsSinceSnapshot)
	}

	// A 4th mutation must not fire again until 3 more accumulate.
	e.Upsert("fleet", "d", nycPoint(), nil, record.UpsertOptions{})
	if e.opsSinceSnapshot != 1 {
		t.Errorf("expected opsSinceSnapshot == 1 after one more mutation, got %d", e.opsSinceSnapshot)
	}
}

func TestEngine_AutoRewriteCompactsAOFAndPreservesTrajectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.RewriteThresholdBytes = 1 // trip on the very first frame

	e, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()

	t0 := time.Now().UTC()
	if err := e.InsertTrajectory("fleet", "truck-1", trajectory.Entry{Timestamp: t0, Point: nycPoint()}); err != nil {
		t.Fatalf("insert trajectory: %v", err)
	}
	if err := e.Upsert("fleet", "truck-1", nycPoint(), nil, record.UpsertOptions{}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sizeAfterFirstRewrite := e.aofWriter.Size()
	// One Set command plus one TrajectoryAppend command, not the whole
	// unbounded history of every prior mutation.
	if sizeAfterFirstRewrite <= 0 {
		t.Fatalf("expected a non-empty rewritten AOF, got size %d", sizeAfterFirstRewrite)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer e2.Close()

	if _, ok, err := e2.Get("fleet", "truck-1"); err != nil || !ok {
		t.Fatalf("expected truck-1 to survive a rewrite-then-reopen: ok=%v err=%v", ok, err)
	}
	path := e2.QueryTrajectory("fleet", "truck-1", t0.Add(-time.Minute), t0.Add(time.Minute), 0)
	if len(path) != 1 {
		t.Fatalf("expected trajectory history to survive the rewrite, got %d samples", len(path))
	}
}

func truncateFileByOneByte(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat aof: %v", err)
	}
	if info.Size() <= 0 {
		t.Skip("aof file empty, nothing to truncate")
	}
	if err := os.Truncate(path, info.Size()-1); err != nil {
		t.Fatalf("truncate aof: %v", err)
	}
}
