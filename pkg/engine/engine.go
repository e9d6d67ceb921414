// Package engine is the embedded spatio-temporal database facade: it
// wires together the namespace registry, TTL index, trajectory store,
// history ring, AOF writer, and snapshot file into the single entry
// point callers use. One struct, one constructor per mode, with
// Close/recover/Snapshot methods analogous to a storage engine's
// checkpoint-and-recover lifecycle — but the concurrency model is
// deliberately simpler: one engine-wide sync.RWMutex (write lane vs.
// read lane) rather than MVCC/snapshot-isolation transactions, since
// nothing here needs multi-statement isolation.
package engine

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkvartsianyi/spatio/pkg/aof"
	"github.com/pkvartsianyi/spatio/pkg/config"
	spatioerrors "github.com/pkvartsianyi/spatio/pkg/errors"
	"github.com/pkvartsianyi/spatio/pkg/history"
	"github.com/pkvartsianyi/spatio/pkg/namespace"
	"github.com/pkvartsianyi/spatio/pkg/snapshot"
	"github.com/pkvartsianyi/spatio/pkg/trajectory"
	"github.com/pkvartsianyi/spatio/pkg/ttlindex"
)

const (
	snapshotFileName = "spatio.snapshot"
	aofFileName      = "spatio.aof"

	defaultHistoryCapacity = 1024
)

// Engine is the embedded database handle. It is safe for concurrent use
// by multiple goroutines.
type Engine struct {
	mu sync.RWMutex

	cfg config.Config
	dir string // empty for in-memory mode

	namespaces *namespace.Registry
	ttl        *ttlindex.Index
	traj       *trajectory.Store
	hist       *history.Ring
	ops        opsCounter

	// opsSinceSnapshot counts mutations since the last snapshot (manual or
	// auto-triggered); it is only ever touched while e.mu is held for
	// writing, unlike the atomic lifetime counter in ops.
	opsSinceSnapshot uint64

	aofWriter *aof.Writer // nil in-memory mode
	closed    bool
}

// Open opens (or creates) an on-disk database at dir: loads the latest
// snapshot if present, replays the AOF tail on top of it, then leaves the
// AOF open for further appends. Recovery tolerates a truncated tail frame
// but aborts on anything else corrupt.
func Open(dir string, cfg config.Config) (*Engine, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &spatioerrors.IOError{Op: "mkdir database dir", Err: err}
	}

	e := newEngine(cfg, dir)

	if err := e.recover(); err != nil {
		return nil, err
	}

	w, err := aof.NewWriter(e.aofPath(), cfg)
	if err != nil {
		return nil, err
	}
	e.aofWriter = w

	return e, nil
}

// OpenInMemory opens a database with no backing files: nothing persists
// across process restarts, used for tests and ephemeral workloads.
func OpenInMemory(cfg config.Config) *Engine {
	return newEngine(cfg, "")
}

func newEngine(cfg config.Config, dir string) *Engine {
	capacity := int(cfg.HistoryCapacity)
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &Engine{
		cfg:        cfg,
		dir:        dir,
		namespaces: namespace.NewRegistry(),
		ttl:        ttlindex.New(),
		traj:       trajectory.New(),
		hist:       history.New(capacity),
	}
}

func (e *Engine) snapshotPath() string {
	return filepath.Join(e.dir, snapshotFileName)
}

func (e *Engine) aofPath() string {
	return filepath.Join(e.dir, aofFileName)
}

// Close marks the engine closed, so later operations return
// DatabaseClosedError, and flushes and closes the AOF writer when there is
// one.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return &spatioerrors.DatabaseClosedError{}
	}
	e.closed = true

	if e.aofWriter != nil {
		return e.aofWriter.Close()
	}
	return nil
}

// Sync forces every buffered write to stable storage.
func (e *Engine) Sync() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return &spatioerrors.DatabaseClosedError{}
	}
	if e.aofWriter == nil {
		return nil
	}
	return e.aofWriter.Sync()
}

// Snapshot writes every live record to the snapshot file (atomic by
// rename) and, on disk-backed engines, rewrites the AOF afterward to hold
// only one TrajectoryAppend per trajectory series — the snapshot carries
// the records, so the Set/Delete frames it supersedes are dropped, while
// trajectories, which the snapshot does not carry, stay in the log.
func (e *Engine) Snapshot() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return &spatioerrors.DatabaseClosedError{}
	}
	return e.snapshotLocked()
}

// snapshotLocked runs the checkpoint with e.mu already held for writing.
// It backs both the public Snapshot and the auto_snapshot_ops trigger
// fired from inside an already-locked mutation.
func (e *Engine) snapshotLocked() error {
	if e.dir == "" {
		e.opsSinceSnapshot = 0
		return nil // in-memory mode has nothing to snapshot to
	}

	now := time.Now().UTC()
	var entries []snapshot.Entry
	for _, ns := range e.namespaces.All() {
		for _, rec := range ns.Hot.All() {
			entries = append(entries, snapshot.Entry{
				Namespace: ns.Name, ID: rec.ID, Point: rec.Point,
				Metadata: rec.Metadata, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt,
			})
		}
	}

	if err := snapshot.Save(e.snapshotPath(), entries, now); err != nil {
		return err
	}

	if e.aofWriter != nil {
		if err := e.aofWriter.Close(); err != nil {
			return err
		}
		var trajCmds []aof.Command
		for ns, series := range e.traj.All() {
			for id, entries := range series {
				if len(entries) == 0 {
					continue
				}
				points := make([]aof.TrajectoryPointEntry, len(entries))
				for i, en := range entries {
					points[i] = aof.TrajectoryPointEntry{Timestamp: en.Timestamp, Point: en.Point, Metadata: en.Metadata}
				}
				trajCmds = append(trajCmds, aof.TrajectoryAppendCommand(ns, id, points))
			}
		}
		if err := aof.Rewrite(e.aofPath(), trajCmds); err != nil {
			return err
		}
		w, err := aof.NewWriter(e.aofPath(), e.cfg)
		if err != nil {
			return err
		}
		e.aofWriter = w
	}
	e.opsSinceSnapshot = 0
	return nil
}

// maybeAutoSnapshotLocked fires a snapshot once opsSinceSnapshot reaches
// cfg.SnapshotAutoOps (spec: "auto_snapshot_ops triggers a save after N
// mutations since the last snapshot"). Zero disables it. Callers must
// already hold e.mu for writing.
func (e *Engine) maybeAutoSnapshotLocked() error {
	if e.cfg.SnapshotAutoOps == 0 || e.opsSinceSnapshot < e.cfg.SnapshotAutoOps {
		return nil
	}
	return e.snapshotLocked()
}

// maybeRewriteAOFLocked compacts the AOF once it exceeds
// cfg.RewriteThresholdBytes, rebuilding an equivalent minimal log — one Set
// per live record plus one TrajectoryAppend per trajectory series — rather
// than letting superseded frames accumulate forever. Callers must already
// hold e.mu for writing.
func (e *Engine) maybeRewriteAOFLocked() error {
	if e.aofWriter == nil || e.cfg.RewriteThresholdBytes <= 0 {
		return nil
	}
	if e.aofWriter.Size() < e.cfg.RewriteThresholdBytes {
		return nil
	}

	var cmds []aof.Command
	for _, ns := range e.namespaces.All() {
		for _, rec := range ns.Hot.All() {
			cmds = append(cmds, aof.SetCommand(ns.Name, rec.ID, rec.Point, rec.Metadata, rec.CreatedAt, rec.ExpiresAt))
		}
	}
	for ns, series := range e.traj.All() {
		for id, entries := range series {
			if len(entries) == 0 {
				continue
			}
			points := make([]aof.TrajectoryPointEntry, len(entries))
			for i, en := range entries {
				points[i] = aof.TrajectoryPointEntry{Timestamp: en.Timestamp, Point: en.Point, Metadata: en.Metadata}
			}
			cmds = append(cmds, aof.TrajectoryAppendCommand(ns, id, points))
		}
	}

	if err := e.aofWriter.Close(); err != nil {
		return err
	}
	if err := aof.Rewrite(e.aofPath(), cmds); err != nil {
		return err
	}
	w, err := aof.NewWriter(e.aofPath(), e.cfg)
	if err != nil {
		return err
	}
	e.aofWriter = w
	return nil
}

// afterMutationLocked runs the auto-snapshot and auto-rewrite checks that
// follow every durable mutation. Callers must already hold e.mu for
// writing and have already recorded the mutation against opsSinceSnapshot.
func (e *Engine) afterMutationLocked() error {
	if err := e.maybeAutoSnapshotLocked(); err != nil {
		return err
	}
	return e.maybeRewriteAOFLocked()
}

// Stats reports namespace/record/operation counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := 0
	for _, ns := range e.namespaces.All() {
		total += ns.Hot.Len()
	}
	return Stats{
		Namespaces:      len(e.namespaces.Names()),
		Records:         total,
		OperationsCount: e.ops.current(),
	}
}

// ExpiredStats reports how many records are tracked for expiry and how
// many are already past due.
func (e *Engine) ExpiredStats() ttlindex.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ttl.Stats(time.Now().UTC())
}

// CleanupExpired removes every record past its expiry from the hot
// store, spatial index, and TTL index, returning how many were removed.
// Expiry itself is checked lazily on every read regardless of whether
// this has run recently.
func (e *Engine) CleanupExpired() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	expired := e.ttl.CleanupExpired(now)

	for _, key := range expired {
		ns, ok := e.namespaces.Get(key.Namespace)
		if !ok {
			continue
		}
		ns.Hot.Delete(key.ID)
		ns.Spatial.Remove(key.ID)
		e.hist.Record(history.Entry{Namespace: key.Namespace, ID: key.ID, Timestamp: now, Kind: history.KindExpire})

		if e.aofWriter != nil {
			if err := e.aofWriter.Append(aof.DeleteCommand(key.Namespace, key.ID)); err != nil {
				return 0, err
			}
		}
	}
	return len(expired), nil
}
