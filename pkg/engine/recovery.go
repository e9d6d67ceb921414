package engine

import (
	"time"

	"github.com/pkvartsianyi/spatio/pkg/aof"
	"github.com/pkvartsianyi/spatio/pkg/geo"
	"github.com/pkvartsianyi/spatio/pkg/record"
	"github.com/pkvartsianyi/spatio/pkg/snapshot"
	"github.com/pkvartsianyi/spatio/pkg/trajectory"
)

// recover rebuilds in-memory state from the snapshot file (if any)
// followed by the AOF tail: checkpoint first, then log replay on top. A
// bad magic or version in the snapshot is fatal; a truncated final AOF
// frame is tolerated and replay simply stops there.
func (e *Engine) recover() error {
	entries, _, err := snapshot.Load(e.snapshotPath())
	if err != nil {
		return err
	}
	for _, se := range entries {
		e.restoreRecord(se.Namespace, se.ID, se.Point, se.Metadata, se.CreatedAt, se.ExpiresAt)
	}

	cmds, err := aof.ReadAll(e.aofPath())
	if err != nil {
		return err
	}
	for _, c := range cmds {
		e.applyRecoveredCommand(c)
	}
	return nil
}

func (e *Engine) restoreRecord(ns, id string, p geo.Point3D, metadata []byte, createdAt time.Time, expiresAt *time.Time) {
	ns2 := e.namespaces.GetOrCreate(ns)
	rec := &record.Record{
		Namespace: ns, ID: id, Point: p, Metadata: metadata,
		CreatedAt: createdAt, ExpiresAt: expiresAt,
	}
	ns2.Hot.Set(rec)
	ns2.Spatial.Insert(id, p)
	e.ttl.Remove(ns, id)
	if expiresAt != nil {
		e.ttl.Add(ns, id, *expiresAt)
	}
}

func (e *Engine) applyRecoveredCommand(c aof.Command) {
	switch c.Tag {
	case aof.TagSet:
		e.restoreRecord(c.Namespace, c.ID, c.Point, c.Metadata, c.CreatedAt, c.ExpiresAt)
	case aof.TagDelete:
		ns, ok := e.namespaces.Get(c.Namespace)
		if !ok {
			return
		}
		ns.Hot.Delete(c.ID)
		ns.Spatial.Remove(c.ID)
		e.ttl.Remove(c.Namespace, c.ID)
	case aof.TagTrajectoryAppend:
		for _, tp := range c.TrajectoryPoints {
			e.traj.Append(c.Namespace, c.ID, trajectory.Entry{
				Timestamp: tp.Timestamp, Point: tp.Point, Metadata: tp.Metadata,
			})
		}
	}
}
