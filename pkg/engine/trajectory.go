package engine

import (
	"time"

	"github.com/pkvartsianyi/spatio/pkg/aof"
	spatioerrors "github.com/pkvartsianyi/spatio/pkg/errors"
	"github.com/pkvartsianyi/spatio/pkg/geo"
	"github.com/pkvartsianyi/spatio/pkg/trajectory"
)

// InsertTrajectory appends one (timestamp, point, metadata) sample to
// (namespace, id)'s trajectory series, durably logging it before applying
// it in memory. Unlike Upsert, this does not touch the hot store or
// spatial index — trajectory samples are a separate history, not the
// record's current position.
func (e *Engine) InsertTrajectory(namespace, id string, entry trajectory.Entry) error {
	if !entry.Point.Valid() {
		return &spatioerrors.ValidationError{Field: "point", Reason: "out of range or non-finite"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return &spatioerrors.DatabaseClosedError{}
	}

	if e.aofWriter != nil {
		points := []aof.TrajectoryPointEntry{{
			Timestamp: entry.Timestamp,
			Point:     entry.Point,
			Metadata:  entry.Metadata,
		}}
		if err := e.aofWriter.Append(aof.TrajectoryAppendCommand(namespace, id, points)); err != nil {
			return err
		}
	}

	e.traj.Append(namespace, id, entry)
	e.ops.next()
	e.opsSinceSnapshot++
	return e.afterMutationLocked()
}

// QueryTrajectory returns every sample in (namespace, id)'s series with
// timestamp in [from, to], oldest first, truncated to limit. limit <= 0
// means unlimited.
func (e *Engine) QueryTrajectory(namespace, id string, from, to time.Time, limit int) []trajectory.Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.traj.Query(namespace, id, from, to, limit)
}

// TrajectoryLen reports how many samples are stored for (namespace, id).
func (e *Engine) TrajectoryLen(namespace, id string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.traj.Len(namespace, id)
}

// DistanceAlongTrajectory returns the total path length, in meters, over
// every consecutive pair of samples in (namespace, id)'s series within
// [from, to].
func (e *Engine) DistanceAlongTrajectory(namespace, id string, from, to time.Time) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entries := e.traj.Query(namespace, id, from, to, 0)
	var total float64
	for i := 1; i < len(entries); i++ {
		total += geo.Distance3DMeters(entries[i-1].Point, entries[i].Point)
	}
	return total
}
