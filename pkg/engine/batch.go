package engine

import (
	"time"

	"github.com/pkvartsianyi/spatio/pkg/aof"
	"github.com/pkvartsianyi/spatio/pkg/batch"
	spatioerrors "github.com/pkvartsianyi/spatio/pkg/errors"
	"github.com/pkvartsianyi/spatio/pkg/history"
	"github.com/pkvartsianyi/spatio/pkg/record"
)

// Atomic stages a sequence of upserts/deletes via fn, checks the point of
// every staged upsert, and — only if every one of them is valid — appends
// them to the AOF as one block and applies them all under a single hold
// of the write lock. A validation failure aborts the whole batch with no partial
// effect: nothing is written to the AOF and no index is touched.
func (e *Engine) Atomic(fn func(*batch.Batch) error) error {
	b := batch.New()
	if err := fn(b); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return &spatioerrors.DatabaseClosedError{}
	}

	now := time.Now().UTC()
	for _, op := range b.Ops {
		if op.Kind == batch.OpUpsert && !op.Point.Valid() {
			return &spatioerrors.ValidationError{Field: "point", Reason: "out of range or non-finite"}
		}
	}

	var cmds []aof.Command
	for _, op := range b.Ops {
		switch op.Kind {
		case batch.OpUpsert:
			createdAt, expiresAt := op.Options.Resolve(now)
			cmds = append(cmds, aof.SetCommand(op.Namespace, op.ID, op.Point, op.Metadata, createdAt, expiresAt))
		case batch.OpDelete:
			cmds = append(cmds, aof.DeleteCommand(op.Namespace, op.ID))
		}
	}

	if e.aofWriter != nil && len(cmds) > 0 {
		if err := e.aofWriter.AppendBatch(cmds); err != nil {
			return err
		}
	}

	for _, op := range b.Ops {
		ns := e.namespaces.GetOrCreate(op.Namespace)
		switch op.Kind {
		case batch.OpUpsert:
			createdAt, expiresAt := op.Options.Resolve(now)
			e.ttl.Remove(op.Namespace, op.ID)
			ns.Hot.Set(&record.Record{
				Namespace: op.Namespace, ID: op.ID, Point: op.Point, Metadata: op.Metadata,
				CreatedAt: createdAt, ExpiresAt: expiresAt,
			})
			ns.Spatial.Insert(op.ID, op.Point)
			if expiresAt != nil {
				e.ttl.Add(op.Namespace, op.ID, *expiresAt)
			}
			e.hist.Record(history.Entry{Namespace: op.Namespace, ID: op.ID, Timestamp: now, Kind: history.KindSet})
		case batch.OpDelete:
			ns.Hot.Delete(op.ID)
			ns.Spatial.Remove(op.ID)
			e.ttl.Remove(op.Namespace, op.ID)
			e.hist.Record(history.Entry{Namespace: op.Namespace, ID: op.ID, Timestamp: now, Kind: history.KindDelete})
		}
		e.ops.next()
		e.opsSinceSnapshot++
	}

	return e.afterMutationLocked()
}
