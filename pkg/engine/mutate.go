package engine

import (
	"time"

	"github.com/pkvartsianyi/spatio/pkg/aof"
	spatioerrors "github.com/pkvartsianyi/spatio/pkg/errors"
	"github.com/pkvartsianyi/spatio/pkg/geo"
	"github.com/pkvartsianyi/spatio/pkg/history"
	"github.com/pkvartsianyi/spatio/pkg/record"
)

// Upsert creates or replaces the record at (namespace, id): it validates
// the point, resolves the effective created/expires timestamps from
// opts, durably logs the mutation (disk-backed engines), then updates
// the hot store, spatial index, and TTL index in that order.
func (e *Engine) Upsert(namespace, id string, p geo.Point3D, metadata []byte, opts record.UpsertOptions) error {
	if !p.Valid() {
		return &spatioerrors.ValidationError{Field: "point", Reason: "out of range or non-finite"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return &spatioerrors.DatabaseClosedError{}
	}

	now := time.Now().UTC()
	createdAt, expiresAt := opts.Resolve(now)

	if e.aofWriter != nil {
		if err := e.aofWriter.Append(aof.SetCommand(namespace, id, p, metadata, createdAt, expiresAt)); err != nil {
			return err
		}
	}

	ns := e.namespaces.GetOrCreate(namespace)
	e.ttl.Remove(namespace, id) // drop any stale expiry tracking from a prior version

	rec := &record.Record{
		Namespace: namespace, ID: id, Point: p, Metadata: metadata,
		CreatedAt: createdAt, ExpiresAt: expiresAt,
	}
	ns.Hot.Set(rec)
	ns.Spatial.Insert(id, p)
	if expiresAt != nil {
		e.ttl.Add(namespace, id, *expiresAt)
	}

	e.hist.Record(history.Entry{Namespace: namespace, ID: id, Timestamp: now, Kind: history.KindSet})
	e.ops.next()
	e.opsSinceSnapshot++
	return e.afterMutationLocked()
}

// Get returns the live record at (namespace, id). A record past its
// expires_at is treated as already gone, even if CleanupExpired hasn't
// swept it yet.
func (e *Engine) Get(namespace, id string) (*record.Record, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, false, &spatioerrors.DatabaseClosedError{}
	}

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return nil, false, nil
	}
	rec, ok := ns.Hot.Get(id)
	if !ok {
		return nil, false, nil
	}
	if rec.Expired(time.Now().UTC()) {
		return nil, false, nil
	}
	return rec, true, nil
}

// Delete removes the record at (namespace, id), reporting whether it was
// present.
func (e *Engine) Delete(namespace, id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false, &spatioerrors.DatabaseClosedError{}
	}

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return false, nil
	}
	if _, exists := ns.Hot.Get(id); !exists {
		return false, nil
	}

	if e.aofWriter != nil {
		if err := e.aofWriter.Append(aof.DeleteCommand(namespace, id)); err != nil {
			return false, err
		}
	}

	ns.Hot.Delete(id)
	ns.Spatial.Remove(id)
	e.ttl.Remove(namespace, id)
	e.hist.Record(history.Entry{Namespace: namespace, ID: id, Timestamp: time.Now().UTC(), Kind: history.KindDelete})
	e.ops.next()
	e.opsSinceSnapshot++
	if err := e.afterMutationLocked(); err != nil {
		return false, err
	}
	return true, nil
}
