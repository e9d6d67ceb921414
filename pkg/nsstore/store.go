// Package nsstore is the per-namespace ordered hot store: an in-memory
// AVL tree keyed by record id that maps a key directly to the live
// *record.Record — there is no heap file, records live entirely in memory
// and survive restarts via pkg/aof and pkg/snapshot instead.
package nsstore

import (
	"sync"

	"github.com/pkvartsianyi/spatio/pkg/record"
	"github.com/pkvartsianyi/spatio/pkg/types"
)

// Store is a thread-safe ordered map from record id to *record.Record,
// height-balanced by rotation rather than split/merge: with no heap-file
// offsets to page-align and no disk I/O to hide behind fine-grained
// node latches, a single RWMutex spanning each call is both simpler and
// sufficient — every operation is a handful of in-memory pointer swaps.
type Store struct {
	mu   sync.RWMutex
	root *node
	n    int
}

// New creates an empty hot store.
func New() *Store {
	return &Store{}
}

func idKey(id string) types.Comparable {
	return types.VarcharKey(id)
}

// Upsert runs fn against the current record for id (nil if absent) and
// stores whatever fn returns. The whole call runs under the store's write
// lock, so this is an atomic read-modify-write.
func (s *Store) Upsert(id string, fn func(old *record.Record, exists bool) (*record.Record, error)) error {
	key := idKey(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	root, inserted, err := upsert(s.root, key, fn)
	if err != nil {
		return err
	}
	s.root = root
	if inserted {
		s.n++
	}
	return nil
}

// Set stores rec under its own ID unconditionally.
func (s *Store) Set(rec *record.Record) error {
	return s.Upsert(rec.ID, func(*record.Record, bool) (*record.Record, error) {
		return rec, nil
	})
}

// Get returns the record stored under id.
func (s *Store) Get(id string) (*record.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.root, idKey(id))
}

// Delete removes id, returning whether it was present.
func (s *Store) Delete(id string) bool {
	key := idKey(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	root, removed := deleteKey(s.root, key)
	if !removed {
		return false
	}
	s.root = root
	s.n--
	return true
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}

// Range calls fn for every record in ascending key order, stopping early
// if fn returns false. Used for namespace-wide scans (e.g. snapshotting,
// cleanup sweeps) where exact iteration order matters for reproducibility.
func (s *Store) Range(fn func(rec *record.Record) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inorder(s.root, fn)
}

// All returns every record in ascending id order. Callers needing a
// point-in-time snapshot (e.g. pkg/snapshot) should prefer this over
// Range when the whole set is needed at once.
func (s *Store) All() []*record.Record {
	out := make([]*record.Record, 0, s.Len())
	s.Range(func(rec *record.Record) bool {
		out = append(out, rec)
		return true
	})
	return out
}
