// Package trajectory stores per-(namespace, id) time-ordered point
// histories, separate from the hot store's current-state record. Appends
// may arrive out of order (a batched upload replaying older fixes), so
// each series keeps itself sorted by timestamp rather than assuming
// append-only arrival.
package trajectory

import (
	"sort"
	"sync"
	"time"

	"github.com/pkvartsianyi/spatio/pkg/geo"
)

// Entry is one recorded position along a trajectory.
type Entry struct {
	Timestamp time.Time
	Point     geo.Point3D
	Metadata  []byte
}

type seriesKey struct {
	namespace string
	id        string
}

// Store holds every namespace's trajectories.
type Store struct {
	mu     sync.RWMutex
	series map[seriesKey][]Entry
}

// New creates an empty trajectory store.
func New() *Store {
	return &Store{series: make(map[seriesKey][]Entry)}
}

// Append inserts e into (namespace, id)'s series at the position that
// keeps the series sorted ascending by timestamp, even if e is older than
// entries already present.
func (s *Store) Append(namespace, id string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := seriesKey{namespace, id}
	entries := s.series[k]

	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Timestamp.After(e.Timestamp)
	})
	entries = append(entries, Entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	s.series[k] = entries
}

// Query returns every entry in (namespace, id)'s series with timestamp in
// [from, to], inclusive, via binary search on the sorted series, oldest
// first and truncated to limit entries. limit <= 0 means unlimited.
func (s *Store) Query(namespace, id string, from, to time.Time, limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.series[seriesKey{namespace, id}]

	lo := sort.Search(len(entries), func(i int) bool {
		return !entries[i].Timestamp.Before(from)
	})
	hi := sort.Search(len(entries), func(i int) bool {
		return entries[i].Timestamp.After(to)
	})
	if lo >= hi {
		return nil
	}
	if limit > 0 && hi-lo > limit {
		hi = lo + limit
	}

	out := make([]Entry, hi-lo)
	copy(out, entries[lo:hi])
	return out
}

// Len returns how many points are recorded for (namespace, id).
func (s *Store) Len(namespace, id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[seriesKey{namespace, id}])
}

// Delete removes the whole trajectory series for (namespace, id).
func (s *Store) Delete(namespace, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, seriesKey{namespace, id})
}

// All returns every (namespace, id, entries) series, used when the engine
// rebuilds the AOF (threshold rewrite and snapshot). The returned slices
// are copies.
func (s *Store) All() map[string]map[string][]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string][]Entry)
	for k, entries := range s.series {
		ns, ok := out[k.namespace]
		if !ok {
			ns = make(map[string][]Entry)
			out[k.namespace] = ns
		}
		cp := make([]Entry, len(entries))
		copy(cp, entries)
		ns[k.id] = cp
	}
	return out
}

// DeleteNamespace removes every series belonging to namespace.
func (s *Store) DeleteNamespace(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.series {
		if k.namespace == namespace {
			delete(s.series, k)
		}
	}
}
