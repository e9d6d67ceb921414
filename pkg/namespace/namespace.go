// Package namespace is the registry tying a namespace name to its hot
// store and spatial index: a name-keyed map guarded by one mutex,
// erroring on duplicate creation. TTL tracking and trajectory history
// are kept as single engine-wide stores instead of one per namespace,
// since both are already keyed by (namespace, id) internally and gain
// nothing from being split up further.
package namespace

import (
	"sort"
	"sync"

	"github.com/pkvartsianyi/spatio/pkg/errors"
	"github.com/pkvartsianyi/spatio/pkg/nsstore"
	"github.com/pkvartsianyi/spatio/pkg/spatial"
)

// Namespace bundles one namespace's ordered hot store and 3D spatial
// index.
type Namespace struct {
	Name    string
	Hot     *nsstore.Store
	Spatial *spatial.Index
}

func newNamespace(name string) *Namespace {
	return &Namespace{Name: name, Hot: nsstore.New(), Spatial: spatial.New()}
}

// Registry is the name -> Namespace map.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{namespaces: make(map[string]*Namespace)}
}

// Create registers a new, empty namespace. It errors if name is already
// taken.
func (r *Registry) Create(name string) (*Namespace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.namespaces[name]; exists {
		return nil, &errors.NamespaceAlreadyExistsError{Name: name}
	}

	ns := newNamespace(name)
	r.namespaces[name] = ns
	return ns, nil
}

// GetOrCreate returns the existing namespace or creates it if absent.
// Most write paths use this: a namespace comes into being implicitly on
// first write.
func (r *Registry) GetOrCreate(name string) *Namespace {
	r.mu.RLock()
	ns, ok := r.namespaces[name]
	r.mu.RUnlock()
	if ok {
		return ns
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ns, ok := r.namespaces[name]; ok {
		return ns
	}
	ns = newNamespace(name)
	r.namespaces[name] = ns
	return ns
}

// Get returns the namespace if it exists.
func (r *Registry) Get(name string) (*Namespace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[name]
	return ns, ok
}

// Drop removes a namespace entirely, reporting whether it existed.
func (r *Registry) Drop(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.namespaces[name]; !ok {
		return false
	}
	delete(r.namespaces, name)
	return true
}

// Names returns every registered namespace name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// All returns every Namespace, for whole-engine sweeps (snapshotting,
// TTL cleanup).
func (r *Registry) All() []*Namespace {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Namespace, 0, len(r.namespaces))
	for _, ns := range r.namespaces {
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
