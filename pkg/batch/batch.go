// Package batch defines the staged-mutation list pkg/engine's atomic
// batch operation builds up before publishing it all-or-nothing. A Batch
// only records intent; pkg/engine is what actually applies the staged
// operations: it rejects the whole batch if any staged upsert's point is
// invalid, and otherwise logs them as one AOF block and applies them all.
package batch

import (
	"github.com/google/uuid"
	"github.com/pkvartsianyi/spatio/pkg/geo"
	"github.com/pkvartsianyi/spatio/pkg/record"
)

// OpKind distinguishes the two mutation shapes a batch can stage.
type OpKind uint8

const (
	OpUpsert OpKind = iota
	OpDelete
)

// Op is one staged mutation.
type Op struct {
	Kind      OpKind
	Namespace string
	ID        string
	Point     geo.Point3D
	Metadata  []byte
	Options   record.UpsertOptions
}

// Batch accumulates operations under a single token until the caller
// publishes it.
type Batch struct {
	Token string
	Ops   []Op
}

// New creates an empty batch with a fresh, time-ordered token (uuid v7,
// so tokens sort roughly by creation time — useful in logs).
func New() *Batch {
	return &Batch{Token: uuid.Must(uuid.NewV7()).String()}
}

// Upsert stages a set operation.
func (b *Batch) Upsert(namespace, id string, p geo.Point3D, metadata []byte, opts record.UpsertOptions) {
	b.Ops = append(b.Ops, Op{
		Kind: OpUpsert, Namespace: namespace, ID: id,
		Point: p, Metadata: metadata, Options: opts,
	})
}

// Delete stages a delete operation.
func (b *Batch) Delete(namespace, id string) {
	b.Ops = append(b.Ops, Op{Kind: OpDelete, Namespace: namespace, ID: id})
}

// Len reports how many operations are staged.
func (b *Batch) Len() int {
	return len(b.Ops)
}
