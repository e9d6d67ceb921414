// Package record defines the indexed unit the engine stores: a namespaced
// id, its point, opaque metadata bytes, and its timestamps.
package record

import (
	"time"

	"github.com/pkvartsianyi/spatio/pkg/geo"
)

// Record is the indexed unit — (namespace, id, point, metadata,
// timestamps).
type Record struct {
	Namespace string
	ID        string
	Point     geo.Point3D
	Metadata  []byte
	CreatedAt time.Time
	ExpiresAt *time.Time // nil means no expiration
}

// Expired reports whether the record's expires_at has passed as of now.
// It does not mutate any index — expiration is checked lazily wherever a
// record is read.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// Clone returns a deep-enough copy safe to hand to a caller without
// aliasing the engine's internal metadata slice.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Metadata != nil {
		cp.Metadata = make([]byte, len(r.Metadata))
		copy(cp.Metadata, r.Metadata)
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
