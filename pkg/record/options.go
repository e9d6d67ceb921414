package record

import "time"

// UpsertOptions controls how upsert computes a record's created_at and
// expires_at.
type UpsertOptions struct {
	// TTL, if positive, sets ExpiresAt to the timestamp used for CreatedAt
	// plus TTL, unless ExpiresAt is also set (ExpiresAt wins).
	TTL time.Duration

	// ExpiresAt, if non-nil, wins over TTL when both are set.
	ExpiresAt *time.Time

	// Timestamp overrides the wall-clock "now" used for CreatedAt (and for
	// computing TTL-derived ExpiresAt). Tests use this to avoid sleeping.
	Timestamp *time.Time
}

// Resolve computes (createdAt, expiresAt) from the options and the
// engine's wall clock: expires_at comes from opts.ExpiresAt if set,
// otherwise from createdAt+TTL; created_at comes from opts.Timestamp if
// set, otherwise from now.
func (o UpsertOptions) Resolve(now time.Time) (createdAt time.Time, expiresAt *time.Time) {
	createdAt = now
	if o.Timestamp != nil {
		createdAt = *o.Timestamp
	}

	switch {
	case o.ExpiresAt != nil:
		t := *o.ExpiresAt
		expiresAt = &t
	case o.TTL > 0:
		t := createdAt.Add(o.TTL)
		expiresAt = &t
	}
	return createdAt, expiresAt
}
