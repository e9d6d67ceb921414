package engine

import (
	"time"

	spatioerrors "github.com/pkvartsianyi/spatio/pkg/errors"
	"github.com/pkvartsianyi/spatio/pkg/geo"
	"github.com/pkvartsianyi/spatio/pkg/namespace"
	"github.com/pkvartsianyi/spatio/pkg/record"
	"github.com/pkvartsianyi/spatio/pkg/spatial"
)

// hitsToRecords resolves a slice of spatial index hits against the hot
// store, dropping any that have since expired or been removed (the
// spatial index and hot store are updated together under the write lock,
// but an expired-but-not-yet-swept record still needs to be hidden here).
func (e *Engine) hitsToRecords(ns string, hits []spatial.Hit) []*record.Record {
	namespace, ok := e.namespaces.Get(ns)
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	out := make([]*record.Record, 0, len(hits))
	for _, h := range hits {
		rec, ok := namespace.Hot.Get(h.ID)
		if !ok || rec.Expired(now) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// QueryRadius returns every live record in namespace within radiusMeters
// of center, sorted ascending by distance and truncated to limit; limit
// <= 0 means unlimited.
func (e *Engine) QueryRadius(namespace string, center geo.Point3D, radiusMeters float64, limit int) ([]*record.Record, error) {
	if err := geo.ValidateRadius(radiusMeters); err != nil {
		return nil, &spatioerrors.ValidationError{Field: "radius", Reason: err.Error()}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return nil, nil
	}
	return e.hitsToRecords(namespace, ns.Spatial.QueryRadius(center, radiusMeters, limit)), nil
}

// QueryBBox3D returns every live record in namespace inside [min, max],
// truncated to limit.
func (e *Engine) QueryBBox3D(namespace string, min, max geo.Point3D, limit int) ([]*record.Record, error) {
	if err := geo.ValidateBBox3D(min, max); err != nil {
		return nil, &spatioerrors.ValidationError{Field: "bbox", Reason: err.Error()}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return nil, nil
	}
	return e.hitsToRecords(namespace, ns.Spatial.QueryBBox3D(min, max, limit)), nil
}

// QueryBBox2D returns every live record in namespace whose (x, y) falls
// inside the given rectangle, truncated to limit.
func (e *Engine) QueryBBox2D(namespace string, minX, minY, maxX, maxY float64, limit int) ([]*record.Record, error) {
	if err := geo.ValidateBBox2D(minX, minY, maxX, maxY); err != nil {
		return nil, &spatioerrors.ValidationError{Field: "bbox", Reason: err.Error()}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return nil, nil
	}
	return e.hitsToRecords(namespace, ns.Spatial.QueryBBox2D(minX, minY, maxX, maxY, limit)), nil
}

// QueryCylinder returns every live record within radiusMeters of center's
// horizontal position and with altitude in [minZ, maxZ], truncated to
// limit.
func (e *Engine) QueryCylinder(namespace string, center geo.Point3D, radiusMeters, minZ, maxZ float64, limit int) ([]*record.Record, error) {
	if err := geo.ValidateRadius(radiusMeters); err != nil {
		return nil, &spatioerrors.ValidationError{Field: "radius", Reason: err.Error()}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return nil, nil
	}
	return e.hitsToRecords(namespace, ns.Spatial.QueryCylinder(center, radiusMeters, minZ, maxZ, limit)), nil
}

// QueryPolygon returns every live record whose (x, y) falls inside poly's
// outer ring and outside all of its holes, truncated to limit.
func (e *Engine) QueryPolygon(namespace string, poly spatial.Polygon, limit int) ([]*record.Record, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return nil, nil
	}
	return e.hitsToRecords(namespace, ns.Spatial.QueryPolygon(poly, limit)), nil
}

// KNN returns the k nearest live records to center in coordinate space
// (not a geodesic distance — see spatial.Index.KNN).
func (e *Engine) KNN(namespace string, center geo.Point3D, k int) ([]*record.Record, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return nil, nil
	}
	return e.hitsToRecords(namespace, ns.Spatial.KNN(center, k)), nil
}

// isLive reports whether id currently has a non-expired record in ns —
// the same liveness check hitsToRecords applies to query hits, needed
// here too since ConvexHull/BoundingRect read the spatial index directly.
func isLive(ns *namespace.Namespace, now time.Time) func(id string) bool {
	return func(id string) bool {
		rec, ok := ns.Hot.Get(id)
		return ok && !rec.Expired(now)
	}
}

// ConvexHull returns the convex hull (ignoring altitude) over every live
// record in namespace.
func (e *Engine) ConvexHull(namespace string) ([]geo.Point3D, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return nil, nil
	}
	return ns.Spatial.ConvexHull(isLive(ns, time.Now().UTC())), nil
}

// BoundingRect returns the minimum bounding rectangle (ignoring altitude)
// over every live record in namespace.
func (e *Engine) BoundingRect(namespace string) (geo.Rect2D, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return geo.Rect2D{}, false, nil
	}
	rect, ok := ns.Spatial.BoundingRect(isLive(ns, time.Now().UTC()))
	return rect, ok, nil
}

// DistanceBetween returns the 3D distance in meters between two records'
// current points.
func (e *Engine) DistanceBetween(namespace, id1, id2 string) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return 0, &spatioerrors.NotFoundError{Namespace: namespace, ID: id1}
	}
	r1, ok := ns.Hot.Get(id1)
	if !ok {
		return 0, &spatioerrors.NotFoundError{Namespace: namespace, ID: id1}
	}
	r2, ok := ns.Hot.Get(id2)
	if !ok {
		return 0, &spatioerrors.NotFoundError{Namespace: namespace, ID: id2}
	}
	return geo.Distance3DMeters(r1.Point, r2.Point), nil
}

// DistanceTo returns the 3D distance in meters from a record's current
// point to an arbitrary point.
func (e *Engine) DistanceTo(namespace, id string, p geo.Point3D) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ns, ok := e.namespaces.Get(namespace)
	if !ok {
		return 0, &spatioerrors.NotFoundError{Namespace: namespace, ID: id}
	}
	rec, ok := ns.Hot.Get(id)
	if !ok {
		return 0, &spatioerrors.NotFoundError{Namespace: namespace, ID: id}
	}
	return geo.Distance3DMeters(rec.Point, p), nil
}
