package spatial

import (
	"sort"

	"github.com/pkvartsianyi/spatio/pkg/geo"
)

// BoundingRect returns the minimum bounding rectangle over every point's
// (x, y) for which live(id) is true, ignoring altitude. ok is false when
// no point passes the filter. The index still carries entries for
// records that are past expires_at but not yet swept by
// CleanupExpired — live lets the caller (pkg/engine) exclude those, the
// same as every other query on this index.
func (idx *Index) BoundingRect(live func(id string) bool) (rect geo.Rect2D, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	first := true
	for id, p := range idx.locations {
		if !live(id) {
			continue
		}
		if first {
			rect = geo.Rect2D{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
			first = false
			continue
		}
		if p.X < rect.MinX {
			rect.MinX = p.X
		}
		if p.Y < rect.MinY {
			rect.MinY = p.Y
		}
		if p.X > rect.MaxX {
			rect.MaxX = p.X
		}
		if p.Y > rect.MaxY {
			rect.MaxY = p.Y
		}
	}
	if first {
		return geo.Rect2D{}, false
	}
	return rect, true
}

// ConvexHull returns the convex hull of every point's (x, y) for which
// live(id) is true, ignoring altitude, via Andrew's monotone chain.
// Collinear boundary points are excluded. Fewer than 3 distinct points
// yields the points themselves with no hull shape implied. See
// BoundingRect for why the filter is needed.
func (idx *Index) ConvexHull(live func(id string) bool) []geo.Point3D {
	idx.mu.RLock()
	pts := make([]geo.Point3D, 0, len(idx.locations))
	for id, p := range idx.locations {
		if live(id) {
			pts = append(pts, p)
		}
	}
	idx.mu.RUnlock()

	return convexHull(pts)
}

func convexHull(pts []geo.Point3D) []geo.Point3D {
	unique := dedupe2D(pts)
	if len(unique) < 3 {
		return unique
	}

	sort.Slice(unique, func(i, j int) bool {
		if unique[i].X != unique[j].X {
			return unique[i].X < unique[j].X
		}
		return unique[i].Y < unique[j].Y
	})

	cross := func(o, a, b geo.Point3D) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	n := len(unique)
	hull := make([]geo.Point3D, 0, 2*n)

	for _, p := range unique {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := unique[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}

func dedupe2D(pts []geo.Point3D) []geo.Point3D {
	seen := make(map[[2]float64]bool, len(pts))
	out := make([]geo.Point3D, 0, len(pts))
	for _, p := range pts {
		key := [2]float64{p.X, p.Y}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
