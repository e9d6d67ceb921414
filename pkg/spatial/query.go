package spatial

import (
	"math"
	"sort"

	"github.com/pkvartsianyi/spatio/pkg/geo"
)

// Hit is one matching entry returned from a query.
type Hit struct {
	ID    string
	Point geo.Point3D
}

// walkPruned visits every leaf entry whose MBR intersects prune, handing
// each to visit. Nodes whose MBR misses prune are skipped entirely —
// this is the pruning step every query method relies on.
func (idx *Index) walkPruned(prune geo.Rect3, visit func(e entry)) {
	var walk func(n *rtNode)
	walk = func(n *rtNode) {
		if !n.mbr.Intersects(prune) && len(n.entries) > 0 {
			return
		}
		if n.leaf {
			for _, e := range n.entries {
				if e.mbr.Intersects(prune) {
					visit(e)
				}
			}
			return
		}
		for _, e := range n.entries {
			if e.child.mbr.Intersects(prune) {
				walk(e.child)
			}
		}
	}
	walk(idx.root)
}

// QueryRadius returns every point within radiusMeters of center, using
// BoundingCube to prune then an exact Haversine+altitude check. Results
// are sorted ascending by distance from center and truncated to limit;
// limit <= 0 means unlimited.
func (idx *Index) QueryRadius(center geo.Point3D, radiusMeters float64, limit int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	prune := geo.BoundingCube(center, radiusMeters)
	var candidates []knnCandidate
	idx.walkPruned(prune, func(e entry) {
		d := geo.Distance3DMeters(center, e.point)
		if d <= radiusMeters {
			candidates = append(candidates, knnCandidate{hit: Hit{ID: e.id, Point: e.point}, dist: d, seq: idx.seqs[e.id]})
		}
	})
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].seq < candidates[j].seq
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	hits := make([]Hit, len(candidates))
	for i, c := range candidates {
		hits[i] = c.hit
	}
	return hits
}

// truncate caps hits to limit entries; limit <= 0 means unlimited.
func truncate(hits []Hit, limit int) []Hit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

// QueryBBox3D returns every point inside the axis-aligned box [min, max]
// on all three axes, inclusive, truncated to limit.
func (idx *Index) QueryBBox3D(min, max geo.Point3D, limit int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	box := geo.Rect3{MinX: min.X, MinY: min.Y, MinZ: min.Z, MaxX: max.X, MaxY: max.Y, MaxZ: max.Z}
	var hits []Hit
	idx.walkPruned(box, func(e entry) {
		if box.ContainsPoint(e.point) {
			hits = append(hits, Hit{ID: e.id, Point: e.point})
		}
	})
	return truncate(hits, limit)
}

// QueryBBox2D returns every point whose (x, y) falls inside the given
// rectangle, ignoring altitude entirely, truncated to limit.
func (idx *Index) QueryBBox2D(minX, minY, maxX, maxY float64, limit int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rect2D := geo.Rect2D{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
	prune := geo.Rect3{MinX: minX, MinY: minY, MinZ: math.Inf(-1), MaxX: maxX, MaxY: maxY, MaxZ: math.Inf(1)}
	var hits []Hit
	idx.walkPruned(prune, func(e entry) {
		if rect2D.Intersects3D(geo.RectFromPoint(e.point)) {
			hits = append(hits, Hit{ID: e.id, Point: e.point})
		}
	})
	return truncate(hits, limit)
}

// QueryCylinder returns every point within radiusMeters (horizontal,
// Haversine) of center's (x, y) and whose altitude falls in [minZ, maxZ],
// truncated to limit.
func (idx *Index) QueryCylinder(center geo.Point3D, radiusMeters, minZ, maxZ float64, limit int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	prune := geo.BoundingCube(center, radiusMeters)
	prune.MinZ = minZ
	prune.MaxZ = maxZ

	var hits []Hit
	idx.walkPruned(prune, func(e entry) {
		if e.point.Z < minZ || e.point.Z > maxZ {
			return
		}
		if geo.HaversineMeters(center, e.point) <= radiusMeters {
			hits = append(hits, Hit{ID: e.id, Point: e.point})
		}
	})
	return truncate(hits, limit)
}

// Polygon is a simple 2D polygon: an outer ring plus any number of
// interior holes, both as closed-or-open (x, y) vertex lists.
type Polygon struct {
	Outer [][2]float64
	Holes [][][2]float64
}

// QueryPolygon returns every point inside the polygon (holes excluded),
// ignoring altitude, truncated to limit. The bounding rectangle of the
// outer ring prunes the tree walk before the exact ray-casting test runs.
func (idx *Index) QueryPolygon(poly Polygon, limit int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rect := boundingRectOf(poly.Outer)
	prune := geo.Rect3{MinX: rect.MinX, MinY: rect.MinY, MinZ: math.Inf(-1), MaxX: rect.MaxX, MaxY: rect.MaxY, MaxZ: math.Inf(1)}

	var hits []Hit
	idx.walkPruned(prune, func(e entry) {
		if !pointInRing(e.point.X, e.point.Y, poly.Outer) {
			return
		}
		for _, hole := range poly.Holes {
			if pointInRing(e.point.X, e.point.Y, hole) {
				return
			}
		}
		hits = append(hits, Hit{ID: e.id, Point: e.point})
	})
	return truncate(hits, limit)
}

func boundingRectOf(ring [][2]float64) geo.Rect2D {
	r := geo.Rect2D{MinX: ring[0][0], MinY: ring[0][1], MaxX: ring[0][0], MaxY: ring[0][1]}
	for _, v := range ring[1:] {
		r.MinX = math.Min(r.MinX, v[0])
		r.MinY = math.Min(r.MinY, v[1])
		r.MaxX = math.Max(r.MaxX, v[0])
		r.MaxY = math.Max(r.MaxY, v[1])
	}
	return r
}

// pointInRing implements the standard even-odd ray-casting test.
func pointInRing(x, y float64, ring [][2]float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) {
			xIntersect := xi + (y-yi)*(xj-xi)/(yj-yi)
			if x < xIntersect {
				inside = !inside
			}
		}
	}
	return inside
}

// knnCandidate pairs a hit with its distance and insertion sequence, for
// nearest-first sorting with a stable, deterministic tie-break.
type knnCandidate struct {
	hit  Hit
	dist float64
	seq  uint64
}

// KNN returns the k nearest points to center, measured in raw coordinate
// space rather than meters: ranking is by relative proximity, where a
// uniform coordinate-space metric is both cheaper and adequate — callers
// needing true geodesic nearest-neighbor distances should follow up with
// Distance3DMeters on the returned candidates. Ties break by insertion
// order, oldest first.
func (idx *Index) KNN(center geo.Point3D, k int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 {
		return nil
	}

	candidates := make([]knnCandidate, 0, len(idx.locations))
	for id, p := range idx.locations {
		candidates = append(candidates, knnCandidate{
			hit:  Hit{ID: id, Point: p},
			dist: geo.EuclideanCoordDistance(center, p),
			seq:  idx.seqs[id],
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].seq < candidates[j].seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]Hit, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].hit
	}
	return out
}
