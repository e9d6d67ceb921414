// Package geo holds the coordinate primitives shared by the record store
// and the spatial index: points, axis-aligned envelopes, and the distance
// metrics the spatial queries are defined over.
package geo

import "math"

// Point3D is a value-typed 3D coordinate: longitude, latitude, altitude.
//
//	X (longitude) in [-180, 180]
//	Y (latitude)  in [-90, 90]
//	Z (altitude)  in [-11000, 100000] meters
type Point3D struct {
	X, Y, Z float64
}

// Finite reports whether every axis is a finite number (not NaN, not Inf).
func (p Point3D) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

const (
	MinLongitude = -180.0
	MaxLongitude = 180.0
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinAltitude  = -11000.0
	MaxAltitude  = 100000.0

	earthRadiusMeters = 6371000.0
)

// Valid reports whether the point is finite and within bounds:
// longitude in [-180,180], latitude in [-90,90], altitude in
// [-11000,100000].
func (p Point3D) Valid() bool {
	if !p.Finite() {
		return false
	}
	return p.X >= MinLongitude && p.X <= MaxLongitude &&
		p.Y >= MinLatitude && p.Y <= MaxLatitude &&
		p.Z >= MinAltitude && p.Z <= MaxAltitude
}

// HaversineMeters computes the great-circle surface distance between two
// points in meters, ignoring altitude.
func HaversineMeters(a, b Point3D) float64 {
	lat1 := a.Y * math.Pi / 180
	lat2 := b.Y * math.Pi / 180
	dLat := (b.Y - a.Y) * math.Pi / 180
	dLon := (b.X - a.X) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// Distance3DMeters combines the Haversine surface distance with the
// altitude delta via the Pythagorean theorem.
func Distance3DMeters(a, b Point3D) float64 {
	surface := HaversineMeters(a, b)
	dz := b.Z - a.Z
	return math.Sqrt(surface*surface + dz*dz)
}

// EuclideanCoordDistance is the raw coordinate-space Euclidean distance
// used internally by the R-tree for ordering and by KNN — not
// metric-accurate at planetary scale, intentionally.
func EuclideanCoordDistance(a, b Point3D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dz := b.Z - a.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
