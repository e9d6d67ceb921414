package geo

import (
	stderrors "errors"
	"math"
)

// ErrNonFinite, ErrOutOfRange and ErrInvertedRange are sentinel causes
// wrapped into errors.ValidationError (pkg/errors) by the callers in
// pkg/engine — kept here so every boundary check uses the same wording.
var (
	ErrNonFinite     = stderrors.New("value is NaN or infinite")
	ErrOutOfRange    = stderrors.New("value out of range")
	ErrInvertedRange = stderrors.New("min must not exceed max")
)

// ValidatePoint checks that longitude is within ±180, latitude within
// ±90, altitude within [-11000,100000], and every component is finite.
func ValidatePoint(p Point3D) error {
	if !p.Finite() {
		return ErrNonFinite
	}
	if p.X < MinLongitude || p.X > MaxLongitude {
		return ErrOutOfRange
	}
	if p.Y < MinLatitude || p.Y > MaxLatitude {
		return ErrOutOfRange
	}
	if p.Z < MinAltitude || p.Z > MaxAltitude {
		return ErrOutOfRange
	}
	return nil
}

// ValidateRadius rejects non-positive and non-finite radii.
func ValidateRadius(radius float64) error {
	if math.IsNaN(radius) || math.IsInf(radius, 0) {
		return ErrNonFinite
	}
	if radius <= 0 {
		return ErrOutOfRange
	}
	return nil
}

// ValidateBBox3D requires min <= max on every axis.
func ValidateBBox3D(minP, maxP Point3D) error {
	if !minP.Finite() || !maxP.Finite() {
		return ErrNonFinite
	}
	if minP.X > maxP.X || minP.Y > maxP.Y || minP.Z > maxP.Z {
		return ErrInvertedRange
	}
	return nil
}

// ValidateBBox2D requires min <= max on X and Y.
func ValidateBBox2D(minX, minY, maxX, maxY float64) error {
	vals := []float64{minX, minY, maxX, maxY}
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}
	if minX > maxX || minY > maxY {
		return ErrInvertedRange
	}
	return nil
}
