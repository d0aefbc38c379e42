// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package geom holds the small amount of vector math the search needs:
// float32 positions matching the engine's own precision, conversion of
// Source-style pitch/yaw/roll angles to a facing vector, and the
// dominant-axis selection.
package geom

import (
	"math"
	"strconv"
)

// Vec3 is a position or direction in world units. Components are float32
// because the engine stores them that way, and the search steps between
// adjacent float32 values.
type Vec3 [3]float32

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v[0] - other[0], v[1] - other[1], v[2] - other[2]}
}

// Norm returns the Euclidean length of v, computed in float64.
func (v Vec3) Norm() float64 {
	x, y, z := float64(v[0]), float64(v[1]), float64(v[2])
	return math.Sqrt(x*x + y*y + z*z)
}

// Distance returns the Euclidean distance between v and other.
func (v Vec3) Distance(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// ArgMaxAbs returns the index of the component with the largest
// magnitude. Ties resolve to the lowest index.
func (v Vec3) ArgMaxAbs() int {
	best := 0
	for i := 1; i < len(v); i++ {
		if abs32(v[i]) > abs32(v[best]) {
			best = i
		}
	}
	return best
}

// String formats v as three space-separated components using the
// shortest representation that round-trips through float32.
func (v Vec3) String() string {
	return FormatFloat(v[0]) + " " + FormatFloat(v[1]) + " " + FormatFloat(v[2])
}

// FormatFloat formats f with the fewest digits that parse back to the
// same float32. Adjacent float32 values therefore always format
// differently, which the one-ulp search steps depend on.
func FormatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

// AnglesToVector converts pitch, yaw and roll in degrees to the unit
// forward vector. Roll does not affect the forward direction. Positive
// pitch looks down.
func AnglesToVector(angles Vec3) Vec3 {
	pitch := float64(angles[0]) * math.Pi / 180
	yaw := float64(angles[1]) * math.Pi / 180
	return Vec3{
		float32(math.Cos(yaw) * math.Cos(-pitch)),
		float32(math.Sin(yaw) * math.Cos(-pitch)),
		float32(math.Sin(-pitch)),
	}
}

// StepToward returns the next representable float32 after f in the
// direction of sign. A positive sign steps toward +Inf, a negative sign
// toward -Inf. A zero sign returns f unchanged.
func StepToward(f float32, sign float32) float32 {
	switch {
	case sign > 0:
		return math.Nextafter32(f, float32(math.Inf(1)))
	case sign < 0:
		return math.Nextafter32(f, float32(math.Inf(-1)))
	default:
		return f
	}
}

// ULPDistance returns the number of representable float32 values
// between from and to, negative when to is below from.
func ULPDistance(from, to float32) int64 {
	return ordered(to) - ordered(from)
}

// ordered maps float32 bit patterns onto integers that sort the same way
// as the values, with both zeros mapping to 0.
func ordered(f float32) int64 {
	bits := math.Float32bits(f)
	magnitude := int64(bits & 0x7fffffff)
	if bits&0x80000000 != 0 {
		return -magnitude
	}
	return magnitude
}

func abs32(f float32) float32 {
	return float32(math.Abs(float64(f)))
}
