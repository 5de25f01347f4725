package world

import "math"

// Positions are wide fixed-point integers: 1 world unit = 1000 milliunits.
// X and Z wrap at the world extent (the surface is seamless); Y is altitude
// and does not wrap. All hot-path float math happens in a local frame after
// subtracting a reference position, never on the wide absolute values.

const Milli = 1000

// Pos is an absolute position in milliunits.
type Pos struct {
	X, Y, Z int64
}

// Vec3 is a local-frame vector in world units.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Len2 returns the squared length.
func (v Vec3) Len2() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// wrapAxis folds an absolute coordinate into [0, extent).
func wrapAxis(v, extent int64) int64 {
	v %= extent
	if v < 0 {
		v += extent
	}
	return v
}

// Wrap folds X and Z into [0, extent). Y is left alone.
func (p Pos) Wrap(extent int64) Pos {
	return Pos{X: wrapAxis(p.X, extent), Y: p.Y, Z: wrapAxis(p.Z, extent)}
}

// wrapDelta returns the shortest signed a−b along a wrapping axis.
func wrapDelta(a, b, extent int64) int64 {
	d := wrapAxis(a-b, extent)
	if d > extent/2 {
		d -= extent
	}
	return d
}

// LocalOffset returns p−ref as a local-frame float vector in world units.
// X and Z take the shortest path across the seam, so an offset computed near
// the wrap boundary stays small and keeps full float precision.
func LocalOffset(p, ref Pos, extent int64) Vec3 {
	return Vec3{
		X: float64(wrapDelta(p.X, ref.X, extent)) / Milli,
		Y: float64(p.Y-ref.Y) / Milli,
		Z: float64(wrapDelta(p.Z, ref.Z, extent)) / Milli,
	}
}

// Dist2 returns the squared seam-aware distance between two positions,
// in world units.
func Dist2(a, b Pos, extent int64) float64 {
	return LocalOffset(a, b, extent).Len2()
}

// FacingXZ converts a yaw angle in degrees into a unit direction on the XZ
// plane. Yaw 0 faces +Z; yaw grows clockwise when viewed from above.
func FacingXZ(yaw float32) (x, z float64) {
	rad := float64(yaw) * math.Pi / 180
	return math.Sin(rad), math.Cos(rad)
}
