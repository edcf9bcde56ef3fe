package physics

import "math"

// Vec3 is a world-space vector. Y is up; the track lies in the XZ plane.
type Vec3 struct{ X, Y, Z float64 }

func V3(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Normalize returns the unit vector, or the zero vector for zero input.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	return IsFinite(v.X) && IsFinite(v.Y) && IsFinite(v.Z)
}

// PlanarDistance is the distance between a and b ignoring height.
func (v Vec3) PlanarDistance(o Vec3) float64 { return Distance2(v.X, v.Z, o.X, o.Z) }

// Forward returns the unit heading for a yaw about the vertical axis.
// Yaw 0 faces +Z.
func Forward(yaw float64) Vec3 {
	return Vec3{X: math.Sin(yaw), Y: 0, Z: math.Cos(yaw)}
}

// Distance2 computes Euclidean distance between two 2D points.
func Distance2(x1, y1, x2, y2 float64) float64 { return math.Hypot(x2-x1, y2-y1) }

func IsFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sign returns -1 for negative values and 1 otherwise.
func Sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
