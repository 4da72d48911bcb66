package geom

import "math"

// Vec2 is a planar vector. The capture logic ignores height: a signal
// hanging above the road is still "ahead" of the vehicle.
type Vec2 struct {
	X float64
	Y float64
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// InFront reports whether the offset from observer to target lies at or
// ahead of the perpendicular plane through the observer. Targets exactly
// abeam count as visible. This is a coarse gate, not a field-of-view
// model; it only suppresses captures of signals behind the vehicle.
func InFront(heading, offset Vec2) bool {
	return heading.Dot(offset) >= 0
}
