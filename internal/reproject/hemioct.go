// Package reproject resamples environment cubemaps into atlas slices.
//
// A slice stores the upper hemisphere around the surface normal using a
// hemi-octahedral mapping: the square [0,1]² unfolds the pyramid
// |x| + |y| + z = 1, z >= 0, rotated by 45 degrees.
package reproject

import "github.com/Faultbox/surfacerefl/pkg/math"

// DecodeDirection maps slice coordinates in [0,1]² to a unit tangent-space
// direction with z >= 0. The slice center is the normal.
func DecodeDirection(uv math.Vec2) math.Vec3 {
	u := 2*uv.X - 1
	v := 2*uv.Y - 1
	x := (u + v) / 2
	y := (u - v) / 2
	z := 1 - abs(x) - abs(y)
	return math.Vec3{X: x, Y: y, Z: z}.Normalize()
}

// EncodeDirection is the inverse of DecodeDirection for directions with z >= 0.
// Directions below the horizon are folded onto it.
func EncodeDirection(d math.Vec3) math.Vec2 {
	l1 := abs(d.X) + abs(d.Y) + max(d.Z, 0)
	if l1 == 0 {
		return math.Vec2{X: 0.5, Y: 0.5}
	}
	x := d.X / l1
	y := d.Y / l1
	return math.Vec2{X: (x + y + 1) / 2, Y: (x - y + 1) / 2}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
