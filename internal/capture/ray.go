package capture

import (
	gomath "math"

	"github.com/Faultbox/surfacerefl/pkg/math"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3 // Normalized direction
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float32) math.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min math.Vec3
	Max math.Vec3
}

// Contains reports whether p lies inside or on the box.
func (b AABB) Contains(p math.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// IntersectPlaneY intersects a ray with a horizontal plane at the given Y level.
// Returns the distance along the ray and whether the plane is hit in front of the origin.
func (r Ray) IntersectPlaneY(planeY float32) (t float32, ok bool) {
	// Origin.Y + t * Direction.Y = planeY
	if gomath.Abs(float64(r.Direction.Y)) < 1e-6 {
		return 0, false // Ray parallel to plane
	}

	t = (planeY - r.Origin.Y) / r.Direction.Y
	if t <= 0 {
		return 0, false // Intersection behind ray origin
	}
	return t, true
}

// IntersectAABB tests ray intersection with an axis-aligned bounding box using the slab method.
// Returns the entry distance and the outward normal of the entered face.
// Rays starting inside a box do not hit it, so probes placed inside geometry see past it.
func (r Ray) IntersectAABB(box AABB) (t float32, normal math.Vec3, hit bool) {
	if box.Contains(r.Origin) {
		return 0, math.Vec3{}, false
	}

	tmin := float32(-gomath.MaxFloat32)
	tmax := float32(gomath.MaxFloat32)
	var entryAxis int
	var entrySign float32

	origin := [3]float32{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float32{r.Direction.X, r.Direction.Y, r.Direction.Z}
	lo := [3]float32{box.Min.X, box.Min.Y, box.Min.Z}
	hi := [3]float32{box.Max.X, box.Max.Y, box.Max.Z}

	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			if origin[axis] < lo[axis] || origin[axis] > hi[axis] {
				return 0, math.Vec3{}, false
			}
			continue
		}

		t1 := (lo[axis] - origin[axis]) / dir[axis]
		t2 := (hi[axis] - origin[axis]) / dir[axis]
		sign := float32(-1) // Entering through the min face
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1
		}
		if t1 > tmin {
			tmin = t1
			entryAxis = axis
			entrySign = sign
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, math.Vec3{}, false
		}
	}

	if tmin <= 0 {
		return 0, math.Vec3{}, false
	}

	var n [3]float32
	n[entryAxis] = entrySign
	return tmin, math.Vec3{X: n[0], Y: n[1], Z: n[2]}, true
}
