// Package capture renders environment cubemaps around probe positions.
package capture

import (
	gomath "math"

	"github.com/Faultbox/surfacerefl/internal/atlas"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

// Face identifies a cubemap face.
type Face int

// Cubemap faces in the conventional +X, -X, +Y, -Y, +Z, -Z order.
const (
	FacePosX Face = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
	faceCount
)

// String returns the face name.
func (f Face) String() string {
	switch f {
	case FacePosX:
		return "+X"
	case FaceNegX:
		return "-X"
	case FacePosY:
		return "+Y"
	case FaceNegY:
		return "-Y"
	case FacePosZ:
		return "+Z"
	case FaceNegZ:
		return "-Z"
	}
	return "?"
}

// Cubemap is a six-face HDR environment capture.
type Cubemap struct {
	FaceSize int
	Faces    [faceCount][]atlas.Pixel // Row-major FaceSize*FaceSize texels per face
}

// NewCubemap allocates a black cubemap.
func NewCubemap(faceSize int) *Cubemap {
	if faceSize < 1 {
		faceSize = 1
	}
	c := &Cubemap{FaceSize: faceSize}
	for f := range c.Faces {
		c.Faces[f] = make([]atlas.Pixel, faceSize*faceSize)
	}
	return c
}

// Direction returns the unnormalized world direction through face texel
// coordinates (u, v) in [0, 1]. v grows downwards on the side faces.
func Direction(face Face, u, v float32) math.Vec3 {
	// Map to [-1, 1].
	a := 2*u - 1
	b := 2*v - 1
	switch face {
	case FacePosX:
		return math.Vec3{X: 1, Y: -b, Z: -a}
	case FaceNegX:
		return math.Vec3{X: -1, Y: -b, Z: a}
	case FacePosY:
		return math.Vec3{X: a, Y: 1, Z: b}
	case FaceNegY:
		return math.Vec3{X: a, Y: -1, Z: -b}
	case FacePosZ:
		return math.Vec3{X: a, Y: -b, Z: 1}
	default:
		return math.Vec3{X: -a, Y: -b, Z: -1}
	}
}

// Lookup returns the face and face coordinates in [0, 1] hit by direction d.
// It is the inverse of Direction.
func Lookup(d math.Vec3) (face Face, u, v float32) {
	ad := d.Abs()
	var a, b, m float32
	switch {
	case ad.X >= ad.Y && ad.X >= ad.Z:
		m = ad.X
		if d.X > 0 {
			face, a, b = FacePosX, -d.Z, -d.Y
		} else {
			face, a, b = FaceNegX, d.Z, -d.Y
		}
	case ad.Y >= ad.Z:
		m = ad.Y
		if d.Y > 0 {
			face, a, b = FacePosY, d.X, d.Z
		} else {
			face, a, b = FaceNegY, d.X, -d.Z
		}
	default:
		m = ad.Z
		if d.Z > 0 {
			face, a, b = FacePosZ, d.X, -d.Y
		} else {
			face, a, b = FaceNegZ, -d.X, -d.Y
		}
	}
	if m == 0 {
		return FacePosZ, 0.5, 0.5
	}
	return face, (a/m + 1) / 2, (b/m + 1) / 2
}

// Sample returns the bilinearly filtered radiance seen along direction d.
// Filtering is clamped to the hit face.
func (c *Cubemap) Sample(d math.Vec3) atlas.Pixel {
	face, u, v := Lookup(d)
	n := c.FaceSize

	fx := u*float32(n) - 0.5
	fy := v*float32(n) - 0.5
	x0 := int(gomath.Floor(float64(fx)))
	y0 := int(gomath.Floor(float64(fy)))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	texel := func(x, y int) atlas.Pixel {
		x = min(max(x, 0), n-1)
		y = min(max(y, 0), n-1)
		return c.Faces[face][y*n+x]
	}

	top := texel(x0, y0).Scale(1 - tx).Add(texel(x0+1, y0).Scale(tx))
	bottom := texel(x0, y0+1).Scale(1 - tx).Add(texel(x0+1, y0+1).Scale(tx))
	return top.Scale(1 - ty).Add(bottom.Scale(ty))
}
