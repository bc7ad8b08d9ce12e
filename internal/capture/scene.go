package capture

import (
	gomath "math"

	"github.com/Faultbox/surfacerefl/internal/atlas"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

// Environment returns the radiance arriving along a ray.
type Environment interface {
	Radiance(r Ray) atlas.Pixel
}

// Box is a solid axis-aligned box in the scene.
type Box struct {
	Bounds   AABB
	Albedo   math.Vec3
	Emission math.Vec3
}

// Scene is a deterministic analytic environment: a sky gradient with a sun disc,
// an infinite checkered ground plane and a list of lit boxes.
// Shading is single-bounce Lambert without shadows.
type Scene struct {
	Zenith   math.Vec3
	Horizon  math.Vec3
	Ground   math.Vec3
	GroundY  float32
	NoGround bool
	Checker  float32 // Checker cell size, 0 for a flat ground
	SunDir   math.Vec3
	SunColor math.Vec3
	SunSize  float32 // Cosine of the sun disc radius
	Boxes    []Box
}

// Radiance implements Environment.
func (s *Scene) Radiance(r Ray) atlas.Pixel {
	nearest := float32(gomath.MaxFloat32)
	var color math.Vec3
	hit := false

	if !s.NoGround {
		if t, ok := r.IntersectPlaneY(s.GroundY); ok {
			p := r.At(t)
			albedo := s.Ground.Scale(s.checker(p))
			nearest = t
			color = s.shade(albedo, math.Vec3{Y: 1})
			hit = true
		}
	}

	for i := range s.Boxes {
		b := &s.Boxes[i]
		t, n, ok := r.IntersectAABB(b.Bounds)
		if !ok || t >= nearest {
			continue
		}
		nearest = t
		color = b.Emission.Add(s.shade(b.Albedo, n))
		hit = true
	}

	if !hit {
		color = s.sky(r.Direction, true)
	}
	return atlas.Pixel{R: color.X, G: color.Y, B: color.Z, A: 1}
}

// sky returns the background radiance along d.
func (s *Scene) sky(d math.Vec3, withSun bool) math.Vec3 {
	var c math.Vec3
	if d.Y >= 0 {
		c = lerp(s.Horizon, s.Zenith, d.Y)
	} else {
		c = lerp(s.Horizon, s.Ground, -d.Y)
	}
	if withSun && s.SunSize > 0 && d.Dot(s.sunDir()) >= s.SunSize {
		c = c.Add(s.SunColor)
	}
	return c
}

// shade lights a diffuse surface with the sky around its normal plus the sun.
func (s *Scene) shade(albedo, normal math.Vec3) math.Vec3 {
	ambient := s.sky(normal, false)
	light := ambient
	// A disc of cosine radius c subtends 2*pi*(1-c); the 1/pi of Lambert leaves 2*(1-c).
	if ndl := normal.Dot(s.sunDir()); ndl > 0 && s.SunSize > 0 {
		light = light.Add(s.SunColor.Scale(ndl * 2 * (1 - s.SunSize)))
	}
	return math.Vec3{X: albedo.X * light.X, Y: albedo.Y * light.Y, Z: albedo.Z * light.Z}
}

func (s *Scene) sunDir() math.Vec3 {
	return s.SunDir.Normalize()
}

func (s *Scene) checker(p math.Vec3) float32 {
	if s.Checker <= 0 {
		return 1
	}
	cx := int(gomath.Floor(float64(p.X / s.Checker)))
	cz := int(gomath.Floor(float64(p.Z / s.Checker)))
	if (cx+cz)&1 == 0 {
		return 1
	}
	return 0.5
}

func lerp(a, b math.Vec3, t float32) math.Vec3 {
	if t > 1 {
		t = 1
	}
	return a.Scale(1 - t).Add(b.Scale(t))
}
