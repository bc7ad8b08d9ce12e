package probe

import (
	"errors"
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/surfacerefl/internal/bake"
	"github.com/Faultbox/surfacerefl/internal/logger"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

// ErrSampleCount is returned when the requested sample count is not a square.
var ErrSampleCount = errors.New("sample count is not a perfect square")

// Extractor rasterizes a mesh into an n x n sample grid over UV space.
type Extractor struct {
	mesh         *Mesh
	localToWorld math.Mat4
	normalMatrix math.Mat4
	handedness   float32 // -1 when the transform mirrors
}

// NewExtractor creates an extractor for mesh placed by localToWorld.
func NewExtractor(mesh *Mesh, localToWorld math.Mat4) (*Extractor, error) {
	if mesh == nil || len(mesh.Triangles) == 0 {
		return nil, ErrEmptyMesh
	}

	det := localToWorld.Column(0).Dot(localToWorld.Column(1).Cross(localToWorld.Column(2)))
	handedness := float32(1)
	if det < 0 {
		handedness = -1
	}
	return &Extractor{
		mesh:         mesh,
		localToWorld: localToWorld,
		normalMatrix: localToWorld.NormalMatrix(),
		handedness:   handedness,
	}, nil
}

// Extract implements bake.Extractor. Sample i covers texel (i mod n, i div n),
// whose center sits at UV ((x+0.5)/n, (y+0.5)/n). Texels outside every
// triangle get a zero normal. Where charts overlap, the later triangle wins.
func (e *Extractor) Extract(sampleCount int) (*bake.Samples, error) {
	n := int(gomath.Round(gomath.Sqrt(float64(sampleCount))))
	if sampleCount <= 0 || n*n != sampleCount {
		return nil, fmt.Errorf("%w: %d", ErrSampleCount, sampleCount)
	}

	positions := make([]math.Vec3, sampleCount)
	normals := make([]math.Vec3, sampleCount)
	tangents := make([]math.Vec4, sampleCount)

	covered := 0
	for ti := range e.mesh.Triangles {
		covered += e.rasterize(&e.mesh.Triangles[ti], n, positions, normals, tangents)
	}

	samples, err := bake.NewSamples(positions, normals, tangents)
	if err != nil {
		return nil, err
	}
	logger.Debug("probe samples extracted",
		zap.String("mesh", e.mesh.Name),
		zap.Int("triangles", len(e.mesh.Triangles)),
		zap.Int("texels", sampleCount),
		zap.Int("valid", samples.ValidCount()),
		zap.Int("writes", covered))
	return samples, nil
}

// rasterize writes the texels whose centers fall inside tri and returns how many it wrote.
func (e *Extractor) rasterize(tri *Triangle, n int, positions, normals []math.Vec3, tangents []math.Vec4) int {
	size := float32(n)
	p0 := tri[0].UV.Scale(size)
	p1 := tri[1].UV.Scale(size)
	p2 := tri[2].UV.Scale(size)

	area := p1.Sub(p0).Cross(p2.Sub(p0))
	if area == 0 {
		return 0
	}

	minX := max(0, int(floor(min(p0.X, p1.X, p2.X))))
	maxX := min(n-1, int(ceil(max(p0.X, p1.X, p2.X))))
	minY := max(0, int(floor(min(p0.Y, p1.Y, p2.Y))))
	maxY := min(n-1, int(ceil(max(p0.Y, p1.Y, p2.Y))))

	written := 0
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := math.Vec2{X: float32(x) + 0.5, Y: float32(y) + 0.5}

			// Edge functions normalized by the signed area work for both windings.
			w0 := p2.Sub(p1).Cross(p.Sub(p1)) / area
			w1 := p0.Sub(p2).Cross(p.Sub(p2)) / area
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			w := math.Vec3{X: w0, Y: w1, Z: w2}

			i := y*n + x
			positions[i], normals[i], tangents[i] = e.interpolate(tri, w)
			written++
		}
	}
	return written
}

// interpolate blends the corner attributes of tri and moves them to world space.
func (e *Extractor) interpolate(tri *Triangle, w math.Vec3) (math.Vec3, math.Vec3, math.Vec4) {
	pos := math.Lerp3(tri[0].Position, tri[1].Position, tri[2].Position, w)
	nrm := math.Lerp3(tri[0].Normal, tri[1].Normal, tri[2].Normal, w)
	tan := math.Lerp3(tri[0].Tangent.XYZ(), tri[1].Tangent.XYZ(), tri[2].Tangent.XYZ(), w)

	worldPos := e.localToWorld.TransformPoint(pos)
	worldNormal := e.normalMatrix.TransformDirection(nrm).Normalize()
	if worldNormal.IsZero() {
		return worldPos, math.Vec3{}, math.Vec4{}
	}

	// Interpolation and non-uniform scale both skew the frame.
	worldTangent := perpendicular(worldNormal, e.localToWorld.TransformDirection(tan))
	return worldPos, worldNormal, math.V4(worldTangent, tri[0].Tangent[3]*e.handedness)
}

func floor(v float32) float32 { return float32(gomath.Floor(float64(v))) }
func ceil(v float32) float32  { return float32(gomath.Ceil(float64(v))) }
