// Package probe extracts per-texel probe samples from a lightmapped mesh by
// rasterizing it in lightmap UV space.
package probe

import (
	"errors"

	"github.com/Faultbox/surfacerefl/pkg/formats"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

var (
	// ErrNoLightmapUV is returned for meshes without a complete UV channel.
	ErrNoLightmapUV = errors.New("mesh has no lightmap UVs")
	// ErrEmptyMesh is returned for meshes without triangles.
	ErrEmptyMesh = errors.New("mesh has no triangles")
)

// Vertex is a triangle corner in mesh space.
type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	UV       math.Vec2
	Tangent  math.Vec4 // Bitangent sign in W
}

// Triangle is a mesh triangle.
type Triangle [3]Vertex

// Mesh is a triangle soup with one unique UV parameterization.
type Mesh struct {
	Name      string
	Triangles []Triangle
}

// FromOBJ builds a mesh from a parsed OBJ. Missing normals are replaced by
// face normals, and tangents are generated from the UV layout.
func FromOBJ(obj *formats.OBJ) (*Mesh, error) {
	if obj == nil || !obj.HasUV() {
		return nil, ErrNoLightmapUV
	}

	src := obj.Triangles()
	m := &Mesh{Name: obj.Name, Triangles: make([]Triangle, len(src))}
	for i, t := range src {
		face := t.Positions[1].Sub(t.Positions[0]).Cross(t.Positions[2].Sub(t.Positions[0])).Normalize()
		for j := range 3 {
			n := t.Normals[j].Normalize()
			if n.IsZero() {
				n = face
			}
			m.Triangles[i][j] = Vertex{Position: t.Positions[j], Normal: n, UV: t.TexCoords[j]}
		}
	}
	m.GenerateTangents()
	return m, nil
}

type vertexKey struct {
	position math.Vec3
	normal   math.Vec3
	uv       math.Vec2
}

// GenerateTangents computes per-vertex tangents from UV derivatives.
// Corners sharing position, normal and UV are welded and accumulate the
// contribution of every adjacent triangle before Gram-Schmidt orthogonalization.
func (m *Mesh) GenerateTangents() {
	type frame struct{ t, b math.Vec3 }
	frames := make(map[vertexKey]frame)
	key := func(v Vertex) vertexKey {
		return vertexKey{position: v.Position, normal: v.Normal, uv: v.UV}
	}

	for _, tri := range m.Triangles {
		e1 := tri[1].Position.Sub(tri[0].Position)
		e2 := tri[2].Position.Sub(tri[0].Position)
		d1 := tri[1].UV.Sub(tri[0].UV)
		d2 := tri[2].UV.Sub(tri[0].UV)

		denom := d1.Cross(d2)
		if denom == 0 {
			continue // Degenerate UV triangle
		}
		r := 1 / denom
		t := e1.Scale(d2.Y * r).Sub(e2.Scale(d1.Y * r))
		b := e2.Scale(d1.X * r).Sub(e1.Scale(d2.X * r))

		for _, v := range tri {
			k := key(v)
			f := frames[k]
			frames[k] = frame{t: f.t.Add(t), b: f.b.Add(b)}
		}
	}

	for i := range m.Triangles {
		for j := range 3 {
			v := &m.Triangles[i][j]
			f := frames[key(*v)]
			v.Tangent = orthogonalize(v.Normal, f.t, f.b)
		}
	}
}

// orthogonalize makes t perpendicular to n and derives the handedness of b.
func orthogonalize(n, t, b math.Vec3) math.Vec4 {
	t = perpendicular(n, t)
	w := float32(1)
	if n.Cross(t).Dot(b) < 0 {
		w = -1
	}
	return math.V4(t, w)
}

// perpendicular returns the unit component of t orthogonal to n.
func perpendicular(n, t math.Vec3) math.Vec3 {
	t = t.Sub(n.Scale(n.Dot(t)))
	if t.LengthSqr() < 1e-8 {
		// Any tangent perpendicular to n.
		if absf(n.X) < 0.9 {
			t = math.Vec3{X: 1}.Sub(n.Scale(n.X))
		} else {
			t = math.Vec3{Y: 1}.Sub(n.Scale(n.Y))
		}
	}
	return t.Normalize()
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
