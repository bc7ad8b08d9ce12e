// Package formats provides parsers for mesh file formats.
// OBJ (Wavefront) parser for lightmapped meshes.
package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/surfacerefl/pkg/math"
)

// OBJ format errors.
var (
	ErrNoVertices   = errors.New("OBJ has no vertices")
	ErrNoFaces      = errors.New("OBJ has no faces")
	ErrBadIndex     = errors.New("OBJ index out of range")
	ErrMalformedOBJ = errors.New("malformed OBJ statement")
)

// OBJCorner references the attributes of one face corner.
// Indices are zero-based; -1 means the attribute is absent.
type OBJCorner struct {
	Position int
	TexCoord int
	Normal   int
}

// OBJFace is a planar polygon with at least three corners.
type OBJFace struct {
	Corners []OBJCorner
}

// OBJ represents a parsed Wavefront OBJ mesh.
type OBJ struct {
	Name      string      // First object or group name
	Positions []math.Vec3 // v
	TexCoords []math.Vec2 // vt, the lightmap UV channel
	Normals   []math.Vec3 // vn
	Faces     []OBJFace
}

// OBJTriangle is a triangle with resolved corner attributes.
type OBJTriangle struct {
	Positions [3]math.Vec3
	Normals   [3]math.Vec3 // Zero when the face has no normals
	TexCoords [3]math.Vec2
}

// HasUV reports whether every face corner has a texture coordinate.
func (o *OBJ) HasUV() bool {
	return o.everyCorner(func(c OBJCorner) bool { return c.TexCoord >= 0 })
}

// HasNormals reports whether every face corner has a normal.
func (o *OBJ) HasNormals() bool {
	return o.everyCorner(func(c OBJCorner) bool { return c.Normal >= 0 })
}

func (o *OBJ) everyCorner(ok func(OBJCorner) bool) bool {
	if len(o.Faces) == 0 {
		return false
	}
	for _, f := range o.Faces {
		for _, c := range f.Corners {
			if !ok(c) {
				return false
			}
		}
	}
	return true
}

// Triangles fan-triangulates every face.
func (o *OBJ) Triangles() []OBJTriangle {
	var tris []OBJTriangle
	for _, f := range o.Faces {
		for k := 1; k+1 < len(f.Corners); k++ {
			var tri OBJTriangle
			for j, c := range [3]OBJCorner{f.Corners[0], f.Corners[k], f.Corners[k+1]} {
				tri.Positions[j] = o.Positions[c.Position]
				if c.Normal >= 0 {
					tri.Normals[j] = o.Normals[c.Normal]
				}
				if c.TexCoord >= 0 {
					tri.TexCoords[j] = o.TexCoords[c.TexCoord]
				}
			}
			tris = append(tris, tri)
		}
	}
	return tris
}

// ParseOBJ parses Wavefront OBJ text. Only geometry statements are read;
// materials, smoothing groups and free-form curves are ignored.
func ParseOBJ(data []byte) (*OBJ, error) {
	obj := &OBJ{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if err := obj.parseStatement(fields); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}

	if len(obj.Positions) == 0 {
		return nil, ErrNoVertices
	}
	if len(obj.Faces) == 0 {
		return nil, ErrNoFaces
	}
	return obj, nil
}

func (o *OBJ) parseStatement(fields []string) error {
	args := fields[1:]
	switch fields[0] {
	case "v":
		v, err := parseFloats(args, 3, 4)
		if err != nil {
			return fmt.Errorf("vertex: %w", err)
		}
		o.Positions = append(o.Positions, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
	case "vt":
		v, err := parseFloats(args, 1, 3)
		if err != nil {
			return fmt.Errorf("texcoord: %w", err)
		}
		uv := math.Vec2{X: v[0]}
		if len(v) > 1 {
			uv.Y = v[1]
		}
		o.TexCoords = append(o.TexCoords, uv)
	case "vn":
		v, err := parseFloats(args, 3, 3)
		if err != nil {
			return fmt.Errorf("normal: %w", err)
		}
		o.Normals = append(o.Normals, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
	case "f":
		face, err := o.parseFace(args)
		if err != nil {
			return fmt.Errorf("face: %w", err)
		}
		o.Faces = append(o.Faces, face)
	case "o", "g":
		if o.Name == "" && len(args) > 0 {
			o.Name = strings.Join(args, " ")
		}
	}
	return nil
}

func (o *OBJ) parseFace(args []string) (OBJFace, error) {
	if len(args) < 3 {
		return OBJFace{}, fmt.Errorf("%w: %d corners", ErrMalformedOBJ, len(args))
	}

	face := OBJFace{Corners: make([]OBJCorner, len(args))}
	for i, arg := range args {
		parts := strings.Split(arg, "/")
		if len(parts) > 3 {
			return OBJFace{}, fmt.Errorf("%w: corner %q", ErrMalformedOBJ, arg)
		}

		c := OBJCorner{Position: -1, TexCoord: -1, Normal: -1}
		var err error
		if c.Position, err = resolveIndex(parts[0], len(o.Positions)); err != nil {
			return OBJFace{}, err
		}
		if c.Position < 0 {
			return OBJFace{}, fmt.Errorf("%w: corner %q has no vertex", ErrMalformedOBJ, arg)
		}
		if len(parts) > 1 {
			if c.TexCoord, err = resolveIndex(parts[1], len(o.TexCoords)); err != nil {
				return OBJFace{}, err
			}
		}
		if len(parts) > 2 {
			if c.Normal, err = resolveIndex(parts[2], len(o.Normals)); err != nil {
				return OBJFace{}, err
			}
		}
		face.Corners[i] = c
	}
	return face, nil
}

// resolveIndex converts a one-based or negative relative OBJ index to a
// zero-based index. An empty field resolves to -1.
func resolveIndex(s string, count int) (int, error) {
	if s == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrMalformedOBJ, s)
	}

	idx := n - 1
	if n < 0 {
		idx = count + n
	}
	if n == 0 || idx < 0 || idx >= count {
		return 0, fmt.Errorf("%w: %d with %d elements", ErrBadIndex, n, count)
	}
	return idx, nil
}

func parseFloats(args []string, minN, maxN int) ([]float32, error) {
	if len(args) < minN {
		return nil, fmt.Errorf("%w: want at least %d values, got %d", ErrMalformedOBJ, minN, len(args))
	}
	if len(args) > maxN {
		args = args[:maxN]
	}
	out := make([]float32, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrMalformedOBJ, a)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// ParseOBJFile reads and parses an OBJ file from disk.
func ParseOBJFile(path string) (*OBJ, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading OBJ file: %w", err)
	}
	return ParseOBJ(data)
}
