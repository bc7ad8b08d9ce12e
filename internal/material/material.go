// Package material publishes a baked atlas to a YAML material description.
package material

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/surfacerefl/internal/atlas"
	"github.com/Faultbox/surfacerefl/internal/logger"
)

// Material properties the reflection shader reads.
const (
	TextureProperty = "_ReflectionArray"
	ParamsProperty  = "_BakedReflectionParams"
)

const (
	texturesKey = "textures"
	vectorsKey  = "vectors"
)

// ErrBadMaterial is returned for material files with an unexpected shape.
var ErrBadMaterial = errors.New("malformed material file")

// Material is a generic material document. Keys it does not manage are
// kept as loaded.
type Material struct {
	doc map[string]any
}

// Load reads the material at path. A missing file yields an empty material.
func Load(path string) (*Material, error) {
	m := &Material{doc: map[string]any{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading material: %w", err)
	}
	if err := yaml.Unmarshal(data, &m.doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadMaterial, err)
	}
	if m.doc == nil {
		m.doc = map[string]any{}
	}
	return m, nil
}

// Save writes the material to path.
func (m *Material) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating material dir: %w", err)
		}
	}
	data, err := yaml.Marshal(m.doc)
	if err != nil {
		return fmt.Errorf("encoding material: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing material: %w", err)
	}
	return nil
}

func (m *Material) section(key string) (map[string]any, error) {
	raw, ok := m.doc[key]
	if !ok || raw == nil {
		s := map[string]any{}
		m.doc[key] = s
		return s, nil
	}
	s, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a mapping", ErrBadMaterial, key)
	}
	return s, nil
}

// SetTexture binds a texture path to a property.
func (m *Material) SetTexture(name, path string) error {
	s, err := m.section(texturesKey)
	if err != nil {
		return err
	}
	s[name] = path
	return nil
}

// Texture returns the texture bound to a property.
func (m *Material) Texture(name string) (string, bool) {
	s, ok := m.doc[texturesKey].(map[string]any)
	if !ok {
		return "", false
	}
	v, ok := s[name].(string)
	return v, ok
}

// SetVector sets a four-component vector property.
func (m *Material) SetVector(name string, v [4]float32) error {
	s, err := m.section(vectorsKey)
	if err != nil {
		return err
	}
	s[name] = []float64{float64(v[0]), float64(v[1]), float64(v[2]), float64(v[3])}
	return nil
}

// Vector returns a four-component vector property.
func (m *Material) Vector(name string) ([4]float32, bool) {
	var out [4]float32
	s, ok := m.doc[vectorsKey].(map[string]any)
	if !ok {
		return out, false
	}
	switch list := s[name].(type) {
	case []float64:
		if len(list) != 4 {
			return out, false
		}
		for i, f := range list {
			out[i] = float32(f)
		}
	case []any:
		if len(list) != 4 {
			return out, false
		}
		for i, item := range list {
			switch f := item.(type) {
			case float64:
				out[i] = float32(f)
			case int:
				out[i] = float32(f)
			default:
				return out, false
			}
		}
	default:
		return out, false
	}
	return out, true
}

// Binding points at the material that samples the baked atlas.
type Binding struct {
	Path string
}

// Publish binds atlasPath as the reflection array of the material and sets
// the atlas parameters (slices per axis and its reciprocal). An empty Path
// does nothing.
func (b Binding) Publish(atlasPath string, grid atlas.Grid) error {
	if b.Path == "" {
		return nil
	}

	m, err := Load(b.Path)
	if err != nil {
		return err
	}

	n := float32(grid.SlicesPerAxis)
	if err := m.SetTexture(TextureProperty, filepath.ToSlash(atlasPath)); err != nil {
		return err
	}
	if err := m.SetVector(ParamsProperty, [4]float32{n, 1 / n, 0, 0}); err != nil {
		return err
	}
	if err := m.Save(b.Path); err != nil {
		return err
	}

	logger.Info("material updated",
		zap.String("material", b.Path),
		zap.String("texture", atlasPath),
		zap.Int("slices_per_axis", grid.SlicesPerAxis))
	return nil
}
