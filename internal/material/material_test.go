package material

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/surfacerefl/internal/atlas"
)

func testGrid(t *testing.T) atlas.Grid {
	t.Helper()
	grid, err := atlas.NewGrid(atlas.Levels{SliceCountLevel: 3, ResolutionLevel: 4})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return grid
}

func TestPublishNewMaterial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "materials", "floor.yaml")
	b := Binding{Path: path}

	if err := b.Publish("Baked SurfaceReflections/Floor.png", testGrid(t)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tex, ok := m.Texture(TextureProperty); !ok || tex != "Baked SurfaceReflections/Floor.png" {
		t.Errorf("texture = %q %v", tex, ok)
	}
	v, ok := m.Vector(ParamsProperty)
	if !ok || v != [4]float32{8, 0.125, 0, 0} {
		t.Errorf("params = %v %v, want [8 0.125 0 0]", v, ok)
	}
}

func TestPublishPreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floor.yaml")
	existing := `shader: Custom/BakedReflection
textures:
  _MainTex: stone.png
vectors:
  _Tint: [1, 0.5, 0.25, 1]
floats:
  _Smoothness: 0.8
`
	if err := os.WriteFile(path, []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}

	if err := (Binding{Path: path}).Publish("atlas.tiff", testGrid(t)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"shader: Custom/BakedReflection", "_MainTex: stone.png", "_Smoothness: 0.8", "_ReflectionArray: atlas.tiff"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("material missing %q:\n%s", want, data)
		}
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, ok := m.Vector("_Tint"); !ok || v != [4]float32{1, 0.5, 0.25, 1} {
		t.Errorf("_Tint = %v %v", v, ok)
	}
}

func TestPublishEmptyPath(t *testing.T) {
	if err := (Binding{}).Publish("atlas.png", testGrid(t)); err != nil {
		t.Errorf("Publish with empty path: %v", err)
	}
}

func TestPublishMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not yaml", "textures: [unclosed"},
		{"textures not a mapping", "textures: 42\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			err := (Binding{Path: path}).Publish("atlas.png", testGrid(t))
			if !errors.Is(err, ErrBadMaterial) {
				t.Errorf("error = %v, want ErrBadMaterial", err)
			}
		})
	}
}
