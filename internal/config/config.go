// Package config handles bake configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Faultbox/surfacerefl/internal/atlas"
)

// Config errors.
var (
	ErrNoMesh          = errors.New("no input mesh configured")
	ErrBadSupersample  = errors.New("supersample must be at least 1")
	ErrBadTickBudget   = errors.New("tick budget must be positive")
	ErrBadExportFormat = errors.New("unsupported export format")
)

// Config holds all bake settings.
type Config struct {
	Bake     BakeConfig     `yaml:"bake"`
	Input    InputConfig    `yaml:"input"`
	Scene    SceneConfig    `yaml:"scene"`
	Export   ExportConfig   `yaml:"export"`
	Material MaterialConfig `yaml:"material"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BakeConfig holds the atlas layout and scheduler settings.
// Both levels are exponents: 4^SliceCountLevel slices of 2^ResolutionLevel texels.
type BakeConfig struct {
	SliceCountLevel int           `yaml:"slice_count_level"`
	ResolutionLevel int           `yaml:"resolution_level"`
	Dilation        bool          `yaml:"dilation"`
	Supersample     int           `yaml:"supersample"` // Capture face size = slice resolution * supersample
	TickBudget      time.Duration `yaml:"tick_budget"` // Wall-clock time spent per scheduler tick
}

// Levels returns the atlas layout levels.
func (b BakeConfig) Levels() atlas.Levels {
	return atlas.Levels{SliceCountLevel: b.SliceCountLevel, ResolutionLevel: b.ResolutionLevel}
}

// InputConfig describes the mesh to bake and its local-to-world transform.
type InputConfig struct {
	Mesh      string     `yaml:"mesh"` // Wavefront OBJ with the lightmap UV channel in vt
	Translate [3]float32 `yaml:"translate"`
	RotateDeg [3]float32 `yaml:"rotate_deg"` // Applied X, then Y, then Z
	Scale     [3]float32 `yaml:"scale"`
}

// SceneConfig describes the environment captured around the mesh.
type SceneConfig struct {
	Zenith   [3]float32  `yaml:"zenith"`
	Horizon  [3]float32  `yaml:"horizon"`
	Ground   [3]float32  `yaml:"ground"`
	GroundY  float32     `yaml:"ground_y"`
	Checker  float32     `yaml:"checker"` // Ground checker cell size, 0 disables
	SunDir   [3]float32  `yaml:"sun_dir"`
	SunColor [3]float32  `yaml:"sun_color"`
	SunSize  float32     `yaml:"sun_size"` // Cosine threshold of the sun disc
	Boxes    []BoxConfig `yaml:"boxes"`
}

// BoxConfig is an axis-aligned box in the captured scene.
type BoxConfig struct {
	Min      [3]float32 `yaml:"min"`
	Max      [3]float32 `yaml:"max"`
	Albedo   [3]float32 `yaml:"albedo"`
	Emission [3]float32 `yaml:"emission"`
}

// ExportConfig holds atlas export settings.
type ExportConfig struct {
	Dir         string  `yaml:"dir"`
	Name        string  `yaml:"name"` // Defaults to the mesh object name
	Format      string  `yaml:"format"`
	Exposure    float32 `yaml:"exposure"`
	PreviewSize int     `yaml:"preview_size"`
	ToneMap     bool    `yaml:"tone_map"` // Reinhard instead of clamping radiance above 1
}

// MaterialConfig names the material file that receives the baked atlas.
type MaterialConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bake: BakeConfig{
			SliceCountLevel: 2,
			ResolutionLevel: 2,
			Dilation:        true,
			Supersample:     8,
			TickBudget:      30 * time.Millisecond,
		},
		Input: InputConfig{
			Scale: [3]float32{1, 1, 1},
		},
		Scene: SceneConfig{
			Zenith:   [3]float32{0.25, 0.45, 0.9},
			Horizon:  [3]float32{0.8, 0.85, 0.9},
			Ground:   [3]float32{0.3, 0.27, 0.25},
			GroundY:  -1,
			Checker:  1,
			SunDir:   [3]float32{0.4, 0.8, 0.3},
			SunColor: [3]float32{8, 7.5, 7},
			SunSize:  0.995,
		},
		Export: ExportConfig{
			Dir:      "Baked SurfaceReflections",
			Format:   "png",
			Exposure: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate reports configuration errors. It never allocates bake resources.
func (c *Config) Validate() error {
	grid, err := atlas.NewGrid(c.Bake.Levels())
	if err != nil {
		return err
	}
	if err := atlas.CheckSize(grid); err != nil {
		return err
	}
	if c.Bake.Supersample < 1 {
		return fmt.Errorf("%w: got %d", ErrBadSupersample, c.Bake.Supersample)
	}
	if c.Bake.TickBudget <= 0 {
		return fmt.Errorf("%w: got %v", ErrBadTickBudget, c.Bake.TickBudget)
	}
	if c.Input.Mesh == "" {
		return ErrNoMesh
	}
	switch c.Export.Format {
	case "png", "tiff":
	default:
		return fmt.Errorf("%w: %q", ErrBadExportFormat, c.Export.Format)
	}
	return nil
}
