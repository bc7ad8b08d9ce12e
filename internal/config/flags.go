package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagMesh       = flag.String("mesh", "", "Wavefront OBJ to bake (lightmap UVs in vt)")
	flagSlices     = flag.Int("slices", 0, "Slice count level (4^level slices)")
	flagResolution = flag.Int("resolution", 0, "Slice resolution level (2^level texels)")
	flagDilate     = flag.Bool("dilate", false, "Fill unsampled slices from covered neighbours")
	flagNoDilate   = flag.Bool("no-dilate", false, "Disable dilation")
	flagOut        = flag.String("out", "", "Export directory")
	flagFormat     = flag.String("format", "", "Export format: png or tiff")
	flagMaterial   = flag.String("material", "", "Material file that receives the atlas")
	flagSaveConfig = flag.Bool("save-config", false, "Write the effective config to the user config dir and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// SaveRequested reports whether --save-config was given.
func SaveRequested() bool {
	return *flagSaveConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagMesh != "" {
		cfg.Input.Mesh = *flagMesh
	}
	if *flagSlices > 0 {
		cfg.Bake.SliceCountLevel = *flagSlices
	}
	if *flagResolution > 0 {
		cfg.Bake.ResolutionLevel = *flagResolution
	}
	if *flagDilate {
		cfg.Bake.Dilation = true
	}
	if *flagNoDilate {
		cfg.Bake.Dilation = false
	}
	if *flagOut != "" {
		cfg.Export.Dir = *flagOut
	}
	if *flagFormat != "" {
		cfg.Export.Format = *flagFormat
	}
	if *flagMaterial != "" {
		cfg.Material.Path = *flagMaterial
	}
}
