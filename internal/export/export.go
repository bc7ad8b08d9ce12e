// Package export writes baked atlases to image files.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/Faultbox/surfacerefl/internal/atlas"
	"github.com/Faultbox/surfacerefl/internal/logger"
)

// Supported output formats.
const (
	FormatPNG  = "png"
	FormatTIFF = "tiff"
)

// DefaultDir is the output directory used when none is configured.
const DefaultDir = "Baked SurfaceReflections"

var (
	ErrNoAtlas       = errors.New("no baked atlas to export")
	ErrUnknownFormat = errors.New("unknown export format")
)

// Exporter writes atlases as 16-bit RGBA images.
type Exporter struct {
	Dir         string
	Format      string  // FormatPNG or FormatTIFF, PNG when empty
	Exposure    float32 // Linear scale applied before quantization, 1 when zero
	PreviewSize int     // Edge of an additional 8-bit PNG preview, none when zero

	// ToneMap compresses radiance above 1 with atlas.Reinhard instead of
	// clamping it. The images stay 16-bit integer either way.
	ToneMap bool
}

// Export writes a to <Dir>/<name>.<ext> and returns the path.
// The name is sanitized first.
func (e Exporter) Export(a *atlas.Atlas, name string) (string, error) {
	if a == nil || a.Released() {
		return "", ErrNoAtlas
	}

	format := e.Format
	if format == "" {
		format = FormatPNG
	}
	var encode func(io.Writer, image.Image) error
	switch format {
	case FormatPNG:
		encode = png.Encode
	case FormatTIFF:
		encode = func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	exposure := e.Exposure
	if exposure == 0 {
		exposure = 1
	}
	var curve func(float32) float32
	if e.ToneMap {
		curve = atlas.Reinhard
	}
	img, err := a.ToNRGBA64Mapped(exposure, curve)
	if err != nil {
		return "", fmt.Errorf("converting atlas: %w", err)
	}

	dir := e.Dir
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	base := SanitizeFileName(name)
	path := filepath.Join(dir, base+"."+format)
	if err := writeImage(path, img, encode); err != nil {
		return "", err
	}
	logger.Info("atlas exported",
		zap.String("path", path),
		zap.Int("size", a.Size()),
		zap.String("format", format))

	if e.PreviewSize > 0 {
		preview := filepath.Join(dir, base+"_preview.png")
		if err := writeImage(preview, scale(img, e.PreviewSize), png.Encode); err != nil {
			return "", err
		}
		logger.Debug("preview exported", zap.String("path", preview), zap.Int("size", e.PreviewSize))
	}
	return path, nil
}

// scale resamples img to a size x size 8-bit image.
func scale(img image.Image, size int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

func writeImage(path string, img image.Image, encode func(io.Writer, image.Image) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(file))

	if err := encode(file, img); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return nil
}
