package export

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/Faultbox/surfacerefl/internal/atlas"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Floor", "Floor"},
		{"Café Terrace", "Cafe_Terrace"},
		{"Ångström-Hall_02", "Angstrom-Hall_02"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{`a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"tab\there", "tab_here"},
		{".hidden", "hidden"},
		{"", "atlas"},
		{"...", "atlas"},
		{"床", "_"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFileName(tt.in); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// testAtlas returns a 4x4 atlas with pixel (1,0) at half red.
func testAtlas(t *testing.T) *atlas.Atlas {
	t.Helper()
	grid, err := atlas.NewGrid(atlas.Levels{SliceCountLevel: 1, ResolutionLevel: 1})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	a, err := atlas.New(grid)
	if err != nil {
		t.Fatalf("atlas.New: %v", err)
	}
	if err := a.Fill(atlas.Rect{Width: 4, Height: 4}, atlas.Pixel{A: 1}); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	a.Set(1, 0, atlas.Pixel{R: 0.5, A: 1})
	return a
}

func decodeFile(t *testing.T, path string, decode func(*os.File) (image.Image, error)) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()
	img, err := decode(f)
	if err != nil {
		t.Fatalf("decoding %s: %v", path, err)
	}
	return img
}

func TestExportFormats(t *testing.T) {
	tests := []struct {
		format string
		ext    string
		decode func(*os.File) (image.Image, error)
	}{
		{FormatPNG, ".png", func(f *os.File) (image.Image, error) { return png.Decode(f) }},
		{FormatTIFF, ".tiff", func(f *os.File) (image.Image, error) { return tiff.Decode(f) }},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "Baked SurfaceReflections")
			e := Exporter{Dir: dir, Format: tt.format}

			path, err := e.Export(testAtlas(t), "Café Floor")
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			if want := filepath.Join(dir, "Cafe_Floor"+tt.ext); path != want {
				t.Errorf("path = %q, want %q", path, want)
			}

			img := decodeFile(t, path, tt.decode)
			if img.Bounds() != image.Rect(0, 0, 4, 4) {
				t.Fatalf("bounds = %v, want 4x4", img.Bounds())
			}
			r, g, _, a := img.At(1, 0).RGBA()
			if r != 32768 || g != 0 || a != 0xffff {
				t.Errorf("pixel (1,0) = r%d g%d a%d, want half red 16-bit", r, g, a)
			}
			if r, _, _, _ := img.At(0, 0).RGBA(); r != 0 {
				t.Errorf("pixel (0,0) red = %d, want 0", r)
			}
		})
	}
}

func TestExportExposure(t *testing.T) {
	e := Exporter{Dir: t.TempDir(), Exposure: 2}
	path, err := e.Export(testAtlas(t), "bright")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	img := decodeFile(t, path, func(f *os.File) (image.Image, error) { return png.Decode(f) })
	if r, _, _, _ := img.At(1, 0).RGBA(); r != 0xffff {
		t.Errorf("exposed red = %d, want clamped to 65535", r)
	}
}

func TestExportToneMap(t *testing.T) {
	a := testAtlas(t)
	a.Set(2, 0, atlas.Pixel{R: 8, G: 1, A: 1})

	tests := []struct {
		name    string
		toneMap bool
		wantR   uint32 // pixel (2,0)
		wantG   uint32
	}{
		{"clamped", false, 0xffff, 0xffff},
		{"reinhard", true, 58253, 32768}, // 8/9 and 1/2 of 65535
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Exporter{Dir: t.TempDir(), ToneMap: tt.toneMap}
			path, err := e.Export(a, "sun")
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			img := decodeFile(t, path, func(f *os.File) (image.Image, error) { return png.Decode(f) })
			r, g, _, alpha := img.At(2, 0).RGBA()
			if r != tt.wantR || g != tt.wantG || alpha != 0xffff {
				t.Errorf("pixel (2,0) = r%d g%d a%d, want r%d g%d a65535", r, g, alpha, tt.wantR, tt.wantG)
			}
		})
	}
}

func TestExportPreview(t *testing.T) {
	dir := t.TempDir()
	e := Exporter{Dir: dir, PreviewSize: 2}
	if _, err := e.Export(testAtlas(t), "floor"); err != nil {
		t.Fatalf("Export: %v", err)
	}

	img := decodeFile(t, filepath.Join(dir, "floor_preview.png"), func(f *os.File) (image.Image, error) { return png.Decode(f) })
	if img.Bounds() != image.Rect(0, 0, 2, 2) {
		t.Errorf("preview bounds = %v, want 2x2", img.Bounds())
	}
}

func TestExportErrors(t *testing.T) {
	e := Exporter{Dir: t.TempDir()}
	if _, err := e.Export(nil, "x"); !errors.Is(err, ErrNoAtlas) {
		t.Errorf("nil atlas error = %v, want ErrNoAtlas", err)
	}

	released := testAtlas(t)
	released.Release()
	if _, err := e.Export(released, "x"); !errors.Is(err, ErrNoAtlas) {
		t.Errorf("released atlas error = %v, want ErrNoAtlas", err)
	}

	e.Format = "exr"
	if _, err := e.Export(testAtlas(t), "x"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("unknown format error = %v, want ErrUnknownFormat", err)
	}
}
