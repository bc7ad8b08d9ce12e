package atlas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

// MaxAxisSize bounds the atlas allocation (16 bytes per texel).
const MaxAxisSize = 16384

// Atlas errors.
var (
	ErrTooLarge   = errors.New("atlas too large")
	ErrReleased   = errors.New("atlas released")
	ErrRectBounds = errors.New("rect outside atlas")
	ErrSliceSize  = errors.New("slice data size mismatch")
)

// Pixel is a linear HDR RGBA texel.
type Pixel struct {
	R, G, B, A float32
}

// Add returns p + o.
func (p Pixel) Add(o Pixel) Pixel {
	return Pixel{p.R + o.R, p.G + o.G, p.B + o.B, p.A + o.A}
}

// Scale returns p * s.
func (p Pixel) Scale(s float32) Pixel {
	return Pixel{p.R * s, p.G * s, p.B * s, p.A * s}
}

// Atlas is the packed destination image holding one slice per sample.
// Pixel (0, 0) is the first texel of slice 0; rows grow with slice y.
type Atlas struct {
	grid   Grid
	pixels []Pixel
}

// CheckSize reports whether an atlas for grid can be allocated.
func CheckSize(grid Grid) error {
	if grid.AxisSize <= 0 {
		return fmt.Errorf("%w: axis size %d", ErrTooLarge, grid.AxisSize)
	}
	if grid.AxisSize > MaxAxisSize {
		return fmt.Errorf("%w: axis size %d exceeds %d", ErrTooLarge, grid.AxisSize, MaxAxisSize)
	}
	return nil
}

// New allocates a zero-initialized atlas for the grid.
func New(grid Grid) (*Atlas, error) {
	if err := CheckSize(grid); err != nil {
		return nil, err
	}
	return &Atlas{
		grid:   grid,
		pixels: make([]Pixel, grid.AxisSize*grid.AxisSize),
	}, nil
}

// Grid returns the layout the atlas was allocated for.
func (a *Atlas) Grid() Grid {
	return a.grid
}

// Size returns the atlas width (and height) in pixels.
func (a *Atlas) Size() int {
	return a.grid.AxisSize
}

// Release drops the pixel storage. The atlas cannot be used afterwards.
func (a *Atlas) Release() {
	a.pixels = nil
}

// Released reports whether Release was called.
func (a *Atlas) Released() bool {
	return a.pixels == nil
}

// At returns the pixel at (x, y). Out of range reads return the zero pixel.
func (a *Atlas) At(x, y int) Pixel {
	if a.pixels == nil || x < 0 || y < 0 || x >= a.grid.AxisSize || y >= a.grid.AxisSize {
		return Pixel{}
	}
	return a.pixels[y*a.grid.AxisSize+x]
}

// Set writes the pixel at (x, y). Out of range writes are ignored.
func (a *Atlas) Set(x, y int, p Pixel) {
	if a.pixels == nil || x < 0 || y < 0 || x >= a.grid.AxisSize || y >= a.grid.AxisSize {
		return
	}
	a.pixels[y*a.grid.AxisSize+x] = p
}

func (a *Atlas) checkRect(r Rect) error {
	if a.pixels == nil {
		return ErrReleased
	}
	if r.Empty() || r.X < 0 || r.Y < 0 || r.X+r.Width > a.grid.AxisSize || r.Y+r.Height > a.grid.AxisSize {
		return fmt.Errorf("%w: %+v in %dx%d", ErrRectBounds, r, a.grid.AxisSize, a.grid.AxisSize)
	}
	return nil
}

// ReadSlice copies the pixels of r into a new row-major buffer.
func (a *Atlas) ReadSlice(r Rect) ([]Pixel, error) {
	if err := a.checkRect(r); err != nil {
		return nil, err
	}
	out := make([]Pixel, r.Width*r.Height)
	for row := 0; row < r.Height; row++ {
		src := (r.Y+row)*a.grid.AxisSize + r.X
		copy(out[row*r.Width:(row+1)*r.Width], a.pixels[src:src+r.Width])
	}
	return out, nil
}

// WriteSlice writes a row-major buffer of r.Width*r.Height pixels into r.
func (a *Atlas) WriteSlice(r Rect, data []Pixel) error {
	if err := a.checkRect(r); err != nil {
		return err
	}
	if len(data) != r.Width*r.Height {
		return fmt.Errorf("%w: expected %d, got %d", ErrSliceSize, r.Width*r.Height, len(data))
	}
	for row := 0; row < r.Height; row++ {
		dst := (r.Y+row)*a.grid.AxisSize + r.X
		copy(a.pixels[dst:dst+r.Width], data[row*r.Width:(row+1)*r.Width])
	}
	return nil
}

// CopySlice copies the pixels of src into dst, pixel for pixel.
// Source and destination live in the same image, so the copy goes through a temporary buffer.
func (a *Atlas) CopySlice(src, dst Rect) error {
	if src.Width != dst.Width || src.Height != dst.Height {
		return fmt.Errorf("%w: %dx%d into %dx%d", ErrSliceSize, src.Width, src.Height, dst.Width, dst.Height)
	}
	tmp, err := a.ReadSlice(src)
	if err != nil {
		return err
	}
	return a.WriteSlice(dst, tmp)
}

// Fill sets every pixel of r to p.
func (a *Atlas) Fill(r Rect, p Pixel) error {
	if err := a.checkRect(r); err != nil {
		return err
	}
	for row := r.Y; row < r.Y+r.Height; row++ {
		line := a.pixels[row*a.grid.AxisSize+r.X : row*a.grid.AxisSize+r.X+r.Width]
		for i := range line {
			line[i] = p
		}
	}
	return nil
}

// Equal reports whether both atlases have the same layout and bit-identical pixels.
func (a *Atlas) Equal(other *Atlas) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.grid != other.grid || len(a.pixels) != len(other.pixels) {
		return false
	}
	for i, p := range a.pixels {
		q := other.pixels[i]
		if math.Float32bits(p.R) != math.Float32bits(q.R) ||
			math.Float32bits(p.G) != math.Float32bits(q.G) ||
			math.Float32bits(p.B) != math.Float32bits(q.B) ||
			math.Float32bits(p.A) != math.Float32bits(q.A) {
			return false
		}
	}
	return true
}

// Reinhard maps [0, inf) radiance into [0, 1) with v / (1 + v).
func Reinhard(v float32) float32 {
	if v <= 0 {
		return 0
	}
	return v / (1 + v)
}

// ToNRGBA64 converts the atlas to a 16-bit image, scaling by exposure and
// clamping to [0, 1]. Radiance above 1 saturates. Image row 0 is atlas row 0.
func (a *Atlas) ToNRGBA64(exposure float32) (*image.NRGBA64, error) {
	return a.ToNRGBA64Mapped(exposure, nil)
}

// ToNRGBA64Mapped is ToNRGBA64 with curve applied to the exposed color
// channels before clamping. A nil curve clamps only. Alpha is never mapped.
func (a *Atlas) ToNRGBA64Mapped(exposure float32, curve func(float32) float32) (*image.NRGBA64, error) {
	if a.pixels == nil {
		return nil, ErrReleased
	}
	if curve == nil {
		curve = func(v float32) float32 { return v }
	}
	size := a.grid.AxisSize
	img := image.NewNRGBA64(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := a.pixels[y*size+x]
			img.SetNRGBA64(x, y, color.NRGBA64{
				R: quantize(curve(p.R * exposure)),
				G: quantize(curve(p.G * exposure)),
				B: quantize(curve(p.B * exposure)),
				A: quantize(p.A),
			})
		}
	}
	return img, nil
}

func quantize(v float32) uint16 {
	if v != v || v <= 0 { // NaN or negative
		return 0
	}
	if v >= 1 {
		return math.MaxUint16
	}
	return uint16(v*math.MaxUint16 + 0.5)
}
