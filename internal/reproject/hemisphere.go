package reproject

import (
	"errors"
	"fmt"

	"github.com/Faultbox/surfacerefl/internal/atlas"
	"github.com/Faultbox/surfacerefl/internal/capture"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

var (
	ErrNoSource      = errors.New("no capture to reproject")
	ErrNoDestination = errors.New("no atlas to reproject into")
)

// Hemisphere reprojects a cubemap into a slice as a hemi-octahedral map of
// the hemisphere around the basis normal. Each slice pixel averages
// Supersample x Supersample directions.
type Hemisphere struct {
	Supersample int
}

// Blit writes the reprojection of src into rect of dst.
// basis columns are the tangent, bitangent and normal in world space.
func (h Hemisphere) Blit(src *capture.Cubemap, basis math.Mat4, dst *atlas.Atlas, rect atlas.Rect) error {
	if src == nil {
		return ErrNoSource
	}
	if dst == nil || dst.Released() {
		return ErrNoDestination
	}
	if rect.Empty() || rect.X < 0 || rect.Y < 0 || rect.X+rect.Width > dst.Size() || rect.Y+rect.Height > dst.Size() {
		return fmt.Errorf("%w: %+v", atlas.ErrRectBounds, rect)
	}

	s := max(h.Supersample, 1)
	weight := 1 / float32(s*s)
	w := float32(rect.Width)
	ht := float32(rect.Height)

	out := make([]atlas.Pixel, rect.Width*rect.Height)
	for py := 0; py < rect.Height; py++ {
		for px := 0; px < rect.Width; px++ {
			var sum atlas.Pixel
			for sy := 0; sy < s; sy++ {
				for sx := 0; sx < s; sx++ {
					uv := math.Vec2{
						X: (float32(px) + (float32(sx)+0.5)/float32(s)) / w,
						Y: (float32(py) + (float32(sy)+0.5)/float32(s)) / ht,
					}
					dir := basis.TransformDirection(DecodeDirection(uv))
					sum = sum.Add(src.Sample(dir))
				}
			}
			p := sum.Scale(weight)
			p.A = 1
			out[py*rect.Width+px] = p
		}
	}
	return dst.WriteSlice(rect, out)
}
