package bake

import (
	"github.com/Faultbox/surfacerefl/internal/atlas"
	"github.com/Faultbox/surfacerefl/internal/capture"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

// Extractor produces one sample per atlas cell, in row-major order with y outer.
// Cells with no surface carry a zero normal.
type Extractor interface {
	Extract(sampleCount int) (*Samples, error)
}

// CaptureRenderer acquires a capture camera with a scratch cubemap of
// faceSize texels per axis.
type CaptureRenderer interface {
	Open(faceSize int) (capture.Session, error)
}

// Reprojector writes the tangent-space hemisphere of src into rect of dst.
// basis columns are the tangent, bitangent and normal.
type Reprojector interface {
	Blit(src *capture.Cubemap, basis math.Mat4, dst *atlas.Atlas, rect atlas.Rect) error
}
