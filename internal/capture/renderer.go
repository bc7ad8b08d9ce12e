package capture

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Faultbox/surfacerefl/internal/logger"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

// ErrClosed is returned when capturing through a closed session.
var ErrClosed = errors.New("capture session closed")

// Session is an open capture camera with its scratch cubemap.
type Session interface {
	// CaptureEnvironment renders the environment seen from position into the
	// scratch cubemap and returns it. The cubemap is reused by the next capture.
	CaptureEnvironment(position math.Vec3) (*Cubemap, error)

	// Close releases the camera and the scratch cubemap.
	Close() error
}

// Renderer renders cubemaps of an Environment on the CPU.
type Renderer struct {
	env Environment
}

// NewRenderer creates a renderer for env.
func NewRenderer(env Environment) *Renderer {
	return &Renderer{env: env}
}

// Open acquires a capture camera with a scratch cubemap of faceSize texels per axis.
func (r *Renderer) Open(faceSize int) (Session, error) {
	if r.env == nil {
		return nil, errors.New("renderer has no environment")
	}
	if faceSize < 1 {
		return nil, errors.New("capture face size must be positive")
	}
	logger.Debug("capture camera opened", zap.Int("face_size", faceSize))
	return &camera{env: r.env, target: NewCubemap(faceSize)}, nil
}

type camera struct {
	env    Environment
	target *Cubemap
}

func (c *camera) CaptureEnvironment(position math.Vec3) (*Cubemap, error) {
	if c.target == nil {
		return nil, ErrClosed
	}

	n := c.target.FaceSize
	inv := 1 / float32(n)
	for f := Face(0); f < faceCount; f++ {
		texels := c.target.Faces[f]
		for y := 0; y < n; y++ {
			v := (float32(y) + 0.5) * inv
			for x := 0; x < n; x++ {
				u := (float32(x) + 0.5) * inv
				dir := Direction(f, u, v).Normalize()
				texels[y*n+x] = c.env.Radiance(Ray{Origin: position, Direction: dir})
			}
		}
	}
	return c.target, nil
}

func (c *camera) Close() error {
	if c.target == nil {
		return ErrClosed
	}
	c.target = nil
	logger.Debug("capture camera closed")
	return nil
}
