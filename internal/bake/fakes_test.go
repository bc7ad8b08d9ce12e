package bake

import (
	"errors"
	"time"

	"github.com/Faultbox/surfacerefl/internal/atlas"
	"github.com/Faultbox/surfacerefl/internal/capture"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

var testLevels = atlas.Levels{SliceCountLevel: 2, ResolutionLevel: 1}

// fakeClock advances by step on every reading.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

type fakeExtractor struct {
	samples *Samples
	err     error
	calls   int
}

func (e *fakeExtractor) Extract(sampleCount int) (*Samples, error) {
	e.calls++
	return e.samples, e.err
}

type fakeRenderer struct {
	openErr  error
	failAt   map[math.Vec3]bool
	closeErr error

	opened   int
	faceSize int
	session  *fakeSession
}

func (r *fakeRenderer) Open(faceSize int) (capture.Session, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	r.opened++
	r.faceSize = faceSize
	r.session = &fakeSession{renderer: r, cube: capture.NewCubemap(1)}
	return r.session, nil
}

type fakeSession struct {
	renderer *fakeRenderer
	cube     *capture.Cubemap
	captured []math.Vec3
	closed   bool
}

func (s *fakeSession) CaptureEnvironment(p math.Vec3) (*capture.Cubemap, error) {
	if s.renderer.failAt[p] {
		return nil, errors.New("capture exploded")
	}
	s.captured = append(s.captured, p)
	s.cube.Faces[0][0] = atlas.Pixel{R: p.X, G: p.Y, B: p.Z, A: 1}
	return s.cube, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return s.renderer.closeErr
}

// fakeReprojector fills the slice with the first texel of the capture.
type fakeReprojector struct {
	calls int
	err   error
}

func (r *fakeReprojector) Blit(src *capture.Cubemap, basis math.Mat4, dst *atlas.Atlas, rect atlas.Rect) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	return dst.Fill(rect, src.Faces[0][0])
}

// makeSamples builds n samples; valid decides which ones lie on a surface.
func makeSamples(n int, valid func(i int) bool) *Samples {
	positions := make([]math.Vec3, n)
	normals := make([]math.Vec3, n)
	tangents := make([]math.Vec4, n)
	for i := range n {
		positions[i] = math.Vec3{X: float32(i), Y: 1}
		tangents[i] = math.Vec4{1, 0, 0, 1}
		if valid == nil || valid(i) {
			normals[i] = math.Vec3{Z: 1}
		}
	}
	s, err := NewSamples(positions, normals, tangents)
	if err != nil {
		panic(err)
	}
	return s
}

func newTestScheduler(dilation bool, step time.Duration) (*Scheduler, *fakeRenderer, *fakeReprojector) {
	r := &fakeRenderer{}
	p := &fakeReprojector{}
	clock := &fakeClock{step: step}
	s := NewScheduler(Options{
		Renderer:    r,
		Reprojector: p,
		TickBudget:  30 * time.Millisecond,
		Supersample: 4,
		Dilation:    dilation,
		Now:         clock.Now,
	})
	return s, r, p
}
