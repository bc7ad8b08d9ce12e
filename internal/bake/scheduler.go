package bake

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/surfacerefl/internal/atlas"
	"github.com/Faultbox/surfacerefl/internal/capture"
	"github.com/Faultbox/surfacerefl/internal/logger"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

// Defaults applied by NewScheduler for zero option values.
const (
	DefaultTickBudget  = 30 * time.Millisecond
	DefaultSupersample = 8
)

var (
	// ErrAlreadyRunning is returned by Start while a bake is in progress.
	ErrAlreadyRunning = errors.New("bake already running")
	// ErrMissingInput is returned when no samples can be produced for the bake.
	ErrMissingInput = errors.New("missing bake input")
	// ErrNotFinishing is returned by Finish outside the finishing phase.
	ErrNotFinishing = errors.New("bake is not finishing")
	// ErrNoCollaborator is returned by Start when the renderer or reprojector is unset.
	ErrNoCollaborator = errors.New("capture renderer and reprojector are required")
)

// Options configures a Scheduler.
type Options struct {
	Renderer    CaptureRenderer
	Reprojector Reprojector

	// TickBudget bounds the wall-clock time spent per Tick.
	TickBudget time.Duration
	// Supersample multiplies the slice resolution to get the capture face size.
	Supersample int
	// Dilation enables the seam dilation pass when the bake finishes.
	Dilation bool
	// Now is the clock used for tick budgeting. Defaults to time.Now.
	Now func() time.Time
}

// Report summarizes a finished bake.
type Report struct {
	Grid      atlas.Grid
	Processed int // Samples visited by the work loop
	Covered   int // Slices covered after dilation
	Skipped   int // Samples with a zero normal
	Failed    int // Samples whose capture or blit failed
	Cancelled bool
	Dilation  DilationStats
	Elapsed   time.Duration
}

// Scheduler drives the per-sample capture and reprojection loop as a
// resumable state machine. It is not safe for concurrent use; a single host
// loop drives it by calling Tick until it returns false.
type Scheduler struct {
	opts Options
	log  *zap.Logger

	state     State
	grid      atlas.Grid
	atlas     *atlas.Atlas
	samples   *Samples
	coverage  *Coverage
	session   capture.Session
	workIndex int
	cancelled bool

	report  Report
	started time.Time
}

// NewScheduler creates an idle scheduler.
func NewScheduler(opts Options) *Scheduler {
	if opts.TickBudget <= 0 {
		opts.TickBudget = DefaultTickBudget
	}
	if opts.Supersample < 1 {
		opts.Supersample = DefaultSupersample
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{
		opts:     opts,
		log:      logger.Named("bake"),
		coverage: NewCoverage(0),
	}
}

// Start begins a bake at the given grid levels. Configuration and input
// errors are reported before the atlas is allocated.
func (s *Scheduler) Start(levels atlas.Levels, ex Extractor) error {
	if s.state != StateIdle {
		return fmt.Errorf("%w: state %s", ErrAlreadyRunning, s.state)
	}
	if s.opts.Renderer == nil || s.opts.Reprojector == nil {
		return ErrNoCollaborator
	}

	grid, err := atlas.NewGrid(levels)
	if err != nil {
		return fmt.Errorf("invalid bake levels: %w", err)
	}
	if err := atlas.CheckSize(grid); err != nil {
		return fmt.Errorf("invalid bake levels: %w", err)
	}
	if ex == nil {
		return fmt.Errorf("%w: no probe extractor", ErrMissingInput)
	}

	samples, err := ex.Extract(grid.SliceCount)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMissingInput, err)
	}
	if samples == nil || samples.Len() != grid.SliceCount {
		got := 0
		if samples != nil {
			got = samples.Len()
		}
		return fmt.Errorf("%w: extractor returned %d samples, want %d", ErrSampleMismatch, got, grid.SliceCount)
	}

	if grid.ExceedsImportLimit() {
		s.log.Warn("atlas exceeds common texture import limit",
			zap.Int("axis_size", grid.AxisSize),
			zap.Int("limit", atlas.ImportLimit))
	}

	if s.atlas != nil {
		s.atlas.Release()
		s.atlas = nil
	}
	a, err := atlas.New(grid)
	if err != nil {
		return fmt.Errorf("allocating atlas: %w", err)
	}

	faceSize := grid.SliceResolution * s.opts.Supersample
	session, err := s.opts.Renderer.Open(faceSize)
	if err != nil {
		a.Release()
		return fmt.Errorf("opening capture: %w", err)
	}

	s.grid = grid
	s.atlas = a
	s.samples = samples
	if s.coverage.Len() == grid.SliceCount {
		s.coverage.Reset()
	} else {
		s.coverage = NewCoverage(grid.SliceCount)
	}
	s.session = session
	s.workIndex = 0
	s.cancelled = false
	s.report = Report{Grid: grid}
	s.started = s.opts.Now()
	s.state = StateBaking

	s.log.Info("bake started",
		zap.Int("slices", grid.SliceCount),
		zap.Int("slice_resolution", grid.SliceResolution),
		zap.Int("axis_size", grid.AxisSize),
		zap.Int("valid_samples", samples.ValidCount()),
		zap.Int("face_size", faceSize))
	return nil
}

// Tick processes samples within the configured budget.
// It returns whether more work remains.
func (s *Scheduler) Tick() bool {
	return s.TickWithin(s.opts.TickBudget)
}

// TickWithin processes samples until budget elapses or all samples are done.
// At least one sample is processed per call. Once it returns false the
// scheduler is finishing.
func (s *Scheduler) TickWithin(budget time.Duration) bool {
	if s.state != StateBaking {
		return false
	}
	if s.cancelled {
		s.state = StateFinishing
		s.log.Info("bake cancelled", zap.Int("processed", s.workIndex), zap.Int("total", s.grid.SliceCount))
		return false
	}

	deadline := s.opts.Now().Add(budget)
	for s.workIndex < s.grid.SliceCount {
		s.process(s.workIndex)
		s.workIndex++
		if !s.opts.Now().Before(deadline) {
			break
		}
	}

	if s.workIndex < s.grid.SliceCount {
		return true
	}
	s.state = StateFinishing
	return false
}

// process captures and reprojects sample i into its slice.
func (s *Scheduler) process(i int) {
	s.report.Processed++

	sample := s.samples.At(i)
	if !sample.Valid() {
		s.report.Skipped++
		return
	}

	cube, err := s.session.CaptureEnvironment(sample.Position)
	if err != nil {
		s.report.Failed++
		s.log.Warn("capture failed", zap.Int("index", i), zap.Error(err))
		return
	}

	basis := math.TangentBasis(sample.Normal, sample.Tangent)
	if err := s.opts.Reprojector.Blit(cube, basis, s.atlas, s.grid.SliceRect(i)); err != nil {
		s.report.Failed++
		s.log.Warn("reprojection failed", zap.Int("index", i), zap.Error(err))
		return
	}
	s.coverage.Mark(i)
}

// Cancel requests the bake to stop. The next Tick moves to finishing without
// processing further samples.
func (s *Scheduler) Cancel() {
	if s.state == StateBaking {
		s.cancelled = true
	}
}

// Finish runs dilation when enabled, releases the capture session and
// returns to idle. The atlas stays available until the next Start or Close.
func (s *Scheduler) Finish() (Report, error) {
	if s.state != StateFinishing {
		return Report{}, fmt.Errorf("%w: state %s", ErrNotFinishing, s.state)
	}

	if s.opts.Dilation {
		s.report.Dilation = Dilate(s.grid, s.coverage, s.atlas)
	}

	err := s.closeSession()

	s.report.Covered = s.coverage.Count()
	s.report.Cancelled = s.cancelled
	s.report.Elapsed = s.opts.Now().Sub(s.started)
	s.state = StateIdle

	s.log.Info("bake finished",
		zap.Int("covered", s.report.Covered),
		zap.Int("total", s.grid.SliceCount),
		zap.Int("skipped", s.report.Skipped),
		zap.Int("failed", s.report.Failed),
		zap.Bool("cancelled", s.report.Cancelled),
		zap.Duration("elapsed", s.report.Elapsed))
	return s.report, err
}

// Close tears down any active bake and releases the atlas.
func (s *Scheduler) Close() error {
	err := s.closeSession()
	if s.atlas != nil {
		s.atlas.Release()
		s.atlas = nil
	}
	s.samples = nil
	s.state = StateIdle
	return err
}

func (s *Scheduler) closeSession() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	if err != nil {
		return fmt.Errorf("closing capture: %w", err)
	}
	return nil
}

// Progress returns the number of visited samples and the total.
func (s *Scheduler) Progress() (done, total int) {
	return s.workIndex, s.grid.SliceCount
}

// Fraction returns progress in [0, 1].
func (s *Scheduler) Fraction() float64 {
	if s.grid.SliceCount == 0 {
		return 0
	}
	return float64(s.workIndex) / float64(s.grid.SliceCount)
}

// State returns the current phase.
func (s *Scheduler) State() State {
	return s.state
}

// Grid returns the grid of the current or last bake.
func (s *Scheduler) Grid() atlas.Grid {
	return s.grid
}

// Atlas returns the atlas of the current or last bake, nil before the first bake.
func (s *Scheduler) Atlas() *atlas.Atlas {
	return s.atlas
}

// Coverage returns the coverage tracker of the current or last bake.
func (s *Scheduler) Coverage() *Coverage {
	return s.coverage
}

// Samples returns the sample buffer of the current or last bake.
func (s *Scheduler) Samples() *Samples {
	return s.samples
}
