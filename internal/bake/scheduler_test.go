package bake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Faultbox/surfacerefl/internal/atlas"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

func TestSchedulerTerminates(t *testing.T) {
	tests := []struct {
		name      string
		budget    time.Duration
		wantTicks int
	}{
		{"tiny budget", time.Nanosecond, 16},
		{"two per tick", 15 * time.Millisecond, 8},
		{"huge budget", time.Hour, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestScheduler(false, 10*time.Millisecond)
			if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); err != nil {
				t.Fatalf("Start: %v", err)
			}

			ticks := 0
			for {
				ticks++
				if ticks > 16 {
					t.Fatal("scheduler did not finish within 16 ticks")
				}
				if !s.TickWithin(tt.budget) {
					break
				}
			}
			if ticks != tt.wantTicks {
				t.Errorf("ticks = %d, want %d", ticks, tt.wantTicks)
			}
			if s.State() != StateFinishing {
				t.Errorf("state = %v, want finishing", s.State())
			}

			report, err := s.Finish()
			if err != nil {
				t.Fatalf("Finish: %v", err)
			}
			if report.Processed != 16 || report.Covered != 16 {
				t.Errorf("report = %+v, want 16 processed and covered", report)
			}
			if s.State() != StateIdle {
				t.Errorf("state after Finish = %v, want idle", s.State())
			}
		})
	}
}

func TestSchedulerFaceSize(t *testing.T) {
	s, r, _ := newTestScheduler(false, time.Millisecond)
	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Slice resolution 2 supersampled by 4.
	if r.faceSize != 8 {
		t.Errorf("capture face size = %d, want 8", r.faceSize)
	}
}

func TestSchedulerSkipsZeroNormals(t *testing.T) {
	s, r, p := newTestScheduler(false, time.Millisecond)
	odd := func(i int) bool { return i%2 == 1 }
	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, odd)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for s.TickWithin(time.Hour) {
	}
	report, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	if report.Skipped != 8 || report.Covered != 8 {
		t.Errorf("skipped=%d covered=%d, want 8 and 8", report.Skipped, report.Covered)
	}
	if len(r.session.captured) != 8 || p.calls != 8 {
		t.Errorf("captures=%d blits=%d, want 8 each", len(r.session.captured), p.calls)
	}
	for i := range 16 {
		if got := s.Coverage().Covered(i); got != odd(i) {
			t.Errorf("coverage[%d] = %v, want %v", i, got, odd(i))
		}
	}

	// Skipped slices keep the zeroed atlas contents.
	rect := s.Grid().SliceRect(0)
	if px := s.Atlas().At(rect.X, rect.Y); px != (atlas.Pixel{}) {
		t.Errorf("skipped slice pixel = %+v, want zero", px)
	}
	rect = s.Grid().SliceRect(3)
	if px := s.Atlas().At(rect.X, rect.Y); px.R != 3 {
		t.Errorf("sampled slice pixel = %+v, want R=3", px)
	}
}

func TestCoverageMonotonic(t *testing.T) {
	s, _, _ := newTestScheduler(true, 10*time.Millisecond)
	valid := func(i int) bool { return i%3 == 0 }
	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, valid)}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	prev := make([]bool, 16)
	check := func(stage string) {
		for i := range prev {
			now := s.Coverage().Covered(i)
			if prev[i] && !now {
				t.Fatalf("%s: coverage[%d] reverted to false", stage, i)
			}
			prev[i] = now
		}
	}

	for s.TickWithin(time.Nanosecond) {
		check("tick")
	}
	check("last tick")
	if _, err := s.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	check("finish")
}

func TestSchedulerCancel(t *testing.T) {
	tests := []struct {
		name        string
		dilation    bool
		wantCovered int
	}{
		{"without dilation", false, 1},
		{"with dilation", true, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, r, _ := newTestScheduler(tt.dilation, 10*time.Millisecond)
			if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); err != nil {
				t.Fatalf("Start: %v", err)
			}

			if !s.TickWithin(time.Nanosecond) {
				t.Fatal("first tick reported no more work")
			}
			s.Cancel()
			if s.TickWithin(time.Hour) {
				t.Fatal("tick after Cancel reported more work")
			}
			if done, total := s.Progress(); done != 1 || total != 16 {
				t.Errorf("progress = %d/%d, want 1/16", done, total)
			}

			report, err := s.Finish()
			if err != nil {
				t.Fatalf("Finish: %v", err)
			}
			if !report.Cancelled {
				t.Error("report not marked cancelled")
			}
			if report.Processed != 1 {
				t.Errorf("processed = %d, want 1", report.Processed)
			}
			if report.Covered != tt.wantCovered {
				t.Errorf("covered = %d, want %d", report.Covered, tt.wantCovered)
			}
			if !r.session.closed {
				t.Error("capture session not closed after Finish")
			}
		})
	}
}

func TestSchedulerStartWhileRunning(t *testing.T) {
	s, r, _ := newTestScheduler(false, time.Millisecond)
	ex := &fakeExtractor{samples: makeSamples(16, nil)}
	if err := s.Start(testLevels, ex); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(testLevels, ex); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Start while baking error = %v, want ErrAlreadyRunning", err)
	}

	for s.TickWithin(time.Hour) {
	}
	if err := s.Start(testLevels, ex); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Start while finishing error = %v, want ErrAlreadyRunning", err)
	}
	if r.opened != 1 || ex.calls != 1 {
		t.Errorf("opened=%d extracted=%d, want 1 and 1", r.opened, ex.calls)
	}
}

func TestSchedulerStartErrors(t *testing.T) {
	extractErr := errors.New("mesh has no lightmap UVs")

	tests := []struct {
		name    string
		levels  atlas.Levels
		ex      Extractor
		openErr error
		wantErr error
	}{
		{"slice level too low", atlas.Levels{SliceCountLevel: 0, ResolutionLevel: 2}, &fakeExtractor{samples: makeSamples(16, nil)}, nil, atlas.ErrLevelOutOfRange},
		{"resolution level too high", atlas.Levels{SliceCountLevel: 2, ResolutionLevel: 11}, &fakeExtractor{samples: makeSamples(16, nil)}, nil, atlas.ErrLevelOutOfRange},
		{"no extractor", testLevels, nil, nil, ErrMissingInput},
		{"extraction fails", testLevels, &fakeExtractor{err: extractErr}, nil, extractErr},
		{"extraction cause kept", testLevels, &fakeExtractor{err: extractErr}, nil, ErrMissingInput},
		{"wrong sample count", testLevels, &fakeExtractor{samples: makeSamples(4, nil)}, nil, ErrSampleMismatch},
		{"no samples", testLevels, &fakeExtractor{}, nil, ErrSampleMismatch},
		{"renderer fails", testLevels, &fakeExtractor{samples: makeSamples(16, nil)}, errors.New("no camera"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, r, _ := newTestScheduler(false, time.Millisecond)
			r.openErr = tt.openErr

			err := s.Start(tt.levels, tt.ex)
			if err == nil {
				t.Fatal("Start succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.openErr != nil && !errors.Is(err, tt.openErr) {
				t.Errorf("error = %v, want wrapped %v", err, tt.openErr)
			}
			if s.State() != StateIdle {
				t.Errorf("state = %v, want idle", s.State())
			}
			if s.Atlas() != nil {
				t.Error("atlas allocated by a failed Start")
			}
			if s.Tick() {
				t.Error("Tick after failed Start reported work")
			}
		})
	}
}

func TestSchedulerNoCollaborators(t *testing.T) {
	s := NewScheduler(Options{})
	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); !errors.Is(err, ErrNoCollaborator) {
		t.Errorf("error = %v, want ErrNoCollaborator", err)
	}
}

func TestSchedulerInvalidLevelsKeepPreviousBake(t *testing.T) {
	s, _, _ := newTestScheduler(false, time.Millisecond)
	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for s.TickWithin(time.Hour) {
	}
	if _, err := s.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	previous := s.Atlas()

	tests := []struct {
		name    string
		levels  atlas.Levels
		wantErr error
	}{
		{"level out of range", atlas.Levels{SliceCountLevel: 12, ResolutionLevel: 1}, atlas.ErrLevelOutOfRange},
		{"atlas too large", atlas.Levels{SliceCountLevel: 7, ResolutionLevel: 8}, atlas.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &fakeExtractor{samples: makeSamples(16, nil)}
			if err := s.Start(tt.levels, ex); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start error = %v, want %v", err, tt.wantErr)
			}
			if ex.calls != 0 {
				t.Errorf("extractor called %d times, want 0", ex.calls)
			}
			if s.State() != StateIdle {
				t.Errorf("state = %v, want idle", s.State())
			}
			if s.Atlas() != previous || previous.Released() {
				t.Error("invalid Start touched the previous atlas")
			}
			if s.Coverage().Count() != 16 {
				t.Errorf("coverage count = %d, want the previous 16", s.Coverage().Count())
			}
		})
	}
}

func TestSchedulerSampleFailures(t *testing.T) {
	s, r, p := newTestScheduler(false, time.Millisecond)
	r.failAt = map[math.Vec3]bool{{X: 5, Y: 1}: true}
	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for s.TickWithin(time.Hour) {
	}
	report, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if report.Failed != 1 || report.Covered != 15 {
		t.Errorf("failed=%d covered=%d, want 1 and 15", report.Failed, report.Covered)
	}
	if s.Coverage().Covered(5) {
		t.Error("failed sample marked covered")
	}
	if p.calls != 15 {
		t.Errorf("blits = %d, want 15", p.calls)
	}
}

func TestSchedulerBlitFailure(t *testing.T) {
	s, _, p := newTestScheduler(true, time.Millisecond)
	p.err = errors.New("rect outside atlas")
	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for s.TickWithin(time.Hour) {
	}
	report, err := s.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if report.Failed != 16 || report.Covered != 0 {
		t.Errorf("failed=%d covered=%d, want 16 and 0", report.Failed, report.Covered)
	}
	if report.Dilation.Copies != 0 || report.Dilation.Sweeps != 0 {
		t.Errorf("dilation = %+v, want no work without coverage", report.Dilation)
	}
}

func TestSchedulerFinishErrors(t *testing.T) {
	s, r, _ := newTestScheduler(false, time.Millisecond)
	if _, err := s.Finish(); !errors.Is(err, ErrNotFinishing) {
		t.Errorf("Finish while idle error = %v, want ErrNotFinishing", err)
	}

	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Finish(); !errors.Is(err, ErrNotFinishing) {
		t.Errorf("Finish while baking error = %v, want ErrNotFinishing", err)
	}

	closeErr := errors.New("camera stuck")
	r.closeErr = closeErr
	for s.TickWithin(time.Hour) {
	}
	report, err := s.Finish()
	if !errors.Is(err, closeErr) {
		t.Errorf("Finish error = %v, want wrapped close error", err)
	}
	if report.Covered != 16 || s.State() != StateIdle {
		t.Errorf("covered=%d state=%v, want 16 and idle despite close error", report.Covered, s.State())
	}
}

func TestSchedulerRebakeDeterministic(t *testing.T) {
	s, _, _ := newTestScheduler(true, time.Millisecond)
	samples := makeSamples(16, func(i int) bool { return i%5 != 0 })

	bake := func() *atlas.Atlas {
		t.Helper()
		if err := s.Start(testLevels, &fakeExtractor{samples: samples}); err != nil {
			t.Fatalf("Start: %v", err)
		}
		for s.TickWithin(time.Nanosecond) {
		}
		if _, err := s.Finish(); err != nil {
			t.Fatalf("Finish: %v", err)
		}
		return s.Atlas()
	}

	first := bake()
	snapshot, err := atlas.New(s.Grid())
	if err != nil {
		t.Fatalf("atlas.New: %v", err)
	}
	full := atlas.Rect{Width: first.Size(), Height: first.Size()}
	pixels, err := first.ReadSlice(full)
	if err != nil {
		t.Fatalf("ReadSlice: %v", err)
	}
	if err := snapshot.WriteSlice(full, pixels); err != nil {
		t.Fatalf("WriteSlice: %v", err)
	}

	second := bake()
	if !first.Released() {
		t.Error("previous atlas not released by the new bake")
	}
	if !second.Equal(snapshot) {
		t.Error("re-baking identical input produced a different atlas")
	}
}

func TestSchedulerClose(t *testing.T) {
	s, r, _ := newTestScheduler(false, time.Millisecond)
	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	a := s.Atlas()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !r.session.closed || !a.Released() || s.Atlas() != nil {
		t.Error("Close did not tear down the session and atlas")
	}
	if s.State() != StateIdle {
		t.Errorf("state = %v, want idle", s.State())
	}
}

func TestRun(t *testing.T) {
	s, _, _ := newTestScheduler(true, 10*time.Millisecond)
	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var calls, lastDone int
	report, err := Run(context.Background(), s, func(done, total int) {
		calls++
		if done < lastDone {
			t.Errorf("progress went backwards: %d after %d", done, lastDone)
		}
		lastDone = done
		if total != 16 {
			t.Errorf("total = %d, want 16", total)
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Cancelled || report.Covered != 16 {
		t.Errorf("report = %+v, want complete bake", report)
	}
	if lastDone != 16 || calls == 0 {
		t.Errorf("lastDone=%d calls=%d", lastDone, calls)
	}
	if s.Fraction() != 1 {
		t.Errorf("fraction = %v, want 1", s.Fraction())
	}
}

func TestRunCancelledContext(t *testing.T) {
	s, r, _ := newTestScheduler(false, time.Millisecond)
	if err := s.Start(testLevels, &fakeExtractor{samples: makeSamples(16, nil)}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := Run(ctx, s, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Cancelled || report.Processed != 0 {
		t.Errorf("report = %+v, want cancelled before any sample", report)
	}
	if len(r.session.captured) != 0 {
		t.Errorf("captured %d samples after cancellation", len(r.session.captured))
	}
}

func TestRunNotStarted(t *testing.T) {
	s, _, _ := newTestScheduler(false, time.Millisecond)
	if _, err := Run(context.Background(), s, nil); !errors.Is(err, ErrNotFinishing) {
		t.Errorf("Run on idle scheduler error = %v, want ErrNotFinishing", err)
	}
}
