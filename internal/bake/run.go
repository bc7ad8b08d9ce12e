package bake

import (
	"context"
)

// Run drives a started scheduler to completion from the calling goroutine.
// onProgress, when set, is called after every tick. When ctx is done the bake
// is cancelled and finishes with whatever was completed.
func Run(ctx context.Context, s *Scheduler, onProgress func(done, total int)) (Report, error) {
	for {
		if ctx.Err() != nil {
			s.Cancel()
		}
		more := s.Tick()
		if onProgress != nil {
			onProgress(s.Progress())
		}
		if !more {
			break
		}
	}
	return s.Finish()
}
