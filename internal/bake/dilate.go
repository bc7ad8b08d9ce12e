package bake

import (
	"go.uber.org/zap"

	"github.com/Faultbox/surfacerefl/internal/atlas"
	"github.com/Faultbox/surfacerefl/internal/logger"
)

// DilationStats describes a dilation pass.
type DilationStats struct {
	Sweeps    int // Sweeps over the uncovered cells, including the final one without progress
	Copies    int // Slices filled from a neighbour
	Remaining int // Slices still uncovered afterwards
}

// neighbours lists the 8-neighbour offsets in scan order: top row first,
// left to right within a row.
var neighbours = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Dilate fills uncovered slices by copying the first covered 8-neighbour,
// sweeping until no slice can be filled. Cells filled during a sweep can
// seed later cells of the same sweep.
func Dilate(grid atlas.Grid, coverage *Coverage, a *atlas.Atlas) DilationStats {
	log := logger.Named("dilate")

	var stats DilationStats
	if !coverage.Any() {
		stats.Remaining = coverage.Len()
		log.Info("nothing to dilate from, no slice is covered", zap.Int("slices", stats.Remaining))
		return stats
	}

	pending := coverage.Uncovered()
	for len(pending) > 0 {
		stats.Sweeps++
		next := pending[:0]
		for _, i := range pending {
			if dilateOne(grid, coverage, a, i) {
				stats.Copies++
			} else {
				next = append(next, i)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	stats.Remaining = len(pending)

	log.Debug("dilation done",
		zap.Int("sweeps", stats.Sweeps),
		zap.Int("copies", stats.Copies))
	if stats.Remaining > 0 {
		log.Info("partial coverage after dilation",
			zap.Int("uncovered", stats.Remaining),
			zap.Int("slices", grid.SliceCount))
	}
	return stats
}

// dilateOne copies the first covered neighbour of slice i into it.
func dilateOne(grid atlas.Grid, coverage *Coverage, a *atlas.Atlas, i int) bool {
	x, y := grid.IndexToCoordinate(i)
	for _, off := range neighbours {
		nx, ny := x+off[0], y+off[1]
		if !grid.InBounds(nx, ny) {
			continue
		}
		j := grid.CoordinateToIndex(nx, ny)
		if !coverage.Covered(j) {
			continue
		}
		if err := a.CopySlice(grid.SliceRect(j), grid.SliceRect(i)); err != nil {
			logger.Warn("slice copy failed", zap.Int("from", j), zap.Int("to", i), zap.Error(err))
			return false
		}
		coverage.Mark(i)
		return true
	}
	return false
}
