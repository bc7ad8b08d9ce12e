// Package bake drives the reflection atlas bake: it schedules per-sample
// capture and reprojection under a time budget and repairs unsampled slices
// by dilation.
package bake

import (
	"errors"
	"fmt"

	"github.com/Faultbox/surfacerefl/pkg/math"
)

// ErrSampleMismatch is returned when the sample attribute arrays differ in length.
var ErrSampleMismatch = errors.New("sample attribute arrays differ in length")

// Sample is one texel-aligned probe location.
type Sample struct {
	Position math.Vec3 // World-space point
	Normal   math.Vec3 // Unit normal, zero when no surface covers the texel
	Tangent  math.Vec4 // Unit tangent, bitangent sign in W
}

// Valid reports whether the sample lies on a surface.
func (s Sample) Valid() bool {
	return !s.Normal.IsZero()
}

// Samples is the per-bake sample buffer, ordered by linear sample index.
// It is read-only once built.
type Samples struct {
	items []Sample
	valid int
}

// NewSamples builds a sample buffer from parallel attribute arrays.
func NewSamples(positions, normals []math.Vec3, tangents []math.Vec4) (*Samples, error) {
	if len(positions) != len(normals) || len(positions) != len(tangents) {
		return nil, fmt.Errorf("%w: %d positions, %d normals, %d tangents",
			ErrSampleMismatch, len(positions), len(normals), len(tangents))
	}

	s := &Samples{items: make([]Sample, len(positions))}
	for i := range positions {
		s.items[i] = Sample{Position: positions[i], Normal: normals[i], Tangent: tangents[i]}
		if s.items[i].Valid() {
			s.valid++
		}
	}
	return s, nil
}

// Len returns the number of samples.
func (s *Samples) Len() int {
	return len(s.items)
}

// At returns sample i.
func (s *Samples) At(i int) Sample {
	return s.items[i]
}

// ValidCount returns the number of samples with a non-zero normal.
func (s *Samples) ValidCount() int {
	return s.valid
}
