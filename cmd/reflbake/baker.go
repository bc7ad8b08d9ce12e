package main

import (
	"context"
	"fmt"
	gomath "math"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/surfacerefl/internal/bake"
	"github.com/Faultbox/surfacerefl/internal/capture"
	"github.com/Faultbox/surfacerefl/internal/config"
	"github.com/Faultbox/surfacerefl/internal/export"
	"github.com/Faultbox/surfacerefl/internal/logger"
	"github.com/Faultbox/surfacerefl/internal/material"
	"github.com/Faultbox/surfacerefl/internal/probe"
	"github.com/Faultbox/surfacerefl/internal/reproject"
	"github.com/Faultbox/surfacerefl/pkg/formats"
	"github.com/Faultbox/surfacerefl/pkg/math"
)

// progressStep is the fraction of work between info-level progress lines.
const progressStep = 0.05

// baker wires the bake pipeline from configuration.
type baker struct {
	cfg       *config.Config
	name      string
	extractor *probe.Extractor
	scheduler *bake.Scheduler
	exporter  export.Exporter
	binding   material.Binding
}

// result describes a completed bake.
type result struct {
	Report    bake.Report
	AtlasPath string
}

func newBaker(cfg *config.Config) (*baker, error) {
	return newBakerWith(cfg, capture.NewRenderer(sceneFromConfig(cfg.Scene)))
}

func newBakerWith(cfg *config.Config, renderer bake.CaptureRenderer) (*baker, error) {
	obj, err := formats.ParseOBJFile(cfg.Input.Mesh)
	if err != nil {
		return nil, fmt.Errorf("loading mesh: %w", err)
	}
	mesh, err := probe.FromOBJ(obj)
	if err != nil {
		return nil, fmt.Errorf("preparing mesh %s: %w", cfg.Input.Mesh, err)
	}
	extractor, err := probe.NewExtractor(mesh, localToWorld(cfg.Input))
	if err != nil {
		return nil, fmt.Errorf("preparing mesh %s: %w", cfg.Input.Mesh, err)
	}

	logger.Info("mesh loaded",
		zap.String("path", cfg.Input.Mesh),
		zap.String("name", mesh.Name),
		zap.Int("triangles", len(mesh.Triangles)))

	scheduler := bake.NewScheduler(bake.Options{
		Renderer:    renderer,
		Reprojector: reproject.Hemisphere{Supersample: cfg.Bake.Supersample},
		TickBudget:  cfg.Bake.TickBudget,
		Supersample: cfg.Bake.Supersample,
		Dilation:    cfg.Bake.Dilation,
	})

	return &baker{
		cfg:       cfg,
		name:      atlasName(cfg, mesh.Name),
		extractor: extractor,
		scheduler: scheduler,
		exporter: export.Exporter{
			Dir:         cfg.Export.Dir,
			Format:      cfg.Export.Format,
			Exposure:    cfg.Export.Exposure,
			PreviewSize: cfg.Export.PreviewSize,
			ToneMap:     cfg.Export.ToneMap,
		},
		binding: material.Binding{Path: cfg.Material.Path},
	}, nil
}

// Run bakes, exports and publishes the atlas. A cancelled bake still exports
// whatever was completed. A capture teardown error is returned after the atlas
// has been written.
func (b *baker) Run(ctx context.Context) (result, error) {
	if err := b.scheduler.Start(b.cfg.Bake.Levels(), b.extractor); err != nil {
		return result{}, err
	}
	if b.scheduler.Samples().ValidCount() == 0 {
		logger.Warn("mesh covers no atlas texels, check the lightmap UVs",
			zap.String("mesh", b.cfg.Input.Mesh))
	}

	lastInfo := 0.0
	report, finishErr := bake.Run(ctx, b.scheduler, func(done, total int) {
		logger.Debug("bake progress", zap.Int("done", done), zap.Int("total", total))
		if f := b.scheduler.Fraction(); f-lastInfo >= progressStep || done == total {
			lastInfo = f
			logger.Info(fmt.Sprintf("baking %3.0f%%", f*100), zap.Int("done", done), zap.Int("total", total))
		}
	})
	res := result{Report: report}
	if finishErr != nil {
		// Capture teardown errors leave the atlas intact.
		logger.Warn("bake finished with errors", zap.Error(finishErr))
	}

	path, err := b.exporter.Export(b.scheduler.Atlas(), b.name)
	if err != nil {
		return res, multierr.Append(finishErr, fmt.Errorf("exporting atlas: %w", err))
	}
	res.AtlasPath = path

	if err := b.binding.Publish(path, report.Grid); err != nil {
		return res, multierr.Append(finishErr, fmt.Errorf("publishing atlas: %w", err))
	}
	return res, finishErr
}

// Close releases the atlas.
func (b *baker) Close() error {
	return b.scheduler.Close()
}

// atlasName picks the export name: configured, then mesh object, then file name.
func atlasName(cfg *config.Config, meshName string) string {
	if cfg.Export.Name != "" {
		return cfg.Export.Name
	}
	if meshName != "" {
		return meshName
	}
	base := filepath.Base(cfg.Input.Mesh)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// localToWorld builds translate * rotateZ * rotateY * rotateX * scale.
func localToWorld(in config.InputConfig) math.Mat4 {
	rad := func(deg float32) float32 { return deg * gomath.Pi / 180 }
	return math.Translate(in.Translate[0], in.Translate[1], in.Translate[2]).
		Mul(math.RotateZ(rad(in.RotateDeg[2]))).
		Mul(math.RotateY(rad(in.RotateDeg[1]))).
		Mul(math.RotateX(rad(in.RotateDeg[0]))).
		Mul(math.Scale(in.Scale[0], in.Scale[1], in.Scale[2]))
}

func vec3(v [3]float32) math.Vec3 {
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

func sceneFromConfig(sc config.SceneConfig) *capture.Scene {
	s := &capture.Scene{
		Zenith:   vec3(sc.Zenith),
		Horizon:  vec3(sc.Horizon),
		Ground:   vec3(sc.Ground),
		GroundY:  sc.GroundY,
		Checker:  sc.Checker,
		SunDir:   vec3(sc.SunDir),
		SunColor: vec3(sc.SunColor),
		SunSize:  sc.SunSize,
	}
	for _, box := range sc.Boxes {
		s.Boxes = append(s.Boxes, capture.Box{
			Bounds:   capture.AABB{Min: vec3(box.Min), Max: vec3(box.Max)},
			Albedo:   vec3(box.Albedo),
			Emission: vec3(box.Emission),
		})
	}
	return s
}
