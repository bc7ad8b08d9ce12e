// reflbake bakes per-texel surface reflection atlases for lightmapped meshes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/surfacerefl/internal/config"
	"github.com/Faultbox/surfacerefl/internal/logger"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if config.SaveRequested() {
		if err := cfg.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Config save error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", config.ConfigDir())
		return
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	defer logger.Sync()

	logger.Info("=== Surface Reflection Baker ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 1
	}

	b, err := newBaker(cfg)
	if err != nil {
		logger.Error("failed to prepare bake", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := b.Run(ctx)
	if closeErr := b.Close(); closeErr != nil {
		logger.Warn("teardown failed", zap.Error(closeErr))
	}
	if err != nil {
		logger.Error("bake failed", zap.String("atlas", res.AtlasPath), zap.Error(err))
		return 1
	}

	logger.Info("bake complete",
		zap.String("atlas", res.AtlasPath),
		zap.Int("covered", res.Report.Covered),
		zap.Int("slices", res.Report.Grid.SliceCount),
		zap.Bool("cancelled", res.Report.Cancelled))
	return 0
}
