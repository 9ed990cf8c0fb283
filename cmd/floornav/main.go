package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mapell/floornav/internal/server"
	"github.com/mapell/floornav/pkg/edgecache"
	"github.com/mapell/floornav/pkg/engine"
	"github.com/mapell/floornav/pkg/mvf"
)

func main() {
	httpAddr := flag.String("http-addr", "", "Listen address for the HTTP API (overrides config)")
	configPath := flag.String("config", "", "Path of the YAML configuration file")
	dataDir := flag.String("data", "", "Path of the MVF dataset directory (overrides config)")
	cacheDir := flag.String("cache-dir", "", "Directory for the visibility edge cache (overrides config)")
	rebuildGraph := flag.Bool("rebuild-graph", false, "Skip the edge cache read and rebuild visibility edges")
	noGraphCache := flag.Bool("no-graph-cache", false, "Skip both edge cache read and write")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		logger.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *dataDir != "" {
		cfg.DatasetDir = *dataDir
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}

	ds, err := mvf.LoadDir(cfg.DatasetDir, logger)
	if err != nil {
		logger.Error("loading dataset failed", "dir", cfg.DatasetDir, "error", err)
		os.Exit(1)
	}

	opts := engine.DefaultOptions()
	applyEngineConfig(&opts, cfg.Engine)
	opts.RebuildGraph = *rebuildGraph
	opts.NoGraphCache = *noGraphCache
	if cfg.CacheDir != "" && !*noGraphCache {
		store, err := edgecache.NewFileStore(cfg.CacheDir)
		if err != nil {
			logger.Warn("edge cache unavailable", "dir", cfg.CacheDir, "error", err)
		} else {
			opts.Cache = store
		}
	}

	eng := engine.NewWithLogger(ds, opts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(eng, cfg, logger)
	go func() {
		if err := srv.Run(); err != nil {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	if err := eng.Initialize(ctx); err != nil {
		logger.Error("engine initialization failed", "error", err)
		srv.Shutdown()
		os.Exit(1)
	}

	<-ctx.Done()
	srv.Shutdown()
}

func applyEngineConfig(opts *engine.Options, cfg server.EngineConfig) {
	if cfg.MaxEdgeDistanceM > 0 {
		opts.MaxEdgeDistanceM = cfg.MaxEdgeDistanceM
	}
	if cfg.MaxNeighbors > 0 {
		opts.MaxNeighbors = cfg.MaxNeighbors
	}
	if cfg.YieldEvery > 0 {
		opts.YieldEvery = cfg.YieldEvery
	}
	if cfg.YieldAfterMS > 0 {
		opts.YieldAfter = time.Duration(cfg.YieldAfterMS) * time.Millisecond
	}
	if cfg.PathCacheSize > 0 {
		opts.PathCacheSize = cfg.PathCacheSize
	}
	if cfg.PublicRoomDoorCount > 0 {
		opts.PublicRoomDoorCount = cfg.PublicRoomDoorCount
	}
	if cfg.PublicRoomAreaM2 > 0 {
		opts.PublicRoomAreaM2 = cfg.PublicRoomAreaM2
	}
	if cfg.VerticalPenaltyM > 0 {
		opts.VerticalPenaltyM = cfg.VerticalPenaltyM
	}
	if cfg.SmoothResolution > 0 {
		opts.SmoothResolution = cfg.SmoothResolution
	}
}
