package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Kerremmarket/credit/pkg/api"
	"github.com/Kerremmarket/credit/pkg/cache"
	"github.com/Kerremmarket/credit/pkg/config"
	"github.com/Kerremmarket/credit/pkg/dataset"
	"github.com/Kerremmarket/credit/pkg/explain"
	"github.com/Kerremmarket/credit/pkg/registry"
	"github.com/Kerremmarket/credit/pkg/trace"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting model introspection server",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port))

	store, err := openStore(cfg)
	if err != nil {
		logger.Fatal("failed to open cache store", zap.Error(err))
	}

	c := cache.New(store, time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.CacheEnabled, logger)
	defer c.Close()

	engine := explain.NewEngine(c, logger, cfg.MaxAttributionSample, cfg.DependenceGridSize, cfg.RandomSeed)
	tracer := trace.NewTracer(logger)

	reg := registry.New(engine, cfg.ModelsDir, cfg.RandomSeed, logger)
	if restored := reg.LoadArtifacts(); restored > 0 {
		logger.Info("restored persisted models", zap.Int("count", restored))
	}

	var ds *dataset.Dataset
	if cfg.DatasetPath != "" {
		ds, err = dataset.LoadCSV(cfg.DatasetPath, "default")
		if err != nil {
			logger.Fatal("failed to load dataset",
				zap.String("path", cfg.DatasetPath), zap.Error(err))
		}
		logger.Info("loaded dataset",
			zap.String("path", cfg.DatasetPath),
			zap.Int("rows", ds.Len()),
			zap.Int("features", len(ds.Features)))
	} else {
		logger.Warn("no dataset configured, training endpoints will reject requests")
	}

	server := api.NewServer(reg, engine, tracer, c, ds, cfg.Port, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatal("server stopped", zap.Error(err))
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}
}

// buildLogger constructs the process logger from the configured level
// and environment.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if cfg.Environment == "production" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openStore picks the SQLite-backed cache store when a database path is
// configured and the in-memory store otherwise.
func openStore(cfg *config.Config) (cache.Store, error) {
	if cfg.CacheDBPath == "" {
		return cache.NewMemoryStore(), nil
	}
	return cache.NewSQLiteStore(cfg.CacheDBPath)
}
