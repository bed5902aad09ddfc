package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/agrimeteo-etl/internal/adapter/csvsource"
	httpadapter "github.com/couchcryptid/agrimeteo-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/agrimeteo-etl/internal/adapter/kafka"
	"github.com/couchcryptid/agrimeteo-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/agrimeteo-etl/internal/adapter/postgres"
	"github.com/couchcryptid/agrimeteo-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/agrimeteo-etl/internal/config"
	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"github.com/couchcryptid/agrimeteo-etl/internal/observability"
	"github.com/couchcryptid/agrimeteo-etl/internal/pipeline"
)

const loadAttempts = 5

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	departments := make([]domain.Department, len(cfg.Departments))
	for i, d := range cfg.Departments {
		departments[i] = domain.Department(d)
	}

	var yields pipeline.YieldSource
	if cfg.YieldsCSV != "" {
		yields = csvsource.NewYieldSource(cfg.YieldsCSV, departments, logger)
	}

	p := pipeline.New(
		shapefile.NewSource(cfg.CommunesShapefile, cfg.CommunesCSV, logger),
		csvsource.NewObservationSource(cfg.ObservationsCSV, logger),
		yields,
		pipeline.NewRegionCache(cfg.RegionCacheSize),
		pipeline.Options{
			Departments:   departments,
			ReferenceDate: cfg.ReferenceDate,
			Workers:       cfg.AssignWorkers,
			DefaultYear:   cfg.PublishYear,
		},
		logger,
		metrics,
	)

	// Region labels are feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		p.SetLabeler(mapbox.NewCachedLookup(client, cfg.MapboxCacheSize, metrics))
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox region labels enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox region labels disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		p.AddLoader("kafka", writer)
	}
	var store *postgres.Store
	if cfg.DatabaseURL != "" {
		store, err = postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to open series store", "error", err)
			os.Exit(1)
		}
		p.AddLoader("postgres", store)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load inputs, then publish the configured year to every sink.
	go func() {
		if err := p.LoadWithRetry(ctx, loadAttempts); err != nil {
			logger.Error("pipeline load error", "error", err)
			return
		}
		year, _ := p.DefaultYear()
		if n, err := p.Publish(ctx, year); err != nil {
			logger.Error("publish error", "year", year, "rows", n, "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("series store close error", "error", err)
		}
	}
}
