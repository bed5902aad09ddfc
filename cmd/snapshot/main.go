// Command snapshot runs the aggregation once from the configured input files
// and writes the results as files, for notebooks and offline checks.
//
// Usage:
//
//	go run ./cmd/snapshot -year 2020 -month 3 -variable Tavg -out data/snapshot
//
// It writes series.json (agricultural year), climatology.json, compare.json,
// regions.geojson (painted with -variable for -month) and, when YIELDS_CSV is
// set, yields.json.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/agrimeteo-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/agrimeteo-etl/internal/adapter/geojson"
	"github.com/couchcryptid/agrimeteo-etl/internal/adapter/shapefile"
	"github.com/couchcryptid/agrimeteo-etl/internal/config"
	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"github.com/couchcryptid/agrimeteo-etl/internal/observability"
	"github.com/couchcryptid/agrimeteo-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	year := flag.Int("year", 0, "agricultural year (default: latest in the observations)")
	month := flag.Int("month", int(time.September), "calendar month painted on the region layer")
	variable := flag.String("variable", "Tavg", "variable painted on the region layer")
	outDir := flag.String("out", "data/snapshot", "output directory")
	processedAt := flag.String("processed-at", "", "fixed RFC3339 processed_at stamp for reproducible output")
	flag.Parse()

	if *month < 1 || *month > 12 {
		return fmt.Errorf("-month must be 1-12, got %d", *month)
	}
	v, err := domain.ParseVariable(*variable)
	if err != nil {
		return err
	}
	if *processedAt != "" {
		at, err := time.Parse(time.RFC3339, *processedAt)
		if err != nil {
			return fmt.Errorf("-processed-at: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(at))
		defer domain.SetClock(nil)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)

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
		nil,
		pipeline.Options{Departments: departments, ReferenceDate: cfg.ReferenceDate, Workers: cfg.AssignWorkers},
		logger,
		observability.NewMetricsForTesting(),
	)

	ctx := context.Background()
	if err := p.Load(ctx); err != nil {
		return err
	}
	if *year == 0 {
		if *year, err = p.DefaultYear(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	series, err := p.Series(ctx, pipeline.Query{Mode: domain.ModeYear, Year: *year})
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(*outDir, "series.json"), series); err != nil {
		return err
	}

	climatology, err := p.Series(ctx, pipeline.Query{Mode: domain.ModeClimatology, Year: *year})
	if err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(*outDir, "climatology.json"), climatology); err != nil {
		return err
	}

	cmp := domain.Comparison{Year: *year, Series: series, Baseline: climatology}
	if err := writeJSON(filepath.Join(*outDir, "compare.json"), cmp); err != nil {
		return err
	}

	snap, err := p.Snapshot(ctx, *year, time.Month(*month))
	if err != nil {
		return err
	}
	layer := geojson.Layer(snap.Regions, &geojson.Paint{Variable: v, Date: snap.Date, Values: snap.Values})
	if err := writeJSON(filepath.Join(*outDir, "regions.geojson"), layer); err != nil {
		return err
	}

	if yields != nil {
		ys, err := p.Yields("", 0)
		if err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(*outDir, "yields.json"), ys); err != nil {
			return err
		}
	}

	log.Printf("year %d: %d series rows, %d baseline rows, %d regions", *year, len(series), len(climatology), len(snap.Regions))
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("wrote %s", path)
	return nil
}
