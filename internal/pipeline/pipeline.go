package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"github.com/couchcryptid/agrimeteo-etl/internal/observability"
)

// ErrNotLoaded is returned by queries issued before Load has succeeded.
var ErrNotLoaded = errors.New("pipeline inputs not loaded")

// CommuneSource reads the commune polygons of the given departments.
type CommuneSource interface {
	LoadCommunes(ctx context.Context, departments []domain.Department) ([]domain.Commune, error)
}

// ObservationSource reads every gridded observation row.
type ObservationSource interface {
	LoadObservations(ctx context.Context) ([]domain.Observation, error)
}

// YieldSource reads the annual crop statistics.
type YieldSource interface {
	LoadYields(ctx context.Context) ([]domain.YieldRecord, error)
}

// SeriesLoader writes department series rows to a destination.
type SeriesLoader interface {
	LoadSeries(ctx context.Context, series []domain.DepartmentSeries) error
}

// RegionLabeler names a coordinate for map tooltips.
type RegionLabeler interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (domain.PlaceResult, error)
}

// Options configure how inputs are materialized.
type Options struct {
	Departments   []domain.Department
	ReferenceDate time.Time
	Workers       int
	DefaultYear   int // used when a query leaves the year at 0; 0 picks the latest year in the grid
}

type sink struct {
	name   string
	loader SeriesLoader
}

// inputs is one consistent snapshot of everything Load materializes.
type inputs struct {
	registry    *domain.GeometryRegistry
	grid        *domain.ObservationGrid
	yields      []domain.YieldRecord
	defaultYear int
}

// Pipeline loads communes and observations once and answers aggregation
// queries over them.
type Pipeline struct {
	communes     CommuneSource
	observations ObservationSource
	yields       YieldSource
	labeler      RegionLabeler
	sinks        []sink

	regions *RegionCache
	buildMu sync.Mutex

	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics

	mu    sync.RWMutex
	in    *inputs
	ready atomic.Bool
}

// New creates a Pipeline reading from the given sources. The yield source may be nil.
func New(c CommuneSource, o ObservationSource, y YieldSource, regions *RegionCache, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if len(opts.Departments) == 0 {
		opts.Departments = domain.DefaultDepartments
	}
	if opts.ReferenceDate.IsZero() {
		opts.ReferenceDate = domain.DefaultReferenceDate
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if regions == nil {
		regions = NewRegionCache(1)
	}
	return &Pipeline{
		communes:     c,
		observations: o,
		yields:       y,
		regions:      regions,
		opts:         opts,
		logger:       logger,
		metrics:      metrics,
	}
}

// SetLabeler enables region labeling for layers built afterwards.
func (p *Pipeline) SetLabeler(l RegionLabeler) {
	p.labeler = l
}

// AddLoader registers a destination for Publish. Name labels its metrics.
func (p *Pipeline) AddLoader(name string, l SeriesLoader) {
	p.sinks = append(p.sinks, sink{name: name, loader: l})
}

// CheckReadiness returns nil once inputs are loaded, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("communes and observations have not been loaded yet")
	}
	return nil
}

// Load materializes the geometry registry, observation grid and yields from
// the sources, replacing any previous snapshot.
func (p *Pipeline) Load(ctx context.Context) error {
	start := time.Now()

	communes, err := p.communes.LoadCommunes(ctx, p.opts.Departments)
	if err != nil {
		return fmt.Errorf("load communes: %w", err)
	}
	registry, err := domain.NewGeometryRegistry(communes, p.opts.Departments)
	if err != nil {
		return fmt.Errorf("load communes: %w", err)
	}

	obs, err := p.observations.LoadObservations(ctx)
	if err != nil {
		return fmt.Errorf("load observations: %w", err)
	}
	grid, err := domain.NewObservationGrid(obs, p.opts.ReferenceDate)
	if err != nil {
		return fmt.Errorf("load observations: %w", err)
	}

	var yields []domain.YieldRecord
	if p.yields != nil {
		yields, err = p.yields.LoadYields(ctx)
		if err != nil {
			return fmt.Errorf("load yields: %w", err)
		}
	}

	defaultYear := p.opts.DefaultYear
	if defaultYear == 0 {
		// The grid is never empty.
		defaultYear, _ = domain.LatestAgriculturalYear(grid.Observations())
	}

	p.mu.Lock()
	p.in = &inputs{registry: registry, grid: grid, yields: yields, defaultYear: defaultYear}
	p.mu.Unlock()

	p.ready.Store(true)
	p.metrics.PipelineReady.Set(1)
	p.logger.Info("inputs loaded",
		"communes", len(registry.Communes()),
		"observations", len(grid.Observations()),
		"grid_points", len(grid.Points()),
		"yields", len(yields),
		"default_year", defaultYear,
		"duration", time.Since(start),
	)
	return nil
}

// LoadWithRetry calls Load until it succeeds, the context ends, or attempts
// run out, backing off exponentially between tries.
func (p *Pipeline) LoadWithRetry(ctx context.Context, attempts int) error {
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var err error
	for i := 0; i < attempts; i++ {
		if err = p.Load(ctx); err == nil {
			return nil
		}
		// Bad inputs do not get better by waiting.
		if errors.Is(err, domain.ErrConfig) || errors.Is(err, domain.ErrData) {
			return err
		}
		if i == attempts-1 {
			break
		}
		p.logger.Warn("load failed, retrying", "attempt", i+1, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	return err
}

func (p *Pipeline) snapshot() (*inputs, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.in == nil {
		return nil, ErrNotLoaded
	}
	return p.in, nil
}

// DefaultYear returns the agricultural year queries use when they leave the
// year at 0: the configured default, or else the latest agricultural year in
// the loaded observations.
func (p *Pipeline) DefaultYear() (int, error) {
	in, err := p.snapshot()
	if err != nil {
		return 0, err
	}
	return in.defaultYear, nil
}

func (in *inputs) year(y int) int {
	if y == 0 {
		return in.defaultYear
	}
	return y
}

// Departments returns the departments the pipeline aggregates.
func (p *Pipeline) Departments() []domain.Department {
	return p.opts.Departments
}

// Regions returns the dissolved region layer for the loaded inputs, building
// it on first use and serving it from the cache afterwards.
func (p *Pipeline) Regions(ctx context.Context) (*domain.RegionSet, error) {
	in, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	return p.regionsFor(ctx, in)
}

func (p *Pipeline) regionsFor(ctx context.Context, in *inputs) (*domain.RegionSet, error) {
	key := RegionKey{Registry: in.registry.Fingerprint(), Grid: in.grid.Fingerprint()}
	if set, ok := p.regions.Get(key); ok {
		p.metrics.RegionCache.WithLabelValues("hit").Inc()
		return set, nil
	}

	set, built, err := p.buildRegions(ctx, in, key)
	if err != nil || !built || p.labeler == nil {
		return set, err
	}

	// Queries arriving while labels resolve are served the unlabeled layer.
	labeled := *set
	labeled.Regions = domain.LabelRegions(ctx, set.Regions, p.labeler, p.logger)
	p.regions.Put(key, &labeled)
	return &labeled, nil
}

// buildRegions assigns and dissolves under buildMu and caches the unlabeled
// layer. built is false when another caller got there first.
func (p *Pipeline) buildRegions(ctx context.Context, in *inputs, key RegionKey) (*domain.RegionSet, bool, error) {
	p.buildMu.Lock()
	defer p.buildMu.Unlock()

	// Another caller may have built it while we waited.
	if set, ok := p.regions.Get(key); ok {
		p.metrics.RegionCache.WithLabelValues("hit").Inc()
		return set, false, nil
	}
	p.metrics.RegionCache.WithLabelValues("miss").Inc()

	start := time.Now()
	assignment, err := domain.AssignNearest(ctx, in.registry.Communes(), in.grid.Points(), p.opts.Workers)
	if err != nil {
		p.recordError(err)
		return nil, false, fmt.Errorf("build regions: %w", err)
	}
	regions, err := domain.Dissolve(in.registry.Communes(), assignment)
	if err != nil {
		p.recordError(err)
		return nil, false, fmt.Errorf("build regions: %w", err)
	}

	set := &domain.RegionSet{Regions: regions, Assignment: assignment, BuiltAt: domain.Now().UTC()}
	p.regions.Put(key, set)

	elapsed := time.Since(start)
	p.metrics.AssignmentDuration.Observe(elapsed.Seconds())
	p.metrics.RegionsBuilt.Set(float64(len(regions)))
	p.logger.Info("region layer built",
		"communes", len(assignment),
		"regions", len(regions),
		"registry", key.Registry,
		"grid", key.Grid,
		"duration", elapsed,
	)
	return set, true, nil
}

// Query selects a department time series.
type Query struct {
	Mode       domain.Mode
	Year       int
	Department domain.Department // empty selects every department
}

// Series runs the temporal and area-weighted aggregation for q. A zero year
// selects [Pipeline.DefaultYear].
func (p *Pipeline) Series(ctx context.Context, q Query) ([]domain.DepartmentSeries, error) {
	in, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	if q.Department != "" && !in.registry.Supports(q.Department) {
		err := &domain.Error{Kind: domain.ErrConfig, Op: "series", Department: q.Department, Err: errors.New("unsupported department")}
		p.recordError(err)
		return nil, err
	}
	if q.Mode == "" {
		q.Mode = domain.ModeYear
	}
	q.Year = in.year(q.Year)

	set, err := p.regionsFor(ctx, in)
	if err != nil {
		return nil, err
	}

	// Only the requested departments must have data.
	required := in.registry.Departments()
	if q.Department != "" {
		required = []domain.Department{q.Department}
	}

	start := time.Now()
	series, err := domain.BuildSeries(set.Regions, in.grid, q.Mode, q.Year, required)
	if err != nil {
		p.recordError(err)
		return nil, fmt.Errorf("%s series for %d: %w", q.Mode, q.Year, err)
	}
	p.metrics.AggregationDuration.WithLabelValues(string(q.Mode)).Observe(time.Since(start).Seconds())
	p.metrics.SeriesRowsProduced.WithLabelValues(string(q.Mode)).Add(float64(len(series)))

	if q.Department != "" {
		series = domain.FilterDepartment(series, q.Department)
	}
	return series, nil
}

// Compare returns the series of agricultural year `year` next to the
// climatological baseline placed on the same calendar axis.
func (p *Pipeline) Compare(ctx context.Context, year int) (domain.Comparison, error) {
	in, err := p.snapshot()
	if err != nil {
		return domain.Comparison{}, err
	}
	year = in.year(year)
	series, err := p.Series(ctx, Query{Mode: domain.ModeYear, Year: year})
	if err != nil {
		return domain.Comparison{}, err
	}
	baseline, err := p.Series(ctx, Query{Mode: domain.ModeClimatology, Year: year})
	if err != nil {
		return domain.Comparison{}, err
	}
	return domain.Comparison{Year: year, Series: series, Baseline: baseline}, nil
}

// MapSnapshot is the region layer with the monthly mean of every grid point
// for one month of an agricultural year.
type MapSnapshot struct {
	Date    time.Time
	Regions []domain.Region
	Values  map[int]domain.Variables // by grid point id
}

// Snapshot returns the map view of calendar month m in agricultural year
// year. A zero year selects [Pipeline.DefaultYear].
func (p *Pipeline) Snapshot(ctx context.Context, year int, m time.Month) (MapSnapshot, error) {
	in, err := p.snapshot()
	if err != nil {
		return MapSnapshot{}, err
	}
	set, err := p.regionsFor(ctx, in)
	if err != nil {
		return MapSnapshot{}, err
	}

	year = in.year(year)
	date := domain.BaselineDate(m, year)
	means := domain.MonthlyMeans(in.grid.Observations(), year)
	return MapSnapshot{
		Date:    date,
		Regions: set.Regions,
		Values:  domain.PointValues(in.grid, means, date),
	}, nil
}

// Yields returns the records of an Agreste variable for year grouped by
// category. An empty variable selects [domain.YieldVariable]; a zero year
// returns every year.
func (p *Pipeline) Yields(variable string, year int) ([]domain.YieldCategory, error) {
	in, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	return domain.GroupYields(domain.FilterYields(in.yields, yieldVariable(variable), year)), nil
}

// LowestYields returns the n worst years of every category and department
// for an Agreste variable.
func (p *Pipeline) LowestYields(variable string, n int) ([]domain.YieldCategory, error) {
	in, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	return domain.LowestYields(domain.FilterYields(in.yields, yieldVariable(variable), 0), n), nil
}

// YieldVariables lists the Agreste variables present in the loaded statistics.
func (p *Pipeline) YieldVariables() ([]string, error) {
	in, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	return domain.YieldVariables(in.yields), nil
}

func yieldVariable(v string) string {
	if v == "" {
		return domain.YieldVariable
	}
	return v
}

// Publish computes the series of agricultural year `year` and hands it to
// every registered loader. Loaders are independent: one failing does not
// stop the others.
func (p *Pipeline) Publish(ctx context.Context, year int) (int, error) {
	in, err := p.snapshot()
	if err != nil {
		return 0, err
	}
	year = in.year(year)
	series, err := p.Series(ctx, Query{Mode: domain.ModeYear, Year: year})
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, s := range p.sinks {
		if err := s.loader.LoadSeries(ctx, series); err != nil {
			p.logger.Error("publish series failed", "sink", s.name, "year", year, "rows", len(series), "error", err)
			p.metrics.PublishFailures.WithLabelValues(s.name).Inc()
			errs = append(errs, fmt.Errorf("publish to %s: %w", s.name, err))
			continue
		}
		p.metrics.SeriesPublished.WithLabelValues(s.name).Add(float64(len(series)))
		p.logger.Info("series published", "sink", s.name, "year", year, "rows", len(series))
	}
	return len(series), errors.Join(errs...)
}

func (p *Pipeline) recordError(err error) {
	kind := "other"
	switch {
	case errors.Is(err, domain.ErrConfig):
		kind = "config"
	case errors.Is(err, domain.ErrData):
		kind = "data"
	case errors.Is(err, domain.ErrLookup):
		kind = "lookup"
	}
	p.metrics.AggregationErrors.WithLabelValues(kind).Inc()
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
