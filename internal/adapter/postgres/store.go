// Package postgres persists department series rows with sqlx over lib/pq.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS department_series (
	department    TEXT             NOT NULL,
	mode          TEXT             NOT NULL,
	date          DATE             NOT NULL,
	precipitation DOUBLE PRECISION NOT NULL,
	r_min         DOUBLE PRECISION NOT NULL,
	ssrd_mean     DOUBLE PRECISION NOT NULL,
	t_max         DOUBLE PRECISION NOT NULL,
	t_avg         DOUBLE PRECISION NOT NULL,
	t_min         DOUBLE PRECISION NOT NULL,
	ws10_mean     DOUBLE PRECISION NOT NULL,
	processed_at  TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (department, mode, date)
)`

const upsertSeries = `
INSERT INTO department_series (
	department, mode, date, precipitation, r_min, ssrd_mean,
	t_max, t_avg, t_min, ws10_mean, processed_at
) VALUES (
	:department, :mode, :date, :precipitation, :r_min, :ssrd_mean,
	:t_max, :t_avg, :t_min, :ws10_mean, :processed_at
)
ON CONFLICT (department, mode, date) DO UPDATE SET
	precipitation = EXCLUDED.precipitation,
	r_min         = EXCLUDED.r_min,
	ssrd_mean     = EXCLUDED.ssrd_mean,
	t_max         = EXCLUDED.t_max,
	t_avg         = EXCLUDED.t_avg,
	t_min         = EXCLUDED.t_min,
	ws10_mean     = EXCLUDED.ws10_mean,
	processed_at  = EXCLUDED.processed_at`

const selectSeries = `
SELECT department, mode, date, precipitation, r_min, ssrd_mean,
	t_max, t_avg, t_min, ws10_mean, processed_at
FROM department_series
WHERE mode = $1 AND date BETWEEN $2 AND $3
ORDER BY department, date`

// seriesRow is the table form of a DepartmentSeries.
type seriesRow struct {
	Department    string    `db:"department"`
	Mode          string    `db:"mode"`
	Date          time.Time `db:"date"`
	Precipitation float64   `db:"precipitation"`
	RMin          float64   `db:"r_min"`
	SSRDMean      float64   `db:"ssrd_mean"`
	TMax          float64   `db:"t_max"`
	TAvg          float64   `db:"t_avg"`
	TMin          float64   `db:"t_min"`
	WS10Mean      float64   `db:"ws10_mean"`
	ProcessedAt   time.Time `db:"processed_at"`
}

func toRow(s domain.DepartmentSeries) seriesRow {
	return seriesRow{
		Department:    string(s.Department),
		Mode:          string(s.Mode),
		Date:          s.Date,
		Precipitation: s.Values[domain.Precipitation],
		RMin:          s.Values[domain.RMin],
		SSRDMean:      s.Values[domain.SSRDMean],
		TMax:          s.Values[domain.TMax],
		TAvg:          s.Values[domain.TAvg],
		TMin:          s.Values[domain.TMin],
		WS10Mean:      s.Values[domain.WS10Mean],
		ProcessedAt:   s.ProcessedAt,
	}
}

func (r seriesRow) series() domain.DepartmentSeries {
	s := domain.DepartmentSeries{
		Department:  domain.Department(r.Department),
		Mode:        domain.Mode(r.Mode),
		Date:        r.Date.UTC(),
		ProcessedAt: r.ProcessedAt.UTC(),
	}
	s.Values[domain.Precipitation] = r.Precipitation
	s.Values[domain.RMin] = r.RMin
	s.Values[domain.SSRDMean] = r.SSRDMean
	s.Values[domain.TMax] = r.TMax
	s.Values[domain.TAvg] = r.TAvg
	s.Values[domain.TMin] = r.TMin
	s.Values[domain.WS10Mean] = r.WS10Mean
	return s
}

// Store upserts series rows keyed by (department, mode, date). It implements
// pipeline.SeriesLoader.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore wraps an open database handle. Closing the store closes db.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Open connects to url, verifies the connection and creates the table.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewStore(db, logger)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("series store ready")
	return s, nil
}

// EnsureSchema creates the series table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create series table: %w", err)
	}
	return nil
}

// LoadSeries upserts all rows in one transaction.
func (s *Store) LoadSeries(ctx context.Context, series []domain.DepartmentSeries) error {
	if len(series) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin series upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, upsertSeries)
	if err != nil {
		return fmt.Errorf("prepare series upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range series {
		if _, err := stmt.ExecContext(ctx, toRow(row)); err != nil {
			return fmt.Errorf("upsert series %s: %w", domain.SeriesKey(row), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit series upsert: %w", err)
	}
	s.logger.Debug("series rows stored", "count", len(series))
	return nil
}

// SeriesBetween reads back the rows of mode dated within [from, to].
func (s *Store) SeriesBetween(ctx context.Context, mode domain.Mode, from, to time.Time) ([]domain.DepartmentSeries, error) {
	var rows []seriesRow
	if err := s.db.SelectContext(ctx, &rows, selectSeries, string(mode), from, to); err != nil {
		return nil, fmt.Errorf("select series: %w", err)
	}
	out := make([]domain.DepartmentSeries, len(rows))
	for i, r := range rows {
		out[i] = r.series()
	}
	return out, nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
