package csvsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
)

// dateLayouts are the date encodings seen in observation exports.
var dateLayouts = []string{time.DateOnly, time.DateTime, time.RFC3339, "2006-01-02T15:04:05"}

// ObservationSource reads the ERA5 observation export: one row per grid
// point and day with latitude, longitude, date and every variable column.
type ObservationSource struct {
	path   string
	logger *slog.Logger
}

// NewObservationSource creates a source reading path.
func NewObservationSource(path string, logger *slog.Logger) *ObservationSource {
	return &ObservationSource{path: path, logger: logger}
}

// LoadObservations reads every row. A missing coordinate, date or variable
// column is a data error; so is an unparseable value.
func (s *ObservationSource) LoadObservations(ctx context.Context) ([]domain.Observation, error) {
	r, closer, err := openCSV(s.path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	header, err := r.Read()
	if err != nil {
		return nil, &domain.Error{Kind: domain.ErrData, Op: "read observations header", Err: err}
	}
	cols, err := observationColumns(headerIndex(header))
	if err != nil {
		return nil, err
	}

	var out []domain.Observation
	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &domain.Error{Kind: domain.ErrData, Op: "read observations", Err: fmt.Errorf("line %d: %w", line, err)}
		}
		if line%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		obs, err := cols.parse(record)
		if err != nil {
			return nil, &domain.Error{Kind: domain.ErrData, Op: "read observations", Err: fmt.Errorf("line %d: %w", line, err)}
		}
		out = append(out, obs)
	}

	s.logger.Debug("observations read", "path", s.path, "rows", len(out))
	return out, nil
}

type observationCols struct {
	lat, lon, date int
	vars           []int
}

func observationColumns(idx map[string]int) (observationCols, error) {
	c := observationCols{vars: make([]int, len(domain.AllVariables()))}
	var ok bool
	if c.lat, ok = idx["latitude"]; !ok {
		return c, missingColumn("latitude")
	}
	if c.lon, ok = idx["longitude"]; !ok {
		return c, missingColumn("longitude")
	}
	if c.date, ok = idx["date"]; !ok {
		return c, missingColumn("date")
	}
	for _, v := range domain.AllVariables() {
		i, ok := idx[v.String()]
		if !ok {
			return c, missingColumn(v.String())
		}
		c.vars[v] = i
	}
	return c, nil
}

func missingColumn(name string) error {
	return &domain.Error{Kind: domain.ErrData, Op: "read observations header", Err: fmt.Errorf("missing column %q", name)}
}

func (c observationCols) parse(record []string) (domain.Observation, error) {
	var o domain.Observation
	var err error
	if o.Lat, err = strconv.ParseFloat(field(record, c.lat), 64); err != nil {
		return o, fmt.Errorf("latitude: %w", err)
	}
	if o.Lon, err = strconv.ParseFloat(field(record, c.lon), 64); err != nil {
		return o, fmt.Errorf("longitude: %w", err)
	}
	if o.Date, err = parseDate(field(record, c.date)); err != nil {
		return o, err
	}
	for v, i := range c.vars {
		if o.Values[v], err = strconv.ParseFloat(field(record, i), 64); err != nil {
			return o, fmt.Errorf("%s: %w", domain.Variable(v), err)
		}
	}
	return o, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q: unrecognized format", s)
}
