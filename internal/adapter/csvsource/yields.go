package csvsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"

	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"golang.org/x/text/unicode/norm"
)

// YieldSource reads the Agreste annual statistics export (columns dpt, year,
// variable, n6, value and optionally unit), keeping the given departments.
type YieldSource struct {
	path        string
	departments []domain.Department
	logger      *slog.Logger
}

// NewYieldSource creates a source reading path.
func NewYieldSource(path string, departments []domain.Department, logger *slog.Logger) *YieldSource {
	return &YieldSource{path: path, departments: departments, logger: logger}
}

// LoadYields reads the rows of the configured departments. Rows with an empty
// value are skipped.
func (s *YieldSource) LoadYields(_ context.Context) ([]domain.YieldRecord, error) {
	r, closer, err := openCSV(s.path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	header, err := r.Read()
	if err != nil {
		return nil, &domain.Error{Kind: domain.ErrData, Op: "read yields header", Err: err}
	}
	idx := headerIndex(header)
	cols := map[string]int{}
	for _, name := range []string{"dpt", "year", "variable", "n6", "value"} {
		i, ok := idx[name]
		if !ok {
			return nil, &domain.Error{Kind: domain.ErrData, Op: "read yields header", Err: fmt.Errorf("missing column %q", name)}
		}
		cols[name] = i
	}
	unitCol, hasUnit := idx["unit"]
	if !hasUnit {
		unitCol = -1
	}

	var out []domain.YieldRecord
	skipped := 0
	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, &domain.Error{Kind: domain.ErrData, Op: "read yields", Err: fmt.Errorf("line %d: %w", line, err)}
		}

		dept := domain.Department(field(record, cols["dpt"]))
		if !slices.Contains(s.departments, dept) {
			continue
		}
		raw := field(record, cols["value"])
		if raw == "" {
			skipped++
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &domain.Error{Kind: domain.ErrData, Op: "read yields", Department: dept, Err: fmt.Errorf("line %d: value: %w", line, err)}
		}
		year, err := strconv.Atoi(field(record, cols["year"]))
		if err != nil {
			return nil, &domain.Error{Kind: domain.ErrData, Op: "read yields", Department: dept, Err: fmt.Errorf("line %d: year: %w", line, err)}
		}

		out = append(out, domain.YieldRecord{
			Department: dept,
			Year:       year,
			Variable:   norm.NFC.String(field(record, cols["variable"])),
			Category:   norm.NFC.String(field(record, cols["n6"])),
			Value:      value,
			Unit:       field(record, unitCol),
		})
	}

	s.logger.Debug("yields read", "path", s.path, "rows", len(out), "skipped_empty", skipped)
	return out, nil
}
