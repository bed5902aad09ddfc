// Package shapefile loads commune polygons from the OpenStreetMap communes
// shapefile and attaches their department from the INSEE COG commune table.
package shapefile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

// CodeField is the shapefile attribute holding the INSEE commune code.
const CodeField = "insee"

// Shape is one decoded shapefile row.
type Shape struct {
	Code     string
	Geometry geom.Polygonal
}

// Source reads communes from a shapefile joined with a COG commune CSV.
type Source struct {
	shpPath string
	cogPath string
	logger  *slog.Logger
}

// NewSource creates a commune source.
func NewSource(shpPath, cogPath string, logger *slog.Logger) *Source {
	return &Source{shpPath: shpPath, cogPath: cogPath, logger: logger}
}

// LoadCommunes decodes the shapefile, looks up every commune's department
// and keeps those in departments.
func (s *Source) LoadCommunes(ctx context.Context, departments []domain.Department) ([]domain.Commune, error) {
	shapes, err := ReadShapes(s.shpPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.cogPath)
	if err != nil {
		return nil, fmt.Errorf("open commune table: %w", err)
	}
	defer f.Close()
	deps, err := ReadDepartments(f)
	if err != nil {
		return nil, err
	}

	communes, unmatched := Join(shapes, deps, departments)
	s.logger.Info("communes loaded",
		"shapes", len(shapes),
		"kept", len(communes),
		"unmatched", unmatched,
	)
	return communes, nil
}

// ReadShapes decodes every polygon row of the shapefile at path.
func ReadShapes(path string) ([]Shape, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer d.Close()

	var out []Shape
	for {
		g, fields, more := d.DecodeRowFields(CodeField)
		if !more {
			break
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, &domain.Error{Kind: domain.ErrData, Op: "read shapefile", Err: fmt.Errorf("row %d: geometry %T is not polygonal", len(out), g)}
		}
		out = append(out, Shape{Code: cleanField(fields[CodeField]), Geometry: poly})
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	return out, nil
}

// cleanField strips the space and NUL padding of dBase attribute values.
func cleanField(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// ReadDepartments reads a COG commune table and maps commune code (COM) to
// department (DEP). When TYPECOM is present only current communes ("COM")
// are kept, since associated and delegated communes reuse parent codes.
func ReadDepartments(r io.Reader) (map[string]domain.Department, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, &domain.Error{Kind: domain.ErrData, Op: "read commune table header", Err: err}
	}
	com, dep, typ := -1, -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "COM":
			com = i
		case "DEP":
			dep = i
		case "TYPECOM":
			typ = i
		}
	}
	if com < 0 || dep < 0 {
		return nil, &domain.Error{Kind: domain.ErrData, Op: "read commune table header", Err: errors.New("COM and DEP columns are required")}
	}

	out := make(map[string]domain.Department)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.Error{Kind: domain.ErrData, Op: "read commune table", Err: err}
		}
		if typ >= 0 && typ < len(record) && strings.TrimSpace(record[typ]) != "COM" {
			continue
		}
		if com >= len(record) || dep >= len(record) {
			continue
		}
		code := strings.TrimSpace(record[com])
		if _, seen := out[code]; seen || code == "" {
			continue
		}
		out[code] = domain.Department(strings.TrimSpace(record[dep]))
	}
	return out, nil
}

// Join attaches departments to shapes and keeps the communes of departments.
// It returns the kept communes and the number of shapes with no department.
func Join(shapes []Shape, deps map[string]domain.Department, departments []domain.Department) ([]domain.Commune, int) {
	var out []domain.Commune
	unmatched := 0
	for _, s := range shapes {
		d, ok := deps[s.Code]
		if !ok {
			unmatched++
			continue
		}
		if !slices.Contains(departments, d) {
			continue
		}
		out = append(out, domain.Commune{Code: s.Code, Department: d, Geometry: s.Geometry})
	}
	return out, unmatched
}
