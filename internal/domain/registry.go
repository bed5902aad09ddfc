package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
)

// GeometryRegistry is the immutable set of commune polygons the pipeline joins
// observations onto.
type GeometryRegistry struct {
	communes    []Commune
	departments []Department
	fingerprint string
}

// NewGeometryRegistry validates communes against the supported departments and
// freezes them in commune-code order. Duplicate codes are rejected.
func NewGeometryRegistry(communes []Commune, departments []Department) (*GeometryRegistry, error) {
	if len(departments) == 0 {
		return nil, &Error{Kind: ErrConfig, Op: "build geometry registry", Err: fmt.Errorf("no supported departments")}
	}
	if len(communes) == 0 {
		return nil, &Error{Kind: ErrConfig, Op: "build geometry registry", Err: fmt.Errorf("empty commune set")}
	}

	supported := make(map[Department]bool, len(departments))
	for _, d := range departments {
		supported[d] = true
	}

	seen := make(map[string]bool, len(communes))
	out := make([]Commune, 0, len(communes))
	for _, c := range communes {
		if !supported[c.Department] {
			return nil, &Error{Kind: ErrConfig, Op: "build geometry registry", Commune: c.Code, Department: c.Department,
				Err: fmt.Errorf("unsupported department")}
		}
		if c.Geometry == nil {
			return nil, &Error{Kind: ErrData, Op: "build geometry registry", Commune: c.Code, Err: fmt.Errorf("missing geometry")}
		}
		if seen[c.Code] {
			return nil, &Error{Kind: ErrData, Op: "build geometry registry", Commune: c.Code, Err: fmt.Errorf("duplicate commune code")}
		}
		seen[c.Code] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })

	deps := slices.Clone(departments)
	slices.Sort(deps)

	return &GeometryRegistry{
		communes:    out,
		departments: slices.Compact(deps),
		fingerprint: fingerprintCommunes(out),
	}, nil
}

// Communes returns the communes in code order. The slice must not be modified.
func (r *GeometryRegistry) Communes() []Commune { return r.communes }

// Departments returns the supported departments in code order.
func (r *GeometryRegistry) Departments() []Department { return r.departments }

// Supports reports whether d is one of the registry's departments.
func (r *GeometryRegistry) Supports(d Department) bool {
	_, ok := slices.BinarySearch(r.departments, d)
	return ok
}

// Fingerprint identifies the registry content for cache keys.
func (r *GeometryRegistry) Fingerprint() string { return r.fingerprint }

func fingerprintCommunes(communes []Commune) string {
	h := sha256.New()
	for _, c := range communes {
		b := c.Geometry.Bounds()
		fmt.Fprintf(h, "%s|%s|%.6f|%.6f|%.6f|%.6f|%.9f\n", c.Code, c.Department, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y, c.Geometry.Area())
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
