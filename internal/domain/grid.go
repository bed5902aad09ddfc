package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// DefaultReferenceDate is the snapshot used to enumerate grid point identifiers.
var DefaultReferenceDate = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

type coordKey struct {
	lat, lon float64
}

// ObservationGrid holds every observation row plus the canonical
// (lat, lon) → identifier mapping.
type ObservationGrid struct {
	observations  []Observation
	points        []GridPoint
	ids           map[coordKey]int
	referenceDate time.Time
	fingerprint   string
}

// NewObservationGrid enumerates the distinct coordinates observed on
// referenceDate, numbers them in ascending (lat, lon) order and reuses that
// numbering for every date. The result does not depend on the order of obs.
func NewObservationGrid(obs []Observation, referenceDate time.Time) (*ObservationGrid, error) {
	if len(obs) == 0 {
		return nil, &Error{Kind: ErrConfig, Op: "build observation grid", Err: fmt.Errorf("empty observation set")}
	}
	ref := truncateDay(referenceDate)

	seen := make(map[coordKey]bool)
	var coords []coordKey
	for _, o := range obs {
		if !truncateDay(o.Date).Equal(ref) {
			continue
		}
		k := coordKey{o.Lat, o.Lon}
		if seen[k] {
			continue
		}
		seen[k] = true
		coords = append(coords, k)
	}
	if len(coords) == 0 {
		return nil, &Error{Kind: ErrConfig, Op: "build observation grid", Date: ref,
			Err: fmt.Errorf("no observations on reference date")}
	}

	sort.Slice(coords, func(i, j int) bool {
		if coords[i].lat != coords[j].lat {
			return coords[i].lat < coords[j].lat
		}
		return coords[i].lon < coords[j].lon
	})

	points := make([]GridPoint, len(coords))
	ids := make(map[coordKey]int, len(coords))
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", ref.Format(time.DateOnly))
	for i, k := range coords {
		points[i] = GridPoint{ID: i, Lat: k.lat, Lon: k.lon}
		ids[k] = i
		fmt.Fprintf(h, "%d|%.6f|%.6f\n", i, k.lat, k.lon)
	}
	sum := h.Sum(nil)

	rows := make([]Observation, len(obs))
	copy(rows, obs)

	return &ObservationGrid{
		observations:  rows,
		points:        points,
		ids:           ids,
		referenceDate: ref,
		fingerprint:   hex.EncodeToString(sum[:8]),
	}, nil
}

// Points returns the grid points in identifier order. The slice must not be modified.
func (g *ObservationGrid) Points() []GridPoint { return g.points }

// Observations returns every observation row. The slice must not be modified.
func (g *ObservationGrid) Observations() []Observation { return g.observations }

// PointID returns the identifier of the grid point at (lat, lon).
func (g *ObservationGrid) PointID(lat, lon float64) (int, bool) {
	id, ok := g.ids[coordKey{lat, lon}]
	return id, ok
}

// Point returns the grid point with the given identifier.
func (g *ObservationGrid) Point(id int) (GridPoint, bool) {
	if id < 0 || id >= len(g.points) {
		return GridPoint{}, false
	}
	return g.points[id], true
}

// ReferenceDate is the date the identifiers were enumerated from.
func (g *ObservationGrid) ReferenceDate() time.Time { return g.referenceDate }

// Fingerprint identifies the grid point layout for cache keys. It depends only
// on the reference snapshot, which is all the region layer depends on.
func (g *ObservationGrid) Fingerprint() string { return g.fingerprint }

// truncateDay drops the clock part of t, keeping the calendar date in UTC.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
