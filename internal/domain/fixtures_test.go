package domain

import (
	"io"
	"log/slog"
	"time"

	"github.com/ctessum/geom"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// rect returns the counter-clockwise rectangle [x0,x1]×[y0,y1].
func rect(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func month(y int, m time.Month) time.Time { return day(y, m, 1) }

// values returns a Variables with every variable set to v.
func values(v float64) Variables {
	var out Variables
	for i := range out {
		out[i] = v
	}
	return out
}

// twoDepartmentCommunes is a small layout: A and B in Eure, west of C in
// Eure-et-Loir.
//
//	A: x 0..1  area 10
//	B: x 1..4  area 30
//	C: x 18..23 area 50
func twoDepartmentCommunes() []Commune {
	return []Commune{
		{Code: "27001", Department: "27", Geometry: rect(0, 0, 1, 10)},
		{Code: "27002", Department: "27", Geometry: rect(1, 0, 4, 10)},
		{Code: "28001", Department: "28", Geometry: rect(18, 0, 23, 10)},
	}
}

// twoPointObservations places one grid point near the Eure communes (id 0)
// and one near the Eure-et-Loir commune (id 1), observed on the reference
// date and on two days of January 2020.
func twoPointObservations() []Observation {
	return []Observation{
		{Lat: 5, Lon: 20, Date: DefaultReferenceDate, Values: values(5)},
		{Lat: 5, Lon: 1, Date: DefaultReferenceDate, Values: values(1)},
		{Lat: 5, Lon: 1, Date: day(2020, time.January, 15), Values: values(3)},
		{Lat: 5, Lon: 20, Date: day(2020, time.January, 15), Values: values(5)},
	}
}
