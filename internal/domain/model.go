package domain

import (
	"time"

	"github.com/ctessum/geom"
)

// Department is an INSEE department code, e.g. "27" (Eure) or "28" (Eure-et-Loir).
type Department string

// DefaultDepartments are the departments the dashboard covers.
var DefaultDepartments = []Department{"27", "28"}

// departmentNames maps the supported codes to display names.
var departmentNames = map[Department]string{
	"27": "Eure",
	"28": "Eure-et-Loir",
}

// Name returns the display name of the department, or the code if unknown.
func (d Department) Name() string {
	if n, ok := departmentNames[d]; ok {
		return n
	}
	return string(d)
}

// Commune is one administrative commune polygon.
type Commune struct {
	Code       string // INSEE commune code
	Department Department
	Geometry   geom.Polygonal
}

// GridPoint is one distinct observation location with its stable identifier.
type GridPoint struct {
	ID  int     `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location returns the point in working coordinates (X=lon, Y=lat).
func (p GridPoint) Location() geom.Point {
	return geom.Point{X: p.Lon, Y: p.Lat}
}

// Observation is one raw grid observation for one day.
type Observation struct {
	Lat    float64
	Lon    float64
	Date   time.Time
	Values Variables
}

// Assignment maps commune code to the identifier of its nearest grid point.
type Assignment map[string]int

// Region is the union of the communes of one department that share a nearest
// grid point.
type Region struct {
	PointID    int
	Department Department
	Communes   []string // sorted commune codes
	Geometry   geom.Polygonal
	Area       float64 // area of the unioned geometry
	Label      string  // optional place name for map tooltips
}

// RegionSet is the dissolved reference layer built from one registry and grid.
type RegionSet struct {
	Regions    []Region
	Assignment Assignment
	BuiltAt    time.Time
}

// MonthlyMean is the mean of every variable for one grid location and month.
type MonthlyMean struct {
	Lat    float64   `json:"latitude"`
	Lon    float64   `json:"longitude"`
	Date   time.Time `json:"date"`
	Values Variables `json:"-"`
}

// Mode selects the temporal reduction.
type Mode string

const (
	// ModeYear averages within one agricultural year.
	ModeYear Mode = "year"
	// ModeClimatology averages each calendar month across all years.
	ModeClimatology Mode = "climatology"
)

// DepartmentSeries is one area-weighted row of the department time series.
type DepartmentSeries struct {
	Department  Department `json:"department"`
	Mode        Mode       `json:"mode"`
	Date        time.Time  `json:"date"`
	Values      Variables  `json:"-"`
	ProcessedAt time.Time  `json:"processed_at"`
}

// Comparison pairs a year's series with the climatological baseline aligned on
// the same calendar axis.
type Comparison struct {
	Year     int                `json:"year"`
	Series   []DepartmentSeries `json:"series"`
	Baseline []DepartmentSeries `json:"baseline"`
}

// OutputEvent is the serialized form destined for a message sink.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
