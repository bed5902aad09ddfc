package domain

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// RegionValue is one monthly mean projected onto the region that owns its grid point.
type RegionValue struct {
	PointID    int
	Department Department
	Area       float64
	Date       time.Time
	Values     Variables
}

// ProjectOntoRegions joins monthly means to regions through the grid point
// identifier. Means at coordinates outside the grid, and regions without a
// mean for some date, simply produce no row.
func ProjectOntoRegions(regions []Region, grid *ObservationGrid, means []MonthlyMean) []RegionValue {
	byPoint := make(map[int][]Region, len(regions))
	for _, r := range regions {
		byPoint[r.PointID] = append(byPoint[r.PointID], r)
	}

	var out []RegionValue
	for _, m := range means {
		id, ok := grid.PointID(m.Lat, m.Lon)
		if !ok {
			continue
		}
		for _, r := range byPoint[id] {
			out = append(out, RegionValue{
				PointID:    id,
				Department: r.Department,
				Area:       r.Area,
				Date:       m.Date,
				Values:     m.Values,
			})
		}
	}
	return out
}

type seriesKey struct {
	department Department
	date       time.Time
}

// AreaWeightedMeans groups rows by (department, date) and computes
// Σ(v·area)/Σ(area) for every variable. A group with zero total area is a
// data error. Each row only contributes to its own department.
func AreaWeightedMeans(rows []RegionValue) ([]DepartmentSeries, error) {
	type weighted struct {
		cols  [numVariables][]float64
		areas []float64
		total float64
	}
	groups := make(map[seriesKey]*weighted)
	for _, r := range rows {
		k := seriesKey{department: r.Department, date: r.Date}
		w, ok := groups[k]
		if !ok {
			w = &weighted{}
			groups[k] = w
		}
		for i, v := range r.Values {
			w.cols[i] = append(w.cols[i], v)
		}
		w.areas = append(w.areas, r.Area)
		w.total += r.Area
	}

	out := make([]DepartmentSeries, 0, len(groups))
	for k, w := range groups {
		if w.total == 0 {
			return nil, &Error{Kind: ErrData, Op: "area-weighted mean", Department: k.department, Date: k.date,
				Err: fmt.Errorf("total area is zero")}
		}
		var vals Variables
		for i, col := range w.cols {
			vals[i] = stat.Mean(col, w.areas)
		}
		out = append(out, DepartmentSeries{Department: k.department, Date: k.date, Values: vals})
	}
	sortSeries(out)
	return out, nil
}

// RequireDepartments fails with a lookup error when a requested department has
// no rows at all. Missing individual dates are not an error.
func RequireDepartments(series []DepartmentSeries, departments []Department) error {
	present := make(map[Department]bool)
	for _, s := range series {
		present[s.Department] = true
	}
	for _, d := range departments {
		if !present[d] {
			return &Error{Kind: ErrLookup, Op: "department series", Department: d, Err: fmt.Errorf("no data for department")}
		}
	}
	return nil
}

// FilterDepartment keeps the rows of department d.
func FilterDepartment(series []DepartmentSeries, d Department) []DepartmentSeries {
	var out []DepartmentSeries
	for _, s := range series {
		if s.Department == d {
			out = append(out, s)
		}
	}
	return out
}

func sortSeries(series []DepartmentSeries) {
	sort.Slice(series, func(i, j int) bool {
		if series[i].Department != series[j].Department {
			return series[i].Department < series[j].Department
		}
		return series[i].Date.Before(series[j].Date)
	})
}

// PointValues returns the means dated date keyed by grid point identifier.
func PointValues(grid *ObservationGrid, means []MonthlyMean, date time.Time) map[int]Variables {
	out := make(map[int]Variables)
	for _, m := range means {
		if !m.Date.Equal(date) {
			continue
		}
		if id, ok := grid.PointID(m.Lat, m.Lon); ok {
			out[id] = m.Values
		}
	}
	return out
}
