package domain

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Window is an inclusive date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar date of t lies in the window.
func (w Window) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// AgriculturalYearWindow returns September 1 of year-1 through August 31 of year.
func AgriculturalYearWindow(year int) Window {
	return Window{
		Start: time.Date(year-1, time.September, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.August, 31, 0, 0, 0, 0, time.UTC),
	}
}

// BaselineDate places calendar month m on the axis of agricultural year
// refYear: January–August in refYear, September–December in refYear-1.
func BaselineDate(month time.Month, refYear int) time.Time {
	year := refYear
	if month > time.August {
		year = refYear - 1
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// AgriculturalYearOf returns the agricultural year containing t. September
// onwards belongs to the following year.
func AgriculturalYearOf(t time.Time) int {
	if t.Month() > time.August {
		return t.Year() + 1
	}
	return t.Year()
}

// LatestAgriculturalYear returns the most recent agricultural year that has
// observations, preferring the latest one whose August was observed. It
// reports false when obs is empty.
func LatestAgriculturalYear(obs []Observation) (int, bool) {
	latest, complete := 0, 0
	for _, o := range obs {
		y := AgriculturalYearOf(o.Date)
		if y > latest {
			latest = y
		}
		if o.Date.Month() == time.August && y > complete {
			complete = y
		}
	}
	if latest == 0 {
		return 0, false
	}
	if complete != 0 {
		return complete, true
	}
	return latest, true
}

type monthBucket struct {
	lat, lon float64
	date     time.Time
}

// accumulator collects the readings of one bucket, one column per variable.
type accumulator struct {
	cols [numVariables][]float64
}

func (a *accumulator) add(v Variables) {
	for i := range v {
		a.cols[i] = append(a.cols[i], v[i])
	}
}

func (a *accumulator) mean() Variables {
	var out Variables
	for i, col := range a.cols {
		out[i] = stat.Mean(col, nil)
	}
	return out
}

// MonthlyMeans averages observations inside agricultural year `year` per
// (location, calendar month). Months with no observations for a location are
// absent from the result.
func MonthlyMeans(obs []Observation, year int) []MonthlyMean {
	window := AgriculturalYearWindow(year)
	return bucketMeans(obs, func(o Observation) (time.Time, bool) {
		if !window.Contains(o.Date) {
			return time.Time{}, false
		}
		y, m, _ := o.Date.Date()
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), true
	})
}

// ClimatologyMeans averages every observation per (location, calendar month)
// across all years and dates each month with [BaselineDate].
func ClimatologyMeans(obs []Observation, refYear int) []MonthlyMean {
	return bucketMeans(obs, func(o Observation) (time.Time, bool) {
		return BaselineDate(o.Date.Month(), refYear), true
	})
}

// Means dispatches to MonthlyMeans or ClimatologyMeans.
func Means(obs []Observation, mode Mode, year int) []MonthlyMean {
	if mode == ModeClimatology {
		return ClimatologyMeans(obs, year)
	}
	return MonthlyMeans(obs, year)
}

// bucketMeans groups observations by location and the month date chosen by
// bucket, then averages each variable. Location is always part of the key.
func bucketMeans(obs []Observation, bucket func(Observation) (time.Time, bool)) []MonthlyMean {
	acc := make(map[monthBucket]*accumulator)
	for _, o := range obs {
		date, ok := bucket(o)
		if !ok {
			continue
		}
		k := monthBucket{lat: o.Lat, lon: o.Lon, date: date}
		a, ok := acc[k]
		if !ok {
			a = &accumulator{}
			acc[k] = a
		}
		a.add(o.Values)
	}

	out := make([]MonthlyMean, 0, len(acc))
	for k, a := range acc {
		out = append(out, MonthlyMean{Lat: k.lat, Lon: k.lon, Date: k.date, Values: a.mean()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Lat != out[j].Lat {
			return out[i].Lat < out[j].Lat
		}
		return out[i].Lon < out[j].Lon
	})
	return out
}
