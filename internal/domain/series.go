package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// BuildSeries runs the temporal reduction for mode and year, projects the
// monthly means onto regions and reduces them to area-weighted department
// rows. Every department in departments must end up with at least one row.
func BuildSeries(regions []Region, grid *ObservationGrid, mode Mode, year int, departments []Department) ([]DepartmentSeries, error) {
	means := Means(grid.Observations(), mode, year)
	rows := ProjectOntoRegions(regions, grid, means)

	series, err := AreaWeightedMeans(rows)
	if err != nil {
		return nil, err
	}
	if err := RequireDepartments(series, departments); err != nil {
		return nil, err
	}

	now := clock.Now().UTC()
	for i := range series {
		series[i].Mode = mode
		series[i].ProcessedAt = now
	}
	return series, nil
}

// seriesJSON is the flat wire form of a DepartmentSeries row: identifiers
// followed by one field per variable.
type seriesJSON struct {
	Department    Department `json:"department"`
	Mode          Mode       `json:"mode"`
	Date          string     `json:"date"`
	Precipitation float64    `json:"precipitation"`
	RMin          float64    `json:"r_min"`
	SSRDMean      float64    `json:"ssrd_mean"`
	TMax          float64    `json:"Tmax"`
	TAvg          float64    `json:"Tavg"`
	TMin          float64    `json:"Tmin"`
	WS10Mean      float64    `json:"ws10_mean"`
	ProcessedAt   time.Time  `json:"processed_at"`
}

// MarshalJSON flattens the variables next to the row identifiers.
func (s DepartmentSeries) MarshalJSON() ([]byte, error) {
	return json.Marshal(seriesJSON{
		Department:    s.Department,
		Mode:          s.Mode,
		Date:          s.Date.Format(time.DateOnly),
		Precipitation: s.Values[Precipitation],
		RMin:          s.Values[RMin],
		SSRDMean:      s.Values[SSRDMean],
		TMax:          s.Values[TMax],
		TAvg:          s.Values[TAvg],
		TMin:          s.Values[TMin],
		WS10Mean:      s.Values[WS10Mean],
		ProcessedAt:   s.ProcessedAt,
	})
}

// UnmarshalJSON reads the flat wire form.
func (s *DepartmentSeries) UnmarshalJSON(data []byte) error {
	var w seriesJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	date, err := time.Parse(time.DateOnly, w.Date)
	if err != nil {
		return fmt.Errorf("parse series date: %w", err)
	}
	*s = DepartmentSeries{
		Department:  w.Department,
		Mode:        w.Mode,
		Date:        date,
		ProcessedAt: w.ProcessedAt,
	}
	s.Values[Precipitation] = w.Precipitation
	s.Values[RMin] = w.RMin
	s.Values[SSRDMean] = w.SSRDMean
	s.Values[TMax] = w.TMax
	s.Values[TAvg] = w.TAvg
	s.Values[TMin] = w.TMin
	s.Values[WS10Mean] = w.WS10Mean
	return nil
}

// MarshalJSON flattens the variables next to the location and date.
func (m MonthlyMean) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3+int(numVariables))
	out["latitude"] = m.Lat
	out["longitude"] = m.Lon
	out["date"] = m.Date.Format(time.DateOnly)
	for k, v := range m.Values.Map() {
		out[k] = v
	}
	return json.Marshal(out)
}

// SeriesKey identifies a series row: department|mode|date.
func SeriesKey(s DepartmentSeries) string {
	return fmt.Sprintf("%s|%s|%s", s.Department, s.Mode, s.Date.Format(time.DateOnly))
}

// SerializeSeries converts a series row into an OutputEvent for a message sink.
// The key is the department so every row of a department lands on the same
// partition; mode and date travel as headers.
func SerializeSeries(s DepartmentSeries) (OutputEvent, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize department series: %w", err)
	}
	return OutputEvent{
		Key:   []byte(s.Department),
		Value: data,
		Headers: map[string]string{
			"date":         s.Date.Format(time.DateOnly),
			"department":   string(s.Department),
			"mode":         string(s.Mode),
			"processed_at": s.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
