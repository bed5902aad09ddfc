package domain

import "fmt"

// Variable identifies one of the meteorological variables carried by every
// observation row.
type Variable int

const (
	Precipitation Variable = iota // daily precipitation, mm
	RMin                          // minimum relative humidity, %
	SSRDMean                      // mean surface solar radiation downwards, W/m²
	TMax                          // maximum 2m temperature, °C
	TAvg                          // mean 2m temperature, °C
	TMin                          // minimum 2m temperature, °C
	WS10Mean                      // mean 10m wind speed, m/s

	numVariables
)

// variableNames are the column names used by the source files and every output table.
var variableNames = [numVariables]string{
	Precipitation: "precipitation",
	RMin:          "r_min",
	SSRDMean:      "ssrd_mean",
	TMax:          "Tmax",
	TAvg:          "Tavg",
	TMin:          "Tmin",
	WS10Mean:      "ws10_mean",
}

// AllVariables lists the variables in column order.
func AllVariables() []Variable {
	vs := make([]Variable, numVariables)
	for i := range vs {
		vs[i] = Variable(i)
	}
	return vs
}

// String returns the source column name of the variable.
func (v Variable) String() string {
	if v < 0 || v >= numVariables {
		return fmt.Sprintf("Variable(%d)", int(v))
	}
	return variableNames[v]
}

// ParseVariable maps a column name to its Variable.
func ParseVariable(name string) (Variable, error) {
	for i, n := range variableNames {
		if n == name {
			return Variable(i), nil
		}
	}
	return 0, &Error{Kind: ErrConfig, Op: "parse variable", Err: fmt.Errorf("unknown variable %q", name)}
}

// Variables holds one value per Variable, indexed by Variable.
type Variables [numVariables]float64

// Get returns the value of v.
func (vs Variables) Get(v Variable) float64 { return vs[v] }

// Map returns the values keyed by column name, for JSON and tabular output.
func (vs Variables) Map() map[string]float64 {
	m := make(map[string]float64, numVariables)
	for i, val := range vs {
		m[variableNames[i]] = val
	}
	return m
}

// VariablesFromMap builds Variables from a column-name map. Every variable must
// be present; a missing column is a data error.
func VariablesFromMap(m map[string]float64) (Variables, error) {
	var vs Variables
	for i, name := range variableNames {
		val, ok := m[name]
		if !ok {
			return Variables{}, &Error{Kind: ErrData, Op: "read variables", Err: fmt.Errorf("missing column %q", name)}
		}
		vs[i] = val
	}
	return vs, nil
}

// Thresholds returns the six-step colour scale the map layer uses for v.
// Values outside the scale are capped to its ends.
func Thresholds(v Variable) []float64 {
	switch v {
	case Precipitation:
		return []float64{0, 1, 2, 3, 4, 5}
	case RMin:
		return []float64{0, 20, 40, 60, 80, 100}
	case SSRDMean:
		return []float64{0, 70, 140, 210, 280, 350}
	case TMax, TAvg, TMin:
		return []float64{0, 8, 16, 24, 32, 40}
	case WS10Mean:
		return []float64{0, 2, 4, 6, 8, 10}
	default:
		return nil
	}
}

// CapToThresholds clamps value into the threshold scale of v.
func CapToThresholds(v Variable, value float64) float64 {
	scale := Thresholds(v)
	if len(scale) == 0 {
		return value
	}
	return max(min(value, scale[len(scale)-1]), scale[0])
}
