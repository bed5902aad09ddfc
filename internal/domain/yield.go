package domain

import (
	"slices"
	"sort"
)

// YieldVariable is the Agreste variable holding crop yields.
const YieldVariable = "Rendement"

// YieldRecord is one row of the Agreste annual crop statistics.
type YieldRecord struct {
	Department Department `json:"department"`
	Year       int        `json:"year"`
	Variable   string     `json:"variable"`
	Category   string     `json:"category"` // crop grouping (Agreste "n6")
	Value      float64    `json:"value"`
	Unit       string     `json:"unit,omitempty"`
}

// YieldCategory holds the yields of one crop category for one year, one row
// per department.
type YieldCategory struct {
	Category string        `json:"category"`
	Records  []YieldRecord `json:"records"`
}

// FilterYields keeps the records of variable for year. A zero year keeps
// every year.
func FilterYields(records []YieldRecord, variable string, year int) []YieldRecord {
	var out []YieldRecord
	for _, r := range records {
		if r.Variable != variable {
			continue
		}
		if year != 0 && r.Year != year {
			continue
		}
		out = append(out, r)
	}
	return out
}

// YieldVariables returns the distinct variables of records, sorted.
func YieldVariables(records []YieldRecord) []string {
	var out []string
	for _, r := range records {
		if !slices.Contains(out, r.Variable) {
			out = append(out, r.Variable)
		}
	}
	slices.Sort(out)
	return out
}

// GroupYields groups records by category, sorted by category name, with
// each group's records ordered by department then year.
func GroupYields(records []YieldRecord) []YieldCategory {
	groups := make(map[string][]YieldRecord)
	for _, r := range records {
		groups[r.Category] = append(groups[r.Category], r)
	}

	out := make([]YieldCategory, 0, len(groups))
	for cat, rs := range groups {
		sort.Slice(rs, func(i, j int) bool {
			if rs[i].Department != rs[j].Department {
				return rs[i].Department < rs[j].Department
			}
			return rs[i].Year < rs[j].Year
		})
		out = append(out, YieldCategory{Category: cat, Records: rs})
	}
	slices.SortFunc(out, func(a, b YieldCategory) int {
		switch {
		case a.Category < b.Category:
			return -1
		case a.Category > b.Category:
			return 1
		}
		return 0
	})
	return out
}

// LowestYields returns, per category and department, the n years with the
// lowest value, lowest first.
func LowestYields(records []YieldRecord, n int) []YieldCategory {
	type key struct {
		category   string
		department Department
	}
	buckets := make(map[key][]YieldRecord)
	for _, r := range records {
		k := key{r.Category, r.Department}
		buckets[k] = append(buckets[k], r)
	}

	var kept []YieldRecord
	for _, rs := range buckets {
		sort.SliceStable(rs, func(i, j int) bool {
			if rs[i].Value != rs[j].Value {
				return rs[i].Value < rs[j].Value
			}
			return rs[i].Year < rs[j].Year
		})
		if n < len(rs) {
			rs = rs[:n]
		}
		kept = append(kept, rs...)
	}

	groups := GroupYields(kept)
	for _, g := range groups {
		sort.SliceStable(g.Records, func(i, j int) bool {
			if g.Records[i].Department != g.Records[j].Department {
				return g.Records[i].Department < g.Records[j].Department
			}
			return g.Records[i].Value < g.Records[j].Value
		})
	}
	return groups
}
