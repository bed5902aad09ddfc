package domain

import (
	"fmt"
	"slices"
	"sort"

	"github.com/ctessum/geom"
)

type regionKey struct {
	pointID    int
	department Department
}

// Dissolve unions the communes of each (grid point, department) pair into one
// region. Splitting by department first keeps every region inside a single
// department. Region area is measured on the unioned polygon.
func Dissolve(communes []Commune, assignment Assignment) ([]Region, error) {
	groups := make(map[regionKey][]Commune)
	for _, c := range communes {
		id, ok := assignment[c.Code]
		if !ok {
			return nil, &Error{Kind: ErrLookup, Op: "dissolve", Commune: c.Code, Err: fmt.Errorf("commune has no assigned grid point")}
		}
		k := regionKey{pointID: id, department: c.Department}
		groups[k] = append(groups[k], c)
	}

	regions := make([]Region, 0, len(groups))
	for k, members := range groups {
		codes := make([]string, len(members))
		shapes := make([]geom.Polygonal, len(members))
		for i, c := range members {
			codes[i] = c.Code
			shapes[i] = c.Geometry
		}
		slices.Sort(codes)
		merged := unionAll(shapes)
		regions = append(regions, Region{
			PointID:    k.pointID,
			Department: k.department,
			Communes:   codes,
			Geometry:   merged,
			Area:       merged.Area(),
		})
	}
	sortRegions(regions)
	return regions, nil
}

// DissolveRegions merges regions that share a (grid point, department) key.
// Applied to the output of Dissolve it returns the same regions.
func DissolveRegions(regions []Region) []Region {
	groups := make(map[regionKey][]Region)
	for _, r := range regions {
		k := regionKey{pointID: r.PointID, department: r.Department}
		groups[k] = append(groups[k], r)
	}

	out := make([]Region, 0, len(groups))
	for k, members := range groups {
		if len(members) == 1 {
			out = append(out, members[0])
			continue
		}
		var codes []string
		shapes := make([]geom.Polygonal, len(members))
		for i, r := range members {
			codes = append(codes, r.Communes...)
			shapes[i] = r.Geometry
		}
		slices.Sort(codes)
		merged := unionAll(shapes)
		out = append(out, Region{
			PointID:    k.pointID,
			Department: k.department,
			Communes:   slices.Compact(codes),
			Geometry:   merged,
			Area:       merged.Area(),
			Label:      members[0].Label,
		})
	}
	sortRegions(out)
	return out
}

func unionAll(shapes []geom.Polygonal) geom.Polygonal {
	if len(shapes) == 1 {
		return shapes[0]
	}
	var acc geom.Polygonal = shapes[0]
	for _, s := range shapes[1:] {
		acc = acc.Union(s)
	}
	return acc
}

func sortRegions(regions []Region) {
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].PointID != regions[j].PointID {
			return regions[i].PointID < regions[j].PointID
		}
		return regions[i].Department < regions[j].Department
	})
}
