// Package geojson renders dissolved regions as a GeoJSON FeatureCollection
// for map clients.
package geojson

import (
	"time"

	"github.com/couchcryptid/agrimeteo-etl/internal/domain"
	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Paint selects the variable drawn on a layer and the values to draw.
type Paint struct {
	Variable domain.Variable
	Date     time.Time
	Values   map[int]domain.Variables // by grid point id
}

// Layer converts regions to features. Each feature carries point_id,
// department, departments, department_name, communes, area and label. With a
// non-nil paint it also carries the variable's raw value and the value capped
// to the map colour scale; regions without a value get neither. A non-empty
// collection carries its bbox so clients can fit the map view.
func Layer(regions []domain.Region, paint *Paint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range regions {
		f := geojson.NewFeature(ToOrb(r.Geometry))
		f.ID = r.PointID
		f.Properties["point_id"] = r.PointID
		f.Properties["department"] = string(r.Department)
		f.Properties["departments"] = []string{string(r.Department)}
		f.Properties["department_name"] = r.Department.Name()
		f.Properties["communes"] = len(r.Communes)
		f.Properties["area"] = r.Area
		if r.Label != "" {
			f.Properties["label"] = r.Label
		}

		if paint != nil {
			f.Properties["variable"] = paint.Variable.String()
			f.Properties["date"] = paint.Date.Format(time.DateOnly)
			if vs, ok := paint.Values[r.PointID]; ok {
				v := vs.Get(paint.Variable)
				f.Properties["value"] = v
				f.Properties["display_value"] = domain.CapToThresholds(paint.Variable, v)
			}
		}
		fc.Append(f)
	}
	if len(fc.Features) > 0 {
		fc.BBox = geojson.NewBBox(Bound(fc))
	}
	return fc
}

// ToOrb converts a ctessum polygonal geometry to an orb MultiPolygon with
// closed rings.
func ToOrb(p geom.Polygonal) orb.MultiPolygon {
	if p == nil {
		return nil
	}
	var mp orb.MultiPolygon
	for _, poly := range p.Polygons() {
		var op orb.Polygon
		for _, path := range poly {
			if len(path) == 0 {
				continue
			}
			ring := make(orb.Ring, 0, len(path)+1)
			for _, pt := range path {
				ring = append(ring, orb.Point{pt.X, pt.Y})
			}
			if !ring.Closed() {
				ring = append(ring, ring[0])
			}
			op = append(op, ring)
		}
		if len(op) > 0 {
			mp = append(mp, op)
		}
	}
	return mp
}

// Bound returns the bounding box of the layer, or an empty bound when there
// are no features.
func Bound(fc *geojson.FeatureCollection) orb.Bound {
	var b orb.Bound
	first := true
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if first {
			b, first = f.Geometry.Bound(), false
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b
}
