package domain

import (
	"context"
	"log/slog"
	"math"
)

// LabelRegions names each region after the place found at its centroid.
// A nil lookup leaves the regions untouched; a failed or empty lookup
// leaves that region's label empty.
func LabelRegions(ctx context.Context, regions []Region, lookup PlaceLookup, logger *slog.Logger) []Region {
	if lookup == nil {
		return regions
	}

	out := make([]Region, len(regions))
	copy(out, regions)
	for i := range out {
		r := &out[i]
		if r.Geometry == nil {
			continue
		}
		c := r.Geometry.Centroid()
		if math.IsNaN(c.X) || math.IsNaN(c.Y) {
			continue
		}
		result, err := lookup.ReverseGeocode(ctx, c.Y, c.X)
		if err != nil {
			logger.Warn("region labeling failed",
				"point_id", r.PointID,
				"department", r.Department,
				"lat", c.Y,
				"lon", c.X,
				"error", err,
			)
			continue
		}
		switch {
		case result.PlaceName != "":
			r.Label = result.PlaceName
		case result.FormattedAddress != "":
			r.Label = result.FormattedAddress
		}
	}
	return out
}
