package domain

import "context"

// PlaceResult contains the place details a reverse geocoding provider
// returns for a coordinate.
type PlaceResult struct {
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// PlaceLookup resolves a coordinate to place details.
type PlaceLookup interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (PlaceResult, error)
}
