package calculator

import (
	"math"

	"geo-match/internal/models"
)

const earthRadiusKm = 6371.0

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Distance computes the great-circle distance between two points in kilometers
// on a spherical Earth. Latitude and longitude ranges are not validated.
// NaN or Inf inputs yield NaN.
func Distance(a, b models.Coordinate) float64 {
	lat1Rad := toRadians(a.Lat)
	lon1Rad := toRadians(a.Lon)
	lat2Rad := toRadians(b.Lat)
	lon2Rad := toRadians(b.Lon)

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push h just outside [0, 1] for near-antipodal points.
	// NaN fails both comparisons and is left alone.
	if h > 1 {
		h = 1
	} else if h < 0 {
		h = 0
	}

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func round2(km float64) float64 {
	return math.Round(km*100) / 100
}
