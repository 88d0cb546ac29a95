package matching

import (
	"math"
	"strings"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b Coordinates) float64 {
	lat1 := degreesToRadians(a.Latitude)
	lat2 := degreesToRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := degreesToRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h slightly above 1 for antipodal points
	h = math.Min(1, math.Max(0, h))

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}

// DistanceScore decays linearly from 100 at 0 km to 0 at MaxDistanceKm.
func (c LocationCurve) DistanceScore(km float64) float64 {
	if math.IsNaN(km) || km >= c.MaxDistanceKm {
		return 0
	}
	if km <= 0 {
		return 100
	}
	return clampScore(100 * (1 - km/c.MaxDistanceKm))
}

// locationScore returns the score and, when coordinates were usable, the distance.
func (c LocationCurve) locationScore(candidate, offer Location) (float64, *float64) {
	if candidate.Coordinates != nil && offer.Coordinates != nil {
		km := HaversineKm(*candidate.Coordinates, *offer.Coordinates)
		return c.DistanceScore(km), &km
	}

	candidateText := strings.TrimSpace(candidate.Text)
	offerText := strings.TrimSpace(offer.Text)
	switch {
	case candidateText == "" && offerText == "":
		return 0, nil
	case strings.EqualFold(candidateText, offerText):
		return 100, nil
	default:
		return clampScore(c.MismatchCredit), nil
	}
}
