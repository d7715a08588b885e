// Package geo answers the one proximity question the gig core asks: is this
// person close enough to the venue.
package geo

import (
	"math"

	"ms-gigs/internal/models"
)

const earthRadiusMeters = 6371008.8

// DefaultRadiusMeters gates voting, commenting and requesting.
const DefaultRadiusMeters = 1000

// Distance is the great-circle distance between a and b in meters.
func Distance(a, b models.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func WithinRange(user, venue models.GeoPoint, radiusMeters float64) bool {
	return Distance(user, venue) <= radiusMeters
}

// Checker gates audience actions on distance to the venue. A zero Radius
// disables the check.
type Checker struct {
	Radius float64
}

func (c Checker) Allowed(user *models.GeoPoint, venue models.GeoPoint) bool {
	if c.Radius <= 0 {
		return true
	}
	if user == nil {
		return false
	}
	return WithinRange(*user, venue, c.Radius)
}
