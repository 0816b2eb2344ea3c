// Package geo implements great-circle distance and the combined text +
// radius search over the pantry directory.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// EarthRadiusKM treats the earth as a sphere, matching the haversine model.
const EarthRadiusKM = 6371.0

const kmPerMile = 1.60934

// MilesToKilometers converts a radius given in miles.
func MilesToKilometers(miles float64) float64 {
	return miles * kmPerMile
}

// Distance returns the haversine great-circle distance in kilometers between
// two coordinates given as (lng, lat) pairs in decimal degrees. Implemented
// once so any store-level radius push-down gives identical results.
func Distance(a, b geom.Coord) float64 {
	lat1 := a.Y() * math.Pi / 180
	lat2 := b.Y() * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.X() - a.X()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKM * math.Asin(math.Sqrt(h))
}
