// Package geo provides geographic calculations for geofence evaluation.
package geo

import (
	"math"

	"github.com/seaward/buoyd/internal/telemetry"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000

// DistanceMeters returns the great-circle distance between two WGS-84
// coordinates using the haversine formula. The spherical-earth approximation
// keeps the error under 1% for the sub-20 km distances this domain cares about.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// IsOutsideFence reports whether the given position lies outside the
// deployment's allowed radius.
func IsOutsideFence(dep *telemetry.Deployment, lat, lon float64) bool {
	return DistanceMeters(dep.Lat, dep.Lon, lat, lon) > dep.AllowedRadiusMeters
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
