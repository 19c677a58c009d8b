package utils

import "math"

// EarthRadiusKm is the mean radius of the Earth used by the haversine formula.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between two
// points given as (latitude, longitude) in degrees. It is symmetric and
// returns 0 for identical points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * (math.Pi / 180)
	dLon := (lon2 - lon1) * (math.Pi / 180)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*(math.Pi/180))*math.Cos(lat2*(math.Pi/180))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// BoundingBox returns the latitude/longitude bounds of a box that fully
// contains the circle of the given radius around (lat, lon). Used as a cheap
// SQL prefilter before the exact haversine check; the box is wider than the
// circle, never narrower.
func BoundingBox(lat, lon, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	latDelta := radiusKm / 111.0 // ~111 km per degree of latitude

	minLat = lat - latDelta
	maxLat = lat + latDelta

	// Longitude degrees shrink with latitude. Near the poles the box
	// degenerates to the full longitude range.
	cosLat := math.Cos(lat * (math.Pi / 180))
	if cosLat < 0.01 {
		return minLat, maxLat, -180, 180
	}
	lonDelta := radiusKm / (111.0 * cosLat)

	return minLat, maxLat, lon - lonDelta, lon + lonDelta
}

// ValidCoordinates reports whether lat/lon form a usable geographic point.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
