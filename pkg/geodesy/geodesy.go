// Package geodesy holds the great-circle helpers used to turn consecutive fixes
// into travelled distance and heading.
package geodesy

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the sphere radius the odometer integrates on
const EarthRadiusMeters = 6372795.0

// MillionthsPerDegree is the fixed-point scale of decoded coordinates
const MillionthsPerDegree = 1000000.0

var cardinals = [16]string{
	"N", "NNE", "NE", "ENE",
	"E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW",
	"W", "WNW", "NW", "NNW",
}

// Distance returns the great-circle distance in meters between two points given in decimal degrees
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Bearing returns the initial course in degrees [0, 360) from point 1 to point 2, North is 0
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	return bearing(s2.LatLngFromDegrees(lat1, lon1), s2.LatLngFromDegrees(lat2, lon2))
}

func bearing(p1, p2 s2.LatLng) float64 {
	lat1 := p1.Lat.Radians()
	lat2 := p2.Lat.Radians()
	lonDiff := (p2.Lng - p1.Lng).Radians()

	y := math.Sin(lonDiff) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lonDiff)

	return math.Mod(s1.Angle(math.Atan2(y, x)).Degrees()+360, 360)
}

// Cardinal buckets a course into one of 16 compass labels, 22.5 degrees each
func Cardinal(course float64) string {
	idx := int((course+11.25)/22.5) % 16
	if idx < 0 {
		idx += 16
	}
	return cardinals[idx]
}

// FromMillionths converts a fixed-point coordinate into decimal degrees
func FromMillionths(v int32) float64 {
	return float64(v) / MillionthsPerDegree
}

// DistanceMillionths is Distance for fixed-point coordinates as produced by the NMEA decoder
func DistanceMillionths(lat1, lon1, lat2, lon2 int32) float64 {
	return Distance(FromMillionths(lat1), FromMillionths(lon1), FromMillionths(lat2), FromMillionths(lon2))
}

// BearingMillionths is Bearing for fixed-point coordinates
func BearingMillionths(lat1, lon1, lat2, lon2 int32) float64 {
	return Bearing(FromMillionths(lat1), FromMillionths(lon1), FromMillionths(lat2), FromMillionths(lon2))
}
