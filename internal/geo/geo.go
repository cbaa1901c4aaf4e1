// Package geo holds the geodesy helpers used for proximity checks and
// navigation hints. Every function is a pure transform of its arguments.
package geo

import (
	"fmt"
	"math"
)

// EarthRadius is the mean Earth radius in meters used by Distance.
const EarthRadius = 6371000.0

// Pedra Branca bounding box, in degrees.
const (
	PedraBrancaNorth = -27.620
	PedraBrancaSouth = -27.640
	PedraBrancaEast  = -48.670
	PedraBrancaWest  = -48.690
)

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is finite and within range.
func (c Coordinate) Valid() bool {
	return IsValidCoordinate(c.Lat, c.Lng)
}

// DistanceTo returns the great-circle distance to o in meters.
func (c Coordinate) DistanceTo(o Coordinate) float64 {
	return Distance(c.Lat, c.Lng, o.Lat, o.Lng)
}

// BearingTo returns the initial bearing from c to o in degrees.
func (c Coordinate) BearingTo(o Coordinate) float64 {
	return Bearing(c.Lat, c.Lng, o.Lat, o.Lng)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Distance returns the haversine distance between two points in meters.
// Inputs are not range checked; use IsValidCoordinate on untrusted input.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := ToRadians(lat2 - lat1)
	dLng := ToRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(ToRadians(lat1))*math.Cos(ToRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Bearing returns the initial great-circle bearing from point 1 to point 2,
// in degrees clockwise from north, normalized to [0, 360).
func Bearing(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := ToRadians(lat1)
	phi2 := ToRadians(lat2)
	dLng := ToRadians(lng2 - lng1)

	y := math.Sin(dLng) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLng)

	return NormalizeAngle(ToDegrees(math.Atan2(y, x)))
}

// FormatDistance renders meters for display: "999m" below one kilometer,
// "1.5km" from one kilometer up.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%dm", int64(math.Round(meters)))
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}

// IsValidCoordinate reports whether lat and lng are finite numbers inside
// the standard latitude and longitude ranges.
func IsValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// IsInPedraBranca reports whether the point lies inside the Pedra Branca
// bounding rectangle. The rectangle is coarser than the neighborhood itself.
func IsInPedraBranca(lat, lng float64) bool {
	return lat <= PedraBrancaNorth &&
		lat >= PedraBrancaSouth &&
		lng <= PedraBrancaEast &&
		lng >= PedraBrancaWest
}

// Lerp linearly interpolates between start and end. factor is not clamped.
func Lerp(start, end, factor float64) float64 {
	return start + (end-start)*factor
}

// NormalizeAngle maps any angle in degrees onto [0, 360).
func NormalizeAngle(angle float64) float64 {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	// -1e-15 + 360 rounds up to 360
	if a >= 360 {
		a = 0
	}
	return a
}

// ToRadians converts degrees to radians.
func ToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// ToDegrees converts radians to degrees.
func ToDegrees(radians float64) float64 {
	return radians * 180 / math.Pi
}
