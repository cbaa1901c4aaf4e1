package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when coordinates cannot be parsed or are out of range
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParseCoordinate parses a "lat,lng" string into a Coordinate.
// Extra components (altitude, accuracy) are ignored.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return Coordinate{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, ErrInvalidCoordinates
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, ErrInvalidCoordinates
	}
	c := Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coordinate{}, ErrInvalidCoordinates
	}
	return c, nil
}

// WebMercator projects a coordinate from EPSG:4326 to EPSG:3857.
// The overlay places mission markers on this plane.
func WebMercator(c Coordinate) (geom.Point, error) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(c.Lng, c.Lat, 0)
	point, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	return point, nil
}

// Point converts a coordinate into a simplefeatures point with X=lng, Y=lat.
func Point(c Coordinate) (geom.Point, error) {
	point, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: c.Lng, Y: c.Lat},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	return point, nil
}
