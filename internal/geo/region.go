package geo

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// Region is an area a player can be inside of.
type Region interface {
	Contains(c Coordinate) bool
}

// Circle is a radius around a center point, in meters.
type Circle struct {
	Center Coordinate
	Radius float64
}

// Contains reports whether c is within Radius meters of Center.
func (r Circle) Contains(c Coordinate) bool {
	return r.Center.DistanceTo(c) <= r.Radius
}

// Box is a lat/lng rectangle. Edges are inclusive.
type Box struct {
	North, South, East, West float64
}

// PedraBranca is the coarse neighborhood geofence.
var PedraBranca = Box{
	North: PedraBrancaNorth,
	South: PedraBrancaSouth,
	East:  PedraBrancaEast,
	West:  PedraBrancaWest,
}

// Contains reports whether c falls inside the rectangle.
func (b Box) Contains(c Coordinate) bool {
	return c.Lat <= b.North && c.Lat >= b.South && c.Lng <= b.East && c.Lng >= b.West
}

// Polygon is a single-ring polygon in lng/lat space.
type Polygon struct {
	poly geom.Polygon
}

// Contains reports whether c lies inside the polygon or on its boundary.
func (p Polygon) Contains(c Coordinate) bool {
	pt, err := Point(c)
	if err != nil {
		return false
	}
	return geom.Intersects(p.poly.AsGeometry(), pt.AsGeometry())
}

// Geometry returns the underlying simplefeatures polygon.
func (p Polygon) Geometry() geom.Polygon {
	return p.poly
}

// ParsePolygon parses a JSON ring of [lng,lat] pairs into a Polygon.
// Input format: "[[lng1,lat1],[lng2,lat2],...]". An open ring is closed.
func ParsePolygon(input []byte) (Polygon, error) {
	var coords [][]float64
	if err := json.Unmarshal(input, &coords); err != nil {
		return Polygon{}, fmt.Errorf("failed to parse polygon JSON: %w", err)
	}

	if len(coords) < 3 {
		return Polygon{}, fmt.Errorf("polygon must have at least 3 points, got %d", len(coords))
	}

	flat := make([]float64, 0, (len(coords)+1)*2)
	for i, coord := range coords {
		if len(coord) < 2 {
			return Polygon{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		if !IsValidCoordinate(coord[1], coord[0]) {
			return Polygon{}, fmt.Errorf("coordinate %d: %w", i, ErrInvalidCoordinates)
		}
		flat = append(flat, coord[0], coord[1])
	}

	first, last := coords[0], coords[len(coords)-1]
	if first[0] != last[0] || first[1] != last[1] {
		flat = append(flat, first[0], first[1])
	}
	if len(flat) < 8 {
		return Polygon{}, fmt.Errorf("polygon ring must have at least 3 distinct points")
	}

	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return Polygon{}, fmt.Errorf("invalid polygon ring: %w", err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		return Polygon{}, fmt.Errorf("invalid polygon ring: %w", err)
	}
	return Polygon{poly: poly}, nil
}
