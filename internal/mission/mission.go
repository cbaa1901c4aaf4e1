// Package mission owns the mission catalog, the current-mission cursor and
// the event bus that announces mission starts and completions.
package mission

import (
	"encoding/json"
	"fmt"

	"github.com/pedrabranca/geoquest/internal/geo"
	"gorm.io/datatypes"
)

// ID identifies a mission. Zero is a valid id.
type ID int64

func (id ID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// Mission is a mission definition. The manager only inspects ID and Name;
// the remaining fields are read by the orchestrator and the client.
type Mission struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Target      *geo.Coordinate `json:"target,omitempty"`
	Radius      float64         `json:"radius,omitempty"`
	Area        json.RawMessage `json:"area,omitempty"`
	Payload     datatypes.JSON  `json:"payload,omitempty"`
}

// Region returns the area that completes the mission: the polygon in Area
// when present, otherwise a circle of Radius around Target. ok is false
// when the mission has no spatial trigger.
func (m Mission) Region(defaultRadius float64) (geo.Region, bool, error) {
	if len(m.Area) > 0 {
		poly, err := geo.ParsePolygon(m.Area)
		if err != nil {
			return nil, false, fmt.Errorf("mission %d area: %w", m.ID, err)
		}
		return poly, true, nil
	}
	if m.Target == nil {
		return nil, false, nil
	}
	radius := m.Radius
	if radius <= 0 {
		radius = defaultRadius
	}
	return geo.Circle{Center: *m.Target, Radius: radius}, true, nil
}
