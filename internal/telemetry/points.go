package telemetry

import (
	"fmt"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pedrabranca/geoquest/internal/geo"
)

// LocationPoint builds the point for one location fix.
func LocationPoint(session, player string, c geo.Coordinate, accuracy float64, inArea bool, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementLocation,
		map[string]string{
			"session": session,
			"player":  player,
		},
		map[string]any{
			"lat":      c.Lat,
			"lng":      c.Lng,
			"accuracy": accuracy,
			"in_area":  inArea,
		},
		at,
	)
}

// MissionPoint builds the point for a mission lifecycle event.
func MissionPoint(session, player, event string, missionID int64, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementMission,
		map[string]string{
			"session": session,
			"player":  player,
			"event":   event,
		},
		map[string]any{
			"mission_id": missionID,
		},
		at,
	)
}

// ClientPoint builds a point from a client-reported metric. Only string,
// bool and numeric field values are accepted; JSON numbers arrive as float64.
func ClientPoint(session, name string, fields map[string]any, at time.Time) (*influxdb2_write.Point, error) {
	if name == "" {
		return nil, fmt.Errorf("metric name required")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("metric %s has no fields", name)
	}

	point := influxdb2_write.NewPointWithMeasurement(MeasurementClient).
		AddTag("session", session).
		AddTag("name", name).
		SetTime(at)

	for k, v := range fields {
		switch v.(type) {
		case string, bool, float64, float32, int, int64:
			point.AddField(k, v)
		default:
			return nil, fmt.Errorf("metric %s field %s: unsupported value type %T", name, k, v)
		}
	}
	point.SortFields()

	return point, nil
}
