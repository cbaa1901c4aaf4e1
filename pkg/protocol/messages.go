// Package protocol defines the JSON messages exchanged with game clients
// over the WebSocket. Every message is an Envelope whose payload shape is
// selected by Type.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client to server message types.
const (
	TypeHello           = "hello"
	TypeLocation        = "location"
	TypeStartMission    = "start_mission"
	TypeCompleteMission = "complete_mission"
	TypeListMissions    = "list_missions"
	TypeMetric          = "metric"
)

// Server to client message types.
const (
	TypeWelcome         = "welcome"
	TypeMissions        = "missions"
	TypeProgress        = "progress"
	TypeMissionStart    = "mission_start"
	TypeMissionComplete = "mission_complete"
	TypeNavigation      = "navigation"
	TypeGeofence        = "geofence"
	TypeVibrate         = "vibrate"
	TypeError           = "error"
	TypeAck             = "ack"
)

// ErrMalformed is returned when a message is not a valid envelope.
var ErrMalformed = errors.New("malformed message")

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// HelloPayload opens a session. Features is the client's capability report.
type HelloPayload struct {
	Player   string   `json:"player"`
	Features []string `json:"features"`
}

// LocationPayload is one position fix. Heading is the device compass
// heading in degrees, when available.
type LocationPayload struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Accuracy  float64  `json:"accuracy,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"` // unix millis
}

// MissionRequestPayload names a mission for start_mission and
// complete_mission.
type MissionRequestPayload struct {
	MissionID int64 `json:"missionId"`
}

// MetricPayload is a client-side measurement forwarded to telemetry.
type MetricPayload struct {
	Name   string         `json:"name"`
	Fields map[string]any `json:"fields"`
}

// WelcomePayload confirms a session.
type WelcomePayload struct {
	SessionID string   `json:"sessionId"`
	Playable  bool     `json:"playable"`
	Missing   []string `json:"missing,omitempty"`
}

// MissionInfo describes one catalog entry to the client.
type MissionInfo struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Lat         *float64        `json:"lat,omitempty"`
	Lng         *float64        `json:"lng,omitempty"`
	Radius      float64         `json:"radius,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// MissionsPayload carries the catalog.
type MissionsPayload struct {
	Missions []MissionInfo `json:"missions"`
}

// ProgressEntry is the status of one mission.
type ProgressEntry struct {
	MissionID   int64  `json:"missionId"`
	Status      string `json:"status"`
	Completions int    `json:"completions"`
}

// ProgressPayload carries a player's progress.
type ProgressPayload struct {
	Missions []ProgressEntry `json:"missions"`
}

// MissionEventPayload announces a mission start or completion.
type MissionEventPayload struct {
	MissionID int64           `json:"missionId"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NavigationPayload guides the player toward the current mission.
// RelativeBearing is set only when the client reported a heading.
type NavigationPayload struct {
	MissionID       int64    `json:"missionId"`
	Distance        float64  `json:"distance"`
	DistanceText    string   `json:"distanceText"`
	Bearing         float64  `json:"bearing"`
	RelativeBearing *float64 `json:"relativeBearing,omitempty"`
	InRange         bool     `json:"inRange"`
	X               float64  `json:"x"` // target web-mercator easting
	Y               float64  `json:"y"` // target web-mercator northing
}

// GeofencePayload reports whether the player is inside the play area.
type GeofencePayload struct {
	Inside bool `json:"inside"`
}

// VibratePayload asks the client to vibrate. Pattern alternates on/off
// durations in milliseconds.
type VibratePayload struct {
	Pattern []int64 `json:"pattern"`
}

// ErrorPayload reports a rejected request.
type ErrorPayload struct {
	For     string `json:"for,omitempty"`
	Message string `json:"message"`
}

// Encode wraps payload in an envelope of the given type. A nil payload
// produces an envelope without one.
func Encode(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses an envelope. The payload is left raw.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into a T.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, fmt.Errorf("%w: %s has no payload", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return out, nil
}
