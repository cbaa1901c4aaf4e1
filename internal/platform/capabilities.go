// Package platform describes what the player's device can do. The browser
// runs the feature detection and reports the result; the server only reads
// the report.
package platform

import "strings"

// Feature names as reported by the client.
const (
	FeatureGeolocation       = "geolocation"
	FeatureCamera            = "camera"
	FeatureVibration         = "vibration"
	FeatureServiceWorker     = "serviceWorker"
	FeatureWebGL             = "webgl"
	FeatureDeviceOrientation = "deviceOrientation"
)

// Capabilities are independent feature flags for a device.
type Capabilities struct {
	Geolocation       bool `json:"geolocation"`
	Camera            bool `json:"camera"`
	Vibration         bool `json:"vibration"`
	ServiceWorker     bool `json:"serviceWorker"`
	WebGL             bool `json:"webgl"`
	DeviceOrientation bool `json:"deviceOrientation"`
}

// Prober answers whether a named feature is present.
type Prober interface {
	Has(feature string) bool
}

// Detect probes every feature independently.
func Detect(p Prober) Capabilities {
	if p == nil {
		return Capabilities{}
	}
	return Capabilities{
		Geolocation:       p.Has(FeatureGeolocation),
		Camera:            p.Has(FeatureCamera),
		Vibration:         p.Has(FeatureVibration),
		ServiceWorker:     p.Has(FeatureServiceWorker),
		WebGL:             p.Has(FeatureWebGL),
		DeviceOrientation: p.Has(FeatureDeviceOrientation),
	}
}

// Playable reports whether the device has the minimum the game needs:
// a position source and a camera.
func (c Capabilities) Playable() bool {
	return c.Geolocation && c.Camera
}

// Missing lists the names of absent features.
func (c Capabilities) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{FeatureGeolocation, c.Geolocation},
		{FeatureCamera, c.Camera},
		{FeatureVibration, c.Vibration},
		{FeatureServiceWorker, c.ServiceWorker},
		{FeatureWebGL, c.WebGL},
		{FeatureDeviceOrientation, c.DeviceOrientation},
	} {
		if !f.ok {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Report is the feature list a client sends during the handshake.
// Names are matched case-insensitively.
type Report []string

// Has implements Prober.
func (r Report) Has(feature string) bool {
	for _, f := range r {
		if strings.EqualFold(strings.TrimSpace(f), feature) {
			return true
		}
	}
	return false
}

// Flags is a Prober backed by an explicit feature map.
type Flags map[string]bool

// Has implements Prober.
func (f Flags) Has(feature string) bool {
	return f[feature]
}
