package platform

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetect_AllPresent(t *testing.T) {
	caps := Detect(Report{"geolocation", "camera", "vibration", "serviceWorker", "webgl", "deviceOrientation"})

	assert.Equal(t, Capabilities{
		Geolocation:       true,
		Camera:            true,
		Vibration:         true,
		ServiceWorker:     true,
		WebGL:             true,
		DeviceOrientation: true,
	}, caps)
	assert.True(t, caps.Playable())
	assert.Empty(t, caps.Missing())
}

func TestDetect_Independent(t *testing.T) {
	caps := Detect(Flags{FeatureVibration: true, FeatureWebGL: true})

	assert.False(t, caps.Geolocation)
	assert.False(t, caps.Camera)
	assert.True(t, caps.Vibration)
	assert.False(t, caps.ServiceWorker)
	assert.True(t, caps.WebGL)
	assert.False(t, caps.DeviceOrientation)
	assert.False(t, caps.Playable())
	assert.Equal(t, []string{"geolocation", "camera", "serviceWorker", "deviceOrientation"}, caps.Missing())
}

func TestDetect_Nil(t *testing.T) {
	assert.Equal(t, Capabilities{}, Detect(nil))
}

func TestReport_CaseInsensitive(t *testing.T) {
	r := Report{" GeoLocation ", "WEBGL"}
	assert.True(t, r.Has(FeatureGeolocation))
	assert.True(t, r.Has(FeatureWebGL))
	assert.False(t, r.Has(FeatureCamera))
}

type fakeVibrator struct {
	patterns [][]time.Duration
	err      error
}

func (f *fakeVibrator) Vibrate(p []time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.patterns = append(f.patterns, p)
	return nil
}

func TestVibrate(t *testing.T) {
	v := &fakeVibrator{}
	assert.True(t, Vibrate(nil, v, PatternMissionComplete...))
	assert.Equal(t, [][]time.Duration{PatternMissionComplete}, v.patterns)
}

func TestVibrate_Guarded(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	assert.False(t, Vibrate(logger, nil, time.Second), "nil vibrator")
	assert.False(t, Vibrate(logger, &fakeVibrator{}), "empty pattern")

	failing := &fakeVibrator{err: errors.New("not allowed")}
	assert.False(t, Vibrate(logger, failing, time.Second))
	assert.Contains(t, buf.String(), "not allowed")
}
