package platform

import (
	"log/slog"
	"time"
)

// Vibrator drives the device's vibration motor.
type Vibrator interface {
	Vibrate(pattern []time.Duration) error
}

// Common patterns.
var (
	PatternMissionStart    = []time.Duration{100 * time.Millisecond}
	PatternMissionComplete = []time.Duration{200 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
)

// Vibrate forwards pattern to v. It reports false, logging the cause,
// when v is nil or fails; it never returns an error.
func Vibrate(logger *slog.Logger, v Vibrator, pattern ...time.Duration) bool {
	if v == nil || len(pattern) == 0 {
		return false
	}
	if err := v.Vibrate(pattern); err != nil {
		if logger != nil {
			logger.Warn("Vibration failed", "error", err)
		}
		return false
	}
	return true
}
