package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// badKey holds a trailing value that has no key, as slog does.
const badKey = "!BADKEY"

// BusLogger lets the event bus log through zerolog. It satisfies
// events.Logger.
type BusLogger struct {
	logger zerolog.Logger
}

func NewBusLogger(logger zerolog.Logger) *BusLogger {
	return &BusLogger{logger: logger}
}

func (l *BusLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *BusLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *BusLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(toFields(keysAndValues)).Msg(msg)
}

// toFields pairs up slog-style arguments. Non-string keys are formatted
// with fmt.Sprint.
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 == len(keysAndValues) {
			fields[badKey] = keysAndValues[i]
			break
		}
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
