package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "failed to parse log output")
	return entry
}

func TestNewBusLogger(t *testing.T) {
	bl := NewBusLogger(zerolog.New(&bytes.Buffer{}))
	assert.NotNil(t, bl)
}

func TestBusLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	bl := NewBusLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	bl.Debug("test message", "key1", "value1", "key2", 42)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "test message", entry["message"])
	assert.Equal(t, "value1", entry["key1"])
	assert.Equal(t, float64(42), entry["key2"])
}

func TestBusLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	bl := NewBusLogger(zerolog.New(&buf))

	bl.Info("info message", "status", "ok")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ok", entry["status"])
}

func TestBusLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	bl := NewBusLogger(zerolog.New(&buf))

	bl.Error("listener failed", "event", "missionComplete")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "missionComplete", entry["event"])
}

func TestBusLogger_ErrorValue(t *testing.T) {
	var buf bytes.Buffer
	bl := NewBusLogger(zerolog.New(&buf))

	bl.Error("listener failed", "error", errors.New("boom"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "boom", entry["error"])
}

func TestBusLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	bl := NewBusLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	bl.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestToFields(t *testing.T) {
	tests := []struct {
		name string
		in   []any
		want map[string]any
	}{
		{"empty", nil, map[string]any{}},
		{"pairs", []any{"a", 1, "b", "two"}, map[string]any{"a": 1, "b": "two"}},
		{"odd count keeps value", []any{"a", 1, "b"}, map[string]any{"a": 1, "!BADKEY": "b"}},
		{"non-string key formatted", []any{3, "x", "k", "v"}, map[string]any{"3": "x", "k": "v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toFields(tt.in))
		})
	}
}
