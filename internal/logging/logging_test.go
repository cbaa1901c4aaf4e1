package logging

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		prefix  string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			prefix:  "geoquest",
			want:    filepath.Join("logs", "geoquest.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			prefix:  "geoquest",
			want:    filepath.Join(".", "logs", "geoquest.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "geoquest"),
			prefix:  "geoquest",
			want:    filepath.Join("/var", "log", "geoquest", "geoquest.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.prefix, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewZerolog_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "WARN")

	logger.Info().Msg("quiet")
	logger.Warn().Msg("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestNewZerolog_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "chatty")

	logger.Debug().Msg("dropped")
	logger.Info().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewGraylogWriter_BadAddress(t *testing.T) {
	_, err := NewGraylogWriter("not an address")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graylog")
}
