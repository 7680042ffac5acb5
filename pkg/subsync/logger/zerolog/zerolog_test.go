package zerolog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_ImplementsInterface(t *testing.T) {
	var _ subsync.Logger = NewLogger(nil)
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*Logger)
	}{
		{"debug", func(l *Logger) { l.Debug("msg", subsync.F("k", "v")) }},
		{"info", func(l *Logger) { l.Info("msg", subsync.F("k", "v")) }},
		{"warn", func(l *Logger) { l.Warn("msg", subsync.F("k", "v")) }},
		{"error", func(l *Logger) { l.Error("msg", subsync.F("k", "v")) }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			zlog := zerolog.New(&buf)
			tt.log(NewLogger(&zlog))

			entry := decode(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "msg", entry["message"])
			assert.Equal(t, "v", entry["k"])
		})
	}
}

func TestLogger_FieldTypes(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf)
	logger := NewLogger(&zlog)

	logger.Info("profile reconciled",
		subsync.F("profile_id", "user-1"),
		subsync.F("upgrade", true),
		subsync.F("count", 3),
		subsync.F("cause", errors.New("boom")),
		subsync.F("status", subsync.StatusActive))

	entry := decode(t, &buf)
	assert.Equal(t, "user-1", entry["profile_id"])
	assert.Equal(t, true, entry["upgrade"])
	assert.Equal(t, float64(3), entry["count"])
	assert.Equal(t, "boom", entry["cause"])
	assert.Equal(t, "active", entry["status"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf).Level(zerolog.WarnLevel)
	logger := NewLogger(&zlog)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(&buf)
	logger := NewLogger(&zlog).With(subsync.F("component", "processor"))

	logger.Info("hello")

	entry := decode(t, &buf)
	assert.Equal(t, "processor", entry["component"])
}
