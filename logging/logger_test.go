package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViniZap4/lumi-notes/config"
)

func TestJSONLoggerFiltersByLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	log := Component(NewWriter(cfg, &buf), "autosave")
	log.Info().Msg("dropped")
	log.Warn().Str("note_id", "n1").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "autosave", entry["component"])
	assert.Equal(t, "lumi", entry["service"])
	assert.Equal(t, "n1", entry["note_id"])
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	cfg := config.Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "chatty"

	var buf bytes.Buffer
	log := NewWriter(cfg, &buf)
	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestConsoleFormat(t *testing.T) {
	cfg := config.Default()

	var buf bytes.Buffer
	log := NewWriter(cfg, &buf)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}
