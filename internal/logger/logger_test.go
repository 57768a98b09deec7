package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("json", &buf)
	l.Info().Str("revision", "extended").Msg("Reply decoded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "extended", entry["revision"])
	assert.Equal(t, "Reply decoded", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewConsoleWithoutColors(t *testing.T) {
	var buf bytes.Buffer
	l := New("console", &buf)
	l.Warn().Msg("plain")

	assert.Contains(t, buf.String(), "plain")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestSetupFileOutput(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "app.log")
	Setup(Config{Level: "debug", Format: "json", Output: path})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	l := Component("collector")
	l.Debug().Msg("poll")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"collector"`)

	Setup(Config{Level: "bogus", Format: "json", Output: "stderr"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
