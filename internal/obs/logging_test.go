package obs

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFormats(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	debugLogger := newLogger(&buf, "json", "debug")
	debugLogger.Debug().Str("order_id", "o-1").Msg("placed")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "o-1", entry["order_id"])
	require.Contains(t, entry, "time")

	buf.Reset()
	consoleLogger := newLogger(&buf, "console", "info")
	consoleLogger.Info().Msg("ready")
	require.Contains(t, buf.String(), "ready")
	require.False(t, json.Valid(buf.Bytes()))
}

func TestNewLoggerUnknownLevelFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "chatty")
	logger.Debug().Msg("hidden")
	require.Zero(t, buf.Len())
	logger.Info().Msg("shown")
	require.NotZero(t, buf.Len())
}
