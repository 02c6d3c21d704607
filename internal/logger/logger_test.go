package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
	require.Equal(t, slog.LevelWarn, parseLevel("warn"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "api", "info", "json")
	log.Debug("hidden")
	log.Info("briefing built", slog.Int("kept", 3))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "api", line["service"])
	require.Equal(t, "briefing built", line["msg"])
	require.EqualValues(t, 3, line["kept"])
}

func TestTextFormatIsDefault(t *testing.T) {
	var buf bytes.Buffer
	newWithWriter(&buf, "worker", "", "").Info("started")
	require.Contains(t, buf.String(), "service=worker")
	require.Contains(t, buf.String(), "msg=started")
}
