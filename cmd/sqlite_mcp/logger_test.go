package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyLogger(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "pretty")

	logger.Debug("hidden")
	logger.With("tool", "execute_sql").WithGroup("call").Warn("tool call failed", "kind", "StorageError")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN tool call failed")
	assert.Contains(t, out, " tool=execute_sql")
	assert.Contains(t, out, " call.kind=StorageError")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "DEBUG", "json").Debug("opened database", "name", "main.db")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "DEBUG", line["level"])
	assert.Equal(t, "opened database", line["msg"])
	assert.Equal(t, "main.db", line["name"])
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "loud", "text")

	assert.False(t, logger.Enabled(t.Context(), slog.LevelDebug))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelInfo))
}
