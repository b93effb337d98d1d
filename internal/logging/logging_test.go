package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeWritesJSONWithTimestamp(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New().FromWriter(buf).Make()
	require.NoError(t, err)

	logger.Info().Str("kind", "BOOK").Msg("published")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "published", line["message"])
	require.Equal(t, "BOOK", line["kind"])
	require.Contains(t, line, "time")
}

func TestMakeHonoursLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New().FromWriter(buf).WithLevel("WARN").Make()
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	require.Zero(t, buf.Len())
	logger.Warn().Msg("shown")
	require.True(t, strings.Contains(buf.String(), "shown"))
}

func TestMakeRejectsUnknownLevel(t *testing.T) {
	_, err := New().WithLevel("chatty").Make()
	require.Error(t, err)
}

func TestMakeAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editorial.log")
	logger, err := New().FromPath(path).Make()
	require.NoError(t, err)
	logger.Error().Msg("boom")
	require.NoError(t, logger.Close())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "boom")
}
