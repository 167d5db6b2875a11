package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
		SetRedactSecrets(true)
	})
	return &buf
}

func TestInfoWritesJSON(t *testing.T) {
	buf := capture(t)

	Info("chart collected", "chart", "top_200_daily", "records", 200)

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "chart collected", entry["msg"])
	assert.Equal(t, "top_200_daily", entry["chart"])
	assert.Equal(t, "200", entry["records"])
}

func TestLevelFilter(t *testing.T) {
	buf := capture(t)
	SetLevel(WARN)

	Debug("hidden")
	Info("hidden")
	Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestRedactsSecrets(t *testing.T) {
	buf := capture(t)

	Info("upstream call", "access_token", "BQDk3Xz9abcdefgh", "error", "401 for Authorization: Bearer abc.def.ghi")

	var entry map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "BQDk***", entry["access_token"])
	assert.Equal(t, "401 for Authorization: Bearer ***", entry["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("WARNING"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "***", RedactToken("short"))
	assert.Equal(t, "abcd***", RedactToken("abcdefghijkl"))
}
