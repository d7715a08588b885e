package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFormatsCategory(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)

	l.Info("gig", "went live")
	l.LogRequest("ACCEPT", "gig-1", "req-9")

	out := buf.String()
	assert.Contains(t, out, "[GIG       ] went live")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "[ACCEPT] gig=gig-1 request=req-9")
}

func TestMinLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)
	l.minLevel = WARN

	l.Debug("STORE", "noise")
	l.Info("STORE", "noise")
	l.Warn("STORE", "kept")

	assert.NotContains(t, buf.String(), "noise")
	assert.Contains(t, buf.String(), "kept")
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("APP", "ignored")
		l.Close()
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, parseLevel("debug"))
	assert.Equal(t, WARN, parseLevel("WARN"))
	assert.Equal(t, INFO, parseLevel(""))
	assert.Equal(t, INFO, parseLevel("fatal"))
}

func TestFileLoggerWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir, "gigs-test")
	l.out = &bytes.Buffer{}
	l.LogGig("LIVE", "gig-1", "started")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "gigs-test-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	assert.Equal(t, "GIG", entry.Category)
	assert.Equal(t, "gigs-test", entry.Service)
	assert.Equal(t, "[LIVE] gig-1 - started", entry.Message)
}
