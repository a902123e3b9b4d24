package logging

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

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{" Error ", ERROR},
		{"fatal", FATAL},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestTextFormatAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(INFO, false)
	l.SetOutput(&buf)

	l.Debug("hidden")
	l.WithField("index", 2).Info("Processing structure", map[string]interface{}{"job": "abc"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO: Processing structure index=2 job=abc")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(DEBUG, true)
	l.SetOutput(&buf)
	l.WithFields(map[string]interface{}{"state": "processing"}).Warn("slow provider")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "slow provider", entry.Message)
	assert.Equal(t, "processing", entry.Fields["state"])
}

func TestChildSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(INFO, false)
	child := l.WithField("a", 1)
	l.SetOutput(&buf)

	child.Info("from child")
	assert.Contains(t, buf.String(), "from child a=1")
}

func TestFatalCallsExit(t *testing.T) {
	var buf bytes.Buffer
	code := -1
	l := NewLogger(INFO, false)
	l.SetOutput(&buf)
	l.exit = func(c int) { code = c }

	l.Fatal("boom")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "FATAL: boom")
}

func TestNewFileLogger(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(dir, "label", INFO, false)
	require.NoError(t, err)
	l.Info("written to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "label.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Error("dropped") })
}

func TestLevelStringAndSync(t *testing.T) {
	assert.Equal(t, "WARN", WARN.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
	assert.NoError(t, NewLogger(INFO, false).Sync())

	l, err := NewFileLogger(t.TempDir(), "sync", INFO, false)
	require.NoError(t, err)
	defer l.Close()
	l.SetOutput(&bytes.Buffer{})
	assert.NoError(t, l.Sync())
}
