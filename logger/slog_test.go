package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		rec := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}

	return records
}

func TestSlogLogger_LevelFilter(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, WarnLevel, false)

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg", "address", "TCPIP0::10.0.0.1::5025::SOCKET")
	l.Error("error msg")

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, "warn msg", records[0]["msg"])
	assert.Equal(t, "TCPIP0::10.0.0.1::5025::SOCKET", records[0]["address"])
	assert.Contains(t, records[0], "ts", "time key should be renamed to ts")
	assert.Equal(t, "error msg", records[1]["msg"])
}

func TestSlogLogger_SetLevel(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)
	assert.Equal(t, InfoLevel, l.Level())

	l.Debug("hidden")
	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())
	l.Debug("shown")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "shown", records[0]["msg"])
}

func TestSlogLogger_With(t *testing.T) {
	t.Setenv("ENV", "")

	var buf bytes.Buffer
	parent := NewSlogWriter(&buf, InfoLevel, false)
	child := parent.With("model", "N5182A")

	child.Info("child")
	parent.Info("parent")

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, "N5182A", records[0]["model"])
	assert.NotContains(t, records[1], "model")

	// child shares the level of its parent
	parent.SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, child.Level())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasErr   bool
	}{
		{input: "debug", expected: DebugLevel},
		{input: "INFO", expected: InfoLevel},
		{input: "", expected: InfoLevel},
		{input: "warning", expected: WarnLevel},
		{input: " error ", expected: ErrorLevel},
		{input: "fatal", expected: FatalLevel},
		{input: "verbose", expected: InfoLevel, hasErr: true},
	}

	for _, tt := range tests {
		lv, err := ParseLevel(tt.input)
		if tt.hasErr {
			assert.Error(t, err, tt.input)
		} else {
			assert.NoError(t, err, tt.input)
		}
		assert.Equal(t, tt.expected, lv, tt.input)
	}

	assert.Equal(t, "warn", WarnLevel.String())
	assert.Equal(t, "level(9)", Level(9).String())
}

func TestMockLogger_AllowAll(t *testing.T) {
	m := NewMockLogger().AllowAll()

	m.Info("open", "address", "sim")
	child := m.With("model", "N5182A")
	child.Debug("query")

	m.AssertCalled(t, "Info", "open", []any{"address", "sim"})
	m.AssertCalled(t, "Debug", "query", []any(nil))
}
