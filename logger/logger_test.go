package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"trace":   LevelTrace,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"Warning": LevelWarn,
		"error":   LevelError,
		"off":     LevelNone,
	} {
		got, ok := ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	got, ok := ParseLevel("loud")
	assert.False(t, ok)
	assert.Equal(t, LevelInfo, got)
}

func TestGetLevelFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	assert.Equal(t, LevelError, GetLevelFromEnv())
	t.Setenv(EnvLogLevel, "")
	assert.Equal(t, LevelInfo, GetLevelFromEnv())
}

func TestConsoleLoggerFiltersLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelWarn)
	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN ] shown 2")
	assert.False(t, l.IsLevelEnabled(LevelDebug))
	assert.True(t, l.IsLevelEnabled(LevelError))
}

func TestConsoleLoggerPrefixAndMetadata(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelTrace).WithPrefix("[hydra]").With(map[string]interface{}{"id": "abc"})
	l.Debug("evicted")
	line := buf.String()
	assert.Contains(t, line, "[hydra] evicted")
	assert.Contains(t, line, `{"id":"abc"}`)
	assert.NotContains(t, line, "\x1b[", "buffers are not terminals")
}

func TestConsoleLoggerNone(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelNone)
	l.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONWriterLogger(&buf, LevelDebug).(*jsonLogger)
	ts := time.Date(2025, 7, 20, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return ts }
	l.WithPrefix("silo").With(map[string]interface{}{"key": "k1"}).Info("wrote %s", "\x1b[31mfile\x1b[0m")

	var entry JSONLogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "wrote file", entry.Message)
	assert.Equal(t, "INFO", entry.Severity)
	assert.Equal(t, "silo", entry.Component)
	assert.Equal(t, "k1", entry.Metadata["key"])
	assert.True(t, ts.Equal(entry.Timestamp))
}

func TestTestLoggerRecords(t *testing.T) {
	l := NewTestLogger()
	l.Trace("Trace message", 1)
	l.Warn("Warn message %d", 4)
	child := l.With(map[string]interface{}{"key1": "value1"})
	child.Error("boom")

	logs := l.Logs()
	require.Len(t, logs, 3)
	assert.Equal(t, "TRACE", logs[0].Severity)
	assert.Equal(t, []interface{}{1}, logs[0].Arguments)
	assert.Equal(t, "Warn message 4", logs[1].Formatted())
	assert.Equal(t, "value1", logs[2].Metadata["key1"])
	assert.Len(t, l.Find("ERROR", "boom"), 1)
	assert.Empty(t, l.Find("ERROR", "Warn"))
}

func TestTestLoggerConcurrent(t *testing.T) {
	l := NewTestLogger()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Info("tick %d", j)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, l.Logs(), 800)
}
