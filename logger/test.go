package logger

import (
	"fmt"
	"strings"
	"sync"
)

type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
	Metadata  map[string]interface{}
}

// Formatted returns the message with its arguments applied.
func (e TestLogEntry) Formatted() string {
	if len(e.Arguments) == 0 {
		return e.Message
	}
	return fmt.Sprintf(e.Message, e.Arguments...)
}

type testSink struct {
	mu   sync.Mutex
	logs []TestLogEntry
}

// TestLogger records every entry in memory. Loggers derived with With or
// WithPrefix share the same record, and it is safe for concurrent use so
// background goroutines can log into it.
type TestLogger struct {
	metadata map[string]interface{}
	sink     *testSink
}

var _ Logger = (*TestLogger)(nil)

func (c *TestLogger) WithPrefix(prefix string) Logger {
	return c
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	return &TestLogger{metadata: cloneMetadata(c.metadata, metadata), sink: c.sink}
}

func (c *TestLogger) IsLevelEnabled(level LogLevel) bool {
	return true
}

func (c *TestLogger) Log(level string, msg string, args ...interface{}) {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	c.sink.logs = append(c.sink.logs, TestLogEntry{level, msg, args, c.metadata})
}

func (c *TestLogger) Trace(msg string, args ...interface{}) { c.Log("TRACE", msg, args...) }
func (c *TestLogger) Debug(msg string, args ...interface{}) { c.Log("DEBUG", msg, args...) }
func (c *TestLogger) Info(msg string, args ...interface{})  { c.Log("INFO", msg, args...) }
func (c *TestLogger) Warn(msg string, args ...interface{})  { c.Log("WARNING", msg, args...) }
func (c *TestLogger) Error(msg string, args ...interface{}) { c.Log("ERROR", msg, args...) }

// Logs returns a snapshot of the recorded entries.
func (c *TestLogger) Logs() []TestLogEntry {
	c.sink.mu.Lock()
	defer c.sink.mu.Unlock()
	out := make([]TestLogEntry, len(c.sink.logs))
	copy(out, c.sink.logs)
	return out
}

// Find returns the recorded entries of the given severity whose formatted
// message contains substr.
func (c *TestLogger) Find(severity, substr string) []TestLogEntry {
	var found []TestLogEntry
	for _, e := range c.Logs() {
		if e.Severity == severity && strings.Contains(e.Formatted(), substr) {
			found = append(found, e)
		}
	}
	return found
}

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	return &TestLogger{sink: &testSink{}}
}
