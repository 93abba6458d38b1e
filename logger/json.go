package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// JSONLogEntry defines a single structured log line.
type JSONLogEntry struct {
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Component string                 `json:"component,omitempty"`
}

type jsonLogger struct {
	out       io.Writer
	mu        *sync.Mutex
	metadata  map[string]interface{}
	component string
	level     LogLevel
	now       func() time.Time
}

var _ Logger = (*jsonLogger)(nil)

func (c *jsonLogger) clone() *jsonLogger {
	cp := *c
	cp.metadata = cloneMetadata(c.metadata, nil)
	return &cp
}

// WithPrefix will return a new logger with the prefix appended to the component
func (c *jsonLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	switch {
	case l.component == "":
		l.component = prefix
	case !strings.Contains(l.component, prefix):
		l.component = l.component + " " + prefix
	}
	return l
}

func (c *jsonLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	l.metadata = cloneMetadata(c.metadata, metadata)
	if comp, ok := l.metadata["component"].(string); ok {
		l.component = comp
		delete(l.metadata, "component")
	}
	return l
}

func (c *jsonLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.level && c.level != LevelNone
}

func (c *jsonLogger) log(level LogLevel, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	entry := JSONLogEntry{
		Timestamp: c.now(),
		Message:   StripColors(msg),
		Severity:  level.String(),
		Component: c.component,
	}
	if len(c.metadata) > 0 {
		entry.Metadata = c.metadata
	}
	buf, err := json.Marshal(entry)
	if err != nil {
		return
	}
	buf = append(buf, '\n')
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out.Write(buf)
}

func (c *jsonLogger) Trace(msg string, args ...interface{}) { c.log(LevelTrace, msg, args...) }
func (c *jsonLogger) Debug(msg string, args ...interface{}) { c.log(LevelDebug, msg, args...) }
func (c *jsonLogger) Info(msg string, args ...interface{})  { c.log(LevelInfo, msg, args...) }
func (c *jsonLogger) Warn(msg string, args ...interface{})  { c.log(LevelWarn, msg, args...) }
func (c *jsonLogger) Error(msg string, args ...interface{}) { c.log(LevelError, msg, args...) }

// NewJSONLogger returns a Logger writing one JSON object per line to stderr.
func NewJSONLogger(levels ...LogLevel) Logger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return NewJSONWriterLogger(os.Stderr, level)
}

// NewJSONWriterLogger returns a JSON Logger writing to w.
func NewJSONWriterLogger(w io.Writer, level LogLevel) Logger {
	return &jsonLogger{
		out:      w,
		mu:       &sync.Mutex{},
		metadata: map[string]interface{}{},
		level:    level,
		now:      time.Now,
	}
}
