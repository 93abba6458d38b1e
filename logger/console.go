package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const isWindows = runtime.GOOS == "windows"

const (
	Reset      = "\033[0m"
	Red        = "\033[31m"
	Green      = "\033[32m"
	Magenta    = "\033[35m"
	BlueBold   = "\033[34;1m"
	RedBold    = "\033[31;1m"
	YellowBold = "\033[33;1m"
	WhiteBold  = "\033[37;1m"
	CyanBold   = "\033[36;1m"
	Gray       = "\033[1;90m"
	Purple     = "\u001b[38;5;200m"
)

type palette struct {
	level   string
	message string
}

var palettes = map[LogLevel]palette{
	LevelTrace: {CyanBold, Gray},
	LevelDebug: {BlueBold, Green},
	LevelInfo:  {YellowBold, WhiteBold},
	LevelWarn:  {Magenta, Magenta},
	LevelError: {RedBold, Red},
}

func useColor(w io.Writer) bool {
	if isWindows || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type consoleLogger struct {
	out      io.Writer
	mu       *sync.Mutex
	color    bool
	prefixes []string
	metadata map[string]interface{}
	level    LogLevel
	now      func() time.Time
}

var _ Logger = (*consoleLogger)(nil)

func (c *consoleLogger) clone() *consoleLogger {
	cp := *c
	cp.prefixes = slices.Clone(c.prefixes)
	cp.metadata = cloneMetadata(c.metadata, nil)
	return &cp
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *consoleLogger) WithPrefix(prefix string) Logger {
	l := c.clone()
	if !slices.Contains(l.prefixes, prefix) {
		l.prefixes = append(l.prefixes, prefix)
	}
	return l
}

func (c *consoleLogger) With(metadata map[string]interface{}) Logger {
	l := c.clone()
	l.metadata = cloneMetadata(c.metadata, metadata)
	return l
}

func (c *consoleLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= c.level && c.level != LevelNone
}

func (c *consoleLogger) paint(code, s string) string {
	if !c.color {
		return s
	}
	return code + s + Reset
}

func (c *consoleLogger) log(level LogLevel, msg string, args ...interface{}) {
	if !c.IsLevelEnabled(level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	p := palettes[level]
	var sb strings.Builder
	sb.WriteString(c.now().Format(time.RFC3339))
	sb.WriteByte(' ')
	sb.WriteString(c.paint(p.level, fmt.Sprintf("[%-5s]", level.String())))
	sb.WriteByte(' ')
	if len(c.prefixes) > 0 {
		sb.WriteString(c.paint(Purple, strings.Join(c.prefixes, " ")))
		sb.WriteByte(' ')
	}
	sb.WriteString(c.paint(p.message, msg))
	if len(c.metadata) > 0 {
		if buf, err := json.Marshal(c.metadata); err == nil {
			sb.WriteByte(' ')
			sb.WriteString(c.paint(Gray, string(buf)))
		}
	}
	sb.WriteByte('\n')
	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.out, sb.String())
}

func (c *consoleLogger) Trace(msg string, args ...interface{}) { c.log(LevelTrace, msg, args...) }
func (c *consoleLogger) Debug(msg string, args ...interface{}) { c.log(LevelDebug, msg, args...) }
func (c *consoleLogger) Info(msg string, args ...interface{})  { c.log(LevelInfo, msg, args...) }
func (c *consoleLogger) Warn(msg string, args ...interface{})  { c.log(LevelWarn, msg, args...) }
func (c *consoleLogger) Error(msg string, args ...interface{}) { c.log(LevelError, msg, args...) }

// NewConsoleLogger returns a new Logger instance which will log to stderr.
// Without an explicit level the level is read from CACHEW_LOG_LEVEL.
func NewConsoleLogger(levels ...LogLevel) Logger {
	level := GetLevelFromEnv()
	if len(levels) > 0 {
		level = levels[0]
	}
	return NewWriterLogger(os.Stderr, level)
}

// NewWriterLogger returns a console style Logger writing to w. Colors are
// only used when w is a terminal.
func NewWriterLogger(w io.Writer, level LogLevel) Logger {
	return &consoleLogger{
		out:      w,
		mu:       &sync.Mutex{},
		color:    useColor(w),
		metadata: map[string]interface{}{},
		level:    level,
		now:      time.Now,
	}
}
