package env

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/agentuity/go-cachew/logger"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// EnvLogLevel is the environment variable consulted when --log-level is not set.
const EnvLogLevel = logger.EnvLogLevel

type EnvLine struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// ParseEnvFile parses a dotenv file. A missing file yields no lines.
func ParseEnvFile(filename string) ([]EnvLine, error) {
	buf, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return []EnvLine{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read env file %s", filename)
	}
	return ParseEnvBuffer(buf)
}

func dequote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ProcessEnvLine splits a KEY=value line, removing one level of quotes from
// the value. An optional "export " prefix is ignored.
func ProcessEnvLine(line string) EnvLine {
	line = strings.TrimPrefix(line, "export ")
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return EnvLine{Key: strings.TrimSpace(line)}
	}
	return EnvLine{Key: strings.TrimSpace(key), Val: dequote(strings.TrimSpace(val))}
}

// ParseEnvBuffer parses dotenv content. Values may reference earlier keys
// or the process environment as ${NAME} or ${NAME:-default}.
func ParseEnvBuffer(buf []byte) ([]EnvLine, error) {
	envs := make([]EnvLine, 0)
	seen := make(map[string]string)
	lookup := func(name string) (string, bool) {
		if v, ok := seen[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	}
	scanner := bufio.NewScanner(bytes.NewReader(buf))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		el := ProcessEnvLine(line)
		if el.Key == "" {
			continue
		}
		el.Val = Interpolate(el.Val, lookup)
		seen[el.Key] = el.Val
		envs = append(envs, el)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	return envs, nil
}

// Interpolate replaces ${NAME} and ${NAME:-default} references using
// lookup. A reference to an unset or empty name without a default is left
// as written; an unterminated reference is copied through unchanged.
func Interpolate(input string, lookup func(string) (string, bool)) string {
	if !strings.Contains(input, "${") {
		return input
	}
	var out strings.Builder
	for {
		start := strings.Index(input, "${")
		if start < 0 {
			out.WriteString(input)
			return out.String()
		}
		end := strings.IndexByte(input[start:], '}')
		if end < 0 {
			out.WriteString(input)
			return out.String()
		}
		end += start
		out.WriteString(input[:start])
		ref := input[start : end+1]
		name, def, hasDefault := strings.Cut(input[start+2:end], ":-")
		val, ok := lookup(name)
		switch {
		case name == "":
			out.WriteString(ref)
		case ok && val != "":
			out.WriteString(val)
		case hasDefault:
			out.WriteString(def)
		default:
			out.WriteString(ref)
		}
		input = input[end+1:]
	}
}

// Apply sets every line in the process environment unless the variable is
// already set, so real environment values win over the file.
func Apply(envs []EnvLine) error {
	for _, el := range envs {
		if _, ok := os.LookupEnv(el.Key); ok {
			continue
		}
		if err := os.Setenv(el.Key, el.Val); err != nil {
			return errors.Wrapf(err, "set %s", el.Key)
		}
	}
	return nil
}

func mustQuote(val string) bool {
	return strings.ContainsAny(val, "\"# \t") || strings.Contains(val, "\\n")
}

// EncodeOSEnv renders a KEY=value line that ParseEnvBuffer reads back.
func EncodeOSEnv(key, val string) string {
	val = strings.ReplaceAll(val, "\n", "\\n")
	if mustQuote(val) {
		if strings.Contains(val, `"`) {
			val = `'` + val + `'`
		} else {
			val = `"` + val + `"`
		}
	}
	return fmt.Sprintf("%s=%s", key, val)
}

// WriteEnvFile sets key in the dotenv file fn, keeping other lines and
// creating the file if needed.
func WriteEnvFile(fn string, key, val string) error {
	envs, err := ParseEnvFile(fn)
	if err != nil {
		return err
	}
	replaced := false
	for i := range envs {
		if envs[i].Key == key {
			envs[i].Val = val
			replaced = true
		}
	}
	if !replaced {
		envs = append(envs, EnvLine{Key: key, Val: val})
	}
	var buf bytes.Buffer
	for _, el := range envs {
		fmt.Fprintln(&buf, EncodeOSEnv(el.Key, el.Val))
	}
	if err := os.WriteFile(fn, buf.Bytes(), 0o600); err != nil {
		return errors.Wrapf(err, "write env file %s", fn)
	}
	return nil
}

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok && val != "" {
		return val
	}
	return defaultValue
}

// LogLevel resolves the --log-level flag, then CACHEW_LOG_LEVEL, then
// fallback. Unknown names resolve to info.
func LogLevel(cmd *cobra.Command, fallback string) logger.LogLevel {
	if level, ok := logger.ParseLevel(FlagOrEnv(cmd, "log-level", EnvLogLevel, fallback)); ok {
		return level
	}
	return logger.LevelInfo
}

// NewLogger returns a console logger at the level resolved by LogLevel.
func NewLogger(cmd *cobra.Command, fallback string) logger.Logger {
	log.SetFlags(0)
	return logger.NewConsoleLogger(LogLevel(cmd, fallback))
}
