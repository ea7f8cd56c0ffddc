package logging

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is the priority of a record. Lower values are more important.
type Level int

const (
	LevelSuccess Level = 0
	LevelError   Level = 1
	LevelWarning Level = 5
	LevelInfo    Level = 10
	LevelNotice  Level = 15
	LevelDebug   Level = 100
)

// ParseLevel parses a level name ("info", "warn", ...) or a numeric
// threshold ("10").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success":
		return LevelSuccess, nil
	case "error":
		return LevelError, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "info":
		return LevelInfo, nil
	case "notice":
		return LevelNotice, nil
	case "debug":
		return LevelDebug, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return Level(n), nil
}

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelNotice:
		return "notice"
	case LevelDebug:
		return "debug"
	default:
		return strconv.Itoa(int(l))
	}
}

// Marker returns the console prefix for the level. Info has none.
func (l Level) Marker() string {
	switch l {
	case LevelSuccess:
		return "✅"
	case LevelError:
		return "❌"
	case LevelWarning:
		return "⚠️"
	case LevelNotice:
		return "ℹ️"
	case LevelDebug:
		return "🛠️"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so levels can be given
// by name in YAML and environment variables.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelError:
		return zapcore.ErrorLevel
	case LevelWarning:
		return zapcore.WarnLevel
	case LevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
