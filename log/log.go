// Package log defines the logging interface shared by every component and
// its zap-backed production implementation.
package log

import (
	"fmt"
	"strings"
)

// Logger is the leveled, structured logging interface consumed across the
// repository. Implementations must sanitize string arguments against log
// injection (CWE-117).
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Debug(args ...any)
	Debugf(format string, args ...any)

	// WithFields returns a logger that attaches the given key/value
	// pairs to every entry.
	WithFields(fields ...any) Logger

	Sync() error
}

// Level represents log severity.
type Level uint8

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of a log level.
func (level Level) String() string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel takes a string level and returns the Level constant.
func ParseLevel(lvl string) (Level, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}

	var l Level

	return l, fmt.Errorf("not a valid Level: %q", lvl)
}

// NoneLogger discards everything. Zero value is ready to use; components
// fall back to it when handed a nil logger.
type NoneLogger struct{}

func (NoneLogger) Info(...any)              {}
func (NoneLogger) Infof(string, ...any)     {}
func (NoneLogger) Warn(...any)              {}
func (NoneLogger) Warnf(string, ...any)     {}
func (NoneLogger) Error(...any)             {}
func (NoneLogger) Errorf(string, ...any)    {}
func (NoneLogger) Debug(...any)             {}
func (NoneLogger) Debugf(string, ...any)    {}
func (NoneLogger) WithFields(...any) Logger { return NoneLogger{} }
func (NoneLogger) Sync() error              { return nil }

// OrNone returns l, or NoneLogger when l is nil.
func OrNone(l Logger) Logger {
	if l == nil {
		return NoneLogger{}
	}

	return l
}
