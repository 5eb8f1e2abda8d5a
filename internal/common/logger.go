package common

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel represents logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel maps a config string onto a LogLevel. Unknown values fall back to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

// LogFormat selects the handler used by NewLoggerTo.
type LogFormat string

const (
	FormatText  LogFormat = "text"
	FormatJSON  LogFormat = "json"
	FormatColor LogFormat = "color"
)

// Logger is the structured logger passed to every latter component.
type Logger struct {
	*slog.Logger
	level LogLevel
}

// NewLogger creates a text logger writing to stderr.
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stderr, level, FormatText)
}

// NewJSONLogger creates a JSON logger writing to stderr.
func NewJSONLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stderr, level, FormatJSON)
}

// NewColorLogger creates a logger with the colorized, masking handler.
func NewColorLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stderr, level, FormatColor)
}

// NewLoggerTo creates a logger for an arbitrary writer and format.
func NewLoggerTo(w io.Writer, level LogLevel, format LogFormat) *Logger {
	opts := &slog.HandlerOptions{Level: level.ToSlogLevel()}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case FormatColor:
		handler = NewColorHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(handler), level: level}
}

// NewNopLogger discards everything. Handy in tests.
func NewNopLogger() *Logger {
	return NewLoggerTo(io.Discard, LogLevelError, FormatText)
}

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return l.level
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithMigration returns a logger with migration name context
func (l *Logger) WithMigration(name string) *Logger {
	return l.with("migration", name)
}

// WithStore returns a logger with database driver context
func (l *Logger) WithStore(driver string) *Logger {
	return l.with("store", driver)
}

// WithTable returns a logger with ledger table context
func (l *Logger) WithTable(table string) *Logger {
	return l.with("table", table)
}

var defaultLogger = NewLogger(LogLevelInfo)

// SetDefaultLogger replaces the logger used when a component is built with a nil logger.
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// GetLogger returns the default logger
func GetLogger() *Logger {
	return defaultLogger
}

// OrDefault returns l, or the default logger when l is nil.
func OrDefault(l *Logger) *Logger {
	if l == nil {
		return defaultLogger
	}
	return l
}
