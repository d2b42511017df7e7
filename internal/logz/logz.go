package logz

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity level of log messages
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger provides levelled logging on top of zerolog. The printf-style
// methods cover ad-hoc messages; Zerolog exposes the structured logger for
// events that carry fields.
type Logger struct {
	level  LogLevel
	prefix string
	zl     zerolog.Logger
}

// New creates a new logger writing JSON lines to stdout
func New(level LogLevel, prefix string) *Logger {
	return NewWithWriter(os.Stdout, level, prefix)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, level LogLevel, prefix string) *Logger {
	zl := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger()
	if prefix != "" {
		zl = zl.With().Str("component", prefix).Logger()
	}
	return &Logger{level: level, prefix: prefix, zl: zl}
}

// NewConsole creates a human-readable logger for terminals
func NewConsole(level LogLevel, prefix string) *Logger {
	return NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}, level, prefix)
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{level: ERROR, zl: zerolog.Nop()}
}

// Default creates a logger with INFO level and no prefix
func Default() *Logger {
	return New(INFO, "")
}

// WithPrefix creates a new logger with an additional prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	newPrefix := prefix
	if l.prefix != "" {
		newPrefix = fmt.Sprintf("%s:%s", l.prefix, prefix)
	}
	return &Logger{
		level:  l.level,
		prefix: newPrefix,
		zl:     l.zl.With().Str("component", newPrefix).Logger(),
	}
}

// SetLevel sets the minimum logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.zl = l.zl.Level(level.zerolog())
}

// Level returns the minimum logging level
func (l *Logger) Level() LogLevel {
	return l.level
}

// Zerolog returns the underlying structured logger
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// Fatal logs an error message and exits the program
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.zl.WithLevel(zerolog.FatalLevel).Msgf(format, args...)
	os.Exit(1)
}

// ParseLevel parses a string log level
func ParseLevel(level string) (LogLevel, error) {
	switch level {
	case "debug", "DEBUG":
		return DEBUG, nil
	case "info", "INFO", "":
		return INFO, nil
	case "warn", "WARN", "warning", "WARNING":
		return WARN, nil
	case "error", "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown log level: %s", level)
	}
}
