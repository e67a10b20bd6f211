// Package logger provides a simple leveled logger for the application.
// It supports three levels: off (no output), normal (info/warn/error),
// and verbose (includes debug). Output is structured through zerolog's
// console writer. The logger is safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Level controls the verbosity of the logger.
type Level int

const (
	// LevelOff disables all log output.
	LevelOff Level = iota
	// LevelNormal enables info, warn, and error output.
	LevelNormal
	// LevelVerbose enables all output including debug.
	LevelVerbose
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelNormal:
		return "normal"
	case LevelVerbose:
		return "verbose"
	default:
		return "unknown"
	}
}

// Logger is a leveled logger. All methods are safe for concurrent use.
// Children created with With share the parent's level.
type Logger struct {
	level *atomic.Int32
	zl    zerolog.Logger
}

// New creates a logger with the given level, writing to the given output.
// If out is nil, os.Stderr is used.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}

	cw := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: time.TimeOnly,
	}

	l := &Logger{
		level: new(atomic.Int32),
		zl:    zerolog.New(cw).With().Timestamp().Logger(),
	}
	l.level.Store(int32(level))
	return l
}

// With returns a child logger that tags every line with the given
// component name. SetLevel on either one affects both.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		level: l.level,
		zl:    l.zl.With().Str("component", component).Logger(),
	}
}

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	return Level(l.level.Load())
}

// Debug logs a message at debug level (only visible in verbose mode).
func (l *Logger) Debug(format string, args ...any) {
	l.emit(LevelVerbose, l.zl.Debug, format, args)
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...any) {
	l.emit(LevelNormal, l.zl.Info, format, args)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(format string, args ...any) {
	l.emit(LevelNormal, l.zl.Warn, format, args)
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...any) {
	l.emit(LevelNormal, l.zl.Error, format, args)
}

func (l *Logger) emit(min Level, ev func() *zerolog.Event, format string, args []any) {
	if l.GetLevel() < min {
		return
	}
	ev().Msg(fmt.Sprintf(format, args...))
}
