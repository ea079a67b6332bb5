package core

import (
	"context"
	"log/slog"
	"os"
)

// Level mirrors the six-level scheme the rest of the forwarder logs at.
type Level int

const (
	LevelTrace Level = -8
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
	LevelFatal Level = 12
)

// Parses a level name (TRACE, DEBUG, INFO, WARN, ERROR, FATAL) into a Level, erroring on anything else.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	}
	return LevelInfo, &levelError{s}
}

type levelError struct{ s string }

func (e *levelError) Error() string { return "invalid log level: " + e.s }

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Component is anything loggable as a named subsystem (a connection, a listener, a table).
type Component interface {
	String() string
}

// logger wraps slog with the component-first call shape used throughout the pipeline.
type logger struct {
	inner *slog.Logger
	level Level
}

// Log is the process-wide logger; it writes to stderr at Info level until SetLogLevel changes the level.
var Log = &logger{inner: slog.New(slog.NewTextHandler(os.Stderr, nil)), level: LevelInfo}

// SetLogLevel adjusts the minimum level the process-wide logger emits.
func SetLogLevel(l Level) {
	Log.level = l
	Log.inner = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(l),
	}))
}

func (g *logger) Trace(c Component, msg string, args ...any) { g.log(LevelTrace, c, msg, args) }
func (g *logger) Debug(c Component, msg string, args ...any) { g.log(LevelDebug, c, msg, args) }
func (g *logger) Info(c Component, msg string, args ...any)  { g.log(LevelInfo, c, msg, args) }
func (g *logger) Warn(c Component, msg string, args ...any)  { g.log(LevelWarn, c, msg, args) }
func (g *logger) Error(c Component, msg string, args ...any) { g.log(LevelError, c, msg, args) }

// Fatal logs at FATAL and exits the process - reserved for listener/dispatcher bring-up failures (spec §7).
func (g *logger) Fatal(c Component, msg string, args ...any) {
	g.log(LevelFatal, c, msg, args)
	os.Exit(1)
}

func (g *logger) log(l Level, c Component, msg string, args []any) {
	if l < g.level {
		return
	}
	name := "<nil>"
	if c != nil {
		name = c.String()
	}
	g.inner.Log(context.Background(), slog.Level(l), msg, append([]any{"component", name}, args...)...)
}
