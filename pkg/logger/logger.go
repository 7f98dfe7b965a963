// Package logger provides component-scoped structured logging for picomon.
//
// Every log line carries a "component" field (e.g. "reconciler", "discord")
// so operators can filter by subsystem. The *F variants attach an arbitrary
// field map. Output goes through a process-wide zerolog logger that is
// configured once at startup with Configure.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level is a log severity accepted by SetLevel.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	mu   sync.RWMutex
	base = newLogger(os.Stderr, false).Level(zerolog.InfoLevel)
)

func newLogger(w io.Writer, jsonOutput bool) zerolog.Logger {
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Configure replaces the output writer, format and level.
// format is "json" or "console" (anything else means console).
func Configure(w io.Writer, format string, level string) {
	mu.Lock()
	defer mu.Unlock()

	base = newLogger(w, strings.EqualFold(format, "json")).Level(parseLevel(level))
}

// SetLevel changes the minimum severity written.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	base = base.Level(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	switch Level(strings.ToLower(strings.TrimSpace(level))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn, "warning":
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func write(ev *zerolog.Event, component, message string, fields map[string]interface{}) {
	if component != "" {
		ev = ev.Str("component", component)
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			ev = ev.AnErr(k, err)
			continue
		}
		ev = ev.Interface(k, v)
	}
	ev.Msg(message)
}

func Debug(message string) { l := current(); write(l.Debug(), "", message, nil) }
func Info(message string)  { l := current(); write(l.Info(), "", message, nil) }
func Warn(message string)  { l := current(); write(l.Warn(), "", message, nil) }
func Error(message string) { l := current(); write(l.Error(), "", message, nil) }

// DebugC logs at debug level for a component.
func DebugC(component, message string) { l := current(); write(l.Debug(), component, message, nil) }

// InfoC logs at info level for a component.
func InfoC(component, message string) { l := current(); write(l.Info(), component, message, nil) }

// WarnC logs at warn level for a component.
func WarnC(component, message string) { l := current(); write(l.Warn(), component, message, nil) }

// ErrorC logs at error level for a component.
func ErrorC(component, message string) { l := current(); write(l.Error(), component, message, nil) }

// DebugCF logs at debug level with extra fields.
func DebugCF(component, message string, fields map[string]interface{}) {
	l := current()
	write(l.Debug(), component, message, fields)
}

// InfoCF logs at info level with extra fields.
func InfoCF(component, message string, fields map[string]interface{}) {
	l := current()
	write(l.Info(), component, message, fields)
}

// WarnCF logs at warn level with extra fields.
func WarnCF(component, message string, fields map[string]interface{}) {
	l := current()
	write(l.Warn(), component, message, fields)
}

// ErrorCF logs at error level with extra fields.
func ErrorCF(component, message string, fields map[string]interface{}) {
	l := current()
	write(l.Error(), component, message, fields)
}
