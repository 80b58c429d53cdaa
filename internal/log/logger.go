// Package log holds the zerolog logger shared by the library and the
// geostat command.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Attribute keys used across the module.
const (
	ComponentKey  = "component"
	SamplesKey    = "samples"
	LocationsKey  = "locations"
	IterationsKey = "iterations"
	StacktraceKey = "stacktrace"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()
)

// SetupLogger replaces the package logger. Level is one of zerolog's level
// names ("debug", "info", "warn", "error", "disabled"); an empty level keeps
// warn. When console is set the output is human readable.
func SetupLogger(level string, w io.Writer, console bool) error {
	lvl := zerolog.WarnLevel
	if level != "" {
		l, err := zerolog.ParseLevel(level)
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", level)
		}
		lvl = l
	}
	if w == nil {
		w = os.Stderr
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}

	mu.Lock()
	logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
	return nil
}

// SetLogger installs l as the package logger.
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Logger returns the package logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	l := Logger()
	return l.With().Str(ComponentKey, name).Logger()
}

// Err adds err to the event, plus the stack trace recorded by
// cockroachdb/errors when there is one.
func Err(e *zerolog.Event, err error) *zerolog.Event {
	e = e.Err(err)
	if st := stacktrace(err); st != "" {
		e = e.Str(StacktraceKey, st)
	}
	return e
}

func stacktrace(err error) string {
	if err == nil {
		return ""
	}
	details := errors.GetSafeDetails(err).SafeDetails
	if len(details) > 0 {
		return details[0]
	}
	return ""
}
