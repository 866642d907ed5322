// Package logging builds zerolog loggers the way the teacher's
// graph-clustering-algorithm config packages do: a console writer with a
// timestamp and a "service" field, leveled from configuration.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New creates a logger for the named subsystem ("louvain", "coarsen", "fm",
// "flow", ...) at the given level string ("debug", "info", "warn", "error").
func New(service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return NewWriter(os.Stdout, service, lvl)
}

// NewWriter is New with an explicit writer, used by tests to capture output.
func NewWriter(w io.Writer, service string, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).Level(lvl).With().Timestamp().Str("service", service).Logger()
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output but still need a zerolog.Logger value to pass down.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
