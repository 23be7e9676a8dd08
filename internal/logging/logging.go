// Package logging builds the single zerolog.Logger threaded through every
// constructor at startup.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a console-writer zerolog.Logger at the given level (one of
// zerolog's level names: "debug", "info", "warn", "error"). An unrecognized
// level falls back to info rather than failing startup over a typo.
func New(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Logger()
}
