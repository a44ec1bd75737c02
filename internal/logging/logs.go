package logging

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var current atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	current.Store(&l)
}

func setLogger(l zerolog.Logger) {
	current.Store(&l)
}

// Logger returns the process logger for callers that want structured fields.
func Logger() zerolog.Logger {
	return *current.Load()
}

func Debugf(format string, args ...any) {
	l := current.Load()
	l.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	l := current.Load()
	l.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	l := current.Load()
	l.Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	l := current.Load()
	l.Error().Msgf(format, args...)
}

// Logf writes regardless of level; used for test narration.
func Logf(format string, args ...any) {
	l := current.Load()
	l.Log().Msgf(format, args...)
}
