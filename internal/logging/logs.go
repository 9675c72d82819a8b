// Package logging owns process-wide log configuration and the printf-style
// call surface used across shmframe packages.
//
// Call sites import it as:
//
//	logs "github.com/danmuck/shmframe/internal/logging"
//
// and log as "<pkg>.<Type>.<method> <event> key=value".
package logging

import (
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var current atomic.Pointer[zerolog.Logger]

func init() {
	l := log.Logger
	current.Store(&l)
}

func setLogger(l zerolog.Logger) {
	current.Store(&l)
	log.Logger = l
}

// Logger returns the configured zerolog logger for structured call sites.
func Logger() zerolog.Logger {
	return *current.Load()
}

// active returns the shared logger by pointer; zerolog's level methods have
// pointer receivers.
func active() *zerolog.Logger {
	return current.Load()
}

func Debug(msg string) {
	active().Debug().Msg(msg)
}

func Debugf(format string, args ...any) {
	active().Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	active().Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	active().Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	active().Error().Msgf(format, args...)
}

// Log writes at no particular level; it is shown whenever logging is enabled.
func Log(msg string) {
	active().Log().Msg(msg)
}

func Logf(format string, args ...any) {
	active().Log().Msgf(format, args...)
}
