// Package logger constructs the zerolog logger shared by the converged
// process. Components derive their own sub-loggers via With().Str("component", ...).
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger with the configured level and format.
// Format "json" writes machine-readable output; anything else gets the
// human console writer. Sampling keeps 1 in 5 messages when enabled.
func New(logLevel int, logFormat string, logSampler bool) zerolog.Logger {
	var writer io.Writer = os.Stdout
	if logFormat != "json" {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	log := zerolog.New(writer).
		Level(zerolog.Level(logLevel)).
		With().
		Timestamp().
		Logger()

	if logSampler {
		log = log.Sample(&zerolog.BasicSampler{N: 5})
	}
	return log
}
