// Package logging sets up daibug's internal diagnostic logger
// (SPEC_FULL.md ambient stack). This is never the observed-event stream —
// that travels through internal/event and the WS broadcast; zerolog is
// strictly for daibug's own operational logs (startup, shutdown, recovered
// errors).
package logging

import (
	"os"
	"time"

	"github.com/daibug/daibug/internal/config"
	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger per cfg.Logging: "console" gives a
// human-readable colorized writer (suited to a developer watching stdout
// alongside their dev-server output), anything else emits plain JSON
// lines suited to log aggregation.
func New(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer = os.Stderr
	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()

	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.Kitchen}).
			Level(level).With().Timestamp().Logger()
	}
	return logger
}
