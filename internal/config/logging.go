package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the application logger from the logging section.
// Unknown levels fall back to info.
func (l Logging) NewLogger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil || l.Level == "" {
		level = zerolog.InfoLevel
	}

	if l.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
