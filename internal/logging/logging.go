// Package logging builds the zerolog logger shared by the services.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/procure/internal/config"
)

// New returns a logger writing to stderr.
func New(cfg config.LogConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter returns a logger writing to out. Pretty output uses the
// zerolog console writer; otherwise one JSON object per line. Unknown levels
// fall back to info.
func NewWithWriter(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	w := out
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: true}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "procure").Logger()
}
