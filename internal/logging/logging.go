package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New constructs the root zerolog logger from config settings.
// Defaults to JSON at info level on stdout when fields are empty.
func New(level, format string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil {
		lvl = parsed
	}

	var out = zerolog.New(os.Stdout)
	if strings.ToLower(strings.TrimSpace(format)) == "console" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	return out.Level(lvl).With().Timestamp().Str("app", "facility-booking").Logger()
}
