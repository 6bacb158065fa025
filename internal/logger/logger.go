// Package logger configures the process-wide zerolog root logger. Every
// component derives its own logger from the one returned here via
// log.With().Str("component", ...).
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the root logger from the LOG_LEVEL / LOG_FORMAT config
// values. Format "pretty" selects a console writer for local development;
// anything else emits raw JSON for log shippers. An unparseable level falls
// back to info.
func Setup(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	if format == "pretty" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).With().Timestamp().Caller().Logger()
}
