package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables read by Init.
const (
	EnvLevel  = "META_LOG_LEVEL"
	EnvFormat = "META_LOG_FORMAT"
)

// Init configures the global logger from the environment.
// META_LOG_LEVEL is one of trace, debug, info, warn, error (default info).
// META_LOG_FORMAT=json writes raw JSON lines instead of the console format,
// for Lambda where CloudWatch indexes the fields.
func Init() {
	InitTo(os.Stderr)
}

// InitTo is Init writing to w.
func InitTo(w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv(EnvLevel)))

	if strings.EqualFold(os.Getenv(EnvFormat), "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
