// Package logging configures the global zerolog logger shared by every
// storyboard binary.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger from environment variables.
// STORYBOARD_LOG_LEVEL controls the level: debug, info, warn, error (default: info).
// STORYBOARD_LOG_FORMAT=json switches from the console writer to raw JSON lines,
// which is what CloudWatch Logs expects from the Lambda binary.
func Init() {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv("STORYBOARD_LOG_LEVEL")))

	if strings.EqualFold(os.Getenv("STORYBOARD_LOG_FORMAT"), "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
