package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Init configures the process-wide log level from LOG_LEVEL and returns the
// root logger. The production default only shows errors so the terminal UI
// stays clean.
func Init() zerolog.Logger {
	level := zerolog.ErrorLevel

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = zerolog.DebugLevel
		case "info":
			level = zerolog.InfoLevel
		case "warn", "warning":
			level = zerolog.WarnLevel
		case "error", "production", "prod":
			level = zerolog.ErrorLevel
		}
	}

	zerolog.SetGlobalLevel(level)

	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).With().Timestamp().Logger()
}
