// Package logger constructs the service-wide zerolog logger.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	Level       string // trace|debug|info|warn|error; default info
	Environment string // "development" enables console formatting
	ServiceName string
	Version     string
}

// Logger wraps zerolog.Logger so call sites can reach the underlying logger
// via log.Logger where an unwrapped zerolog.Logger is required.
type Logger struct {
	zerolog.Logger
}

// New builds a logger writing JSON to stderr (console format in development),
// stamped with the service identity.
func New(cfg Config) *Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var out = zerolog.New(os.Stderr)
	if cfg.Environment == "development" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx := out.Level(level).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}

	return &Logger{Logger: ctx.Logger()}
}
