// Package logging provides the zerolog-based global logger for the
// service. JSON output is the default; console output is available for
// development.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error"`

	// Format is json or console.
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`

	// Caller includes the caller file and line in each event.
	Caller bool `koanf:"caller"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

var (
	mu  sync.RWMutex
	log = newLogger(DefaultConfig(), os.Stderr)
)

// Init reconfigures the global logger. Call once at startup.
func Init(cfg Config) {
	InitWithWriter(cfg, os.Stderr)
}

// InitWithWriter is Init with an explicit output, used by tests.
func InitWithWriter(cfg Config, out io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(cfg, out)
}

func newLogger(cfg Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// L returns the global logger.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event { l := L(); return l.Debug() }

// Info starts an info-level event.
func Info() *zerolog.Event { l := L(); return l.Info() }

// Warn starts a warn-level event.
func Warn() *zerolog.Event { l := L(); return l.Warn() }

// Error starts an error-level event.
func Error() *zerolog.Event { l := L(); return l.Error() }

// Fatal starts a fatal-level event; the program exits after Msg.
func Fatal() *zerolog.Event { l := L(); return l.Fatal() }
