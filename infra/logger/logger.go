// Package logger provides the zerolog backed implementation of the core
// logger interface.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/rakeplan/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// Config is the log section of the service configuration.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level"`
	// Format is json or console. Empty selects console when APP_ENV=dev.
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level and format names.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil || c.Level == "" {
		return fmt.Errorf("log.level %q invalid", c.Level)
	}
	switch c.Format {
	case "", "json", "console":
		return nil
	default:
		return fmt.Errorf("log.format %q invalid", c.Format)
	}
}

var (
	mu      sync.RWMutex
	out     io.Writer = os.Stdout
	console           = strings.EqualFold(os.Getenv("APP_ENV"), "dev")
)

// Setup applies cfg to every logger created afterwards.
func Setup(cfg Config) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	lvl, _ := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	zerolog.SetGlobalLevel(lvl)
	mu.Lock()
	defer mu.Unlock()
	switch cfg.Format {
	case "console":
		console = true
	case "json":
		console = false
	}
	return nil
}

// SetOutput redirects loggers created afterwards to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// New returns a Logger tagged with the given component.
func New(component string) Logger {
	mu.RLock()
	w, c := out, console
	mu.RUnlock()
	if c {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02T15:04:05Z07:00"}
	}
	return NewZerologLogger(w, component)
}
