package logger

import (
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/mqttwatch/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.NopLogger

// Options controls the output of every logger created by New.
type Options struct {
	// Level is a zerolog level name ("debug", "info", "warn", "error").
	Level string
	// Format is "json" or "console". Empty falls back to APP_ENV detection.
	Format string
	// Output defaults to stderr so logs never mix with the diagnostic console.
	Output io.Writer
}

var (
	mu   sync.RWMutex
	opts = Options{Level: "info"}
)

// Configure sets process-wide logging options. It must be called before
// components create their loggers.
func Configure(o Options) error {
	if o.Level == "" {
		o.Level = "info"
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(o.Level)); err != nil {
		return err
	}
	mu.Lock()
	opts = o
	mu.Unlock()
	return nil
}

// New returns a Logger for the given component.
func New(component string) Logger {
	mu.RLock()
	o := opts
	mu.RUnlock()
	return NewZerologLogger(component, o)
}
