package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LoggingConfig defines the structured logger settings.
type LoggingConfig struct {
	// Level is a zerolog level name.
	Level string `json:"level"`
	// Format is "json" or "console". Empty picks console when APP_ENV=dev.
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("unknown level %s", c.Level)
	}
	if c.Format != "" && c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("unknown format %s", c.Format)
	}
	return nil
}
