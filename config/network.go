package config

import (
	"fmt"
	"time"
)

// DefaultLinkPollMS is the interval between link status polls.
const DefaultLinkPollMS = 500

// NetworkConfig describes the network link to wait for.
type NetworkConfig struct {
	// SSID names the network in diagnostics.
	SSID string `json:"ssid"`
	// Secret is passed to the link provider. It is never printed.
	Secret string `json:"secret"`
	// Interface restricts the link to one host interface. Empty means any
	// non-loopback interface.
	Interface      string `json:"interface"`
	PollIntervalMS int    `json:"poll_interval_ms"`
}

// SetDefaults applies sane defaults.
func (c *NetworkConfig) SetDefaults() {
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = DefaultLinkPollMS
	}
}

// Validate checks mandatory fields.
func (c NetworkConfig) Validate() error {
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMS)
	}
	return nil
}

// DisplayName is the network name printed while joining.
func (c NetworkConfig) DisplayName() string {
	if c.SSID != "" {
		return c.SSID
	}
	if c.Interface != "" {
		return c.Interface
	}
	return "network"
}

// ConsoleConfig selects where the diagnostic console is written.
type ConsoleConfig struct {
	// Path of a file to append to. Empty means standard output.
	Path string `json:"path"`
}

// PollInterval returns the link poll interval.
func (c NetworkConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
