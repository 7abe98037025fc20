package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/mqttwatch/core/metrics"
	"github.com/kilianp07/mqttwatch/infra/mqtt"
)

// EnvPrefix selects environment overrides. Nested keys are separated by a
// double underscore: MQTTWATCH_BROKER__HOST sets broker.host.
const EnvPrefix = "MQTTWATCH_"

type Config struct {
	Network NetworkConfig  `json:"network"`
	Broker  mqtt.Config    `json:"broker"`
	Console ConsoleConfig  `json:"console"`
	Logging LoggingConfig  `json:"logging"`
	Metrics metrics.Config `json:"metrics"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	cfg := Config{Broker: mqtt.Config{QoS: mqtt.DefaultQoS}}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero values in every section.
func (c *Config) SetDefaults() {
	c.Network.SetDefaults()
	c.Broker.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	if err := c.Network.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("network: %w", err))
	}
	if err := c.Broker.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("broker: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	for i, s := range c.Metrics.Sinks {
		if s.Type == "" {
			errs = append(errs, fmt.Errorf("metrics: sink %d: type is required", i))
		}
	}
	return errors.Join(errs...)
}

// Load reads the optional config file at path, applies environment
// overrides and defaults, then validates the result. An empty path loads
// defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}
