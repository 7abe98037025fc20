package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/mqttwatch/infra/mqtt"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `network:
  ssid: "home"
  secret: "wifi-pass"
  poll_interval_ms: 250
broker:
  host: "broker.example.com"
  username: "user"
  password: "pass"
  tls:
    mode: "pinned"
    pin_sha256: "0000000000000000000000000000000000000000000000000000000000000000"
console:
  path: "/tmp/console.log"
logging:
  level: "debug"
metrics:
  sinks:
    - type: "prometheus"
      conf:
        address: ":9108"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"ssid", cfg.Network.SSID, "home"},
		{"secret", cfg.Network.Secret, "wifi-pass"},
		{"link poll", cfg.Network.PollIntervalMS, 250},
		{"host", cfg.Broker.Host, "broker.example.com"},
		{"port", cfg.Broker.Port, 8883},
		{"client_id", cfg.Broker.ClientID, ""},
		{"username", cfg.Broker.Username, "user"},
		{"password", cfg.Broker.Password, "pass"},
		{"topic", cfg.Broker.Topic, "#"},
		{"qos", cfg.Broker.QoS, byte(1)},
		{"retry", cfg.Broker.RetryDelayMS, 5000},
		{"tls.mode", cfg.Broker.TLS.Mode, mqtt.TLSPinned},
		{"console", cfg.Console.Path, "/tmp/console.log"},
		{"level", cfg.Logging.Level, "debug"},
		{"sink", cfg.Metrics.Sinks[0].Type, "prometheus"},
		{"sink address", cfg.Metrics.Sinks[0].Conf["address"], ":9108"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"broker": {"host": "b", "port": 1883, "protocol": 5, "tls": {"mode": "disabled"}}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1883, cfg.Broker.Port)
	assert.Equal(t, mqtt.ProtocolV5, cfg.Broker.Protocol)
	assert.Equal(t, mqtt.TLSDisabled, cfg.Broker.TLS.Mode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", "broker:\n  host: \"from-file\"\n")
	t.Setenv("MQTTWATCH_BROKER__HOST", "from-env")
	t.Setenv("MQTTWATCH_BROKER__PORT", "1884")
	t.Setenv("MQTTWATCH_BROKER__CLIENT_ID", "watcher-7")
	t.Setenv("MQTTWATCH_NETWORK__SSID", "lab")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Broker.Host)
	assert.Equal(t, 1884, cfg.Broker.Port)
	assert.Equal(t, "watcher-7", cfg.Broker.ClientID)
	assert.Equal(t, "lab", cfg.Network.SSID)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("MQTTWATCH_BROKER__HOST", "env-only")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Broker.Host)
	assert.Equal(t, mqtt.TLSStrict, cfg.Broker.TLS.Mode)
	assert.Equal(t, DefaultLinkPollMS, cfg.Network.PollIntervalMS)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeFile(t, "config.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "config.yaml", "logging:\n  level: loud\n"))
	assert.ErrorContains(t, err, "host is required")
	assert.ErrorContains(t, err, "unknown level loud")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8883, cfg.Broker.Port)
	assert.Equal(t, "#", cfg.Broker.Topic)
	assert.Equal(t, byte(1), cfg.Broker.QoS)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.ErrorContains(t, cfg.Validate(), "host is required")
}

func TestNetworkConfig_DisplayName(t *testing.T) {
	assert.Equal(t, "home", NetworkConfig{SSID: "home", Interface: "wlan0"}.DisplayName())
	assert.Equal(t, "wlan0", NetworkConfig{Interface: "wlan0"}.DisplayName())
	assert.Equal(t, "network", NetworkConfig{}.DisplayName())
}
