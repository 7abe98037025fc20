package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mqttwatch/config"
	coremetrics "github.com/kilianp07/mqttwatch/core/metrics"
	"github.com/kilianp07/mqttwatch/infra/mqtt"

	// registers the built-in metrics sinks
	_ "github.com/kilianp07/mqttwatch/infra/metrics"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and print a redacted summary",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := cfg.Broker.LoadTLSConfig(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	known := coremetrics.RegisteredRecorders()
	for _, s := range cfg.Metrics.Sinks {
		if !slices.Contains(known, s.Type) {
			return fmt.Errorf("metrics: unknown sink type %q (known: %s)", s.Type, strings.Join(known, ", "))
		}
	}
	return writeSummary(cmd.OutOrStdout(), cfg)
}

func writeSummary(w io.Writer, cfg *config.Config) error {
	b := cfg.Broker
	lines := []string{
		fmt.Sprintf("network:   %s (interface %s, secret %s)", cfg.Network.DisplayName(), orAny(cfg.Network.Interface), redact(cfg.Network.Secret)),
		fmt.Sprintf("broker:    %s (mqtt %s)", b.BrokerURL(), protocolName(b.Protocol)),
		fmt.Sprintf("client id: %q", b.ClientID),
		fmt.Sprintf("auth:      user %q, password %s", b.Username, redact(b.Password)),
		fmt.Sprintf("tls:       %s", b.TLS.Mode),
		fmt.Sprintf("subscribe: %s qos %d", b.Topic, b.QoS),
		fmt.Sprintf("retry:     %s", b.RetryDelay()),
		fmt.Sprintf("console:   %s", orStdout(cfg.Console.Path)),
		fmt.Sprintf("metrics:   %s", sinkTypes(cfg.Metrics.Sinks)),
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func redact(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}

func orStdout(s string) string {
	if s == "" {
		return "stdout"
	}
	return s
}

func protocolName(p int) string {
	if p == mqtt.ProtocolV5 {
		return "5"
	}
	return "3.1.1"
}

func sinkTypes(sinks []coremetrics.SinkConfig) string {
	if len(sinks) == 0 {
		return "none"
	}
	types := make([]string, len(sinks))
	for i, s := range sinks {
		types[i] = s.Type
	}
	return strings.Join(types, ", ")
}
