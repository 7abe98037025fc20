package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mqttwatch/app"
	"github.com/kilianp07/mqttwatch/config"
	"github.com/kilianp07/mqttwatch/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "mqttwatch",
	Short:        "Echo every MQTT message of a broker on the console",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	var opts []app.Option
	if cfg.Console.Path == "" {
		opts = append(opts, app.WithConsoleWriter(cmd.OutOrStdout()))
	}
	svc, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
