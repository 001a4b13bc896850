package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	serverrun "github.com/relaygate/relaygate/internal/cmd/server"
	"github.com/relaygate/relaygate/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relaygate",
		Short: "relaygate is a blockchain JSON-RPC fan-out gateway",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the gateway",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			listen, _ := cmd.Flags().GetString("listen")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.FromEnv(&cfg)

			if listen != "" {
				cfg.Listen = listen
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}

			return serverrun.Run(context.Background(), serverrun.Options{Config: cfg})
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to an optional JSON config file")
	serverStartCmd.Flags().String("listen", "", "Listen address, overrides config/env")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
