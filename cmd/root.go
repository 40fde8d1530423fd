package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Shugur-Network/edge-relay/internal/application"
	"github.com/Shugur-Network/edge-relay/internal/config"
	"github.com/Shugur-Network/edge-relay/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string         // Path to custom config file (optional)
	cfg     *config.Config // Global reference to loaded configuration
)

// rootCmd defines the main CLI command for edge-relay
var rootCmd = &cobra.Command{
	Use:   "edge-relay",
	Short: "edge-relay is a small-footprint Nostr relay",
	Long:  `A bounded, in-memory Nostr relay for constrained hosts. Events live in RAM and expire after the retention window.`,
	Example: `
  edge-relay start --ws-addr :4869
  edge-relay start --log-level debug --metrics-port 9090
  edge-relay start --config /path/to/config.yaml`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for version command
		if cmd.Name() == "version" {
			return nil
		}

		if cfgFile != "" {
			absPath, err := filepath.Abs(cfgFile)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			cfgFile = absPath
		}

		var err error
		cfg, err = config.Load(cfgFile, nil)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return applyFlagOverrides(cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		// Default behavior: show help when no subcommand is provided
		if err := cmd.Help(); err != nil {
			fmt.Fprintf(os.Stderr, "Error displaying help: %v\n", err)
		}
	},
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("relay-name") {
		cfg.Relay.Name, _ = flags.GetString("relay-name")
	}
	if flags.Changed("ws-addr") {
		cfg.Relay.WSAddr, _ = flags.GetString("ws-addr")
	}
	if flags.Changed("metrics-port") {
		cfg.Metrics.Port, _ = flags.GetInt("metrics-port")
	}
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		if err := logger.UpdateLevel(level); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		cfg.Logging.Level = level
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flag value: %w", err)
	}
	return nil
}

// Execute runs the root command with the provided context
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printWelcomeBanner() {
	fmt.Println("          _                         _             ")
	fmt.Println("  ___  __| | __ _  ___        _ __ | | __ _ _   _ ")
	fmt.Println(" / _ \\/ _` |/ _` |/ _ \\_____ | '__|| |/ _` | | | |")
	fmt.Println("|  __/ (_| | (_| |  __/_____|| |   | | (_| | |_| |")
	fmt.Println(" \\___|\\__,_|\\__, |\\___|      |_|   |_|\\__,_|\\__, |")
	fmt.Println("            |___/                           |___/ ")
	fmt.Println()
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the relay server",
		Long:  "Start the relay server with the specified configuration and block until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			printWelcomeBanner()
			if cfgFile != "" {
				logger.Info("Using config file", zap.String("config_file", cfgFile))
			}

			// Use the context passed down from main.go
			ctx := cmd.Context()

			logger.Info("Starting relay...")
			app, err := application.New(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize the relay: %w", err)
			}
			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("failed to start the relay: %w", err)
			}
			logger.Info("edge-relay started successfully!")

			select {
			case <-ctx.Done():
				logger.Info("Shutdown signal received, initiating graceful shutdown...")
			case <-app.Done():
				logger.Warn("Relay stopped unexpectedly")
			}
			app.Shutdown()
			_ = logger.Shutdown()
			return nil
		},
	}
}

// init is automatically called before main(), sets up flags and subcommands
func init() {
	// Add persistent flags (inherited by all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to custom config file (optional)")
	rootCmd.PersistentFlags().String("relay-name", "", "Name of the relay (max 30 chars)")
	rootCmd.PersistentFlags().String("ws-addr", "", "WebSocket listen address, e.g. :4869")
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().Int("metrics-port", 8181, "Port for Prometheus metrics server")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newStartCmd())
}
