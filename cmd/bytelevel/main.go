// Command bytelevel runs the water tank controller: it samples the level
// sensor, drives the fill and pump relays and serves the status page.
//
// Usage:
//
//	bytelevel [command] [flags]
//
// Running without a command starts the daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Gamer08YT/ByteWaterlevel/internal/config"
	"github.com/Gamer08YT/ByteWaterlevel/internal/version"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bytelevel",
	Short: "Water tank level controller",
	Long: `Samples the tank level sensor, switches the fill valve and pump relays
according to the configured automation mode, keeps the Wi-Fi link up with an
access point fallback and publishes telemetry over MQTT.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDaemon,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "Configuration file (json, yaml or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log.level")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}
