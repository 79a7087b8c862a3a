package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gamer08YT/ByteWaterlevel/internal/analog"
	"github.com/Gamer08YT/ByteWaterlevel/internal/config"
	"github.com/Gamer08YT/ByteWaterlevel/internal/discovery"
	"github.com/Gamer08YT/ByteWaterlevel/internal/logger"
	"github.com/Gamer08YT/ByteWaterlevel/internal/sensor"
)

var scanTimeout int

func init() {
	rootCmd.AddCommand(printStateCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(initConfigCmd)

	discoverCmd.Flags().IntVar(&scanTimeout, "timeout", 5, "Scan timeout in seconds")
}

// printStateCmd takes one reading and exits.
var printStateCmd = &cobra.Command{
	Use:   "print-state",
	Short: "Take one sensor reading and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.Open(configPath)
		if err != nil {
			return err
		}
		log := logger.Get(levelFor(p))
		app := config.Load(p, log)

		adc, err := analog.NewSysfsReader(app.ADCPath)
		if err != nil {
			return fmt.Errorf("open adc: %w", err)
		}
		cache, err := sensor.New(app.Sensor, adc, thermometer(app.ThermalDev), log.Named("sensor"))
		if err != nil {
			return err
		}
		if err := cache.Refresh(0); err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		printReading(cmd.OutOrStdout(), cache.Snapshot(), app.Sensor.TankCapacity)
		return nil
	},
}

// discoverCmd lists controllers announcing themselves over mDNS.
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find controllers on the local network",
	Example: `  # Scan for 5 seconds (default)
  bytelevel discover

  # Longer scan
  bytelevel discover --timeout 15`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Scanning for devices (timeout: %ds)...\n\n", scanTimeout)

		devices, err := discovery.Scan(cmd.Context(), time.Duration(scanTimeout)*time.Second)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		printDevices(out, devices)
		return nil
	},
}

// initConfigCmd writes the effective configuration to --config.
var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.Open(configPath)
		if err != nil {
			return err
		}
		if err := p.Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

func printReading(w io.Writer, r sensor.Reading, capacity float64) {
	fmt.Fprintf(w, "Level: %.1f %%\n", r.Level)
	fmt.Fprintf(w, "Volume: %.1f / %.0f l\n", r.Volume, capacity)
	fmt.Fprintf(w, "Voltage: %.2f V\n", r.Voltage)
	fmt.Fprintf(w, "Current: %.2f mA\n", r.Current)
	fmt.Fprintf(w, "Temperature: %.1f °C\n", r.Temperature)
}

func printDevices(w io.Writer, devices []discovery.Device) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices found.")
		return
	}
	fmt.Fprintf(w, "Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		fmt.Fprintf(w, "%d. %s\n", i+1, d.Name)
		fmt.Fprintf(w, "   Host:    %s\n", d.Hostname)
		fmt.Fprintf(w, "   URL:     %s\n", d.BaseURL())
		if d.Version != "" {
			fmt.Fprintf(w, "   Version: %s\n", d.Version)
		}
		fmt.Fprintln(w)
	}
}
