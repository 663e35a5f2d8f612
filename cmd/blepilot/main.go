package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blepilot",
	Short: "Drive Bluetooth Low Energy toys from the terminal",
	Long: `Keyboard remote control for Bluetooth Low Energy peripherals:

- car:   drive a toy car with the arrow keys or WASD
- drone: pilot a minidrone, take off, land and flip
- led:   paint an 8x16 LED matrix board
- send:  write a raw command to any built-in profile (e.g. the lamp)
- scan:  list nearby devices

Devices are discovered by name prefix and/or advertised services and
reconnected by address. Defaults can be changed in a YAML config file or
with BLEPILOT_* environment variables.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("blepilot {{.Version}} (commit %s, built %s)\n", commit, date))

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(carCmd)
	rootCmd.AddCommand(droneCmd)
	rootCmd.AddCommand(ledCmd)
	rootCmd.AddCommand(sendCmd)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("address", "", "Peripheral address; skips discovery")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
