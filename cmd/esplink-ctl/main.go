// Esplink-ctl is a command-line client for devices speaking the native
// ESPHome-style API.
//
// It connects over TCP (or a WebSocket bridge), performs the hello and
// login exchanges, and exposes the device's entities, states and logs as
// subcommands. Devices can be addressed directly by host[:port] or by a
// short name registered in the esplink configuration file.
//
// Usage:
//
//	esplink-ctl [command] [flags]
//
// See 'esplink-ctl --help' for available commands. Set ESPLINK_LOG_LEVEL
// to debug for frame-level wire tracing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/esplink/internal/logging"
	"github.com/muurk/esplink/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "esplink-ctl",
	Short: "Client for ESPHome-style native API devices",
	Long: `A command-line client for devices speaking the native ESPHome-style API.

Connects to a device, authenticates when required, and drives the API:
device info, entity listing, live state watching, device logs and switch
commands. The --address flag takes a host[:port] address, a ws:// URL for
bridged devices, or a name registered in the esplink config file.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("esplink-ctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}
