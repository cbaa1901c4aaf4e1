// Command geoquest runs the Pedra Branca location game server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

// configDir is the directory searched for the config file.
var configDir string

var rootCmd = &cobra.Command{
	Use:           "geoquest",
	Short:         "Location-driven AR mission server",
	Version:       fmt.Sprintf("%s (built %s)", Version, BuildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "Directory containing the config file")
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMissionsCmd())
	rootCmd.AddCommand(newPlayersCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
