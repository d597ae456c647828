// Fieldlink-agent runs the connectivity agent for a fieldlink unit.
//
// The agent owns the unit's configuration, persists it to a flash
// directory, manages the radio (station, access point, or both), and
// announces the unit over mDNS once it is reachable. The radio is
// simulated: neighboring networks are declared with --neighbor flags.
//
// Usage:
//
//	fieldlink-agent [command] [flags]
//
// Running without arguments starts the agent headless. The simulate
// command starts it under an interactive dashboard instead.
// See 'fieldlink-agent --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okkerse/fieldlink/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fieldlink-agent",
	Short: "Fieldlink unit agent",
	Long: `The connectivity agent of a fieldlink unit.

The agent loads the persisted unit configuration from a flash directory,
brings the radio up in the configured boot mode, joins the strongest
known network (or offers its own access point), and announces the unit
over mDNS while it is reachable.

If no command is specified, the agent runs headless.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run headless when no subcommand provided
		return runAgent(cmd, args)
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
		fmt.Printf("fieldlink-agent %s (commit: %s)\n", version.Version, version.Commit)
	},
}
