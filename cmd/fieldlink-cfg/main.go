// Fieldlink-cfg is a configuration utility for fieldlink units.
//
// It edits the configuration blob a unit keeps in its flash directory:
// known networks, update endpoints, log level, and the unit name. The
// tool works offline, directly against the flash directory, so a unit
// can be provisioned before its first boot or repaired without running
// the agent.
//
// Usage:
//
//	fieldlink-cfg [command] [flags]
//
// Running without arguments shows the stored configuration.
// See 'fieldlink-cfg --help' for available commands.
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
	Use:   "fieldlink-cfg",
	Short: "Fieldlink Unit Configuration Utility",
	Long: `A standalone utility for configuring fieldlink units.

Edits the configuration blob in a unit's flash directory: known
networks, update endpoints, log level, and the unit name. All commands
work offline; stop the agent before editing a live unit's directory.

If no command is specified, the stored configuration is shown.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: show the configuration when no subcommand provided
		return runShow(cmd, args)
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
		fmt.Printf("fieldlink-cfg %s (commit: %s)\n", version.Version, version.Commit)
	},
}
