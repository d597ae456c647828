package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/okkerse/fieldlink/internal/agent"
	"github.com/okkerse/fieldlink/internal/flash"
	"github.com/okkerse/fieldlink/internal/logging"
	"github.com/okkerse/fieldlink/internal/radio"
	"github.com/okkerse/fieldlink/internal/ui"
)

// defaultNeighborRSSI is the signal strength assumed for --neighbor
// flags that do not carry one.
const defaultNeighborRSSI = -55

// Agent command flags
var (
	settingsPath string
	flashDir     string
	neighbors    []string
)

func init() {
	// Common flags for agent commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", agent.DefaultSettingsPath(), "Path to the agent settings file")
	rootCmd.PersistentFlags().StringVar(&flashDir, "flash", "", "Flash directory (overrides the settings value)")
	rootCmd.PersistentFlags().StringArrayVar(&neighbors, "neighbor", nil, "Network in radio range, as ssid[:password[:rssi]] (repeatable)")

	// Add subcommands directly to root
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simulateCmd)
}

// runCmd starts the agent headless
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent headless",
	Long: `Run the agent without a dashboard.

The agent boots from the stored configuration and keeps running until
interrupted. Set FIELDLINK_LOG_LEVEL to see what it is doing; the
persisted log level takes over once the configuration is loaded.`,
	Example: `  # Run with defaults (also the behavior of a bare 'fieldlink-agent')
  fieldlink-agent run

  # Run against a dedicated flash directory with two networks in range
  fieldlink-agent run --flash /tmp/unit-a \
    --neighbor "barn north:hayloft24:-48" --neighbor "workshop:lathe4ever:-71"`,
	RunE: runAgent,
}

// simulateCmd starts the agent under the interactive dashboard
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the agent under an interactive dashboard",
	Long: `Run the agent with a terminal dashboard attached.

The dashboard shows the connectivity and persistence state machines,
the stored configuration, and a transition log. Keys issue the same
state requests the unit's own surfaces would: switch radio modes, save
or reload the configuration, add a network, drop the station link to
watch the retry and failover behavior, or reboot the unit.

A reboot restarts the agent in place: the configuration is read back
from the flash directory exactly as it would be on a real power cycle.`,
	Example: `  # Simulate a factory-fresh unit (no networks stored, offers an AP)
  fieldlink-agent simulate --flash /tmp/unit-a

  # Simulate a unit with two networks in range
  fieldlink-agent simulate --flash /tmp/unit-a \
    --neighbor "barn north:hayloft24:-48" --neighbor "workshop:lathe4ever:-71"`,
	RunE: runSimulate,
}

func runAgent(cmd *cobra.Command, args []string) error {
	if err := logging.InitializeFromEnv(); err != nil {
		return err
	}
	defer logging.Sync()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A requested reboot restarts the agent with a fresh radio, the way
	// a power cycle would. The flash directory carries the state across.
	for {
		err := runOnce(ctx, settings)
		if errors.Is(err, agent.ErrRebootRequested) {
			continue
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

func runOnce(ctx context.Context, settings agent.Settings) error {
	sim, err := buildRadio()
	if err != nil {
		return err
	}
	defer sim.Close()

	a, err := agent.New(flash.NewFileStore(settings.FlashDir), sim, settings)
	if err != nil {
		return err
	}

	return a.Run(ctx)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if err := logging.InitializeFromEnv(); err != nil {
		return err
	}
	defer logging.Sync()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		rebooted, err := simulateOnce(ctx, settings)
		if err != nil {
			return err
		}
		if !rebooted {
			return nil
		}
	}
}

// simulateOnce runs one agent lifetime under the dashboard. It reports
// true when the operator requested a reboot and the caller should start
// the next lifetime.
func simulateOnce(ctx context.Context, settings agent.Settings) (bool, error) {
	sim, err := buildRadio()
	if err != nil {
		return false, err
	}
	defer sim.Close()

	a, err := agent.New(flash.NewFileStore(settings.FlashDir), sim, settings)
	if err != nil {
		return false, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- a.Run(runCtx)
	}()

	p := tea.NewProgram(ui.NewDashboard(a, sim))

	tuiDone := make(chan error, 1)
	go func() {
		_, err := p.Run()
		tuiDone <- err
	}()

	var runErr error
	select {
	case runErr = <-runDone:
		// Agent exited underneath the dashboard (reboot key, boot
		// failure, or signal). Restore the terminal before returning.
		p.Quit()
		<-tuiDone

	case tuiErr := <-tuiDone:
		cancel()
		runErr = <-runDone
		if tuiErr != nil {
			return false, fmt.Errorf("dashboard error: %w", tuiErr)
		}
	}

	switch {
	case errors.Is(runErr, agent.ErrRebootRequested):
		return true, nil
	case runErr == nil, errors.Is(runErr, context.Canceled):
		return false, nil
	default:
		return false, runErr
	}
}

func loadSettings() (agent.Settings, error) {
	settings, err := agent.LoadSettings(settingsPath)
	if err != nil {
		return agent.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if flashDir != "" {
		settings.FlashDir = flashDir
	}
	return settings, nil
}

// buildRadio creates the simulated radio and populates its neighborhood
// from the --neighbor flags.
func buildRadio() (*radio.Sim, error) {
	sim := radio.NewSim()
	for _, spec := range neighbors {
		st, err := parseNeighbor(spec)
		if err != nil {
			sim.Close()
			return nil, err
		}
		sim.AddStation(st)
	}
	return sim, nil
}

// parseNeighbor parses an ssid[:password[:rssi]] flag value.
func parseNeighbor(spec string) (radio.Station, error) {
	parts := strings.SplitN(spec, ":", 3)
	if parts[0] == "" {
		return radio.Station{}, fmt.Errorf("invalid --neighbor %q: empty ssid", spec)
	}

	st := radio.Station{SSID: parts[0], RSSI: defaultNeighborRSSI}
	if len(parts) >= 2 {
		st.Password = parts[1]
	}
	if len(parts) == 3 {
		rssi, err := strconv.Atoi(parts[2])
		if err != nil {
			return radio.Station{}, fmt.Errorf("invalid --neighbor %q: bad rssi: %w", spec, err)
		}
		st.RSSI = rssi
	}
	return st, nil
}
