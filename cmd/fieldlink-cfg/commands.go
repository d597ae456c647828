package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/okkerse/fieldlink/internal/agent"
	"github.com/okkerse/fieldlink/internal/flash"
	"github.com/okkerse/fieldlink/internal/persist"
	"github.com/okkerse/fieldlink/internal/ui"
	"github.com/okkerse/fieldlink/internal/unitcfg"
)

// Configuration command flags
var (
	flashDir     string
	settingsPath string
	outputFormat string
	netPassword  string
	openNetwork  bool
	force        bool
	skipConfirm  bool
)

func init() {
	// Common flags for configuration commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&flashDir, "flash", agent.DefaultFlashDir(), "Flash directory of the unit")

	// Add subcommands directly to root
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addNetworkCmd)
	rootCmd.AddCommand(removeNetworkCmd)
	rootCmd.AddCommand(setEndpointsCmd)
	rootCmd.AddCommand(setLogLevelCmd)
	rootCmd.AddCommand(setUnitNameCmd)
	rootCmd.AddCommand(wipeCmd)
}

// showCmd displays the stored configuration
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored unit configuration",
	Long: `Display the configuration stored in the unit's flash directory.

Passwords are never displayed; networks are marked open or protected.`,
	Example: `  # Show the default unit's configuration
  fieldlink-cfg show

  # Show a specific flash directory
  fieldlink-cfg show --flash /var/lib/fieldlink/flash

  # JSON output for scripting
  fieldlink-cfg show --format json`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
}

func runShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(store)
	if err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		data, err := json.MarshalIndent(newConfigView(cfg), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	case "detailed":
		fallthrough
	default:
		fmt.Println(ui.UnitSummary(cfg).Render())
	}

	return nil
}

// networkView is the scripting-friendly form of a stored network. The
// password itself never leaves the blob.
type networkView struct {
	SSID      string `json:"ssid"`
	Protected bool   `json:"protected"`
}

// configView is the JSON shape of 'show --format json'.
type configView struct {
	Version    uint8         `json:"version"`
	UnitName   string        `json:"unit_name"`
	Networks   []networkView `json:"networks"`
	OTAURL     string        `json:"ota_url"`
	VersionURL string        `json:"version_url"`
	LogLevel   string        `json:"log_level"`
}

func newConfigView(cfg *unitcfg.Config) configView {
	networks := make([]networkView, len(cfg.Connectivity.Networks))
	for i, n := range cfg.Connectivity.Networks {
		networks[i] = networkView{SSID: n.SSID, Protected: n.Password != ""}
	}
	return configView{
		Version:    cfg.Version,
		UnitName:   cfg.User.UnitName,
		Networks:   networks,
		OTAURL:     cfg.Connectivity.OTAURL,
		VersionURL: cfg.Connectivity.VersionURL,
		LogLevel:   cfg.System.LogLevel.String(),
	}
}

// initCmd provisions a flash directory with factory defaults
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Provision a flash directory with factory defaults",
	Long: `Write a factory-default configuration blob to the flash directory.

The defaults come from the agent settings file, so an offline init
produces exactly the configuration the agent itself would provision on
first boot. An existing blob is left alone unless --force is given.`,
	Example: `  # Provision a new unit
  fieldlink-cfg init --flash /var/lib/fieldlink/flash

  # Re-provision, discarding the current configuration
  fieldlink-cfg init --flash /var/lib/fieldlink/flash --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&settingsPath, "settings", agent.DefaultSettingsPath(), "Path to the agent settings file")
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
}

func runInit(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if !force {
		ok, err := store.Exists(persist.Namespace, persist.BlobKey)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("flash directory already holds a configuration (use --force to overwrite)")
		}
	}

	settings, err := agent.LoadSettings(settingsPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	factory, err := settings.FactoryDefaults()
	if err != nil {
		return err
	}

	cfg := unitcfg.DefaultConfig(factory)
	if err := saveConfig(store, cfg); err != nil {
		return err
	}

	fmt.Println(ui.RenderOK(fmt.Sprintf("Provisioned %s with factory defaults", flashDir)))
	fmt.Println(ui.UnitSummary(cfg).Render())
	return nil
}

// addNetworkCmd stores station credentials
var addNetworkCmd = &cobra.Command{
	Use:   "add-network <ssid>",
	Short: "Add or update a known network",
	Long: `Store credentials for a network the unit may join.

The password is prompted for unless --password or --open is given. An
existing entry with the same name is replaced.`,
	Example: `  # Add a protected network (prompts for the password)
  fieldlink-cfg add-network "barn north"

  # Add an open network
  fieldlink-cfg add-network guest-net --open

  # Non-interactive use
  fieldlink-cfg add-network "barn north" --password hayloft24`,
	Args: cobra.ExactArgs(1),
	RunE: runAddNetwork,
}

func init() {
	addNetworkCmd.Flags().StringVar(&netPassword, "password", "", "Network password (prompted when omitted)")
	addNetworkCmd.Flags().BoolVar(&openNetwork, "open", false, "Store the network without a password")
}

func runAddNetwork(cmd *cobra.Command, args []string) error {
	ssid := args[0]
	if err := unitcfg.ValidateSSID(ssid); err != nil {
		return err
	}

	password := netPassword
	if !openNetwork && password == "" {
		var err error
		password, err = promptPassword(fmt.Sprintf("Password for %q (empty for open network): ", ssid))
		if err != nil {
			return err
		}
	}
	if openNetwork {
		password = ""
	}

	net := unitcfg.Network{SSID: ssid, Password: password}
	if err := unitcfg.ValidateNetwork(net); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(store)
	if err != nil {
		return err
	}

	if i := cfg.FindNetwork(ssid); i >= 0 {
		cfg.Connectivity.Networks[i] = net
		if err := saveConfig(store, cfg); err != nil {
			return err
		}
		fmt.Println(ui.RenderOK(fmt.Sprintf("Updated network %q", ssid)))
		return nil
	}

	if len(cfg.Connectivity.Networks) >= unitcfg.MaxNetworks {
		return fmt.Errorf("network list is full (%d of %d); remove one first", len(cfg.Connectivity.Networks), unitcfg.MaxNetworks)
	}
	cfg.Connectivity.Networks = append(cfg.Connectivity.Networks, net)
	if err := saveConfig(store, cfg); err != nil {
		return err
	}

	fmt.Println(ui.RenderOK(fmt.Sprintf("Added network %q (%d of %d)", ssid, len(cfg.Connectivity.Networks), unitcfg.MaxNetworks)))
	return nil
}

// removeNetworkCmd forgets stored credentials
var removeNetworkCmd = &cobra.Command{
	Use:   "remove-network <ssid>",
	Short: "Remove a known network",
	Example: `  # Forget a network
  fieldlink-cfg remove-network "barn north"`,
	Args: cobra.ExactArgs(1),
	RunE: runRemoveNetwork,
}

func runRemoveNetwork(cmd *cobra.Command, args []string) error {
	ssid := args[0]

	store, err := openStore()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(store)
	if err != nil {
		return err
	}

	i := cfg.FindNetwork(ssid)
	if i < 0 {
		return fmt.Errorf("no stored network named %q", ssid)
	}
	cfg.Connectivity.Networks = append(cfg.Connectivity.Networks[:i], cfg.Connectivity.Networks[i+1:]...)

	if err := saveConfig(store, cfg); err != nil {
		return err
	}
	fmt.Println(ui.RenderOK(fmt.Sprintf("Removed network %q (%d remaining)", ssid, len(cfg.Connectivity.Networks))))
	return nil
}

// setEndpointsCmd updates the OTA and version-check URLs
var setEndpointsCmd = &cobra.Command{
	Use:   "set-endpoints <ota-url> <version-url>",
	Short: "Set the update endpoints",
	Long: `Set the URLs the unit polls for firmware images and version metadata.

Both must be http or https URLs. Pass an empty string to disable an
endpoint.`,
	Example: `  fieldlink-cfg set-endpoints \
    https://updates.example.com/firmware.bin \
    https://updates.example.com/version.json`,
	Args: cobra.ExactArgs(2),
	RunE: runSetEndpoints,
}

func runSetEndpoints(cmd *cobra.Command, args []string) error {
	otaURL, versionURL := args[0], args[1]
	if err := unitcfg.ValidateEndpointURL(otaURL); err != nil {
		return fmt.Errorf("ota url: %w", err)
	}
	if err := unitcfg.ValidateEndpointURL(versionURL); err != nil {
		return fmt.Errorf("version url: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(store)
	if err != nil {
		return err
	}

	cfg.Connectivity.OTAURL = otaURL
	cfg.Connectivity.VersionURL = versionURL

	if err := saveConfig(store, cfg); err != nil {
		return err
	}
	fmt.Println(ui.RenderOK("Updated endpoints"))
	return nil
}

// setLogLevelCmd updates the persisted log level
var setLogLevelCmd = &cobra.Command{
	Use:   "set-log-level <level>",
	Short: "Set the unit's log level",
	Long:  `Set the persisted logging verbosity: silent, error, warn, info or debug.`,
	Example: `  # Turn on debug logging for the next boot
  fieldlink-cfg set-log-level debug`,
	Args: cobra.ExactArgs(1),
	RunE: runSetLogLevel,
}

func runSetLogLevel(cmd *cobra.Command, args []string) error {
	level, err := unitcfg.ParseLogLevel(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(store)
	if err != nil {
		return err
	}

	cfg.System.LogLevel = level

	if err := saveConfig(store, cfg); err != nil {
		return err
	}
	fmt.Println(ui.RenderOK(fmt.Sprintf("Log level set to %s", level)))
	return nil
}

// setUnitNameCmd updates the operator-assigned name
var setUnitNameCmd = &cobra.Command{
	Use:   "set-unit-name <name>",
	Short: "Set the unit's name",
	Long: `Set the operator-assigned unit name.

The name appears in the mDNS announcement and on the dashboard.`,
	Example: `  # Name the unit after its site
  fieldlink-cfg set-unit-name "pump house"`,
	Args: cobra.ExactArgs(1),
	RunE: runSetUnitName,
}

func runSetUnitName(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := unitcfg.ValidateUnitName(name); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(store)
	if err != nil {
		return err
	}

	cfg.User.UnitName = name

	if err := saveConfig(store, cfg); err != nil {
		return err
	}
	fmt.Println(ui.RenderOK(fmt.Sprintf("Unit name set to %q", name)))
	return nil
}

// wipeCmd erases the stored configuration
var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Erase the stored configuration",
	Long: `Erase the configuration blob from the flash directory.

The unit falls back to factory defaults on its next boot, exactly as if
its storage had been erased.`,
	Example: `  # Erase a unit's configuration after confirmation
  fieldlink-cfg wipe --flash /var/lib/fieldlink/flash`,
	RunE: runWipe,
}

func init() {
	wipeCmd.Flags().BoolVar(&skipConfirm, "yes", false, "Skip the confirmation prompt")
}

func runWipe(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	if !skipConfirm && !ui.WipeConfirmation() {
		return nil
	}

	if err := store.Delete(persist.Namespace, persist.BlobKey); err != nil {
		if errors.Is(err, flash.ErrNotFound) {
			fmt.Println(ui.RenderOK("No stored configuration to erase"))
			return nil
		}
		return err
	}

	fmt.Println(ui.RenderOK(fmt.Sprintf("Erased stored configuration from %s", flashDir)))
	return nil
}

// openStore mounts the flash directory
func openStore() (*flash.FileStore, error) {
	store := flash.NewFileStore(flashDir)
	if err := store.Mount(); err != nil {
		return nil, fmt.Errorf("mounting flash directory: %w", err)
	}
	return store, nil
}

// loadConfig reads and decodes the stored configuration blob
func loadConfig(store flash.Store) (*unitcfg.Config, error) {
	blob, err := store.Read(persist.Namespace, persist.BlobKey)
	if errors.Is(err, flash.ErrNotFound) {
		return nil, fmt.Errorf("no stored configuration in %s (run 'fieldlink-cfg init', or boot the unit once)", flashDir)
	}
	if err != nil {
		return nil, err
	}
	cfg, err := unitcfg.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding stored configuration: %w", err)
	}
	return cfg, nil
}

// saveConfig encodes and writes the configuration blob
func saveConfig(store flash.Store, cfg *unitcfg.Config) error {
	if errs := unitcfg.ValidateConfig(cfg); len(errs) > 0 {
		return errs[0]
	}
	blob, err := unitcfg.Encode(cfg)
	if err != nil {
		return err
	}
	if err := store.Write(persist.Namespace, persist.BlobKey, blob); err != nil {
		return fmt.Errorf("writing configuration blob: %w", err)
	}
	return nil
}

// promptPassword reads a password without echoing it
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
