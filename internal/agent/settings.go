package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okkerse/fieldlink/internal/announce"
	"github.com/okkerse/fieldlink/internal/radio"
	"github.com/okkerse/fieldlink/internal/signal"
	"github.com/okkerse/fieldlink/internal/unitcfg"
	"github.com/okkerse/fieldlink/internal/wifi"
)

const (
	appName                  = "fieldlink"
	settingsFile             = "agent.yaml"
	flashDirName             = "flash"
	settingsVersionSupported = 1
)

// Settings is the agent's host-side configuration: where the flash
// directory lives, how the unit boots, and what it announces. The unit's
// own configuration is the blob in flash, not this file.
type Settings struct {
	Version  int    `yaml:"version"`
	FlashDir string `yaml:"flash_dir,omitempty"`

	// BootMode is the connectivity mode requested after flash is ready:
	// "sta", "ap", "ap+sta" or "none".
	BootMode string `yaml:"boot_mode,omitempty"`

	AccessPoint APSettings       `yaml:"access_point,omitempty"`
	Station     StationSettings  `yaml:"station,omitempty"`
	Factory     FactorySettings  `yaml:"factory,omitempty"`
	Announce    AnnounceSettings `yaml:"announce,omitempty"`
}

// APSettings shapes the access point the unit offers in AP modes.
type APSettings struct {
	SSID       string `yaml:"ssid,omitempty"`
	Password   string `yaml:"password,omitempty"`
	Channel    int    `yaml:"channel,omitempty"`
	MaxClients int    `yaml:"max_clients,omitempty"`
}

// StationSettings shapes the station retry behavior.
type StationSettings struct {
	MaxRetries        int `yaml:"max_retries,omitempty"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds,omitempty"`
}

// FactorySettings is the configuration provisioned into flash on first
// boot, before any user has touched the unit.
type FactorySettings struct {
	SSID       string `yaml:"ssid,omitempty"`
	Password   string `yaml:"password,omitempty"`
	OTAURL     string `yaml:"ota_url,omitempty"`
	VersionURL string `yaml:"version_url,omitempty"`
	LogLevel   string `yaml:"log_level,omitempty"`
	UnitName   string `yaml:"unit_name,omitempty"`
}

// AnnounceSettings shapes the unit's mDNS presence.
type AnnounceSettings struct {
	Disabled bool   `yaml:"disabled,omitempty"`
	Service  string `yaml:"service,omitempty"`
	Domain   string `yaml:"domain,omitempty"`
	Port     int    `yaml:"port,omitempty"`
}

// DefaultSettings returns the settings an agent runs with when no file
// exists.
func DefaultSettings() Settings {
	factory := unitcfg.DefaultFactory()
	ap := wifi.DefaultSettings().AP
	return Settings{
		Version:  settingsVersionSupported,
		FlashDir: DefaultFlashDir(),
		BootMode: "sta",
		AccessPoint: APSettings{
			SSID:       ap.SSID,
			Password:   ap.Password,
			Channel:    ap.Channel,
			MaxClients: ap.MaxClients,
		},
		Station: StationSettings{
			MaxRetries:        wifi.DefaultMaxRetries,
			RetryDelaySeconds: int(wifi.DefaultRetryDelay / time.Second),
		},
		Factory: FactorySettings{
			SSID:       factory.SSID,
			Password:   factory.Password,
			OTAURL:     factory.OTAURL,
			VersionURL: factory.VersionURL,
			LogLevel:   factory.LogLevel.String(),
			UnitName:   factory.UnitName,
		},
		Announce: AnnounceSettings{
			Service: announce.ServiceType,
			Domain:  announce.ServiceDomain,
			Port:    announce.DefaultPort,
		},
	}
}

// ConfigDir returns the OS-appropriate directory for fieldlink state:
//   - Linux: $XDG_CONFIG_HOME/fieldlink or $HOME/.config/fieldlink
//   - macOS: $HOME/.config/fieldlink
//   - Windows: %LOCALAPPDATA%\fieldlink
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", appName), nil
}

// DefaultSettingsPath returns where the agent looks for its settings
// file when no path is given.
func DefaultSettingsPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return settingsFile
	}
	return filepath.Join(dir, settingsFile)
}

// DefaultFlashDir returns where the simulated flash lives when the
// settings file does not say otherwise.
func DefaultFlashDir() string {
	dir, err := ConfigDir()
	if err != nil {
		return flashDirName
	}
	return filepath.Join(dir, flashDirName)
}

// LoadSettings reads the settings file at path. A missing file is not an
// error; it yields the defaults, so a fresh host boots like a fresh
// unit.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings file: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing settings file: %w", err)
	}
	if s.Version != settingsVersionSupported {
		return Settings{}, fmt.Errorf("unsupported settings version: %d (expected %d)", s.Version, settingsVersionSupported)
	}

	s.fillDefaults()
	return s, nil
}

// Save writes the settings atomically, creating the parent directory if
// needed.
func (s Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	header := []byte(`# Fieldlink agent settings.
# This file configures the host side of a unit: flash location, boot
# mode, radio behavior and announcements. The unit's own configuration
# lives in the flash blob and is edited with fieldlink-cfg.

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("writing temporary settings file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("saving settings file: %w", err)
	}
	return nil
}

// fillDefaults completes fields the file left empty so partial files
// stay usable.
func (s *Settings) fillDefaults() {
	def := DefaultSettings()
	if s.FlashDir == "" {
		s.FlashDir = def.FlashDir
	}
	if s.BootMode == "" {
		s.BootMode = def.BootMode
	}
	if s.AccessPoint.SSID == "" {
		s.AccessPoint = def.AccessPoint
	}
	if s.Station.MaxRetries == 0 {
		s.Station.MaxRetries = def.Station.MaxRetries
	}
	if s.Station.RetryDelaySeconds == 0 {
		s.Station.RetryDelaySeconds = def.Station.RetryDelaySeconds
	}
	if s.Factory.SSID == "" {
		s.Factory = def.Factory
	}
	if s.Announce.Service == "" {
		s.Announce.Service = def.Announce.Service
	}
	if s.Announce.Domain == "" {
		s.Announce.Domain = def.Announce.Domain
	}
	if s.Announce.Port == 0 {
		s.Announce.Port = def.Announce.Port
	}
}

// bootRequest maps the configured boot mode onto a connectivity request.
func (s Settings) bootRequest() (signal.Flags, error) {
	switch s.BootMode {
	case "", "sta":
		return wifi.RequestSTA, nil
	case "ap":
		return wifi.RequestAP, nil
	case "ap+sta", "apsta":
		return wifi.RequestAPSTA, nil
	case "none":
		return wifi.RequestNone, nil
	default:
		return 0, fmt.Errorf("unknown boot mode %q (want sta, ap, ap+sta or none)", s.BootMode)
	}
}

// FactoryDefaults converts the factory block into the provisioning
// defaults the persistence manager writes on first boot. fieldlink-cfg
// uses it to provision a flash directory offline with the same values.
func (s Settings) FactoryDefaults() (unitcfg.Factory, error) {
	level, err := unitcfg.ParseLogLevel(s.Factory.LogLevel)
	if err != nil {
		return unitcfg.Factory{}, fmt.Errorf("factory log level: %w", err)
	}
	return unitcfg.Factory{
		SSID:       s.Factory.SSID,
		Password:   s.Factory.Password,
		OTAURL:     s.Factory.OTAURL,
		VersionURL: s.Factory.VersionURL,
		LogLevel:   level,
		UnitName:   s.Factory.UnitName,
	}, nil
}

func (s Settings) wifiSettings() wifi.Settings {
	return wifi.Settings{
		AP: radio.AccessPointConfig{
			SSID:       s.AccessPoint.SSID,
			Password:   s.AccessPoint.Password,
			Channel:    s.AccessPoint.Channel,
			MaxClients: s.AccessPoint.MaxClients,
		},
		MaxRetries: s.Station.MaxRetries,
		RetryDelay: time.Duration(s.Station.RetryDelaySeconds) * time.Second,
	}
}

func (s Settings) announceSettings() announce.Settings {
	return announce.Settings{
		Service: s.Announce.Service,
		Domain:  s.Announce.Domain,
		Port:    s.Announce.Port,
	}
}
