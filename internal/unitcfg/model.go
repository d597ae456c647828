package unitcfg

import (
	"errors"
	"fmt"
)

// FormatVersion is the layout tag written as the first byte of every
// encoded configuration blob. Bump it whenever the byte layout changes;
// units treat a mismatched blob as absent and fall back to defaults.
const FormatVersion uint8 = 1

// Field limits enforced by validation. The codec itself only requires
// that a field fit its one-byte length prefix.
const (
	MaxSSIDLen     = 32  // 802.11 SSID limit
	MaxPasswordLen = 64  // WPA2 passphrases top out at 63, PSK hex at 64
	MinPasswordLen = 8   // WPA2 minimum for non-open networks
	MaxURLLen      = 255 // update endpoint URLs; must fit a one-byte length prefix
	MaxUnitNameLen = 64  // operator-facing unit name
	MaxNetworks    = 8   // known networks kept per unit
)

var (
	// ErrVersionMismatch reports a blob written under a different
	// FormatVersion. Callers treat this as "no stored configuration".
	ErrVersionMismatch = errors.New("unitcfg: configuration version mismatch")

	// ErrCorrupt reports a blob whose declared lengths do not fit the
	// bytes actually present.
	ErrCorrupt = errors.New("unitcfg: corrupt configuration blob")

	// ErrFieldTooLong reports a field that cannot be represented in the
	// encoded form or exceeds its validation limit.
	ErrFieldTooLong = errors.New("unitcfg: field too long")

	// ErrInvalid reports a configuration value that fails validation.
	ErrInvalid = errors.New("unitcfg: invalid configuration value")
)

// LogLevel is the unit's persisted logging verbosity. The zero value is
// silent. Values are ordered: each level includes everything below it.
type LogLevel uint8

const (
	LogSilent LogLevel = iota
	LogError
	LogWarn
	LogInfo
	LogDebug
)

var logLevelNames = map[LogLevel]string{
	LogSilent: "silent",
	LogError:  "error",
	LogWarn:   "warn",
	LogInfo:   "info",
	LogDebug:  "debug",
}

func (l LogLevel) String() string {
	if name, ok := logLevelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("loglevel(%d)", uint8(l))
}

// Valid reports whether l is one of the defined levels.
func (l LogLevel) Valid() bool {
	_, ok := logLevelNames[l]
	return ok
}

// ParseLogLevel converts a level name to its LogLevel value.
func ParseLogLevel(name string) (LogLevel, error) {
	for level, n := range logLevelNames {
		if n == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalid, name)
}

// Network is one set of station credentials. An empty password means an
// open network.
type Network struct {
	SSID     string
	Password string
}

// Connectivity holds the networks the unit may join and the endpoints it
// reports to.
type Connectivity struct {
	Networks   []Network
	OTAURL     string
	VersionURL string
}

// System holds unit-wide runtime settings.
type System struct {
	LogLevel LogLevel
}

// User holds operator-assigned identity.
type User struct {
	UnitName string
}

// Config is the unit configuration document. Version records the layout
// tag the document was decoded from and will be encoded with; freshly
// built configurations carry FormatVersion.
//
// Connected is transient runtime state maintained by the connectivity
// manager. It is never encoded and survives a configuration reload.
type Config struct {
	Version      uint8
	Connectivity Connectivity
	System       System
	User         User

	Connected bool
}

// Clone returns a deep copy of c. Holders of the configuration store use
// it to retain data past Release.
func (c *Config) Clone() *Config {
	out := *c
	if c.Connectivity.Networks != nil {
		out.Connectivity.Networks = make([]Network, len(c.Connectivity.Networks))
		copy(out.Connectivity.Networks, c.Connectivity.Networks)
	}
	return &out
}

// FindNetwork returns the index of the network with the given SSID, or -1.
func (c *Config) FindNetwork(ssid string) int {
	for i, n := range c.Connectivity.Networks {
		if n.SSID == ssid {
			return i
		}
	}
	return -1
}
