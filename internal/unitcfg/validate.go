package unitcfg

import (
	"fmt"
	"net/url"
	"unicode"
	"unicode/utf8"
)

// ValidateSSID checks an SSID against 802.11 limits.
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return fmt.Errorf("%w: ssid cannot be empty", ErrInvalid)
	}
	if len(ssid) > MaxSSIDLen {
		return fmt.Errorf("%w: ssid exceeds %d bytes", ErrFieldTooLong, MaxSSIDLen)
	}
	return nil
}

// ValidatePassword checks a network password. An empty password is valid
// and marks an open network; anything else must satisfy WPA2 length rules.
func ValidatePassword(password string) error {
	if password == "" {
		return nil
	}
	if len(password) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, MinPasswordLen)
	}
	if len(password) > MaxPasswordLen {
		return fmt.Errorf("%w: password exceeds %d bytes", ErrFieldTooLong, MaxPasswordLen)
	}
	return nil
}

// ValidateNetwork checks one set of station credentials.
func ValidateNetwork(n Network) error {
	if err := ValidateSSID(n.SSID); err != nil {
		return err
	}
	return ValidatePassword(n.Password)
}

// ValidateEndpointURL checks an update endpoint. Endpoints are optional;
// an empty string is valid and disables the endpoint.
func ValidateEndpointURL(raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > MaxURLLen {
		return fmt.Errorf("%w: url exceeds %d bytes", ErrFieldTooLong, MaxURLLen)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https, got %q", ErrInvalid, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", ErrInvalid)
	}
	return nil
}

// ValidateUnitName checks an operator-assigned unit name.
func ValidateUnitName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: unit name cannot be empty", ErrInvalid)
	}
	if len(name) > MaxUnitNameLen {
		return fmt.Errorf("%w: unit name exceeds %d bytes", ErrFieldTooLong, MaxUnitNameLen)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: unit name is not valid UTF-8", ErrInvalid)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: unit name contains control characters", ErrInvalid)
		}
	}
	return nil
}

// ValidateConfig checks a whole configuration document and returns all
// problems found. A nil result means the document is valid.
func ValidateConfig(cfg *Config) []error {
	var errs []error

	if cfg.Version != FormatVersion {
		errs = append(errs, fmt.Errorf("%w: version %d, current is %d", ErrVersionMismatch, cfg.Version, FormatVersion))
	}
	if len(cfg.Connectivity.Networks) > MaxNetworks {
		errs = append(errs, fmt.Errorf("%w: %d networks, limit is %d", ErrInvalid, len(cfg.Connectivity.Networks), MaxNetworks))
	}
	for i, n := range cfg.Connectivity.Networks {
		if err := ValidateNetwork(n); err != nil {
			errs = append(errs, fmt.Errorf("network %d: %w", i, err))
		}
	}
	if err := ValidateEndpointURL(cfg.Connectivity.OTAURL); err != nil {
		errs = append(errs, fmt.Errorf("ota url: %w", err))
	}
	if err := ValidateEndpointURL(cfg.Connectivity.VersionURL); err != nil {
		errs = append(errs, fmt.Errorf("version url: %w", err))
	}
	if !cfg.System.LogLevel.Valid() {
		errs = append(errs, fmt.Errorf("%w: log level %d", ErrInvalid, cfg.System.LogLevel))
	}
	// The unit name may be empty on an unprovisioned unit; only its size
	// and content are constrained here.
	if cfg.User.UnitName != "" {
		if err := ValidateUnitName(cfg.User.UnitName); err != nil {
			errs = append(errs, fmt.Errorf("unit name: %w", err))
		}
	}
	return errs
}
