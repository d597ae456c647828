package unitcfg

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateSSID(t *testing.T) {
	tests := []struct {
		name    string
		ssid    string
		wantErr bool
	}{
		{"valid", "barn-north", false},
		{"single char", "x", false},
		{"at limit", strings.Repeat("a", MaxSSIDLen), false},
		{"empty", "", true},
		{"over limit", strings.Repeat("a", MaxSSIDLen+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSSID(tt.ssid)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSSID(%q) error = %v, wantErr %v", tt.ssid, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"empty means open network", "", false},
		{"wpa2 minimum", strings.Repeat("p", MinPasswordLen), false},
		{"at limit", strings.Repeat("p", MaxPasswordLen), false},
		{"too short", "seven77", true},
		{"over limit", strings.Repeat("p", MaxPasswordLen+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"empty disables endpoint", "", false},
		{"https", "https://updates.fieldlink.dev/firmware.bin", false},
		{"http", "http://10.0.0.5:8080/version.json", false},
		{"bad scheme", "ftp://updates.fieldlink.dev/firmware.bin", true},
		{"no host", "https://", true},
		{"unparseable", "://missing-scheme", true},
		{"over limit", "https://" + strings.Repeat("a", MaxURLLen), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpointURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpointURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateUnitName(t *testing.T) {
	tests := []struct {
		name     string
		unitName string
		wantErr  bool
	}{
		{"valid", "pump-house", false},
		{"unicode", "humidité-serre", false},
		{"at limit", strings.Repeat("n", MaxUnitNameLen), false},
		{"empty", "", true},
		{"over limit", strings.Repeat("n", MaxUnitNameLen+1), true},
		{"control characters", "pump\nhouse", true},
		{"invalid utf-8", "pump\xffhouse", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUnitName(tt.unitName)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUnitName(%q) error = %v, wantErr %v", tt.unitName, err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		if errs := ValidateConfig(populatedConfig()); len(errs) != 0 {
			t.Errorf("ValidateConfig() = %v, want no errors", errs)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		if errs := ValidateConfig(DefaultConfig(DefaultFactory())); len(errs) != 0 {
			t.Errorf("ValidateConfig(defaults) = %v, want no errors", errs)
		}
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := populatedConfig()
		cfg.Connectivity.Networks[0].SSID = ""
		cfg.Connectivity.OTAURL = "ftp://nope"
		cfg.System.LogLevel = LogLevel(42)

		errs := ValidateConfig(cfg)
		if len(errs) != 3 {
			t.Fatalf("ValidateConfig() returned %d errors, want 3: %v", len(errs), errs)
		}
	})

	t.Run("stale version flagged", func(t *testing.T) {
		cfg := populatedConfig()
		cfg.Version = FormatVersion + 3

		errs := ValidateConfig(cfg)
		if len(errs) != 1 || !errors.Is(errs[0], ErrVersionMismatch) {
			t.Errorf("ValidateConfig() = %v, want single ErrVersionMismatch", errs)
		}
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"silent", "silent", LogSilent, false},
		{"error", "error", LogError, false},
		{"warn", "warn", LogWarn, false},
		{"info", "info", LogInfo, false},
		{"debug", "debug", LogDebug, false},
		{"unknown", "verbose", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogLevelRoundTrip(t *testing.T) {
	for _, level := range []LogLevel{LogSilent, LogError, LogWarn, LogInfo, LogDebug} {
		got, err := ParseLogLevel(level.String())
		if err != nil {
			t.Errorf("ParseLogLevel(%q) error = %v", level.String(), err)
			continue
		}
		if got != level {
			t.Errorf("ParseLogLevel(%v.String()) = %v", level, got)
		}
	}
}
