package unitcfg

// Factory holds the provisioning values a unit falls back to when no
// configuration blob exists in flash, or when the stored blob is
// unreadable. Deployments override these through the agent settings file.
type Factory struct {
	SSID       string
	Password   string
	OTAURL     string
	VersionURL string
	LogLevel   LogLevel
	UnitName   string
}

// DefaultFactory returns the build-time factory values.
func DefaultFactory() Factory {
	return Factory{
		SSID:       "fieldnet",
		Password:   "fieldnet-setup",
		OTAURL:     "https://updates.fieldlink.dev/firmware.bin",
		VersionURL: "https://updates.fieldlink.dev/version.json",
		LogLevel:   LogInfo,
		UnitName:   "fieldlink-unit",
	}
}

// DefaultConfig builds a complete current-version configuration from
// factory values. The result always carries exactly one known network.
func DefaultConfig(f Factory) *Config {
	return &Config{
		Version: FormatVersion,
		Connectivity: Connectivity{
			Networks:   []Network{{SSID: f.SSID, Password: f.Password}},
			OTAURL:     f.OTAURL,
			VersionURL: f.VersionURL,
		},
		System: System{LogLevel: f.LogLevel},
		User:   User{UnitName: f.UnitName},
	}
}
