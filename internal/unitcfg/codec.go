package unitcfg

import "fmt"

// EncodedSize returns the exact number of bytes Encode will produce for
// cfg. It is computed independently of Encode so the two can check each
// other in tests.
func EncodedSize(cfg *Config) int {
	// version, network count, two url length prefixes
	size := 4
	size += len(cfg.Connectivity.OTAURL)
	size += len(cfg.Connectivity.VersionURL)
	for _, n := range cfg.Connectivity.Networks {
		size += 2 + len(n.SSID) + len(n.Password)
	}
	// log level, unit name length prefix
	size += 2
	size += len(cfg.User.UnitName)
	return size
}

// Encode serializes cfg into a single blob in the layout documented in
// the package comment. Fields over their limits are rejected, never
// truncated. Only current-version documents can be encoded.
func Encode(cfg *Config) ([]byte, error) {
	if cfg.Version != FormatVersion {
		return nil, fmt.Errorf("%w: cannot encode version %d, current is %d",
			ErrVersionMismatch, cfg.Version, FormatVersion)
	}
	nets := cfg.Connectivity.Networks
	if len(nets) > MaxNetworks {
		return nil, fmt.Errorf("%w: %d networks, limit is %d", ErrFieldTooLong, len(nets), MaxNetworks)
	}
	if len(cfg.Connectivity.OTAURL) > MaxURLLen {
		return nil, fmt.Errorf("%w: ota url is %d bytes, limit is %d",
			ErrFieldTooLong, len(cfg.Connectivity.OTAURL), MaxURLLen)
	}
	if len(cfg.Connectivity.VersionURL) > MaxURLLen {
		return nil, fmt.Errorf("%w: version url is %d bytes, limit is %d",
			ErrFieldTooLong, len(cfg.Connectivity.VersionURL), MaxURLLen)
	}
	for i, n := range nets {
		if len(n.SSID) > MaxSSIDLen {
			return nil, fmt.Errorf("%w: network %d ssid is %d bytes, limit is %d",
				ErrFieldTooLong, i, len(n.SSID), MaxSSIDLen)
		}
		if len(n.Password) > MaxPasswordLen {
			return nil, fmt.Errorf("%w: network %d password is %d bytes, limit is %d",
				ErrFieldTooLong, i, len(n.Password), MaxPasswordLen)
		}
	}
	if !cfg.System.LogLevel.Valid() {
		return nil, fmt.Errorf("%w: log level %d", ErrInvalid, cfg.System.LogLevel)
	}
	if len(cfg.User.UnitName) > MaxUnitNameLen {
		return nil, fmt.Errorf("%w: unit name is %d bytes, limit is %d",
			ErrFieldTooLong, len(cfg.User.UnitName), MaxUnitNameLen)
	}

	buf := make([]byte, 0, EncodedSize(cfg))
	buf = append(buf, cfg.Version)
	buf = append(buf, byte(len(nets)))
	buf = append(buf, byte(len(cfg.Connectivity.OTAURL)))
	buf = append(buf, byte(len(cfg.Connectivity.VersionURL)))
	buf = append(buf, cfg.Connectivity.OTAURL...)
	buf = append(buf, cfg.Connectivity.VersionURL...)
	for _, n := range nets {
		buf = append(buf, byte(len(n.SSID)), byte(len(n.Password)))
		buf = append(buf, n.SSID...)
		buf = append(buf, n.Password...)
	}
	buf = append(buf, byte(cfg.System.LogLevel))
	buf = append(buf, byte(len(cfg.User.UnitName)))
	buf = append(buf, cfg.User.UnitName...)
	return buf, nil
}

// Decode parses a blob produced by Encode. It returns ErrVersionMismatch
// for a blob from a different layout version and ErrCorrupt for a blob
// whose contents do not fit its declared lengths.
func Decode(blob []byte) (*Config, error) {
	d := decoder{buf: blob}

	version, err := d.u8("version")
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: blob has version %d, current is %d",
			ErrVersionMismatch, version, FormatVersion)
	}

	count, err := d.u8("network count")
	if err != nil {
		return nil, err
	}
	otaLen, err := d.u8("ota url length")
	if err != nil {
		return nil, err
	}
	verLen, err := d.u8("version url length")
	if err != nil {
		return nil, err
	}
	ota, err := d.str(int(otaLen), "ota url")
	if err != nil {
		return nil, err
	}
	verURL, err := d.str(int(verLen), "version url")
	if err != nil {
		return nil, err
	}

	var nets []Network
	for i := 0; i < int(count); i++ {
		ssidLen, err := d.u8("ssid length")
		if err != nil {
			return nil, err
		}
		passLen, err := d.u8("password length")
		if err != nil {
			return nil, err
		}
		ssid, err := d.str(int(ssidLen), "ssid")
		if err != nil {
			return nil, err
		}
		pass, err := d.str(int(passLen), "password")
		if err != nil {
			return nil, err
		}
		nets = append(nets, Network{SSID: ssid, Password: pass})
	}

	levelByte, err := d.u8("log level")
	if err != nil {
		return nil, err
	}
	level := LogLevel(levelByte)
	if !level.Valid() {
		return nil, fmt.Errorf("%w: log level byte %d out of range", ErrCorrupt, levelByte)
	}

	nameLen, err := d.u8("unit name length")
	if err != nil {
		return nil, err
	}
	name, err := d.str(int(nameLen), "unit name")
	if err != nil {
		return nil, err
	}

	if d.off != len(blob) {
		return nil, fmt.Errorf("%w: %d trailing bytes after unit name", ErrCorrupt, len(blob)-d.off)
	}

	return &Config{
		Version: version,
		Connectivity: Connectivity{
			Networks:   nets,
			OTAURL:     ota,
			VersionURL: verURL,
		},
		System: System{LogLevel: level},
		User:   User{UnitName: name},
	}, nil
}

// decoder is a bounds-checked cursor over an encoded blob.
type decoder struct {
	buf []byte
	off int
}

func (d *decoder) u8(field string) (byte, error) {
	if d.off >= len(d.buf) {
		return 0, fmt.Errorf("%w: blob ends before %s at offset %d", ErrCorrupt, field, d.off)
	}
	b := d.buf[d.off]
	d.off++
	return b, nil
}

func (d *decoder) str(n int, field string) (string, error) {
	if d.off+n > len(d.buf) {
		return "", fmt.Errorf("%w: %s declares %d bytes but only %d remain",
			ErrCorrupt, field, n, len(d.buf)-d.off)
	}
	s := string(d.buf[d.off : d.off+n])
	d.off += n
	return s, nil
}
