//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/okkerse/fieldlink/internal/unitcfg"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: inspect_blob <blob-file>")
		fmt.Println("Example: inspect_blob /var/lib/fieldlink/flash/config/unit.bin")
		os.Exit(1)
	}

	filename := os.Args[1]
	blob, err := os.ReadFile(filename)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== Fieldlink Blob Inspector ===\n")
	fmt.Printf("File: %s\n", filename)
	fmt.Printf("Size: %d bytes\n\n", len(blob))

	fmt.Println("Hex Dump (16 bytes/line):")
	hexDump(blob)
	fmt.Println()

	cfg, err := unitcfg.Decode(blob)
	if err != nil {
		fmt.Printf("❌ Decode failed: %v\n", err)
		if len(blob) > 0 && blob[0] != unitcfg.FormatVersion {
			fmt.Printf("   First byte is 0x%02x, current format version is %d\n",
				blob[0], unitcfg.FormatVersion)
		}
		os.Exit(1)
	}

	fmt.Println("Layout:")
	printLayout(cfg)
	fmt.Println()

	fmt.Println("Decoded Configuration:")
	fmt.Printf("  Version:     %d\n", cfg.Version)
	fmt.Printf("  Unit name:   %q\n", cfg.User.UnitName)
	fmt.Printf("  Log level:   %s\n", cfg.System.LogLevel)
	fmt.Printf("  OTA URL:     %q\n", cfg.Connectivity.OTAURL)
	fmt.Printf("  Version URL: %q\n", cfg.Connectivity.VersionURL)
	fmt.Printf("  Networks:    %d\n", len(cfg.Connectivity.Networks))
	for i, n := range cfg.Connectivity.Networks {
		security := "open"
		if n.Password != "" {
			security = fmt.Sprintf("protected (%d-byte password)", len(n.Password))
		}
		fmt.Printf("    [%d] %q %s\n", i, n.SSID, security)
	}

	fmt.Printf("\n✅ Blob decodes cleanly (%d bytes, format version %d)\n",
		len(blob), cfg.Version)
}

// printLayout reconstructs the byte offsets of every field from the
// decoded configuration. Offsets follow the encoder: version, counts and
// URL lengths, URL payloads, per-network length pairs and payloads, log
// level, unit name.
func printLayout(cfg *unitcfg.Config) {
	off := 0
	row := func(n int, field, value string) {
		if n == 1 {
			fmt.Printf("  [%04x]       %-18s %s\n", off, field, value)
		} else {
			fmt.Printf("  [%04x-%04x]  %-18s %s\n", off, off+n-1, field, value)
		}
		off += n
	}

	row(1, "version", fmt.Sprintf("%d", cfg.Version))
	row(1, "network count", fmt.Sprintf("%d", len(cfg.Connectivity.Networks)))
	row(1, "ota url length", fmt.Sprintf("%d", len(cfg.Connectivity.OTAURL)))
	row(1, "version url length", fmt.Sprintf("%d", len(cfg.Connectivity.VersionURL)))
	if len(cfg.Connectivity.OTAURL) > 0 {
		row(len(cfg.Connectivity.OTAURL), "ota url", fmt.Sprintf("%q", cfg.Connectivity.OTAURL))
	}
	if len(cfg.Connectivity.VersionURL) > 0 {
		row(len(cfg.Connectivity.VersionURL), "version url", fmt.Sprintf("%q", cfg.Connectivity.VersionURL))
	}
	for i, n := range cfg.Connectivity.Networks {
		row(1, fmt.Sprintf("net %d ssid length", i), fmt.Sprintf("%d", len(n.SSID)))
		row(1, fmt.Sprintf("net %d pass length", i), fmt.Sprintf("%d", len(n.Password)))
		if len(n.SSID) > 0 {
			row(len(n.SSID), fmt.Sprintf("net %d ssid", i), fmt.Sprintf("%q", n.SSID))
		}
		if len(n.Password) > 0 {
			row(len(n.Password), fmt.Sprintf("net %d password", i), "(redacted)")
		}
	}
	row(1, "log level", cfg.System.LogLevel.String())
	row(1, "unit name length", fmt.Sprintf("%d", len(cfg.User.UnitName)))
	if len(cfg.User.UnitName) > 0 {
		row(len(cfg.User.UnitName), "unit name", fmt.Sprintf("%q", cfg.User.UnitName))
	}
}

func hexDump(blob []byte) {
	for i := 0; i < len(blob); i += 16 {
		fmt.Printf("%04x  ", i)

		for j := 0; j < 16; j++ {
			if i+j < len(blob) {
				fmt.Printf("%02x ", blob[i+j])
			} else {
				fmt.Print("   ")
			}
			if j == 7 {
				fmt.Print(" ")
			}
		}

		fmt.Print(" |")
		for j := 0; j < 16 && i+j < len(blob); j++ {
			b := blob[i+j]
			if b >= 32 && b <= 126 {
				fmt.Printf("%c", b)
			} else {
				fmt.Print(".")
			}
		}
		fmt.Println("|")
	}
}
