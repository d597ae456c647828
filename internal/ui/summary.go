package ui

import (
	"fmt"
	"strings"

	"github.com/okkerse/fieldlink/internal/unitcfg"
)

// Row is one key-value line in a summary box. Rows render in order, so
// command output stays stable across runs.
type Row struct {
	Key   string
	Value string
}

// Summary renders a titled box of configuration details.
type Summary struct {
	Title string
	Rows  []Row
	Width int // Terminal width
}

// NewSummary creates a summary box sized to the current terminal
func NewSummary(title string) *Summary {
	return &Summary{
		Title: title,
		Width: GetTerminalWidth(),
	}
}

// AddRow appends a key-value detail line
func (s *Summary) AddRow(key, value string) *Summary {
	s.Rows = append(s.Rows, Row{Key: key, Value: value})
	return s
}

// Render returns the styled summary box as a string
func (s *Summary) Render() string {
	width := s.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var lines []string
	lines = append(lines, "")
	lines = append(lines, SummaryTitleStyle.Render("   "+s.Title))
	lines = append(lines, "")

	for _, row := range s.Rows {
		keyStyled := SummaryKeyStyle.Render(fmt.Sprintf("   %s:", row.Key))
		valueStyled := SummaryValueStyle.Render(row.Value)
		lines = append(lines, keyStyled+" "+valueStyled)
	}

	lines = append(lines, "")

	return SummaryBoxStyle(width).Render(strings.Join(lines, "\n"))
}

// UnitSummary builds the standard summary box for a unit configuration.
// Passwords are never shown; networks render as SSID plus a lock marker.
func UnitSummary(cfg *unitcfg.Config) *Summary {
	s := NewSummary("UNIT CONFIGURATION")

	name := cfg.User.UnitName
	if name == "" {
		name = "(unnamed)"
	}
	s.AddRow("Unit name", name)
	s.AddRow("Format", fmt.Sprintf("v%d", cfg.Version))

	if len(cfg.Connectivity.Networks) == 0 {
		s.AddRow("Networks", "none configured")
	} else {
		for i, net := range cfg.Connectivity.Networks {
			marker := "open"
			if net.Password != "" {
				marker = "protected"
			}
			s.AddRow(fmt.Sprintf("Network %d", i+1), fmt.Sprintf("%s (%s)", net.SSID, marker))
		}
	}

	s.AddRow("OTA endpoint", cfg.Connectivity.OTAURL)
	s.AddRow("Version check", cfg.Connectivity.VersionURL)
	s.AddRow("Log level", cfg.System.LogLevel.String())

	return s
}
