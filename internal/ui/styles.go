package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette shared by the dashboard and the cfg command output
var (
	// Primary colors
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - up states, checkmarks
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors, X marks
	WarningColor = lipgloss.Color("#FFA500") // Orange - in-flight states
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinTerminalWidth = 60  // Minimum supported terminal width
	MaxContentWidth  = 100 // Maximum content width before capping
	DefaultPadding   = 2   // Default padding inside boxes
)

// Shared styles
var (
	// HeaderTitleStyle is for the dashboard banner (e.g., "FIELDLINK UNIT")
	HeaderTitleStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true).
				PaddingLeft(2)

	// HeaderMetaStyle is for the muted line under the banner (version, boot id)
	HeaderMetaStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(2)

	// SectionTitleStyle is for section headings ("CONNECTIVITY", "CONFIGURATION")
	SectionTitleStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true).
				PaddingLeft(2)

	// FieldKeyStyle is for field keys (e.g., "State:")
	FieldKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(14).
			PaddingLeft(2)

	// FieldValueStyle is for field values
	FieldValueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// StateUpStyle is for states where the unit is reachable
	StateUpStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	// StateBusyStyle is for transitional states (associating, flash op in flight)
	StateBusyStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	// StateDownStyle is for idle or torn-down states
	StateDownStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Bold(true)

	// EventTimeStyle is for the timestamp column of the event log
	EventTimeStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(2)

	// EventTextStyle is for event log lines
	EventTextStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// NoticeStyle is for one-line feedback after a key press
	NoticeStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			PaddingLeft(2)

	// PromptStyle is for inline input prompts (add-network flow)
	PromptStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			PaddingLeft(2)

	// HelpStyle wraps the bubbles help view at the bottom of the dashboard
	HelpStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			PaddingTop(1)

	// SummaryKeyStyle is for summary box detail keys
	SummaryKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(15)

	// SummaryValueStyle is for summary box detail values
	SummaryValueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// SummaryTitleStyle is for the summary box title
	SummaryTitleStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)
)

// Status markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	LinkUpMarker  = "●"
	LinkOffMarker = "○"
)

// GetTerminalWidth returns the current terminal width, with fallback
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// SummaryBoxStyle returns the border style for configuration summary boxes
func SummaryBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Padding(0, 2)
}

// WarningBoxStyle returns the border style for destructive-operation warnings
func WarningBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(WarningColor).
		Width(width - 2).
		Padding(0, 2)
}

// RenderOK renders a one-line success message for command output
func RenderOK(text string) string {
	return lipgloss.NewStyle().
		Foreground(SuccessColor).
		Render(SuccessMarker + " " + text)
}

// RenderFail renders a one-line failure message for command output
func RenderFail(text string) string {
	return lipgloss.NewStyle().
		Foreground(ErrorColor).
		Render(FailureMarker + " " + text)
}
