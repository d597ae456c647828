// Package ui provides terminal UI components for the fieldlink commands.
//
// This package uses Bubble Tea and Lipgloss for two different jobs:
//
//   - Dashboard: an interactive status panel for a running agent. It
//     polls the connectivity and persistence managers, shows their
//     published states and the stored configuration, and maps keys onto
//     state requests (switch radio modes, save or reload configuration,
//     add a network, reboot).
//   - Static renderers: Summary boxes and confirmation prompts used by
//     fieldlink-cfg for "run once and exit" output.
//
// # Logging Integration
//
// The dashboard owns the terminal while it runs, so log output would
// corrupt the display. Commands that launch it should leave logging at
// the silent default unless FIELDLINK_LOG_LEVEL is set, in which case
// the operator has explicitly traded a clean display for log lines.
package ui
