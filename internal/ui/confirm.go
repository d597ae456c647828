package ui

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmDestructive displays a warning box and prompts the user to type
// the given word to proceed. Returns true if the user confirmed, false
// otherwise.
func ConfirmDestructive(title string, warnings []string, word string) bool {
	width := GetTerminalWidth()
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var lines []string

	titleLine := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true).
		Render(fmt.Sprintf("   ⚠  WARNING  ─  %s", title))
	lines = append(lines, "")
	lines = append(lines, titleLine)
	lines = append(lines, "")

	for _, warning := range warnings {
		bulletStyle := lipgloss.NewStyle().Foreground(TextColor)
		lines = append(lines, bulletStyle.Render("   • "+warning))
	}
	lines = append(lines, "")

	box := WarningBoxStyle(width).Render(strings.Join(lines, "\n"))

	fmt.Println(box)
	fmt.Println()

	promptStyle := lipgloss.NewStyle().
		Foreground(WarningColor).
		Bold(true)
	fmt.Print(promptStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", word)))

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return false
	}

	if strings.TrimSpace(input) == word {
		fmt.Println()
		return true
	}

	fmt.Println()
	cancelStyle := lipgloss.NewStyle().Foreground(MutedColor)
	fmt.Println(cancelStyle.Render("  Operation cancelled."))
	fmt.Println()
	return false
}

// WipeConfirmation is the pre-configured confirmation for erasing a
// unit's stored configuration.
func WipeConfirmation() bool {
	return ConfirmDestructive(
		"CONFIGURATION WIPE",
		[]string{
			"This erases the stored configuration blob",
			"The unit falls back to factory defaults on its next boot",
			"Saved network credentials and the unit name are lost",
		},
		"wipe",
	)
}
