package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Color palette
	primaryColor = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#04B575")
	warningColor = lipgloss.Color("#FFA500")
	errorColor   = lipgloss.Color("#FF4B4B")
	mutedColor   = lipgloss.Color("#666666")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)

	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	kindStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// Block map cells
	allocCellStyle = lipgloss.NewStyle().
			Foreground(primaryColor)

	freeCellStyle = lipgloss.NewStyle().
			Foreground(successColor)
)

// render applies st unless colors are disabled.
func render(st lipgloss.Style, s string) string {
	if noColor {
		return s
	}
	return st.Render(s)
}
