// Package theme holds the terminal colours shared by the stage summary, the
// history table and the config wizard.
package theme

import "github.com/charmbracelet/lipgloss"

var (
	Accent  = lipgloss.Color("#38BDF8")
	Success = lipgloss.Color("#10B981")
	Failure = lipgloss.Color("#EF4444")
	Muted   = lipgloss.Color("#6B7280")
)

// Status picks the colour for a stage or run status: green for
// "succeeded", red for "failed" and grey for anything else.
func Status(status string) lipgloss.Color {
	switch status {
	case "succeeded":
		return Success
	case "failed":
		return Failure
	default:
		return Muted
	}
}

// Cell is the padded style used for table cells.
func Cell() lipgloss.Style {
	return lipgloss.NewStyle().Padding(0, 1)
}

// Header is the style used for table headers.
func Header() lipgloss.Style {
	return Cell().Bold(true)
}
