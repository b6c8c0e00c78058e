package orchestrator

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/testenv/testenv/internal/theme"
)

var borderStyle = lipgloss.NewStyle().Foreground(theme.Muted)

// maxErrorWidth truncates long error messages in the summary.
const maxErrorWidth = 80

// Summary renders outcomes as a table.
func Summary(outcomes []Outcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		duration := ""
		if o.Status != StatusSkipped {
			duration = o.Duration.Round(time.Millisecond).String()
		}
		message := ""
		if o.Err != nil {
			message = firstLine(o.Err.Error())
		}
		rows = append(rows, []string{string(o.Stage), string(o.Status), duration, message})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("STAGE", "STATUS", "DURATION", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.Header()
			}
			if col != 1 || row < 0 || row >= len(outcomes) {
				return theme.Cell()
			}
			return theme.Cell().Foreground(theme.Status(string(outcomes[row].Status)))
		})
	return t.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > maxErrorWidth {
		s = s[:maxErrorWidth-3] + "..."
	}
	return s
}
