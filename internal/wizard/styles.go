package wizard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/testenv/testenv/internal/theme"
)

const title = "testenv config init"

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Muted).
			Padding(1, 2)

	titleStyle   = lipgloss.NewStyle().Foreground(theme.Accent).Bold(true)
	sectionStyle = titleStyle.Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(theme.Muted)
	focusStyle   = lipgloss.NewStyle().Foreground(theme.Success).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(theme.Success)
	failStyle    = lipgloss.NewStyle().Foreground(theme.Failure).Bold(true)
	noteStyle    = lipgloss.NewStyle().
			Foreground(theme.Accent).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(theme.Accent).
			PaddingLeft(1)
)

const (
	markFocus = ">"
	markOK    = "+"
	markFail  = "x"
)

// frame accumulates the body of one wizard screen. Every screen shares the
// title line and is drawn inside the same border.
type frame struct {
	b strings.Builder
}

func newFrame(section string) *frame {
	f := &frame{}
	f.b.WriteString(titleStyle.Render(title))
	if section != "" {
		f.b.WriteString("  ")
		f.b.WriteString(sectionStyle.Render(section))
	}
	f.b.WriteString("\n\n")
	return f
}

func (f *frame) line(s string) *frame {
	f.b.WriteString(s)
	f.b.WriteString("\n")
	return f
}

func (f *frame) blank() *frame {
	f.b.WriteString("\n")
	return f
}

// choice renders a list entry, marked when it has focus.
func (f *frame) choice(focused bool, s string) *frame {
	if focused {
		return f.line(focusStyle.Render(markFocus + " " + s))
	}
	return f.line(mutedStyle.Render("  " + s))
}

func (f *frame) ok(s string) *frame {
	return f.line(okStyle.Render(markOK + " " + s))
}

func (f *frame) fail(s string) *frame {
	return f.line(failStyle.Render(markFail + " " + s))
}

func (f *frame) note(s string) *frame {
	return f.line(noteStyle.Render(s))
}

// keys renders the key help as the last line.
func (f *frame) keys(s string) string {
	f.blank()
	f.b.WriteString(mutedStyle.Italic(true).Render(s))
	return f.String()
}

func (f *frame) String() string {
	return frameStyle.Render(strings.TrimRight(f.b.String(), "\n"))
}
