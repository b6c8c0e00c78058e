// Package wizard implements the interactive `testenv config init` flow.
package wizard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/driver"
)

// ErrCancelled is returned by Run when the user quits before files are
// written.
var ErrCancelled = errors.New("config init cancelled")

// New creates a new wizard model
func New(opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = focusStyle

	return Model{
		opts:    opts,
		state:   StateEngine,
		errors:  make(map[int]string),
		spinner: s,
	}
}

// Init initializes the wizard (Bubble Tea Init)
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles state transitions (Bubble Tea Update)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "q":
			if m.state != StateDetails {
				return m, tea.Quit
			}
		case "enter":
			return m.handleEnter()
		case "up", "shift+tab":
			return m.handleUp()
		case "down", "tab":
			return m.handleDown()
		case "k":
			if m.state != StateDetails {
				return m.handleUp()
			}
		case "j":
			if m.state != StateDetails {
				return m.handleDown()
			}
		}
		return m.handleTextInput(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.state != StateWriting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case fileCreationResultMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = StateError
			return m, tea.Quit
		}
		m.result = msg.result
		m.state = StateDone
		return m, tea.Quit
	}

	return m, nil
}

// View renders the wizard UI (Bubble Tea View)
func (m Model) View() string {
	switch m.state {
	case StateEngine:
		return m.renderEngine()
	case StateDetails:
		return m.renderDetails()
	case StateSummary:
		return m.renderSummary()
	case StateWriting:
		return m.renderWriting()
	case StateDone:
		return m.renderDone()
	case StateError:
		return m.renderError()
	default:
		return "Unknown state"
	}
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateEngine:
		m.input.Engine = EngineOptions[m.engineIndex].Engine
		m.initializeInputs()
		m.state = StateDetails
		return m, textinput.Blink

	case StateDetails:
		if m.focusIndex < len(m.inputs)-1 {
			m.focusIndex++
			m.updateInputFocus()
			return m, nil
		}
		if !m.collectInputValues() {
			return m, nil
		}
		m.state = StateSummary
		return m, nil

	case StateSummary:
		m.state = StateWriting
		return m, tea.Batch(m.spinner.Tick, m.writeFiles())

	case StateDone, StateError:
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleUp() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateEngine:
		if m.engineIndex > 0 {
			m.engineIndex--
		}
	case StateDetails:
		if m.focusIndex > 0 {
			m.focusIndex--
			m.updateInputFocus()
		}
	}
	return m, nil
}

func (m Model) handleDown() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateEngine:
		if m.engineIndex < len(EngineOptions)-1 {
			m.engineIndex++
		}
	case StateDetails:
		if m.focusIndex < len(m.inputs)-1 {
			m.focusIndex++
			m.updateInputFocus()
		}
	}
	return m, nil
}

func (m Model) handleTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == StateDetails && len(m.inputs) > 0 {
		var cmd tea.Cmd
		m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
		return m, cmd
	}
	return m, nil
}

// Input management

func (m *Model) initializeInputs() {
	defaults, err := config.DefaultConfig(m.input.Engine)
	if err != nil {
		defaults = &config.Config{}
	}

	m.inputs = make([]textinput.Model, fieldCount)
	m.inputs[fieldContainerName] = makeInput("Container name", defaults.Container.Name, false)
	m.inputs[fieldPort] = makeInput("Host port", strconv.Itoa(defaults.Container.Port), false)
	m.inputs[fieldSQLFolder] = makeInput("SQL folder", defaults.Schema.SQLFolder, false)
	m.inputs[fieldPassword] = makeInput("Administrator password", "", true)

	m.focusIndex = 0
	m.errors = make(map[int]string)
	m.inputs[0].Focus()
}

func makeInput(placeholder, value string, isPassword bool) textinput.Model {
	input := textinput.New()
	input.Placeholder = placeholder
	input.SetValue(value)
	if isPassword {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '*'
	}
	return input
}

func (m *Model) updateInputFocus() {
	for i := range m.inputs {
		if i == m.focusIndex {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

// collectInputValues copies the fields into m.input and records a message
// per invalid field. The first invalid field receives focus.
func (m *Model) collectInputValues() bool {
	m.input.ContainerName = strings.TrimSpace(m.inputs[fieldContainerName].Value())
	m.input.Port = strings.TrimSpace(m.inputs[fieldPort].Value())
	m.input.SQLFolder = strings.TrimSpace(m.inputs[fieldSQLFolder].Value())
	m.input.Password = m.inputs[fieldPassword].Value()

	m.errors = make(map[int]string)
	checks := []struct {
		field int
		err   error
	}{
		{fieldContainerName, ValidateContainerName(m.input.ContainerName)},
		{fieldPort, ValidatePort(m.input.Port)},
		{fieldSQLFolder, ValidateSQLFolder(m.input.SQLFolder)},
		{fieldPassword, ValidatePassword(m.input.Password)},
	}
	first := -1
	for _, c := range checks {
		if c.err != nil {
			m.errors[c.field] = c.err.Error()
			if first < 0 {
				first = c.field
			}
		}
	}
	if first >= 0 {
		m.focusIndex = first
		m.updateInputFocus()
		return false
	}
	return true
}

type fileCreationResultMsg struct {
	result *Result
	err    error
}

func (m Model) writeFiles() tea.Cmd {
	opts, in := m.opts, m.input
	return func() tea.Msg {
		result, err := GenerateFiles(opts, in)
		return fileCreationResultMsg{result: result, err: err}
	}
}

// View renderers

func (m Model) renderEngine() string {
	f := newFrame("Database Engine")
	f.line(mutedStyle.Render("Which engine should the test container run?")).blank()

	for i, opt := range EngineOptions {
		line := fmt.Sprintf("%d. %s", i+1, opt.DisplayName)
		if drv, err := driver.NewDriver(opt.Engine); err == nil {
			line += fmt.Sprintf(" (%s)", drv.DefaultImage())
		}
		f.choice(i == m.engineIndex, line)
	}

	return f.keys("↑/↓: navigate  Enter: select  q: quit")
}

func (m Model) renderDetails() string {
	f := newFrame("Container Settings")
	f.line("Engine: " + EngineOptions[m.engineIndex].DisplayName).blank()

	for i, input := range m.inputs {
		f.choice(i == m.focusIndex, input.Placeholder+":")
		f.line("  " + input.View())
		if msg, ok := m.errors[i]; ok {
			f.fail(msg)
		}
		f.blank()
	}

	f.note("The password is stored in .env as " + config.EnvDBPassword + ",\nnot in " + config.FileName + ".")
	return f.keys("↑/↓ or Tab: navigate  Enter: next  Ctrl+C: quit")
}

func (m Model) renderSummary() string {
	f := newFrame("Summary")
	f.line("  Engine:     " + EngineOptions[m.engineIndex].DisplayName).
		line("  Container:  " + m.input.ContainerName).
		line("  Port:       " + m.input.Port).
		line("  SQL folder: " + m.input.SQLFolder).
		blank().
		line("This will create:").
		line("  • " + config.FileName).
		line("  • .env").
		line("  • Update .gitignore")

	return f.keys("Press Enter to create files, q to quit")
}

func (m Model) renderWriting() string {
	return newFrame("").line(m.spinner.View() + " Writing configuration...").String()
}

func (m Model) renderDone() string {
	f := newFrame("")
	f.ok("Setup complete!").blank()

	if m.result != nil {
		f.line("Created:")
		f.line("  " + m.result.ConfigPath)
		if m.result.DotenvPath != "" {
			f.line("  " + m.result.DotenvPath)
		}
		if m.result.GitignoreUpdated {
			f.line("  .gitignore updated")
		}
		f.blank()
	}

	f.line("Next steps:").
		line("  1. List your databases and SQL files under [schema]").
		line("  2. Add migration projects under [migrations]").
		line("  3. Run: testenv reset")
	return f.String()
}

func (m Model) renderError() string {
	f := newFrame("")
	f.fail("Could not write configuration")
	if m.err != nil {
		f.blank().line(failStyle.Render(m.err.Error()))
	}
	return f.String()
}
