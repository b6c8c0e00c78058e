package wizard

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/testenv/testenv/internal/driver"
)

// WizardState represents the current step in the wizard
type WizardState int

const (
	StateEngine WizardState = iota
	StateDetails
	StateSummary
	StateWriting
	StateDone
	StateError
)

// Input field indexes on the details step.
const (
	fieldContainerName = iota
	fieldPort
	fieldSQLFolder
	fieldPassword
	fieldCount
)

// Options controls where the wizard writes and whether it may overwrite.
type Options struct {
	Dir   string
	Force bool
}

// Input is what the user entered.
type Input struct {
	Engine        driver.Engine
	ContainerName string
	Port          string
	SQLFolder     string
	Password      string
}

// Result lists the files written by the wizard.
type Result struct {
	ConfigPath       string
	DotenvPath       string
	GitignoreUpdated bool
}

// EngineOption is one entry in the engine list.
type EngineOption struct {
	Engine      driver.Engine
	DisplayName string
}

// EngineOptions are offered in this order.
var EngineOptions = []EngineOption{
	{Engine: driver.EngineMSSQL, DisplayName: "SQL Server"},
	{Engine: driver.EnginePostgres, DisplayName: "PostgreSQL"},
	{Engine: driver.EngineMySQL, DisplayName: "MySQL"},
}

// Model is the Bubble Tea model of the config init wizard.
type Model struct {
	opts  Options
	state WizardState

	engineIndex int
	inputs      []textinput.Model
	focusIndex  int
	input       Input
	errors      map[int]string

	spinner spinner.Model
	result  *Result
	err     error

	width  int
	height int
}
