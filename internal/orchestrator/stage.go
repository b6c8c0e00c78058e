package orchestrator

import (
	"errors"
	"time"
)

// Stage names one unit of orchestration work.
type Stage string

const (
	StagePullSchema Stage = "pullSchema"
	StageDestroy    Stage = "destroyContainer"
	StageAcquire    Stage = "acquireContainer"
	StageHealth     Stage = "waitForHealthy"
	StageLocate     Stage = "locateMigrationProjects"
	StageBuild      Stage = "buildMigrations"
	StageReadSQL    Stage = "readSqlFiles"
	StageCreate     Stage = "createDatabases"
	StageLoad       Stage = "loadSqlStatements"
	StageRun        Stage = "runMigrations"
	StageCleanup    Stage = "cleanup"
)

// Status is the result of a stage.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped means a prerequisite failed and the stage never ran
	StatusSkipped Status = "skipped"
)

// Outcome records how a stage ended.
type Outcome struct {
	Stage    Stage
	Status   Status
	Started  time.Time
	Duration time.Duration
	Err      error
}

// errPrerequisite closes the gate of a skipped stage so that its own
// dependents are skipped too.
var errPrerequisite = errors.New("prerequisite failed")

// gate is closed exactly once when a stage ends. Values written by the stage
// before close are visible to every goroutine returning from wait.
type gate struct {
	done chan struct{}
	err  error
}

func newGate() *gate {
	return &gate{done: make(chan struct{})}
}

// openGate returns a gate that is already passed.
func openGate() *gate {
	g := newGate()
	g.close(nil)
	return g
}

func (g *gate) close(err error) {
	g.err = err
	close(g.done)
}

func (g *gate) wait() error {
	<-g.done
	return g.err
}
