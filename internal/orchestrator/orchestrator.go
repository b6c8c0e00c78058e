// Package orchestrator runs the reset stage graph: container lifecycle,
// database creation, SQL loading and migrations, with independent chains
// running concurrently and cleanup on every exit path.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/testenv/testenv/internal/container"
	"github.com/testenv/testenv/internal/failure"
	"github.com/testenv/testenv/internal/migration"
	"github.com/testenv/testenv/internal/progress"
	"github.com/testenv/testenv/internal/sqlsource"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// State of an orchestrator run.
type State int32

const (
	NotStarted State = iota
	Running
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "not started"
	}
}

// ErrAlreadyRunning is returned when Reset is called while a run is in
// progress on the same Orchestrator.
var ErrAlreadyRunning = errors.New("reset already running")

// Containers manages the database container.
type Containers interface {
	Destroy(ctx context.Context) error
	Acquire(ctx context.Context) (*container.Handle, error)
	WaitForHealthy(ctx context.Context, h *container.Handle) error
}

// SQLReader reads statement batches.
type SQLReader interface {
	Read(workDir string) ([]sqlsource.Batch, error)
}

// ProjectLocator finds migration projects.
type ProjectLocator interface {
	Locate(workDir string) ([]migration.Project, error)
}

// Migrations builds and runs migration projects.
type Migrations interface {
	Build(ctx context.Context, workDir string, projects []migration.Project) error
	Run(ctx context.Context, workDir string, projects []migration.Project) error
}

// Store executes SQL on the database server.
type Store interface {
	CreateDatabases(ctx context.Context, names []string) error
	ExecBatch(ctx context.Context, database string, statements []string) error
}

// SchemaPuller dumps remote schemas into the working directory.
type SchemaPuller interface {
	Pull(ctx context.Context, workDir string) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Containers Containers
	Reader     SQLReader
	Locator    ProjectLocator
	Migrations Migrations
	Store      Store
	// Puller is only needed for plans that pull schemas
	Puller SchemaPuller
	// Databases are created before anything is loaded
	Databases []string
	// Cleanup removes transient artifacts; defaults to migration.Cleanup
	Cleanup  func(workDir string) error
	Reporter progress.Reporter
}

// Plan selects the optional parts of the graph.
type Plan struct {
	// Container recreates the database container before loading
	Container bool
	// PullSchema runs a schema pull alongside the rest
	PullSchema bool
}

// Orchestrator runs the reset graph. One run at a time.
type Orchestrator struct {
	deps  Deps
	state *atomic.Int32

	mu       sync.Mutex
	outcomes []Outcome
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	if deps.Cleanup == nil {
		deps.Cleanup = migration.Cleanup
	}
	if deps.Reporter == nil {
		deps.Reporter = progress.Discard
	}
	return &Orchestrator{deps: deps, state: atomic.NewInt32(int32(NotStarted))}
}

// State returns the state of the current or last run.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Outcomes returns the stage outcomes of the current or last run in the
// order the stages ended.
func (o *Orchestrator) Outcomes() []Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Outcome(nil), o.outcomes...)
}

func (o *Orchestrator) record(outcome Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *Orchestrator) begin() error {
	for {
		current := o.state.Load()
		if State(current) == Running {
			return ErrAlreadyRunning
		}
		if o.state.CompareAndSwap(current, int32(Running)) {
			o.mu.Lock()
			o.outcomes = nil
			o.mu.Unlock()
			return nil
		}
	}
}

// Reset runs the graph for plan under workDir. Every stage that can start is
// allowed to finish; the first stage failure is returned after all of them
// settle and after cleanup. A cleanup failure after a successful run is only
// reported as a warning.
func (o *Orchestrator) Reset(ctx context.Context, workDir string, plan Plan) error {
	if err := o.begin(); err != nil {
		return err
	}

	err := o.runGraph(ctx, workDir, plan)

	start := time.Now()
	cleanupErr := o.deps.Cleanup(workDir)
	o.record(outcomeOf(StageCleanup, start, cleanupErr))

	switch {
	case cleanupErr != nil && err == nil:
		o.deps.Reporter.Warn("cleanup of transient directories failed: %v", cleanupErr)
	case cleanupErr != nil:
		o.deps.Reporter.Warn("cleanup of transient directories failed: %v", cleanupErr)
		err = &failure.CleanupError{Cause: err, Cleanup: cleanupErr}
	}

	o.finish(err)
	return err
}

func (o *Orchestrator) finish(err error) {
	if err != nil {
		o.state.Store(int32(Failed))
		return
	}
	o.state.Store(int32(Succeeded))
}

func outcomeOf(stage Stage, start time.Time, err error) Outcome {
	outcome := Outcome{Stage: stage, Status: StatusSucceeded, Started: start, Duration: time.Since(start), Err: err}
	if err != nil {
		outcome.Status = StatusFailed
	}
	return outcome
}

// graph holds the values passed between stages. Each field is written by one
// stage before its gate closes and only read after waiting on that gate.
type graph struct {
	o *Orchestrator

	handle   *container.Handle
	projects []migration.Project
	batches  []sqlsource.Batch
}

// stage wraps fn so that it waits for deps, records its outcome and closes
// out. A stage whose prerequisite failed is skipped and returns nil so that
// the prerequisite's own error stays the reported one.
func (g *graph) stage(name Stage, out *gate, deps []*gate, fn func() error) func() error {
	return func() error {
		for _, dep := range deps {
			if err := dep.wait(); err != nil {
				g.o.record(Outcome{Stage: name, Status: StatusSkipped, Started: time.Now()})
				out.close(errPrerequisite)
				return nil
			}
		}

		start := time.Now()
		err := fn()
		g.o.record(outcomeOf(name, start, err))
		if err != nil {
			err = failure.Stage(string(name), err)
			out.close(err)
			return err
		}
		out.close(nil)
		return nil
	}
}

func after(gates ...*gate) []*gate { return gates }

func (o *Orchestrator) runGraph(ctx context.Context, workDir string, plan Plan) error {
	d := o.deps
	if plan.PullSchema && d.Puller == nil {
		return errors.New("schema pull requested without a schema puller")
	}
	if plan.Container && d.Containers == nil {
		return errors.New("container stages requested without a container manager")
	}

	gr := &graph{o: o}
	var eg errgroup.Group

	if plan.PullSchema {
		eg.Go(gr.stage(StagePullSchema, newGate(), nil, func() error {
			return d.Puller.Pull(ctx, workDir)
		}))
	}

	healthy := openGate()
	if plan.Container {
		destroyed, acquired := newGate(), newGate()
		healthy = newGate()
		eg.Go(gr.stage(StageDestroy, destroyed, nil, func() error {
			return d.Containers.Destroy(ctx)
		}))
		eg.Go(gr.stage(StageAcquire, acquired, after(destroyed), func() error {
			h, err := d.Containers.Acquire(ctx)
			gr.handle = h
			return err
		}))
		eg.Go(gr.stage(StageHealth, healthy, after(acquired), func() error {
			return d.Containers.WaitForHealthy(ctx, gr.handle)
		}))
	}

	located, built := newGate(), newGate()
	eg.Go(gr.stage(StageLocate, located, nil, func() error {
		projects, err := d.Locator.Locate(workDir)
		gr.projects = projects
		return err
	}))
	eg.Go(gr.stage(StageBuild, built, after(located), func() error {
		return d.Migrations.Build(ctx, workDir, gr.projects)
	}))

	read := newGate()
	eg.Go(gr.stage(StageReadSQL, read, nil, func() error {
		batches, err := d.Reader.Read(workDir)
		gr.batches = batches
		return err
	}))

	created := newGate()
	eg.Go(gr.stage(StageCreate, created, after(healthy), func() error {
		done := d.Reporter.Begin("Creating databases")
		if err := d.Store.CreateDatabases(ctx, d.Databases); err != nil {
			return err
		}
		done()
		return nil
	}))

	eg.Go(gr.stage(StageLoad, newGate(), after(created, read), func() error {
		return o.loadBatches(ctx, gr.batches)
	}))

	eg.Go(gr.stage(StageRun, newGate(), after(created, built), func() error {
		return d.Migrations.Run(ctx, workDir, gr.projects)
	}))

	return eg.Wait()
}

// loadBatches executes every batch concurrently, one connection per
// database. All batches are attempted; the first failure is returned.
func (o *Orchestrator) loadBatches(ctx context.Context, batches []sqlsource.Batch) error {
	var eg errgroup.Group
	for _, batch := range batches {
		eg.Go(func() error {
			done := o.deps.Reporter.Begin("Executing %d statements on '%s'", len(batch.Statements), batch.Database)
			if err := o.deps.Store.ExecBatch(ctx, batch.Database, batch.Statements); err != nil {
				o.deps.Reporter.Error("Executing statements on '%s' failed: %v", batch.Database, err)
				return err
			}
			done()
			return nil
		})
	}
	return eg.Wait()
}
