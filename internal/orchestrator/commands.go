package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/testenv/testenv/internal/container"
	"github.com/testenv/testenv/internal/failure"
)

type step struct {
	stage Stage
	fn    func() error
}

// runSteps runs steps one after another under the run state machine. Once a
// step fails the remaining ones are recorded as skipped.
func (o *Orchestrator) runSteps(steps ...step) error {
	if err := o.begin(); err != nil {
		return err
	}

	var err error
	for _, s := range steps {
		if err != nil {
			o.record(Outcome{Stage: s.stage, Status: StatusSkipped, Started: time.Now()})
			continue
		}
		start := time.Now()
		stepErr := s.fn()
		o.record(outcomeOf(s.stage, start, stepErr))
		err = failure.Stage(string(s.stage), stepErr)
	}

	o.finish(err)
	return err
}

// InitContainer acquires the database container and waits until it is
// healthy. An existing container is reused.
func (o *Orchestrator) InitContainer(ctx context.Context) error {
	c := o.deps.Containers
	if c == nil {
		return errors.New("container stages requested without a container manager")
	}

	var h *container.Handle
	return o.runSteps(
		step{StageAcquire, func() error {
			var err error
			h, err = c.Acquire(ctx)
			return err
		}},
		step{StageHealth, func() error {
			return c.WaitForHealthy(ctx, h)
		}},
	)
}

// DestroyContainer removes the database container from every backend.
func (o *Orchestrator) DestroyContainer(ctx context.Context) error {
	c := o.deps.Containers
	if c == nil {
		return errors.New("container stages requested without a container manager")
	}
	return o.runSteps(step{StageDestroy, func() error {
		return c.Destroy(ctx)
	}})
}

// PullSchema runs the schema pull on its own.
func (o *Orchestrator) PullSchema(ctx context.Context, workDir string) error {
	p := o.deps.Puller
	if p == nil {
		return errors.New("schema pull requested without a schema puller")
	}
	return o.runSteps(step{StagePullSchema, func() error {
		return p.Pull(ctx, workDir)
	}})
}
