// Package schemapull dumps object definitions from remote databases into the
// local SQL folder with a containerized scripting tool.
package schemapull

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/container"
	"github.com/testenv/testenv/internal/failure"
	"github.com/testenv/testenv/internal/poll"
	"github.com/testenv/testenv/internal/progress"
	"golang.org/x/sync/errgroup"
)

// CompletedMessage is echoed by the container after the last dump command.
const CompletedMessage = "COMPLETED SCHEMA PULLS"

// mountPoint is where the SQL folder is mounted inside the container.
const mountPoint = "/sql"

// Puller runs a schema pull.
type Puller struct {
	cfg       config.SchemaPullConfig
	sqlFolder string
	backend   container.Backend
	reporter  progress.Reporter

	// Now stamps backups; defaults to time.Now
	Now func() time.Time
	// PollInterval is the delay between log reads; defaults to one second
	PollInterval time.Duration
}

// New creates a Puller writing into sqlFolder, relative to the working
// directory given to Pull.
func New(cfg config.SchemaPullConfig, sqlFolder string, backend container.Backend, reporter progress.Reporter) *Puller {
	if reporter == nil {
		reporter = progress.Discard
	}
	return &Puller{
		cfg:          cfg,
		sqlFolder:    sqlFolder,
		backend:      backend,
		reporter:     reporter,
		Now:          time.Now,
		PollInterval: time.Second,
	}
}

// Pull builds the tool image while preparing the dump commands and rotating
// previous dumps, then runs every dump in one container and waits for it to
// finish. The container is removed on every path.
func (p *Puller) Pull(ctx context.Context, workDir string) error {
	var g errgroup.Group
	g.Go(func() error { return p.ensureImage(ctx) })

	script, sqlDir, err := p.prepare(workDir)
	if buildErr := g.Wait(); err == nil {
		err = buildErr
	}
	if err != nil {
		return err
	}

	if err := p.removeStale(ctx); err != nil {
		return err
	}

	done := p.reporter.Begin("Starting schema pull container")
	id, err := p.backend.Create(ctx, container.Spec{
		Name:  p.cfg.ContainerName,
		Image: p.cfg.Image,
		Cmd:   []string{"bash", "-c", script},
		Binds: []string{sqlDir + ":" + mountPoint},
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := p.backend.Remove(context.WithoutCancel(ctx), id); err != nil {
			p.reporter.Warn("failed to remove container %s: %v", p.cfg.ContainerName, err)
		}
	}()
	if _, err := p.backend.Start(ctx, id); err != nil {
		return err
	}
	done()

	return p.wait(ctx, id)
}

func (p *Puller) prepare(workDir string) (string, string, error) {
	sqlDir := filepath.Join(workDir, p.sqlFolder)
	if info, err := os.Stat(sqlDir); err != nil || !info.IsDir() {
		return "", "", failure.Config(sqlDir, "invalid path for SQL dump to write")
	}
	absDir, err := filepath.Abs(sqlDir)
	if err != nil {
		return "", "", err
	}

	commands, err := p.Commands()
	if err != nil {
		return "", "", err
	}

	moved, err := RotateBackups(absDir, p.Now())
	if err != nil {
		return "", "", err
	}
	if len(moved) > 0 {
		p.reporter.Info("Backed up %d existing schema dump file(s) to %s", len(moved), filepath.Join(absDir, BackupDir))
	}

	commands = append(commands, "echo "+CompletedMessage)
	return strings.Join(commands, "; "), absDir, nil
}

// Commands composes one dump command per configured source.
func (p *Puller) Commands() ([]string, error) {
	if len(p.cfg.Sources) == 0 {
		return nil, failure.Config("", "no schema_pull sources configured")
	}
	if p.cfg.Username == "" || p.cfg.Password == "" {
		return nil, failure.Config("", "schema pull credentials missing; set %s and %s", config.EnvPullUsername, config.EnvPullPassword)
	}

	commands := make([]string, 0, len(p.cfg.Sources))
	for _, source := range p.cfg.Sources {
		args := []string{p.cfg.Tool}
		args = append(args, p.cfg.ToolFlags...)
		args = append(args,
			"-S", source.Host,
			"-d", source.Database,
			"-U", p.cfg.Username,
			"-P", p.cfg.Password,
			"-f", mountPoint+"/"+DumpFileName(source.Database),
			"--include-objects",
		)
		args = append(args, source.Objects...)

		p.reporter.Info("Will request objects from %s on %s: %s", source.Database, source.Host, strings.Join(source.Objects, " "))
		commands = append(commands, shellquote.Join(args...))
	}
	return commands, nil
}

// Dockerfile returns the definition of the tool image.
func (p *Puller) Dockerfile() string {
	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n", p.cfg.BaseImage)
	for _, step := range p.cfg.BuildSteps {
		fmt.Fprintf(&b, "RUN %s\n", step)
	}
	return b.String()
}

func (p *Puller) ensureImage(ctx context.Context) error {
	ok, err := p.backend.ImageExists(ctx, p.cfg.Image)
	if err != nil {
		return err
	}
	if ok {
		p.reporter.Info("Reusing image %s", p.cfg.Image)
		return nil
	}
	done := p.reporter.Begin("Building image %s", p.cfg.Image)
	if err := p.backend.BuildImage(ctx, p.cfg.Image, p.Dockerfile()); err != nil {
		return err
	}
	done()
	return nil
}

// removeStale removes a container left behind by an interrupted pull.
func (p *Puller) removeStale(ctx context.Context) error {
	stale, err := p.backend.List(ctx, p.cfg.ContainerName)
	if err != nil {
		return err
	}
	for _, c := range stale {
		if err := p.backend.Remove(ctx, c.ID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Puller) wait(ctx context.Context, id string) error {
	timeout := p.cfg.Timeout()
	done := p.reporter.Begin("Waiting for schema pull to complete (up to %s)", timeout)

	err := poll.Until(ctx, timeout, p.PollInterval, func(ctx context.Context) (bool, error) {
		logs, err := p.backend.Logs(ctx, id, time.Time{})
		if err != nil {
			return false, err
		}
		return strings.Contains(logs, CompletedMessage), nil
	})
	if errors.Is(err, poll.ErrDeadline) {
		return failure.Timeout(failure.ErrSchemaPullTimeout, "container "+p.cfg.ContainerName, timeout)
	}
	if err != nil {
		return err
	}
	done()
	return nil
}
