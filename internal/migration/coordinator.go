package migration

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/progress"
	"github.com/testenv/testenv/internal/runner"
	"golang.org/x/sync/errgroup"
)

// TempPrefix prefixes every transient build output directory.
const TempPrefix = "tmp_"

// ConnectionFunc returns the connection string handed to the migration tool
// for a database.
type ConnectionFunc func(database string) string

// Coordinator builds and runs migration projects with an external runner.
type Coordinator struct {
	cfg        config.MigrationsConfig
	runner     runner.Runner
	connection ConnectionFunc
	reporter   progress.Reporter
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg config.MigrationsConfig, r runner.Runner, connection ConnectionFunc, reporter progress.Reporter) *Coordinator {
	if reporter == nil {
		reporter = progress.Discard
	}
	return &Coordinator{cfg: cfg, runner: r, connection: connection, reporter: reporter}
}

// OutputDir returns the build output directory of a project.
func OutputDir(workDir, database string) string {
	return filepath.Join(workDir, TempPrefix+database)
}

// Build builds every project concurrently. Every build is attempted even
// when another fails; the first failure is returned once all have finished.
func (c *Coordinator) Build(ctx context.Context, workDir string, projects []Project) error {
	var g errgroup.Group
	for _, project := range projects {
		g.Go(func() error {
			done := c.reporter.Begin("Building %s migrations", project.Database)
			cmd := runner.Command{
				Args: c.expand(c.cfg.BuildCommand, workDir, project),
				Dir:  workDir,
			}
			err := c.runner.Run(ctx, cmd, func(line string) {
				c.reporter.Error("%s: %s", project.Database, line)
			})
			if err != nil {
				return errors.Wrapf(err, "build %s migrations", project.Database)
			}
			done()
			return nil
		})
	}
	return g.Wait()
}

// Run executes the built projects one at a time in the given order. It stops
// at the first failure.
func (c *Coordinator) Run(ctx context.Context, workDir string, projects []Project) error {
	for _, project := range projects {
		done := c.reporter.Begin("Executing %s migrations", project.Database)
		cmd := runner.Command{
			Args: c.expand(c.cfg.RunCommand, workDir, project),
			Dir:  workDir,
		}
		err := c.runner.Run(ctx, cmd, func(line string) {
			c.reporter.Warn("%s: %s", project.Database, line)
		})
		if err != nil {
			return errors.Wrapf(err, "run %s migrations", project.Database)
		}
		done()
	}
	return nil
}

// expand substitutes the placeholders of a command template.
func (c *Coordinator) expand(template []string, workDir string, project Project) []string {
	connection := ""
	if c.connection != nil {
		connection = c.connection(project.Database)
	}
	replacer := strings.NewReplacer(
		"{project}", project.Path,
		"{projectDir}", filepath.Dir(project.Path),
		"{output}", OutputDir(workDir, project.Database),
		"{assembly}", project.Assembly(),
		"{database}", project.Database,
		"{connection}", connection,
	)
	args := make([]string, len(template))
	for i, arg := range template {
		args[i] = replacer.Replace(arg)
	}
	return args
}

// Cleanup removes every directory directly under workDir whose name starts
// with TempPrefix. It keeps going after a failed removal and returns the
// first error.
func Cleanup(workDir string) error {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return errors.Wrap(err, "list transient directories")
	}

	var first error
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), TempPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(workDir, entry.Name())); err != nil && first == nil {
			first = errors.Wrapf(err, "remove %s", entry.Name())
		}
	}
	return first
}
