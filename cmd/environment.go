package cmd

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/container"
	"github.com/testenv/testenv/internal/driver"
	"github.com/testenv/testenv/internal/failure"
	"github.com/testenv/testenv/internal/migration"
	"github.com/testenv/testenv/internal/orchestrator"
	"github.com/testenv/testenv/internal/progress"
	"github.com/testenv/testenv/internal/runner"
	"github.com/testenv/testenv/internal/schemapull"
	"github.com/testenv/testenv/internal/sqlsource"
	"github.com/testenv/testenv/internal/store"
)

// newBackend connects to one container engine. An empty host means the
// engine configured by the environment.
var newBackend = func(host string) (container.Backend, error) {
	return container.NewDocker(host)
}

// environment wires every component for one command invocation.
type environment struct {
	cfg      *config.Config
	driver   driver.Driver
	reporter progress.Reporter
	backends []container.Backend
	store    *store.Store
}

// loadEnvironment loads the configuration and connects the container
// backends. The caller must Close it.
func loadEnvironment() (*environment, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			printConfigNotFound()
		}
		return nil, err
	}
	return newEnvironment(cfg, progress.NewConsole(os.Stderr))
}

func newEnvironment(cfg *config.Config, reporter progress.Reporter) (*environment, error) {
	drv, err := driver.NewDriver(cfg.Engine)
	if err != nil {
		return nil, failure.Config(cfg.ConfigFilePath, "%v", err)
	}

	if reporter == nil {
		reporter = progress.Discard
	}
	env := &environment{cfg: cfg, driver: drv, reporter: reporter}
	for _, host := range append([]string{""}, cfg.Container.DockerHosts...) {
		backend, err := newBackend(host)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.backends = append(env.backends, backend)
	}

	env.store = store.New(drv, env.endpoint())
	return env, nil
}

// endpoint is the published port of the database container on this host.
func (e *environment) endpoint() driver.Endpoint {
	return driver.Endpoint{
		Host:     "localhost",
		Port:     e.cfg.Container.Port,
		User:     e.driver.AdminUser(),
		Password: e.cfg.Container.Password,
	}
}

func (e *environment) Close() {
	for _, b := range e.backends {
		_ = b.Close()
	}
}

func (e *environment) containers() *container.Manager {
	return container.NewManager(e.cfg.Container, e.driver, e.backends, e.store, e.reporter)
}

func (e *environment) puller() *schemapull.Puller {
	return schemapull.New(e.cfg.SchemaPull, e.cfg.Schema.SQLFolder, e.backends[0], e.reporter)
}

func (e *environment) migrations() *migration.Coordinator {
	ep := e.endpoint()
	connection := func(database string) string {
		return e.driver.ToolConnectionString(ep, database)
	}
	var out runner.Exec
	if verbose {
		out.Stdout = os.Stdout
	}
	return migration.NewCoordinator(e.cfg.Migrations, out, connection, e.reporter)
}

// orchestrator returns an orchestrator with every collaborator wired.
func (e *environment) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Deps{
		Containers: e.containers(),
		Reader:     sqlsource.NewReader(e.cfg.Schema, e.driver),
		Locator:    migration.NewLocator(e.cfg.Migrations),
		Migrations: e.migrations(),
		Store:      e.store,
		Puller:     e.puller(),
		Databases:  e.cfg.Schema.Databases,
		Reporter:   e.reporter,
	})
}

// resolveWorkingPath returns the absolute form of path, failing fast when it
// is not an existing directory.
func resolveWorkingPath(path string) (string, error) {
	if path == "" {
		path = "./"
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", failure.Config(path, "invalid working path: %v", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", failure.Config(abs, "working path does not exist")
	}
	if !info.IsDir() {
		return "", failure.Config(abs, "working path is not a directory")
	}
	return abs, nil
}
