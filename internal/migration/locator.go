// Package migration locates, builds and runs the per-database migration
// projects.
package migration

import (
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/failure"
)

// Project is a validated migration project for one database.
type Project struct {
	Database string
	// Path is the absolute path of the project file
	Path string
}

// Assembly returns the project file name without its extension.
func (p Project) Assembly() string {
	name := filepath.Base(p.Path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Locator resolves configured project paths against a working directory.
type Locator struct {
	cfg config.MigrationsConfig
}

// NewLocator creates a Locator.
func NewLocator(cfg config.MigrationsConfig) *Locator {
	return &Locator{cfg: cfg}
}

// Projects yields the configured projects in configuration order. Each
// iteration resolves and validates the paths again. Iteration stops after
// the first invalid project.
func (l *Locator) Projects(workDir string) iter.Seq2[Project, error] {
	return func(yield func(Project, error) bool) {
		for _, entry := range l.cfg.Projects {
			project, err := l.resolve(workDir, entry)
			if !yield(project, err) || err != nil {
				return
			}
		}
	}
}

// Locate materializes Projects so that the result can be shared by the build
// and run stages.
func (l *Locator) Locate(workDir string) ([]Project, error) {
	var projects []Project
	for project, err := range l.Projects(workDir) {
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, nil
}

func (l *Locator) resolve(workDir string, entry config.ProjectConfig) (Project, error) {
	path := entry.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return Project{}, failure.Config(entry.Path, "invalid migration project path")
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Project{}, failure.Config(path, "invalid migration project file for database %q", entry.Database)
	}
	if filepath.Ext(path) != l.cfg.ProjectExtension {
		return Project{}, failure.Config(path, "migration project for database %q must have extension %s", entry.Database, l.cfg.ProjectExtension)
	}
	return Project{Database: entry.Database, Path: path}, nil
}
