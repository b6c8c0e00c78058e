package migration

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/failure"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte("<Project />"), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func migrationsConfig(projects ...config.ProjectConfig) config.MigrationsConfig {
	return config.MigrationsConfig{
		ProjectExtension: ".csproj",
		BuildCommand:     config.DefaultBuildCommand(),
		RunCommand:       config.DefaultRunCommand(),
		Projects:         projects,
	}
}

func TestLocateResolvesInOrder(t *testing.T) {
	workDir := t.TempDir()
	touch(t, filepath.Join(workDir, "src", "C.Migrations", "C.Migrations.csproj"))
	touch(t, filepath.Join(workDir, "src", "A.Migrations", "A.Migrations.csproj"))

	locator := NewLocator(migrationsConfig(
		config.ProjectConfig{Database: "C", Path: "src/C.Migrations/C.Migrations.csproj"},
		config.ProjectConfig{Database: "A", Path: "src/A.Migrations/A.Migrations.csproj"},
	))

	projects, err := locator.Locate(workDir)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if len(projects) != 2 || projects[0].Database != "C" || projects[1].Database != "A" {
		t.Fatalf("Expected [C A], got %+v", projects)
	}
	if !filepath.IsAbs(projects[0].Path) {
		t.Errorf("Expected absolute path, got %q", projects[0].Path)
	}
	if projects[0].Assembly() != "C.Migrations" {
		t.Errorf("Expected assembly C.Migrations, got %q", projects[0].Assembly())
	}
}

func TestProjectsIsRestartable(t *testing.T) {
	workDir := t.TempDir()
	touch(t, filepath.Join(workDir, "A.csproj"))
	locator := NewLocator(migrationsConfig(config.ProjectConfig{Database: "A", Path: "A.csproj"}))

	seq := locator.Projects(workDir)
	for pass := 0; pass < 2; pass++ {
		count := 0
		for project, err := range seq {
			if err != nil {
				t.Fatalf("pass %d: unexpected error: %v", pass, err)
			}
			if project.Database != "A" {
				t.Fatalf("pass %d: unexpected project %+v", pass, project)
			}
			count++
		}
		if count != 1 {
			t.Fatalf("pass %d: expected 1 project, got %d", pass, count)
		}
	}
}

func TestLocateMissingProject(t *testing.T) {
	locator := NewLocator(migrationsConfig(config.ProjectConfig{Database: "A", Path: "missing/A.csproj"}))

	_, err := locator.Locate(t.TempDir())
	var cfgErr *failure.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
	if filepath.Base(cfgErr.Path) != "A.csproj" {
		t.Errorf("Expected error to name the project, got %q", cfgErr.Path)
	}
}

func TestLocateWrongExtension(t *testing.T) {
	workDir := t.TempDir()
	touch(t, filepath.Join(workDir, "A.fsproj"))
	locator := NewLocator(migrationsConfig(config.ProjectConfig{Database: "A", Path: "A.fsproj"}))

	_, err := locator.Locate(workDir)
	var cfgErr *failure.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
}

func TestLocateDirectoryIsNotAProject(t *testing.T) {
	workDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(workDir, "A.csproj"), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	locator := NewLocator(migrationsConfig(config.ProjectConfig{Database: "A", Path: "A.csproj"}))

	if _, err := locator.Locate(workDir); err == nil {
		t.Fatal("Expected an error for a directory named like a project")
	}
}

func TestLocateNoProjects(t *testing.T) {
	projects, err := NewLocator(migrationsConfig()).Locate(t.TempDir())
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if len(projects) != 0 {
		t.Fatalf("Expected no projects, got %v", projects)
	}
}
