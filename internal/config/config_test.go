package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/testenv/testenv/internal/driver"
	"github.com/testenv/testenv/internal/failure"
)

const exampleConfig = `engine = "mssql"

[container]
password = "Str0ng!Pass"

[schema]
sql_folder = "sql"
databases = ["Billing", "Accounts"]

[[schema.files]]
database = "Billing"
files = ["tables.sql", "procs.sql"]

[[migrations.projects]]
database = "Billing"
path = "src/Billing.Migrations/Billing.Migrations.csproj"

[[migrations.projects]]
database = "Accounts"
path = "src/Accounts.Migrations/Accounts.Migrations.csproj"

[[schema_pull.sources]]
host = "db1.internal"
database = "Billing"
objects = ["dbo.Invoices", "dbo.Payments"]
`

// compareConfigPaths compares two paths, resolving symlinks
func compareConfigPaths(t *testing.T, expected, actual string) {
	t.Helper()

	expectedResolved, err := filepath.EvalSymlinks(expected)
	if err != nil {
		expectedResolved = expected
	}
	actualResolved, err := filepath.EvalSymlinks(actual)
	if err != nil {
		actualResolved = actual
	}

	if expectedResolved != actualResolved {
		t.Errorf("Expected ConfigFilePath=%q, got %q", expectedResolved, actualResolved)
	}
}

// changeToDir changes to a directory and returns a cleanup function
func changeToDir(t *testing.T, dir string) func() {
	t.Helper()

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}

	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change to directory %q: %v", dir, err)
	}

	return func() {
		if _, err := os.Stat(originalDir); err == nil {
			if err := os.Chdir(originalDir); err != nil {
				t.Logf("Failed to restore working directory: %v", err)
			}
		}
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func clearSecretEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvDBPassword, "")
	t.Setenv(EnvPullUsername, "")
	t.Setenv(EnvPullPassword, "")
}

func TestLoadConfigInCurrentDirectory(t *testing.T) {
	clearSecretEnv(t)
	tempDir := t.TempDir()
	configPath := writeConfig(t, tempDir, exampleConfig)

	defer changeToDir(t, tempDir)()

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	compareConfigPaths(t, configPath, config.ConfigFilePath)

	if config.Engine != driver.EngineMSSQL {
		t.Errorf("Expected engine mssql, got %q", config.Engine)
	}
	if got := strings.Join(config.Schema.Databases, ","); got != "Billing,Accounts" {
		t.Errorf("Expected databases in file order, got %q", got)
	}
	if len(config.Migrations.Projects) != 2 || config.Migrations.Projects[0].Database != "Billing" {
		t.Errorf("Expected migration projects in file order, got %+v", config.Migrations.Projects)
	}
	if len(config.SchemaPull.Sources) != 1 || len(config.SchemaPull.Sources[0].Objects) != 2 {
		t.Errorf("Unexpected pull sources: %+v", config.SchemaPull.Sources)
	}
}

func TestLoadConfigInParentDirectory(t *testing.T) {
	clearSecretEnv(t)
	tempDir := t.TempDir()
	configPath := writeConfig(t, tempDir, exampleConfig)

	subDir := filepath.Join(tempDir, "src", "app")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	defer changeToDir(t, subDir)()

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	compareConfigPaths(t, configPath, config.ConfigFilePath)
}

func TestLoadConfigStopsAtGitRoot(t *testing.T) {
	clearSecretEnv(t)
	tempDir := t.TempDir()
	writeConfig(t, tempDir, exampleConfig)

	repo := filepath.Join(tempDir, "repo")
	if err := os.MkdirAll(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatalf("Failed to create .git: %v", err)
	}
	defer changeToDir(t, repo)()

	_, err := LoadConfig("")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound past the git root, got %v", err)
	}
}

func TestLoadConfigExplicitPathMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))

	var cfgErr *failure.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	clearSecretEnv(t)
	path := writeConfig(t, t.TempDir(), `[container]
password = "pw"

[schema]
databases = ["A"]
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Container.Image != "mcr.microsoft.com/mssql/server:2022-latest" {
		t.Errorf("Unexpected default image %q", config.Container.Image)
	}
	if config.Container.Name != "testenv-mssql" {
		t.Errorf("Unexpected default container name %q", config.Container.Name)
	}
	if config.Container.Port != 1433 {
		t.Errorf("Expected port 1433, got %d", config.Container.Port)
	}
	if config.Container.HealthCheck != HealthCheckLog {
		t.Errorf("Expected log health check, got %q", config.Container.HealthCheck)
	}
	if config.Container.HealthTimeout().Seconds() != 60 {
		t.Errorf("Expected 60s health timeout, got %s", config.Container.HealthTimeout())
	}
	if config.Migrations.ProjectExtension != ".csproj" {
		t.Errorf("Expected .csproj extension, got %q", config.Migrations.ProjectExtension)
	}
	if config.SchemaPull.Timeout().Seconds() != 300 {
		t.Errorf("Expected 300s pull timeout, got %s", config.SchemaPull.Timeout())
	}
	if config.Schema.SQLFolder != "." {
		t.Errorf("Expected sql folder '.', got %q", config.Schema.SQLFolder)
	}
}

func TestLoadConfigEngineDefaults(t *testing.T) {
	clearSecretEnv(t)
	path := writeConfig(t, t.TempDir(), `engine = "postgres"

[container]
password = "pw"

[schema]
databases = ["app"]
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Container.Port != 5432 || config.Container.Name != "testenv-postgres" {
		t.Errorf("Unexpected postgres defaults: %+v", config.Container)
	}
}

func TestLoadConfigSchemaViolations(t *testing.T) {
	clearSecretEnv(t)
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown engine",
			content: "engine = \"oracle\"\n[container]\npassword = \"pw\"\n",
			want:    "engine",
		},
		{
			name:    "port out of range",
			content: "[container]\npassword = \"pw\"\nport = 70000\n",
			want:    "port",
		},
		{
			name:    "unknown key",
			content: "[container]\npassword = \"pw\"\ncolour = \"blue\"\n",
			want:    "colour",
		},
		{
			name:    "bad health strategy",
			content: "[container]\npassword = \"pw\"\nhealth_check = \"ping\"\n",
			want:    "health_check",
		},
		{
			name:    "project without path",
			content: "[container]\npassword = \"pw\"\n[[migrations.projects]]\ndatabase = \"A\"\n",
			want:    "path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := LoadConfig(path)

			var cfgErr *failure.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if cfgErr.Path == "" {
				t.Errorf("Expected the config path on the error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[container\npassword = ")

	_, err := LoadConfig(path)
	var cfgErr *failure.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigError for invalid TOML, got %v", err)
	}
}

func TestLoadConfigRequiresPassword(t *testing.T) {
	clearSecretEnv(t)
	path := writeConfig(t, t.TempDir(), "[schema]\ndatabases = [\"A\"]\n")

	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), EnvDBPassword) {
		t.Fatalf("Expected missing password error naming %s, got %v", EnvDBPassword, err)
	}
}

func TestLoadConfigDuplicateProject(t *testing.T) {
	clearSecretEnv(t)
	path := writeConfig(t, t.TempDir(), `[container]
password = "pw"

[[migrations.projects]]
database = "A"
path = "a/A.csproj"

[[migrations.projects]]
database = "A"
path = "b/A.csproj"
`)

	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "more than one migration project") {
		t.Fatalf("Expected duplicate project error, got %v", err)
	}
}

func TestHistoryURLResolution(t *testing.T) {
	config := &Config{ConfigFilePath: "/work/testenv.toml"}

	config.History.URL = ".testenv/history.db"
	if got := config.HistoryURL(); got != filepath.Join("/work", ".testenv", "history.db") {
		t.Errorf("Expected relative path resolved against config dir, got %q", got)
	}

	config.History.URL = "libsql://ledger.example.com"
	if got := config.HistoryURL(); got != "libsql://ledger.example.com" {
		t.Errorf("Expected remote URL unchanged, got %q", got)
	}
}

func TestIsProjectRootGit(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tempDir, ".git"), 0o755); err != nil {
		t.Fatalf("Failed to create .git: %v", err)
	}
	if !isProjectRoot(tempDir) {
		t.Error("Expected directory with .git to be a project root")
	}
}

func TestIsProjectRootGoMod(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "go.mod"), []byte("module x\n"), 0o600); err != nil {
		t.Fatalf("Failed to create go.mod: %v", err)
	}
	if !isProjectRoot(tempDir) {
		t.Error("Expected directory with go.mod to be a project root")
	}
}

func TestIsProjectRootNoMarkers(t *testing.T) {
	if isProjectRoot(t.TempDir()) {
		t.Error("Expected empty directory not to be a project root")
	}
}
