package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/testenv/testenv/internal/driver"
	"github.com/testenv/testenv/internal/failure"
)

// FileName is the configuration file looked up from the current directory.
const FileName = "testenv.toml"

// ContainerConfig describes the database container.
type ContainerConfig struct {
	Image                string   `toml:"image"`
	Name                 string   `toml:"name"`
	Port                 int      `toml:"port"`
	Password             string   `toml:"password,omitempty"`
	HealthTimeoutSeconds int      `toml:"health_timeout_seconds"`
	HealthCheck          string   `toml:"health_check"`
	HealthPollIntervalMs int      `toml:"health_poll_interval_ms,omitempty"`
	DockerHosts          []string `toml:"docker_hosts,omitempty"`
}

// HealthTimeout returns the readiness deadline.
func (c ContainerConfig) HealthTimeout() time.Duration {
	return time.Duration(c.HealthTimeoutSeconds) * time.Second
}

// HealthPollInterval returns the fixed delay between readiness attempts.
func (c ContainerConfig) HealthPollInterval() time.Duration {
	return time.Duration(c.HealthPollIntervalMs) * time.Millisecond
}

// SQLFiles lists the SQL files executed against one database, in order.
type SQLFiles struct {
	Database string   `toml:"database"`
	Files    []string `toml:"files"`
}

// SchemaConfig describes the databases and their SQL sources.
type SchemaConfig struct {
	// SQLFolder is relative to the working directory
	SQLFolder string     `toml:"sql_folder"`
	Databases []string   `toml:"databases"`
	Files     []SQLFiles `toml:"files,omitempty"`
}

// ProjectConfig points at the migration project of one database.
type ProjectConfig struct {
	Database string `toml:"database"`
	// Path is relative to the working directory
	Path string `toml:"path"`
}

// MigrationsConfig describes how migration projects are built and run.
type MigrationsConfig struct {
	ProjectExtension string          `toml:"project_extension"`
	BuildCommand     []string        `toml:"build_command"`
	RunCommand       []string        `toml:"run_command"`
	Projects         []ProjectConfig `toml:"projects,omitempty"`
}

// PullSource is one remote database to dump objects from.
type PullSource struct {
	Host     string   `toml:"host"`
	Database string   `toml:"database"`
	Objects  []string `toml:"objects"`
}

// SchemaPullConfig describes the containerized dump tool.
type SchemaPullConfig struct {
	BaseImage      string       `toml:"base_image"`
	Image          string       `toml:"image"`
	ContainerName  string       `toml:"container_name"`
	Username       string       `toml:"username,omitempty"`
	Password       string       `toml:"password,omitempty"`
	TimeoutSeconds int          `toml:"timeout_seconds"`
	Tool           string       `toml:"tool"`
	ToolFlags      []string     `toml:"tool_flags,omitempty"`
	BuildSteps     []string     `toml:"build_steps,omitempty"`
	Sources        []PullSource `toml:"sources,omitempty"`
}

// Timeout returns the schema pull deadline.
func (c SchemaPullConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HistoryConfig describes the run ledger.
type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
	// URL is a sqlite path (relative to the config file) or a libsql URL
	URL string `toml:"url,omitempty"`
}

// Config is the full testenv configuration. It is loaded once and passed by
// value to every component.
type Config struct {
	Engine         driver.Engine    `toml:"engine"`
	Container      ContainerConfig  `toml:"container"`
	Schema         SchemaConfig     `toml:"schema"`
	Migrations     MigrationsConfig `toml:"migrations"`
	SchemaPull     SchemaPullConfig `toml:"schema_pull"`
	History        HistoryConfig    `toml:"history"`
	ConfigFilePath string           `toml:"-"`
}

// ConfigDir returns the directory containing the config file.
func (c *Config) ConfigDir() string {
	if c.ConfigFilePath == "" {
		return ""
	}
	return filepath.Dir(c.ConfigFilePath)
}

// HistoryURL resolves the history location against the config directory.
func (c *Config) HistoryURL() string {
	u := strings.TrimSpace(c.History.URL)
	if u == "" || strings.Contains(u, "://") || filepath.IsAbs(u) {
		return u
	}
	return filepath.Join(c.ConfigDir(), u)
}

// ErrNotFound is returned when no config file could be discovered.
var ErrNotFound = errors.New(FileName + " not found")

// LoadConfig loads the file at path, or discovers testenv.toml from the
// current directory up to the project root when path is empty. Secrets from
// .env and the environment are applied, then defaults, then validation.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		found, err := findConfig()
		if err != nil {
			return nil, err
		}
		path = found
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, failure.Config(absPath, "config file does not exist")
		}
		return nil, fmt.Errorf("failed to read %s: %w", absPath, err)
	}

	config, err := Parse(data)
	if err != nil {
		var cfgErr *failure.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Path == "" {
			cfgErr.Path = absPath
		}
		return nil, err
	}
	config.ConfigFilePath = absPath

	if err := config.applySecrets(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Parse validates data against the config schema and decodes it with
// defaults applied. Secrets are not resolved.
func Parse(data []byte) (*Config, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, failure.Config("", "invalid %s: %v", FileName, err)
	}
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	return &config, nil
}

func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		// Check if testenv.toml exists in current directory
		configPath := filepath.Join(dir, FileName)
		if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
			return configPath, nil
		}

		// Check if we've reached a project boundary
		if isProjectRoot(dir) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", ErrNotFound
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	for _, marker := range []string{".git", "go.mod"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

func (c *Config) applyDefaults() error {
	if c.Engine == "" {
		c.Engine = driver.EngineMSSQL
	}
	drv, err := driver.NewDriver(c.Engine)
	if err != nil {
		return failure.Config("", "%v", err)
	}
	c.Engine = driver.Engine(drv.Name())

	if c.Container.Image == "" {
		c.Container.Image = drv.DefaultImage()
	}
	if c.Container.Name == "" {
		c.Container.Name = "testenv-" + drv.Name()
	}
	if c.Container.Port == 0 {
		c.Container.Port = drv.ContainerPort()
	}
	if c.Container.HealthTimeoutSeconds == 0 {
		c.Container.HealthTimeoutSeconds = 60
	}
	if c.Container.HealthCheck == "" {
		c.Container.HealthCheck = HealthCheckLog
	}
	if c.Container.HealthPollIntervalMs == 0 {
		c.Container.HealthPollIntervalMs = 500
	}

	if c.Schema.SQLFolder == "" {
		c.Schema.SQLFolder = "."
	}

	if c.Migrations.ProjectExtension == "" {
		c.Migrations.ProjectExtension = ".csproj"
	}
	if len(c.Migrations.BuildCommand) == 0 {
		c.Migrations.BuildCommand = DefaultBuildCommand()
	}
	if len(c.Migrations.RunCommand) == 0 {
		c.Migrations.RunCommand = DefaultRunCommand()
	}

	pull := &c.SchemaPull
	if pull.BaseImage == "" {
		pull.BaseImage = "python:3.8"
	}
	if pull.Image == "" {
		pull.Image = "testenv-scripter"
	}
	if pull.ContainerName == "" {
		pull.ContainerName = "testenv-schema-pull"
	}
	if pull.TimeoutSeconds == 0 {
		pull.TimeoutSeconds = 300
	}
	if pull.Tool == "" {
		pull.Tool = "mssql-scripter"
	}
	if len(pull.BuildSteps) == 0 {
		pull.BuildSteps = []string{"pip install --upgrade pip", "pip install mssql-scripter"}
	}

	if c.History.URL == "" {
		c.History.URL = ".testenv/history.db"
	}
	return nil
}

// Health check strategies.
const (
	HealthCheckLog   = "log"
	HealthCheckProbe = "probe"
)

// DefaultBuildCommand builds a .NET migration project in release mode.
func DefaultBuildCommand() []string {
	return []string{"dotnet", "build", "{project}", "-c", "Release", "-o", "{output}"}
}

// DefaultRunCommand runs the built migration assembly.
func DefaultRunCommand() []string {
	return []string{"dotnet", "{output}/{assembly}.dll", "{connection}"}
}

// Validate checks settings that the schema cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Container.Password) == "" {
		return failure.Config(c.ConfigFilePath, "container.password is empty; set it in %s, .env or %s", FileName, EnvDBPassword)
	}
	if c.Container.HealthCheck != HealthCheckLog && c.Container.HealthCheck != HealthCheckProbe {
		return failure.Config(c.ConfigFilePath, "container.health_check must be %q or %q, got %q", HealthCheckLog, HealthCheckProbe, c.Container.HealthCheck)
	}

	seen := make(map[string]bool)
	for _, p := range c.Migrations.Projects {
		if seen[p.Database] {
			return failure.Config(c.ConfigFilePath, "database %q has more than one migration project", p.Database)
		}
		seen[p.Database] = true
	}
	return nil
}
