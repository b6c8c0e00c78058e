package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override secrets in testenv.toml.
const (
	EnvDBPassword   = "TESTENV_DB_PASSWORD"
	EnvPullUsername = "TESTENV_PULL_USERNAME"
	EnvPullPassword = "TESTENV_PULL_PASSWORD"
)

// DotenvPath returns the .env file consulted for secrets.
func (c *Config) DotenvPath() string {
	return filepath.Join(c.ConfigDir(), ".env")
}

// applySecrets overlays .env values and then process environment values on
// top of the file contents. Process environment wins.
func (c *Config) applySecrets() error {
	values, err := readDotenv(c.DotenvPath())
	if err != nil {
		return err
	}

	lookup := func(key string) string {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return value
		}
		return values[key]
	}

	if value := lookup(EnvDBPassword); value != "" {
		c.Container.Password = value
	}
	if value := lookup(EnvPullUsername); value != "" {
		c.SchemaPull.Username = value
	}
	if value := lookup(EnvPullPassword); value != "" {
		c.SchemaPull.Password = value
	}
	return nil
}

func readDotenv(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to access %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}

func godotenvWrite(values map[string]string, path string) error {
	if err := godotenv.Write(values, path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}
