package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/testenv/testenv/internal/driver"
)

// DefaultConfig returns a configuration for engine with every default filled
// in. Secrets are left empty.
func DefaultConfig(engine driver.Engine) (*Config, error) {
	cfg := &Config{Engine: engine}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal renders cfg as a testenv.toml document. Secrets are omitted so the
// file can be committed; they belong in .env.
func Marshal(cfg *Config) ([]byte, error) {
	out := *cfg
	out.Container.Password = ""
	out.SchemaPull.Username = ""
	out.SchemaPull.Password = ""

	body, err := toml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", FileName, err)
	}
	header := "# testenv configuration\n# Secrets are read from .env or " + EnvDBPassword + ", " + EnvPullUsername + " and " + EnvPullPassword + ".\n\n"
	return append([]byte(header), body...), nil
}

// Write stores cfg as testenv.toml in dir. An existing file is only replaced
// when force is set. It returns the written path.
func Write(dir string, cfg *Config, force bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// WriteDotenv appends secrets to the .env file in dir, creating it when
// missing. Empty values are skipped.
func WriteDotenv(dir string, values map[string]string) (string, error) {
	path := filepath.Join(dir, ".env")
	existing, err := readDotenv(path)
	if err != nil {
		return "", err
	}
	merged := make(map[string]string, len(existing)+len(values))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range values {
		if v != "" {
			merged[k] = v
		}
	}
	if err := godotenvWrite(merged, path); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
