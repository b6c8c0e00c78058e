package wizard

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/testenv/testenv/internal/config"
)

// BuildConfig turns wizard input into a configuration with every default
// filled in.
func BuildConfig(in Input) (*config.Config, error) {
	cfg, err := config.DefaultConfig(in.Engine)
	if err != nil {
		return nil, err
	}

	if in.ContainerName != "" {
		if err := ValidateContainerName(in.ContainerName); err != nil {
			return nil, err
		}
		cfg.Container.Name = in.ContainerName
	}
	if in.Port != "" {
		if err := ValidatePort(in.Port); err != nil {
			return nil, err
		}
		cfg.Container.Port, _ = strconv.Atoi(in.Port)
	}
	if in.SQLFolder != "" {
		if err := ValidateSQLFolder(in.SQLFolder); err != nil {
			return nil, err
		}
		cfg.Schema.SQLFolder = filepath.ToSlash(filepath.Clean(in.SQLFolder))
	}
	cfg.Container.Password = in.Password
	return cfg, nil
}

// GenerateFiles writes testenv.toml and .env into opts.Dir and makes sure
// .env is ignored by git.
func GenerateFiles(opts Options, in Input) (*Result, error) {
	cfg, err := BuildConfig(in)
	if err != nil {
		return nil, err
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	result := &Result{}
	result.ConfigPath, err = config.Write(dir, cfg, opts.Force)
	if err != nil {
		return nil, err
	}

	if in.Password != "" {
		result.DotenvPath, err = config.WriteDotenv(dir, map[string]string{
			config.EnvDBPassword: in.Password,
		})
		if err != nil {
			return result, err
		}
	}

	result.GitignoreUpdated, err = updateGitignore(dir)
	if err != nil {
		return result, err
	}
	return result, nil
}

const gitignoreSection = `
# testenv secrets and run history (added by testenv config init)
.env
.testenv/
`

// updateGitignore appends the testenv section unless .env is already listed.
func updateGitignore(dir string) (bool, error) {
	path := filepath.Join(dir, ".gitignore")

	content := ""
	if data, err := os.ReadFile(path); err == nil {
		content = string(data)
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == ".env" {
			return false, nil
		}
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += gitignoreSection

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to update %s: %w", path, err)
	}
	return true, nil
}
