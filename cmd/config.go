package cmd

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/driver"
	"github.com/testenv/testenv/internal/wizard"
)

const secretMask = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and check testenv.toml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create testenv.toml interactively",
	Long: `Walk through the engine and container settings and write testenv.toml
and .env in the target directory. With --yes the defaults of --engine are
written without prompting, and the password is taken from ` + config.EnvDBPassword + `.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load testenv.toml and print the resolved configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configValidateCmd)

	configInitCmd.Flags().Bool("yes", false, "Write defaults without prompting")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing testenv.toml")
	configInitCmd.Flags().String("engine", string(driver.EngineMSSQL), "Database engine used with --yes (mssql, postgres, mysql)")
	configInitCmd.Flags().String("dir", ".", "Directory to write testenv.toml into")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	force, _ := cmd.Flags().GetBool("force")
	engine, _ := cmd.Flags().GetString("engine")
	dir, _ := cmd.Flags().GetString("dir")

	opts := wizard.Options{Dir: dir, Force: force}

	var (
		result *wizard.Result
		err    error
	)
	if yes {
		result, err = wizard.GenerateFiles(opts, wizard.Input{
			Engine:   driver.Engine(engine),
			Password: os.Getenv(config.EnvDBPassword),
		})
	} else {
		result, err = wizard.Run(opts)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Created %s\n", result.ConfigPath)
	if result.DotenvPath != "" {
		_, _ = fmt.Fprintf(out, "Updated %s\n", result.DotenvPath)
	}
	if result.GitignoreUpdated {
		_, _ = fmt.Fprintln(out, "Updated .gitignore")
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	data, err := toml.Marshal(maskSecrets(*cfg))
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "# %s is valid\n\n", cfg.ConfigFilePath)
	_, _ = out.Write(data)
	return nil
}

// maskSecrets replaces every non-empty credential.
func maskSecrets(cfg config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = secretMask
		}
	}
	mask(&cfg.Container.Password)
	mask(&cfg.SchemaPull.Username)
	mask(&cfg.SchemaPull.Password)
	return cfg
}
