package cmd

import (
	"github.com/spf13/cobra"
	"github.com/testenv/testenv/internal/orchestrator"
)

var loadSchemaCmd = &cobra.Command{
	Use:   "load-schema",
	Short: "Create databases, load SQL files and run migrations",
	Long: `Create the configured databases on the running container, execute the SQL
files of each database and run the migration projects. The container is
neither recreated nor health-checked; run "testenv init" first.`,
	Args: cobra.NoArgs,
	RunE: runLoadSchema,
}

func init() {
	rootCmd.AddCommand(loadSchemaCmd)
	addWorkingPathFlag(loadSchemaCmd)
}

func runLoadSchema(cmd *cobra.Command, args []string) error {
	workDir, err := workingPathFlag(cmd)
	if err != nil {
		return err
	}

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	return execute(cmd, env, workDir, func(o *orchestrator.Orchestrator) error {
		return o.Reset(cmd.Context(), workDir, orchestrator.Plan{})
	})
}
