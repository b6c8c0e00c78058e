package cmd

import (
	"github.com/spf13/cobra"
	"github.com/testenv/testenv/internal/orchestrator"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Recreate the database container and load everything into it",
	Long: `Destroy and recreate the database container, then create the databases,
load the SQL files and run the migration projects. Migration projects are
built while the container starts. With --pull-schema a schema pull runs
alongside.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	addWorkingPathFlag(resetCmd)
	resetCmd.Flags().BoolP("pull-schema", "p", false, "Also pull schemas from the configured remote databases")
}

func runReset(cmd *cobra.Command, args []string) error {
	workDir, err := workingPathFlag(cmd)
	if err != nil {
		return err
	}
	pull, _ := cmd.Flags().GetBool("pull-schema")

	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	plan := orchestrator.Plan{Container: true, PullSchema: pull}
	return execute(cmd, env, workDir, func(o *orchestrator.Orchestrator) error {
		return o.Reset(cmd.Context(), workDir, plan)
	})
}
