package cmd

import (
	"github.com/spf13/cobra"
	"github.com/testenv/testenv/internal/orchestrator"
)

var pullSchemaCmd = &cobra.Command{
	Use:   "pull-schema",
	Short: "Dump object definitions from remote databases into the SQL folder",
	Long: `Run the schema scripting tool in a container against every
[[schema_pull.sources]] entry. Existing dump files are moved to the backups
folder first.`,
	Args: cobra.NoArgs,
	RunE: runPullSchema,
}

func init() {
	rootCmd.AddCommand(pullSchemaCmd)
	addWorkingPathFlag(pullSchemaCmd)
}

func runPullSchema(cmd *cobra.Command, args []string) error {
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
		return o.PullSchema(cmd.Context(), workDir)
	})
}
