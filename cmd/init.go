package cmd

import (
	"github.com/spf13/cobra"
	"github.com/testenv/testenv/internal/orchestrator"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Start the database container and wait until it is ready",
	Long: `Start the configured database container, reusing it when it already
exists, and wait until the engine accepts connections.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	return execute(cmd, env, "", func(o *orchestrator.Orchestrator) error {
		return o.InitContainer(cmd.Context())
	})
}
