package cmd

import (
	"github.com/spf13/cobra"
	"github.com/testenv/testenv/internal/orchestrator"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Stop and remove the database container",
	Long: `Stop and remove every container with the configured name, on the
default container engine and on each of container.docker_hosts.`,
	Args: cobra.NoArgs,
	RunE: runDestroy,
}

func init() {
	rootCmd.AddCommand(destroyCmd)
}

func runDestroy(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	return execute(cmd, env, "", func(o *orchestrator.Orchestrator) error {
		return o.DestroyContainer(cmd.Context())
	})
}
