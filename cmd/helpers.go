package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/history"
	"github.com/testenv/testenv/internal/orchestrator"
	"github.com/testenv/testenv/internal/progress"
)

// printConfigNotFound prints a helpful message when testenv.toml is not found
func printConfigNotFound() {
	_, _ = fmt.Fprintf(os.Stderr, `%s not found. Run "testenv config init" or create one that looks like:

engine = "mssql"

[container]
port = 1433

[schema]
sql_folder = "sql"
databases = ["App"]
`, config.FileName)
}

// addWorkingPathFlag registers -w/--working-path on a schema-touching command.
func addWorkingPathFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("working-path", "w", "./", "Root under which SQL files and migration projects are resolved")
}

func workingPathFlag(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("working-path")
	return resolveWorkingPath(path)
}

// execute runs fn against a fresh orchestrator, prints the stage summary and
// records the run in the history ledger.
func execute(cmd *cobra.Command, env *environment, workDir string, fn func(o *orchestrator.Orchestrator) error) error {
	run := history.NewRun(cmd.CommandPath(), workDir, time.Now())

	o := env.orchestrator()
	err := fn(o)
	run.Finish(err, time.Now())

	outcomes := o.Outcomes()
	if len(outcomes) > 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), orchestrator.Summary(outcomes))
	}

	for _, outcome := range outcomes {
		stage := history.Stage{
			Name:     string(outcome.Stage),
			Status:   string(outcome.Status),
			Duration: outcome.Duration,
		}
		if outcome.Err != nil {
			stage.Error = outcome.Err.Error()
		}
		run.Stages = append(run.Stages, stage)
	}
	recordHistory(cmd.Context(), env.cfg, env.reporter, run)

	return err
}

// recordHistory stores run when the ledger is enabled. Failures are only
// warned about.
func recordHistory(ctx context.Context, cfg *config.Config, reporter progress.Reporter, run history.Run) {
	if !cfg.History.Enabled {
		return
	}
	ctx = context.WithoutCancel(ctx)

	ledger, err := history.Open(ctx, cfg.HistoryURL())
	if err != nil {
		reporter.Warn("could not open run history: %v", err)
		return
	}
	defer func() { _ = ledger.Close() }()

	if err := ledger.Record(ctx, run); err != nil {
		reporter.Warn("could not record run history: %v", err)
	}
}
