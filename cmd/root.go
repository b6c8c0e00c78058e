package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "testenv",
	Short: "Disposable SQL databases for integration tests",
	Long: `testenv provisions a throwaway SQL database in a container, loads schema
scripts into it and runs migration projects against it, so every test run
starts from a known state.

Without a subcommand testenv runs reset.`,
	Args:          cobra.NoArgs,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to testenv.toml (default: discovered from the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed errors with stack traces")

	// A bare invocation behaves like reset.
	rootCmd.RunE = runReset
	addWorkingPathFlag(rootCmd)
	rootCmd.Flags().BoolP("pull-schema", "p", false, "Also pull schemas from the configured remote databases")
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(os.Stderr, err, verbose)
		os.Exit(1)
	}
}

// printError writes err on one line, or with its stack trace when detailed.
func printError(w io.Writer, err error, detailed bool) {
	if detailed {
		_, _ = fmt.Fprintf(w, "Error: %+v\n", err)
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}
