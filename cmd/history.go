package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/testenv/testenv/internal/config"
	"github.com/testenv/testenv/internal/history"
	"github.com/testenv/testenv/internal/theme"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	Long: `List recent testenv runs recorded in the history ledger. Recording is
enabled with [history] enabled = true in testenv.toml.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().Bool("stages", false, "Show the stages of each run")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	showStages, _ := cmd.Flags().GetBool("stages")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run history is disabled; set [history] enabled = true in "+config.FileName)
		return nil
	}

	ledger, err := history.Open(cmd.Context(), cfg.HistoryURL())
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	runs, err := ledger.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
		return nil
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs, showStages))
	return nil
}

func renderRuns(runs []history.Run, showStages bool) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		detail := r.Error
		if showStages {
			var stages []string
			for _, s := range r.Stages {
				stages = append(stages, s.Name+"="+s.Status)
			}
			detail = strings.Join(stages, " ")
		}
		if i := strings.IndexByte(detail, '\n'); i >= 0 {
			detail = detail[:i]
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			r.Command,
			r.Status,
			r.Duration.Round(time.Millisecond).String(),
			r.WorkDir,
			detail,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.Muted)).
		Headers("STARTED", "COMMAND", "STATUS", "DURATION", "PATH", "DETAIL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.Header()
			}
			if col == 2 && row >= 0 && row < len(runs) {
				return theme.Cell().Foreground(theme.Status(runs[row].Status))
			}
			return theme.Cell()
		})
	return t.String()
}
