package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradelab/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query backtest runs stored in a SQLite journal",
	Long: `Query and display backtest runs from a SQLite journal.

Examples:
  trader journal runs
  trader journal show <run-id>
  trader journal executions <run-id>`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored run ids",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run summary as Org",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalExecutionsCmd = &cobra.Command{
	Use:   "executions <run-id>",
	Short: "Print the executions of a run as Org",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalExecutions,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalExecutionsCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./tradelab.sqlite", "path to SQLite journal DB")
}

func openSQLite() (*journal.SQLite, error) {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	ids, err := j.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	run, err := j.GetRun(args[0])
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	return run.WriteOrg(cmd.OutOrStdout())
}

func runJournalExecutions(cmd *cobra.Command, args []string) error {
	j, err := openSQLite()
	if err != nil {
		return err
	}
	defer j.Close()

	execs, err := j.ListExecutions(args[0])
	if err != nil {
		return fmt.Errorf("list executions: %w", err)
	}
	if len(execs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No executions for run %s.\n", args[0])
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), journal.FormatExecutionsOrg(execs))
	return nil
}
