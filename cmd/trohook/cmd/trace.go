package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/trohook/internal/observe"
	"github.com/psantana5/trohook/internal/trace"
)

var (
	traceUser  string
	traceJobID uint32
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Inspect XALT execution traces",
	Long:  `Look up the XALT execution records the hook correlates with a job's performance.`,
}

var traceFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Find the trace recorded for a job",
	Long: `Find the XALT record whose job id matches, using the same selection
the exit callback uses (newest file first).

Examples:
  trohook trace find --job-id 4242
  trohook trace find --job-id 4242 --user alice -o json`,
	RunE: runTraceFind,
}

var traceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every readable trace for a user",
	RunE:  runTraceList,
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.AddCommand(traceFindCmd)
	traceCmd.AddCommand(traceListCmd)

	traceCmd.PersistentFlags().StringVar(&traceUser, "user", "", "user whose ~/.xalt.d is searched (default: SLURM_JOB_USER, then USER)")
	traceFindCmd.Flags().Uint32Var(&traceJobID, "job-id", 0, "Slurm job id")
	traceFindCmd.MarkFlagRequired("job-id")
}

func traceOwner() (string, error) {
	for _, candidate := range []string{traceUser, os.Getenv("SLURM_JOB_USER"), os.Getenv("USER")} {
		if candidate != "" {
			return candidate, nil
		}
	}
	return "", errors.New("no user given and neither SLURM_JOB_USER nor USER is set")
}

func runTraceFind(cmd *cobra.Command, args []string) error {
	user, err := traceOwner()
	if err != nil {
		return err
	}

	tr, found, err := trace.NewLocator().Find(traceJobID, user)
	if err != nil {
		return fmt.Errorf("trace lookup failed: %w", err)
	}
	if !found {
		return fmt.Errorf("no trace for job %d in ~%s/%s", traceJobID, user, trace.DirName)
	}

	return printTraces(cmd, []trace.ExecutionTrace{tr})
}

func runTraceList(cmd *cobra.Command, args []string) error {
	user, err := traceOwner()
	if err != nil {
		return err
	}

	traces, err := trace.NewLocator().FindAll(user)
	if err != nil {
		return fmt.Errorf("failed to list traces: %w", err)
	}
	if len(traces) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No traces found in ~%s/%s\n", user, trace.DirName)
		return nil
	}
	return printTraces(cmd, traces)
}

func printTraces(cmd *cobra.Command, traces []trace.ExecutionTrace) error {
	if done, err := writeStructured(cmd.OutOrStdout(), traces); done {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Job ID", "Start", "End", "Command", "File")
	for _, tr := range traces {
		table.Append(
			tr.JobID,
			observe.FormatEpochFloat(tr.StartTime),
			observe.FormatEpochFloat(tr.EndTime),
			truncate(strings.Join(tr.CommandLine, " "), 48),
			tr.Path,
		)
	}
	return table.Render()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
