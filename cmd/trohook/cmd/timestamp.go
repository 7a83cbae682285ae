package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/psantana5/trohook/internal/observe"
)

var timestampCmd = &cobra.Command{
	Use:   "timestamp EPOCH...",
	Short: "Render epoch seconds the way performance records are stamped",
	Long: `Print each epoch-seconds value as a UTC "YYYY-MM-DD HH:MM:SS" timestamp,
the format passed to tro-utils for performance start and end times.
Fractional seconds are truncated.

Examples:
  trohook timestamp 0
  trohook timestamp 1700000000.75`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTimestamp,
}

func init() {
	rootCmd.AddCommand(timestampCmd)
}

func runTimestamp(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		sec, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("invalid epoch %q: %w", arg, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), observe.FormatEpochFloat(sec))
	}
	return nil
}
