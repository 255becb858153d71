package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/config"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/history"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View import and delete history",
	Long: `View the history of import and delete operations.

Every import, successful or not, and every deletion is recorded with the
archive it came from and the reason it failed.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a specific operation",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show (0 for all)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

var errHistoryDisabled = errors.New("history is disabled or unavailable (see history.enabled in the config)")

// openHistory returns the history log configured for e.
func openHistory(e *env) (*history.Log, error) {
	if e.history == nil {
		return nil, errHistoryDisabled
	}
	return e.history, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	h, err := openHistory(e)
	if err != nil {
		return err
	}
	entries, err := h.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		printInfo(out, "No history entries found.")
		printInfo(out, "Run 'wayvibes-ui import <archive>' to import a sound pack.")
		return nil
	}

	fmt.Fprintf(out, "\n%-42s  %-13s  %-24s  %s\n", "ID", "OPERATION", "PACK", "WHEN")
	fmt.Fprintln(out, strings.Repeat("-", 96))
	for _, entry := range entries {
		op := string(entry.Op)
		switch entry.Op {
		case history.OpImportFailed:
			op = output.ErrorStyle.Render(fmt.Sprintf("%-13s", op))
		case history.OpDelete:
			op = output.WarningStyle.Render(fmt.Sprintf("%-13s", op))
		default:
			op = fmt.Sprintf("%-13s", op)
		}
		pack := entry.PackID
		if pack == "" {
			pack = entry.Archive
		}
		fmt.Fprintf(out, "%-42s  %s  %-24s  %s\n",
			truncateString(entry.ID, 42),
			op,
			truncateString(pack, 24),
			humanize.Time(entry.Timestamp),
		)
	}
	fmt.Fprintln(out, strings.Repeat("-", 96))
	fmt.Fprintf(out, "\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Fprintln(out, "Use 'wayvibes-ui history show <id>' for details on a specific entry.")
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	h, err := openHistory(e)
	if err != nil {
		return err
	}
	entry, err := h.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nOperation Details")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "ID:         %s\n", entry.ID)
	fmt.Fprintf(out, "Timestamp:  %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Operation:  %s\n", entry.Op)
	if entry.PackID != "" {
		fmt.Fprintf(out, "Pack:       %s\n", entry.PackID)
	}
	if entry.PackName != "" {
		fmt.Fprintf(out, "Name:       %s\n", entry.PackName)
	}
	if entry.Archive != "" {
		fmt.Fprintf(out, "Archive:    %s\n", entry.Archive)
	}
	if entry.Format != "" {
		fmt.Fprintf(out, "Format:     %s\n", entry.Format)
	}
	if entry.Error != "" {
		fmt.Fprintf(out, "Error:      %s\n", output.ErrorStyle.Render(entry.Error))
	}
	return nil
}

func runHistoryClean(cmd *cobra.Command, args []string) error {
	e, err := bootstrap()
	if err != nil {
		return err
	}
	defer e.Close()

	h, err := openHistory(e)
	if err != nil {
		return err
	}

	retentionDays := e.cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	out := cmd.OutOrStdout()
	printInfo(out, "Cleaning history entries older than %d days...", retentionDays)
	removed, err := h.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	printInfo(out, "Removed %d entr%s.", removed, plural(removed, "y", "ies"))
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
