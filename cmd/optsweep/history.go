package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/optsweep/pkg/sweep/config"
	"github.com/jamesainslie/optsweep/pkg/sweep/manifest"
	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sweep history",
	Long: `View the history of launched sweeps.

Every sweep writes a record of its parameters and of each child it started
or failed to start. Dry runs are not recorded.`,
	RunE: runHistory,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sweeps",
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific sweep",
	Long:  `Display the parameters and children of a sweep. The id may be any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
)

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getManifest returns a manifest instance with the configured directory.
func getManifest() (*manifest.Manifest, error) {
	cfg, err := loadConfig()
	if err != nil {
		// Use default history path if config fails to load
		return manifest.New(config.DefaultHistoryDir())
	}

	return manifest.New(cfg.History.Path)
}

// runHistory lists recent sweeps.
func runHistory(cmd *cobra.Command, args []string) error {
	m, err := getManifest()
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}

	entries, err := m.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'optsweep' to launch a sweep.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%-36s  %-14s  %-14s  %-8s  %-8s\n", "ID", "STARTED", "RANGE", "LAUNCHED", "FAILED")
	fmt.Fprintln(out, strings.Repeat("-", 88))

	for _, entry := range entries {
		fmt.Fprintf(out, "%-36s  %-14s  %-14s  %-8d  %-8d\n",
			truncateString(entry.ID, 36),
			humanize.Time(entry.Timestamp),
			sweepRange(entry.Params),
			entry.Summary.Launched,
			entry.Summary.Failed,
		)
	}

	fmt.Fprintln(out, strings.Repeat("-", 88))
	fmt.Fprintf(out, "\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Fprintln(out, "Use 'optsweep history show <id>' for details on a specific entry.")

	return nil
}

// runHistoryShow displays details of a specific sweep.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	m, err := getManifest()
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}

	entry, err := m.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nSweep Details")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "ID:          %s\n", entry.ID)
	fmt.Fprintf(out, "Timestamp:   %s (%s)\n", entry.Timestamp.Format("2006-01-02 15:04:05 MST"), humanize.Time(entry.Timestamp))
	fmt.Fprintf(out, "Program:     %s\n", entry.Program)
	fmt.Fprintf(out, "Range:       %s step %s (%s mode)\n",
		sweepRange(entry.Params), plan.FormatDecimal(entry.Params.Increment), entry.Params.Mode)
	fmt.Fprintf(out, "Launched:    %d\n", entry.Summary.Launched)
	fmt.Fprintf(out, "Failed:      %d\n", entry.Summary.Failed)
	if entry.Interrupted {
		fmt.Fprintln(out, "Interrupted: yes")
	}

	if len(entry.Children) > 0 {
		fmt.Fprintln(out, "\nChildren:")
		fmt.Fprintln(out, strings.Repeat("-", 60))
		fmt.Fprintf(out, "%-6s  %-6s  %-8s  %s\n", "ALPHA", "END", "PID", "LOG")
		fmt.Fprintln(out, strings.Repeat("-", 60))

		for _, c := range entry.Children {
			pid := "-"
			if c.PID != 0 {
				pid = fmt.Sprint(c.PID)
			}
			fmt.Fprintf(out, "%-6s  %-6s  %-8s  %s\n",
				plan.FormatDecimal(c.Alpha), plan.FormatDecimal(c.AlphaEnd), pid, c.LogPath)
			if c.Error != "" {
				fmt.Fprintf(out, "        error: %s\n", c.Error)
			}
		}
	}

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := manifest.New(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := m.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// sweepRange renders the half-open alpha range of a sweep.
func sweepRange(p plan.Params) string {
	return fmt.Sprintf("[%s, %s)", plan.FormatDecimal(p.Start), plan.FormatDecimal(p.Stop))
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
