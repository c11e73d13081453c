package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/optsweep/pkg/sweep/logfiles"
	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

var logsCmd = &cobra.Command{
	Use:   "logs [dir]",
	Short: "List sweep log files",
	Long: `Find the optim_<alpha>.log files in a directory (default: the configured
log directory, or the working directory) and list them by alpha.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var logsRecursive bool

func init() {
	logsCmd.Flags().BoolVarP(&logsRecursive, "recursive", "r", false, "search subdirectories")
	rootCmd.AddCommand(logsCmd)
}

// runLogs lists the log files found under a directory.
func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root := cfg.Log.Dir
	if len(args) == 1 {
		root = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	files, err := logfiles.FindContext(ctx, logfiles.Options{
		Root:      root,
		Prefix:    cfg.Log.Prefix,
		Suffix:    cfg.Log.Suffix,
		Recursive: logsRecursive,
	})
	if err != nil {
		return fmt.Errorf("failed to find log files: %w", err)
	}

	if len(files) == 0 {
		printInfo("No sweep logs found.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-8s  %-10s  %-16s  %s\n", "ALPHA", "SIZE", "MODIFIED", "PATH")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, f := range files {
		fmt.Fprintf(out, "%-8s  %-10s  %-16s  %s\n",
			plan.FormatDecimal(f.Alpha),
			humanize.IBytes(uint64(f.Size)),
			humanize.Time(f.ModTime),
			f.Path,
		)
	}
	fmt.Fprintln(out, strings.Repeat("-", 80))
	fmt.Fprintf(out, "%d logs, %s\n", len(files), humanize.IBytes(uint64(logfiles.TotalSize(files))))
	return nil
}
