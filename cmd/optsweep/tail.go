package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/optsweep/pkg/sweep/follow"
	"github.com/jamesainslie/optsweep/pkg/sweep/manifest"
	"github.com/jamesainslie/optsweep/pkg/sweep/registry"
)

var tailCmd = &cobra.Command{
	Use:   "tail [run-id]",
	Short: "Follow the logs of a sweep",
	Long: `Print lines as the children of a sweep write them, each prefixed with
the name of its log file. Without a run id the most recent sweep is used.

Runs are looked up in the child registry and, failing that, in the history.
Press Ctrl+C to stop.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTail,
}

var (
	tailFromStart bool
	tailNoPrefix  bool
)

func init() {
	tailCmd.Flags().BoolVarP(&tailFromStart, "from-start", "f", false, "print existing log content first")
	tailCmd.Flags().BoolVar(&tailNoPrefix, "no-prefix", false, "do not prefix lines with the log name")
	rootCmd.AddCommand(tailCmd)
}

// runTail follows the log files of a run until interrupted.
func runTail(cmd *cobra.Command, args []string) error {
	runID := ""
	if len(args) == 1 {
		runID = args[0]
	}

	id, paths, err := resolveLogPaths(runID)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		printInfo("Run %s started no children.", id)
		return nil
	}

	printVerbose("Following %d logs of %s", len(paths), id)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return follow.FollowWithOptions(ctx, paths, cmd.OutOrStdout(), follow.Options{
		FromStart: tailFromStart,
		NoPrefix:  tailNoPrefix,
	})
}

// resolveLogPaths finds the log files of runID, or of the latest run when
// runID is empty. The registry is released before returning.
func resolveLogPaths(runID string) (string, []string, error) {
	var (
		id    string
		paths []string
	)
	regErr := withRegistry(func(reg *registry.Registry) error {
		var run *registry.Run
		var err error
		if runID == "" {
			run, err = reg.Latest()
		} else {
			run, err = reg.ResolveRun(runID)
		}
		if err != nil {
			return err
		}
		children, err := reg.Children(run.ID)
		if err != nil {
			return err
		}
		id = run.ID
		for _, c := range children {
			paths = append(paths, c.LogPath)
		}
		return nil
	})
	if regErr == nil {
		return id, paths, nil
	}
	if errors.Is(regErr, registry.ErrAmbiguousID) {
		return "", nil, regErr
	}
	printVerbose("registry lookup failed: %v", regErr)

	entry, err := historyEntry(runID)
	if err != nil {
		return "", nil, fmt.Errorf("run not found in registry or history: %w", err)
	}
	for _, c := range entry.Children {
		if c.PID != 0 {
			paths = append(paths, c.LogPath)
		}
	}
	return entry.ID, paths, nil
}

// historyEntry returns the history entry for id, or the newest entry when id
// is empty.
func historyEntry(id string) (*manifest.Entry, error) {
	m, err := getManifest()
	if err != nil {
		return nil, err
	}
	if id != "" {
		return m.Get(id)
	}
	entries, err := m.List(1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, manifest.ErrRunNotFound
	}
	return &entries[0], nil
}
