package main

import (
	"github.com/spf13/cobra"

	"github.com/jamesainslie/optsweep/cmd/optsweep/tui"
	"github.com/jamesainslie/optsweep/pkg/sweep/registry"
)

var topCmd = &cobra.Command{
	Use:   "top [run-id]",
	Short: "Live view of sweep children",
	Long: `Show the children recorded in the registry with their liveness, log size
and last write, refreshed every second. Press q to quit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTop,
}

var topAliveOnly bool

func init() {
	topCmd.Flags().BoolVarP(&topAliveOnly, "alive", "a", false, "only show running children")
	rootCmd.AddCommand(topCmd)
}

// runTop starts the live view. The registry is opened for each refresh so
// a sweep launched meanwhile can still record its children.
func runTop(cmd *cobra.Command, args []string) error {
	runID := ""
	if len(args) == 1 {
		runID = args[0]
	}

	title := ""
	if runID != "" {
		err := withRegistry(func(reg *registry.Registry) error {
			run, err := reg.ResolveRun(runID)
			if err != nil {
				return err
			}
			runID, title = run.ID, run.ID
			return nil
		})
		if err != nil {
			return err
		}
	}

	return tui.Run(tui.Options{
		Title: title,
		Load:  registryLoader(runID, topAliveOnly),
	})
}

// registryLoader returns a tui.Loader reading the children of runID, or of
// every run when runID is empty.
func registryLoader(runID string, aliveFilter bool) tui.Loader {
	return func() ([]registry.Status, error) {
		var statuses []registry.Status
		err := withRegistry(func(reg *registry.Registry) error {
			children, err := selectChildren(reg, runID)
			if err != nil {
				return err
			}
			statuses = registry.Inspect(children)
			return nil
		})
		if aliveFilter {
			statuses = aliveOnly(statuses)
		}
		return statuses, err
	}
}
