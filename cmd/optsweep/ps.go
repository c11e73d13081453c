package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/optsweep/pkg/sweep/config"
	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
	"github.com/jamesainslie/optsweep/pkg/sweep/registry"
)

var psCmd = &cobra.Command{
	Use:   "ps [run-id]",
	Short: "Show children started by past sweeps",
	Long: `List the optimizer processes recorded in the child registry with their
liveness and log activity.

Without a run id every recorded child is shown. A run id may be abbreviated
to any unique prefix.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPs,
}

var (
	psAliveOnly bool
	psPrune     bool
)

func init() {
	psCmd.Flags().BoolVarP(&psAliveOnly, "alive", "a", false, "only show running children")
	psCmd.Flags().BoolVar(&psPrune, "prune", false, "forget runs whose children have all exited")
	rootCmd.AddCommand(psCmd)
}

// registryWait bounds how long a command waits for a registry held by
// another optsweep process.
const registryWait = 3 * time.Second

// loadConfig decodes the effective configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// withRegistry opens the configured registry for the duration of fn. The
// database allows a single process, so commands hold it only briefly.
func withRegistry(fn func(reg *registry.Registry) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Registry.Enabled {
		return errors.New("registry is disabled in the configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), registryWait)
	defer cancel()

	reg, err := registry.OpenWait(ctx, cfg.Registry.Path)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer reg.Close()

	return fn(reg)
}

// selectChildren returns the children of runID, or of every run when runID
// is empty.
func selectChildren(reg *registry.Registry, runID string) ([]registry.Child, error) {
	if runID == "" {
		return reg.AllChildren()
	}
	run, err := reg.ResolveRun(runID)
	if err != nil {
		return nil, err
	}
	return reg.Children(run.ID)
}

// runPs lists recorded children.
func runPs(cmd *cobra.Command, args []string) error {
	runID := ""
	if len(args) == 1 {
		runID = args[0]
	}

	var statuses []registry.Status
	var pruned []string
	err := withRegistry(func(reg *registry.Registry) error {
		if psPrune {
			ids, err := reg.Prune()
			if err != nil {
				return fmt.Errorf("failed to prune registry: %w", err)
			}
			pruned = ids
		}
		children, err := selectChildren(reg, runID)
		if err != nil {
			return err
		}
		statuses = registry.Inspect(children)
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range pruned {
		printVerbose("Pruned %s", id)
	}
	if psPrune {
		printInfo("Pruned %d finished runs.", len(pruned))
	}

	if psAliveOnly {
		statuses = aliveOnly(statuses)
	}

	if len(statuses) == 0 {
		printInfo("No children recorded.")
		printInfo("Run 'optsweep' to launch a sweep.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s  %-6s  %-8s  %-7s  %-10s  %-16s  %s\n",
		"RUN", "ALPHA", "PID", "STATE", "LOG SIZE", "LAST WRITE", "LOG")
	fmt.Fprintln(out, strings.Repeat("-", 110))

	alive := 0
	for _, st := range statuses {
		state := "exited"
		if st.Alive {
			state = "running"
			alive++
		}
		fmt.Fprintf(out, "%-36s  %-6s  %-8d  %-7s  %-10s  %-16s  %s\n",
			truncateString(st.RunID, 36),
			plan.FormatDecimal(st.Alpha),
			st.PID,
			state,
			humanize.IBytes(uint64(st.LogSize)),
			lastWrite(st.LogModTime),
			st.LogPath,
		)
	}

	fmt.Fprintln(out, strings.Repeat("-", 110))
	fmt.Fprintf(out, "%d children, %d running\n", len(statuses), alive)
	return nil
}

// aliveOnly filters statuses down to running children.
func aliveOnly(statuses []registry.Status) []registry.Status {
	kept := statuses[:0]
	for _, st := range statuses {
		if st.Alive {
			kept = append(kept, st)
		}
	}
	return kept
}

// lastWrite renders a log modification time in Unix seconds.
func lastWrite(unix int64) string {
	if unix == 0 {
		return "-"
	}
	return humanize.Time(time.Unix(unix, 0))
}
