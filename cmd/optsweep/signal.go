package main

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/optsweep/pkg/sweep/registry"
)

var signalCmd = &cobra.Command{
	Use:   "signal <run-id>",
	Short: "Send a signal to the running children of a sweep",
	Long: `Send a signal to every child of a recorded sweep that is still running.

Signals may be given by name (TERM, SIGTERM, term) or number.`,
	Args: cobra.ExactArgs(1),
	RunE: runSignal,
}

var signalName string

func init() {
	signalCmd.Flags().StringVarP(&signalName, "signal", "s", "TERM", "signal to send (TERM, INT, KILL, HUP, QUIT)")
	rootCmd.AddCommand(signalCmd)
}

var signalsByName = map[string]syscall.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"QUIT": syscall.SIGQUIT,
	"KILL": syscall.SIGKILL,
	"TERM": syscall.SIGTERM,
}

// parseSignal resolves a signal name or number.
func parseSignal(s string) (syscall.Signal, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "SIG")

	if sig, ok := signalsByName[name]; ok {
		return sig, nil
	}
	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		return syscall.Signal(n), nil
	}
	return 0, fmt.Errorf("unknown signal %q", s)
}

// runSignal signals the live children of a run.
func runSignal(cmd *cobra.Command, args []string) error {
	sig, err := parseSignal(signalName)
	if err != nil {
		return err
	}

	var (
		runID     string
		signalled []int
	)
	err = withRegistry(func(reg *registry.Registry) error {
		run, err := reg.ResolveRun(args[0])
		if err != nil {
			return err
		}
		runID = run.ID
		children, err := reg.Children(run.ID)
		if err != nil {
			return err
		}
		signalled, err = registry.Signal(children, sig)
		return err
	})
	if err != nil && len(signalled) == 0 {
		return err
	}
	if err != nil {
		printError("%v", err)
	}

	if len(signalled) == 0 {
		printInfo("No running children in %s.", runID)
		return nil
	}
	for _, pid := range signalled {
		printVerbose("Sent %s to %d", sig, pid)
	}
	printInfo("Sent %s to %d children of %s.", sig, len(signalled), runID)
	return nil
}
