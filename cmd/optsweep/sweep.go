package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/optsweep/pkg/sweep/config"
	"github.com/jamesainslie/optsweep/pkg/sweep/launcher"
	"github.com/jamesainslie/optsweep/pkg/sweep/manifest"
	"github.com/jamesainslie/optsweep/pkg/sweep/output"
	"github.com/jamesainslie/optsweep/pkg/sweep/registry"
)

// Sweep flag variables.
var (
	dryRun       bool
	outputFormat string
	templateStr  string
)

// runSweep launches one child per sweep point. Per-point failures are
// reported on stderr and never change the exit status.
func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		printError("%v", err)
		return err
	}

	formatter, err := getFormatter()
	if err != nil {
		printError("%v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorders, warnings, closeRecorders := openRecorders(ctx, cfg)
	defer closeRecorders()

	l := launcher.New(launcher.Options{
		Program:   cfg.Program,
		ConstArg:  cfg.ConstArg,
		Nice:      cfg.Nice,
		Stderr:    cmd.ErrOrStderr(),
		DryRun:    dryRun,
		Recorders: recorders,
	})

	printVerbose("Sweeping %s with %+v", cfg.Program, cfg.Params())

	report, err := l.Run(ctx, cfg.Params())
	if err != nil {
		printError("%v", err)
		return err
	}

	if formatter == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, output.FromReport(report, warnings...)); err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	_, err = buf.WriteTo(cmd.OutOrStdout())
	return err
}

// getFormatter returns the formatter selected by --format, or nil when no
// report was requested.
func getFormatter() (output.Formatter, error) {
	if outputFormat == "" && templateStr == "" {
		return nil, nil
	}
	if templateStr != "" {
		return output.NewTemplateFormatter(templateStr), nil
	}
	return output.Get(outputFormat)
}

// openRecorders opens the history and registry configured in cfg. A store
// that cannot be opened is skipped with a warning.
func openRecorders(ctx context.Context, cfg *config.Config) ([]launcher.Recorder, []string, func()) {
	var (
		recorders []launcher.Recorder
		warnings  []string
		closers   []func()
	)
	if dryRun {
		return nil, nil, func() {}
	}

	if cfg.History.Enabled {
		m, err := manifest.New(cfg.History.Path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("history disabled: %v", err))
		} else {
			recorders = append(recorders, m)
		}
	}

	if cfg.Registry.Enabled {
		waitCtx, cancel := context.WithTimeout(ctx, registryWait)
		reg, err := registry.OpenWait(waitCtx, cfg.Registry.Path)
		cancel()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("registry disabled: %v", err))
		} else {
			recorders = append(recorders, reg)
			closers = append(closers, func() { _ = reg.Close() })
		}
	}

	for _, w := range warnings {
		printVerbose("%s", w)
	}

	return recorders, warnings, func() {
		for _, c := range closers {
			c()
		}
	}
}
