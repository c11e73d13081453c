// Package config provides configuration management for optsweep.
package config

import (
	"github.com/jamesainslie/optsweep/pkg/sweep/launcher"
	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

// AppName names the config, data and state directories.
const AppName = "optsweep"

// EnvPrefix prefixes environment overrides (OPTSWEEP_SWEEP_START).
const EnvPrefix = "OPTSWEEP"

// Default configuration values.
const (
	// DefaultProgram is the optimizer executable, relative to the working
	// directory.
	DefaultProgram = launcher.DefaultProgram

	// DefaultConstArg is the fixed third argument passed to the optimizer.
	DefaultConstArg = launcher.DefaultConstArg

	// DefaultNice is the niceness of every child.
	DefaultNice = launcher.DefaultNice

	// DefaultRetentionDays is how long run history is kept.
	DefaultRetentionDays = 30

	// DefaultLogLevel is the launcher's own log level.
	DefaultLogLevel = "info"
)

// Sweep defaults, mirrored from the plan package for config output.
const (
	DefaultStart     = plan.DefaultStart
	DefaultIncrement = plan.DefaultIncrement
	DefaultStop      = plan.DefaultStop
	DefaultEndSteps  = plan.DefaultEndSteps
	DefaultLogPrefix = plan.DefaultLogPrefix
	DefaultLogSuffix = plan.DefaultLogSuffix
	DefaultMode      = string(plan.ModeFloat)
)
