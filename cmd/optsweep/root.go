package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/optsweep/pkg/sweep/config"
	"github.com/jamesainslie/optsweep/pkg/sweep/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "optsweep",
		Short: "Launch a parameter sweep of the optimizer",
		Long: `Optsweep starts one detached ./optimization process per value of alpha
and returns immediately. Each child runs at the lowest scheduling priority
and writes its standard output to optim_<alpha>.log.

With no flags the sweep runs alpha = 0.8, 0.9 and launches:
  ./optimization 0.8 1.0 1 > optim_0.8.log
  ./optimization 0.9 1.1 1 > optim_0.9.log

Examples:
  optsweep                          # Run the default sweep
  optsweep --dry-run -o pretty      # Show what would be launched
  optsweep --start 0.5 --stop 0.75  # Sweep a different range
  optsweep ps                       # Show children of past sweeps
  optsweep tail                     # Follow the logs of the latest sweep
  optsweep top                      # Live view of running children`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Close()
		},
		RunE: runSweep,
	}
)

// flagKeys maps flags to the viper keys they override.
var flagKeys = map[string]string{
	"program":   "program",
	"nice":      "nice",
	"start":     "sweep.start",
	"increment": "sweep.increment",
	"stop":      "sweep.stop",
	"end-steps": "sweep.end_steps",
	"mode":      "sweep.mode",
	"log-dir":   "log.dir",
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/optsweep/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	// Sweep flags
	flags := rootCmd.Flags()
	flags.String("program", config.DefaultProgram, "optimizer executable")
	flags.Int("nice", config.DefaultNice, "niceness of every child")
	flags.Float64("start", config.DefaultStart, "first alpha")
	flags.Float64("increment", config.DefaultIncrement, "alpha step")
	flags.Float64("stop", config.DefaultStop, "sweep while alpha < stop")
	flags.Int("end-steps", config.DefaultEndSteps, "alpha_end = alpha + end-steps * increment")
	flags.String("mode", config.DefaultMode, "alpha progression: float or count")
	flags.String("log-dir", "", "directory for child logs (default: working directory)")
	flags.BoolVarP(&dryRun, "dry-run", "d", false, "show the sweep without starting anything")
	flags.StringVarP(&outputFormat, "format", "o", "", "print a report (pretty, plain, json, yaml, ...)")
	flags.StringVar(&templateStr, "template", "", "Go template for --format template")
}

// initConfig reads in config file and environment variables.
func initConfig() {
	v := viper.GetViper()
	if err := config.ConfigureViper(v, cfgFile); err != nil {
		printVerbose("config: %v", err)
	}
	bindFlags(v, rootCmd)

	if err := config.ReadInConfig(v); err != nil {
		printError("%v", err)
	}
}

// bindFlags binds the sweep and global flags of cmd to v.
func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	for name, key := range flagKeys {
		_ = v.BindPFlag(key, cmd.Flags().Lookup(name))
	}
	_ = v.BindPFlag("quiet", cmd.PersistentFlags().Lookup("quiet"))
	_ = v.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))
}

// setupLogging initializes the launcher's log file. Logging problems never
// stop a command.
func setupLogging(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	opts, err := cfg.LoggingOptions()
	if err != nil {
		printVerbose("logging disabled: %v", err)
		return nil
	}
	if getVerbose() {
		opts.ConsoleLevel = "debug"
	}
	if err := logging.Init(opts); err != nil {
		printVerbose("logging disabled: %v", err)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
