package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/optsweep/pkg/sweep/logging"
	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

// RotationConfig configures rotation of the launcher's own log file.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// SweepConfig configures the parameter range.
type SweepConfig struct {
	Start     float64 `mapstructure:"start"`
	Increment float64 `mapstructure:"increment"`
	Stop      float64 `mapstructure:"stop"`
	EndSteps  int     `mapstructure:"end_steps"`
	Mode      string  `mapstructure:"mode"`
}

// LogConfig configures where child output goes.
type LogConfig struct {
	Dir    string `mapstructure:"dir"` // Empty means the working directory
	Prefix string `mapstructure:"prefix"`
	Suffix string `mapstructure:"suffix"`
}

// HistoryConfig configures the run history.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// RegistryConfig configures the child registry.
type RegistryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Config represents the application configuration.
type Config struct {
	Program  string         `mapstructure:"program"`
	ConstArg string         `mapstructure:"const_arg"`
	Nice     int            `mapstructure:"nice"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Log      LogConfig      `mapstructure:"log"`
	History  HistoryConfig  `mapstructure:"history"`
	Registry RegistryConfig `mapstructure:"registry"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Params returns the sweep parameters described by the configuration.
func (c *Config) Params() plan.Params {
	return plan.Params{
		Start:     c.Sweep.Start,
		Increment: c.Sweep.Increment,
		Stop:      c.Sweep.Stop,
		EndSteps:  c.Sweep.EndSteps,
		Mode:      plan.Mode(c.Sweep.Mode),
		LogDir:    c.Log.Dir,
		LogPrefix: c.Log.Prefix,
		LogSuffix: c.Log.Suffix,
	}
}

// LoggingOptions converts the logging section for logging.Init.
func (c *Config) LoggingOptions() (logging.Config, error) {
	maxSize, err := logging.ParseMaxSize(c.Logging.Rotation.MaxSize)
	if err != nil {
		return logging.Config{}, err
	}
	return logging.Config{
		Level: c.Logging.Level,
		Path:  c.Logging.Path,
		Rotation: logging.RotationConfig{
			MaxSize:    maxSize,
			MaxAge:     c.Logging.Rotation.MaxAge,
			MaxBackups: c.Logging.Rotation.MaxBackups,
			Daily:      c.Logging.Rotation.Daily,
		},
		Components: c.Logging.Components,
	}, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("program", DefaultProgram)
	v.SetDefault("const_arg", DefaultConstArg)
	v.SetDefault("nice", DefaultNice)

	v.SetDefault("sweep.start", DefaultStart)
	v.SetDefault("sweep.increment", DefaultIncrement)
	v.SetDefault("sweep.stop", DefaultStop)
	v.SetDefault("sweep.end_steps", DefaultEndSteps)
	v.SetDefault("sweep.mode", DefaultMode)

	v.SetDefault("log.dir", "")
	v.SetDefault("log.prefix", DefaultLogPrefix)
	v.SetDefault("log.suffix", DefaultLogSuffix)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryDir())
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("registry.enabled", true)
	v.SetDefault("registry.path", DefaultRegistryPath())

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means logging.DefaultLogPath
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"launcher": "info",
		"registry": "warn",
		"history":  "info",
	})
}

// ConfigureViper points v at the config file locations and environment.
// An explicit file overrides the search path.
func ConfigureViper(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	return nil
}

// ReadInConfig reads the config file into v. A missing file is not an
// error; defaults and environment apply.
func ReadInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// FromViper decodes v into a Config and expands ~ in paths.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Program, &cfg.Log.Dir, &cfg.History.Path, &cfg.Registry.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

// Load loads configuration from the default file locations and the
// environment. Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/optsweep/config.yaml
//   - $HOME/.config/optsweep/config.yaml
//
// Environment variables are prefixed with OPTSWEEP_ (e.g. OPTSWEEP_NICE).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file.
func LoadFile(file string) (*Config, error) {
	v := viper.New()
	if err := ConfigureViper(v, file); err != nil {
		return nil, err
	}
	if err := ReadInConfig(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, AppName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", AppName), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a commented default config file if none exists and
// returns its path.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultFile()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// DefaultFile returns the text of the default config file.
func DefaultFile() string {
	return fmt.Sprintf(`# optsweep configuration

# Optimizer executable, resolved against the working directory
program: %s
# Fixed third argument passed to every child
const_arg: "%s"
# Niceness of every child (the kernel clamps values above its maximum)
nice: %d

# Parameter sweep: alpha runs from start while alpha < stop
sweep:
  start: %s
  increment: %s
  stop: %s
  # alpha_end = alpha + end_steps * increment
  end_steps: %d
  # float accumulates the increment, count uses start + i*increment
  mode: %s

# Child output files: <dir>/<prefix><alpha><suffix>
log:
  dir: ""
  prefix: %s
  suffix: %s

# Run history
history:
  enabled: true
  path: %s
  retention_days: %d

# Registry of launched children (used by ps, signal, tail, top)
registry:
  enabled: true
  path: %s

# Launcher logging
logging:
  # Log level: debug, info, warn, error
  level: %s
  # Empty means $XDG_STATE_HOME/optsweep/optsweep.log
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30
    max_backups: 5
    daily: true
  components:
    launcher: info
    registry: warn
    history: info
`,
		DefaultProgram, DefaultConstArg, DefaultNice,
		plan.FormatDecimal(DefaultStart), plan.FormatDecimal(DefaultIncrement), plan.FormatDecimal(DefaultStop),
		DefaultEndSteps, DefaultMode,
		DefaultLogPrefix, DefaultLogSuffix,
		DefaultHistoryDir(), DefaultRetentionDays,
		DefaultRegistryPath(),
		DefaultLogLevel,
	)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/optsweep for history and the registry.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// StateDir returns $XDG_STATE_HOME/optsweep for the launcher's log.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// DefaultHistoryDir returns the default run history directory.
func DefaultHistoryDir() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultRegistryPath returns the default registry database directory.
func DefaultRegistryPath() string {
	return filepath.Join(DataDir(), "registry")
}
