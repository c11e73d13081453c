package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/optsweep/pkg/sweep/logging"
)

// readLog closes logging and returns the file content.
func readLog(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, logging.Close())
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

// TestInit tests the Init function with various configurations.
// Note: tests in this file modify global state and do not run in parallel.
func TestInit(t *testing.T) {
	dir := t.TempDir()

	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{
			name: "valid config with defaults",
			cfg:  logging.Config{Level: "info", Path: filepath.Join(dir, "valid.log")},
		},
		{
			name: "empty level means info",
			cfg:  logging.Config{Path: filepath.Join(dir, "empty.log")},
		},
		{
			name: "component overrides",
			cfg: logging.Config{
				Level:      "info",
				Path:       filepath.Join(dir, "components.log"),
				Components: map[string]string{"launcher": "debug", "registry": "warn"},
			},
		},
		{
			name:    "invalid log level",
			cfg:     logging.Config{Level: "loud", Path: filepath.Join(dir, "invalid.log")},
			wantErr: true,
		},
		{
			name: "invalid component level",
			cfg: logging.Config{
				Path:       filepath.Join(dir, "invalid-comp.log"),
				Components: map[string]string{"launcher": "loud"},
			},
			wantErr: true,
		},
		{
			name:    "invalid console level",
			cfg:     logging.Config{Path: filepath.Join(dir, "console.log"), ConsoleLevel: "loud"},
			wantErr: true,
		},
		{
			name:    "parent is a regular file",
			cfg:     logging.Config{Path: filepath.Join(blocker, "sub", "test.log")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := logging.Init(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, logging.Close())
		})
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "write.log")
	require.NoError(t, logging.Init(logging.Config{Level: "debug", Path: logPath}))

	logger := logging.Get("launcher")
	logger.Info("child started", "alpha", 0.8)
	logger.Debug("debug message")

	content := readLog(t, logPath)
	assert.Contains(t, content, "child started")
	assert.Contains(t, content, "alpha=0.8")
	assert.Contains(t, content, "debug message")
	assert.Contains(t, content, "launcher")
}

func TestLoggerObtainedBeforeInit(t *testing.T) {
	logger := logging.Get("early")
	logger.Info("before init is discarded")

	logPath := filepath.Join(t.TempDir(), "early.log")
	require.NoError(t, logging.Init(logging.Config{Path: logPath}))

	assert.Same(t, logger, logging.Get("early"))
	logger.Info("after init is written")

	content := readLog(t, logPath)
	assert.NotContains(t, content, "before init is discarded")
	assert.Contains(t, content, "after init is written")
}

func TestLogLevels(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "levels.log")
	require.NoError(t, logging.Init(logging.Config{Level: "warn", Path: logPath}))

	logger := logging.Get("test")
	logger.Debug("debug should not appear")
	logger.Info("info should not appear")
	logger.Warn("warn should appear")
	logger.Error("error should appear")

	content := readLog(t, logPath)
	assert.NotContains(t, content, "debug should not appear")
	assert.NotContains(t, content, "info should not appear")
	assert.Contains(t, content, "warn should appear")
	assert.Contains(t, content, "error should appear")
}

func TestComponentLevelOverride(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "component.log")
	require.NoError(t, logging.Init(logging.Config{
		Level:      "error",
		Path:       logPath,
		Components: map[string]string{"verbose": "debug"},
	}))

	logging.Get("normal").Info("normal info should not appear")
	logging.Get("verbose").Info("verbose info should appear")

	content := readLog(t, logPath)
	assert.NotContains(t, content, "normal info should not appear")
	assert.Contains(t, content, "verbose info should appear")
}

func TestWith(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "with.log")
	require.NoError(t, logging.Init(logging.Config{Path: logPath}))

	logger := logging.Get("launcher").With("run", "sweep-1")
	logger.Info("tagged")
	assert.Equal(t, "launcher", logger.Component())

	content := readLog(t, logPath)
	assert.Contains(t, content, "run=sweep-1")
}

func TestConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")
	require.NoError(t, logging.Init(logging.Config{Level: "debug", Path: logPath}))

	const numGoroutines = 10
	const numMessages = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			logger := logging.Get("concurrent")
			for j := 0; j < numMessages; j++ {
				logger.Info("message", "goroutine", id, "index", j)
			}
		}(i)
	}
	wg.Wait()

	content := readLog(t, logPath)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	assert.Len(t, lines, numGoroutines*numMessages)
}

func TestLoggingWhileReinitializing(t *testing.T) {
	dir := t.TempDir()
	logger := logging.Get("refresh")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				logger.Info("loading", "component", "registry")
				_ = logger.With("run", "sweep-1")
			}
		}
	}()

	for i := 0; i < 20; i++ {
		require.NoError(t, logging.Init(logging.Config{Path: filepath.Join(dir, "reinit.log")}))
	}
	require.NoError(t, logging.Close())
	close(stop)
	wg.Wait()

	logger.Info("after close")
	content, err := os.ReadFile(filepath.Join(dir, "reinit.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "after close")
}

func TestDefaultPath(t *testing.T) {
	t.Parallel()

	path := logging.DefaultLogPath()
	assert.Contains(t, path, "optsweep")
	assert.True(t, strings.HasSuffix(path, "optsweep.log"), path)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level   string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"info", logging.LevelInfo, false},
		{"warn", logging.LevelWarn, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"DEBUG", logging.LevelDebug, false},
		{"Info", logging.LevelInfo, false},
		{"", logging.LevelInfo, false},
		{"fatal", logging.LevelInfo, true},
		{"invalid", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Parallel()

			got, err := logging.ParseLevel(tt.level)
			if tt.wantErr {
				require.ErrorIs(t, err, logging.ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got.String())
		})
	}
}
