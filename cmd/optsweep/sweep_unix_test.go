//go:build unix

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/optsweep/pkg/sweep/registry"
)

// writeScript writes an executable optimizer stand-in into dir.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "optimization")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

type jsonReport struct {
	Run struct {
		ID     string `json:"id"`
		DryRun bool   `json:"dry_run"`
	} `json:"run"`
	Children []struct {
		Alpha   string   `json:"alpha"`
		Args    []string `json:"args"`
		PID     int      `json:"pid"`
		LogPath string   `json:"log_path"`
		Status  string   `json:"status"`
		Error   string   `json:"error"`
	} `json:"children"`
	Summary struct {
		Points   int `json:"points"`
		Launched int `json:"launched"`
		Failed   int `json:"failed"`
	} `json:"summary"`
}

func decodeReport(t *testing.T, out string) jsonReport {
	t.Helper()
	start := strings.Index(out, "{")
	require.GreaterOrEqual(t, start, 0, "no JSON in output: %s", out)
	var rep jsonReport
	require.NoError(t, json.Unmarshal([]byte(out[start:]), &rep))
	return rep
}

func TestSweepDryRun(t *testing.T) {
	dir := isolate(t)
	logDir := filepath.Join(dir, "logs")

	out, err := execute(t, "--dry-run", "-o", "json", "--log-dir", logDir)
	require.NoError(t, err)

	rep := decodeReport(t, out)
	assert.True(t, rep.Run.DryRun)
	require.Len(t, rep.Children, 2)
	assert.Equal(t, []string{"0.8", "1.0", "1"}, rep.Children[0].Args)
	assert.Equal(t, []string{"0.9", "1.1", "1"}, rep.Children[1].Args)
	assert.Equal(t, filepath.Join(logDir, "optim_0.8.log"), rep.Children[0].LogPath)
	assert.Equal(t, "planned", rep.Children[0].Status)

	assert.NoDirExists(t, logDir)
	assert.NoDirExists(t, filepath.Join(dir, "history"))
}

func TestSweepConfigFileAndFlags(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "sweep.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("sweep:\n  start: 0.5\n  stop: 0.65\n"), 0o644))

	out, err := execute(t, "--config", cfgPath, "--dry-run", "-o", "paths")
	require.NoError(t, err)
	assert.Equal(t, "optim_0.5.log\noptim_0.6.log\n", out)

	out, err = execute(t, "--config", cfgPath, "--dry-run", "-o", "paths", "--start", "0.6")
	require.NoError(t, err)
	assert.Equal(t, "optim_0.6.log\n", out)
}

func TestSweepUnknownFormat(t *testing.T) {
	isolate(t)
	_, err := execute(t, "--dry-run", "-o", "nope")
	assert.ErrorContains(t, err, "unknown formatter")
}

func TestSweepLaunchesChildren(t *testing.T) {
	dir := isolate(t)
	logDir := filepath.Join(dir, "logs")
	require.NoError(t, os.MkdirAll(logDir, 0o755))
	program := writeScript(t, dir, `echo "$1 $2 $3"`)

	out, err := execute(t, "--program", program, "--log-dir", logDir)
	require.NoError(t, err)
	assert.Empty(t, out, "a plain sweep prints nothing")

	for alpha, want := range map[string]string{"0.8": "0.8 1.0 1", "0.9": "0.9 1.1 1"} {
		path := filepath.Join(logDir, "optim_"+alpha+".log")
		require.Eventually(t, func() bool {
			data, err := os.ReadFile(path)
			return err == nil && strings.TrimSpace(string(data)) == want
		}, 5*time.Second, 20*time.Millisecond, "log %s never contained %q", path, want)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "history"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	reg, err := registry.Open(filepath.Join(dir, "registry"))
	require.NoError(t, err)
	run, err := reg.Latest()
	require.NoError(t, err)
	children, err := reg.Children(run.ID)
	require.NoError(t, err)
	require.NoError(t, reg.Close())
	assert.Len(t, children, 2)

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, run.ID)
	assert.Contains(t, out, "[0.8, 0.95)")

	out, err = execute(t, "history", "show", run.ID[:20])
	require.NoError(t, err)
	assert.Contains(t, out, "optim_0.9.log")

	out, err = execute(t, "ps", run.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "2 children")

	out, err = execute(t, "logs", logDir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 logs")
}

func TestSweepMissingProgramStillSucceeds(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "--program", filepath.Join(dir, "missing"), "--log-dir", dir, "-o", "json")
	require.NoError(t, err)

	assert.Contains(t, out, "alpha 0.8:")
	assert.Contains(t, out, "alpha 0.9:")

	rep := decodeReport(t, out)
	assert.Equal(t, 2, rep.Summary.Failed)
	assert.Zero(t, rep.Summary.Launched)
	for _, c := range rep.Children {
		assert.Equal(t, "failed", c.Status)
		assert.NotEmpty(t, c.Error)
	}
}

func TestSignalUnknownRun(t *testing.T) {
	isolate(t)
	_, err := execute(t, "signal", "sweep-does-not-exist")
	assert.ErrorIs(t, err, registry.ErrRunNotFound)
}
