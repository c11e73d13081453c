package launcher_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/optsweep/pkg/sweep/launcher"
	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
)

// fakeSpawner records requests and fails every spawn when err is set.
type fakeSpawner struct {
	requests []launcher.Request
	err      error
	nextPID  int
}

func (f *fakeSpawner) Spawn(_ context.Context, req launcher.Request) (int, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return 0, f.err
	}
	f.nextPID++
	return 1000 + f.nextPID, nil
}

var fixedTime = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

type recordingRecorder struct {
	reports []*launcher.Report
	err     error
}

func (r *recordingRecorder) Record(report *launcher.Report) error {
	r.reports = append(r.reports, report)
	return r.err
}

func TestRun_DefaultSweep(t *testing.T) {
	t.Parallel()

	spawner := &fakeSpawner{}
	l := launcher.New(launcher.Options{
		Spawner: spawner,
		Nice:    launcher.DefaultNice,
		Stderr:  &bytes.Buffer{},
	})

	report, err := l.Run(context.Background(), plan.DefaultParams())
	require.NoError(t, err)

	require.Len(t, spawner.requests, 2)
	assert.Equal(t, []string{"0.8", "1.0", "1"}, spawner.requests[0].Args)
	assert.Equal(t, []string{"0.9", "1.1", "1"}, spawner.requests[1].Args)
	assert.Equal(t, "optim_0.8.log", spawner.requests[0].LogPath)
	assert.Equal(t, "optim_0.9.log", spawner.requests[1].LogPath)

	for _, req := range spawner.requests {
		assert.Equal(t, launcher.DefaultProgram, req.Program)
		assert.Equal(t, launcher.DefaultNice, req.Nice)
	}

	assert.Equal(t, 2, report.Launched())
	assert.Equal(t, 0, report.Failed())
	assert.Equal(t, []int{1001, 1002}, report.PIDs())
	assert.True(t, strings.HasPrefix(report.ID, "sweep-"))

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "optim_0.8.log"), report.Results[0].LogFile)
	assert.Equal(t, report.Results[1].LogFile, report.Results[1].LogLocation())
}

func TestRun_SpawnFailuresDoNotAbort(t *testing.T) {
	t.Parallel()

	spawner := &fakeSpawner{err: errors.New("permission denied")}
	var stderr bytes.Buffer
	l := launcher.New(launcher.Options{Spawner: spawner, Stderr: &stderr})

	report, err := l.Run(context.Background(), plan.DefaultParams())
	require.NoError(t, err)

	assert.Len(t, spawner.requests, 2, "both points attempted")
	assert.Equal(t, 0, report.Launched())
	assert.Equal(t, 2, report.Failed())

	out := stderr.String()
	assert.Contains(t, out, "alpha 0.8: permission denied")
	assert.Contains(t, out, "alpha 0.9: permission denied")
	for _, res := range report.Results {
		assert.Equal(t, "permission denied", res.Error)
		assert.Zero(t, res.PID)
	}
}

func TestRun_DryRunStartsNothing(t *testing.T) {
	t.Parallel()

	spawner := &fakeSpawner{}
	rec := &recordingRecorder{}
	l := launcher.New(launcher.Options{
		Spawner:   spawner,
		DryRun:    true,
		Recorders: []launcher.Recorder{rec},
	})

	report, err := l.Run(context.Background(), plan.DefaultParams())
	require.NoError(t, err)

	assert.Empty(t, spawner.requests)
	assert.Empty(t, rec.reports)
	require.Len(t, report.Results, 2)
	assert.True(t, report.DryRun)
	assert.Equal(t, []string{"0.9", "1.1", "1"}, report.Results[1].Args)
	assert.Empty(t, report.Results[0].LogFile)
	assert.Equal(t, "optim_0.8.log", report.Results[0].LogLocation())
}

func TestRun_RecordersSeeReport(t *testing.T) {
	t.Parallel()

	failing := &recordingRecorder{err: errors.New("disk full")}
	ok := &recordingRecorder{}
	l := launcher.New(launcher.Options{
		Spawner:   &fakeSpawner{},
		Recorders: []launcher.Recorder{failing, ok},
	})

	report, err := l.Run(context.Background(), plan.DefaultParams())
	require.NoError(t, err, "recorder failures never fail the sweep")

	require.Len(t, ok.reports, 1)
	assert.Same(t, report, ok.reports[0])
	assert.Len(t, failing.reports, 1)
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spawner := &fakeSpawner{}
	l := launcher.New(launcher.Options{Spawner: spawner})

	report, err := l.Run(ctx, plan.DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, spawner.requests)
	assert.True(t, report.Interrupted)
}

func TestRun_InvalidParams(t *testing.T) {
	t.Parallel()

	p := plan.DefaultParams()
	p.Mode = "bogus"

	l := launcher.New(launcher.Options{Spawner: &fakeSpawner{}})
	_, err := l.Run(context.Background(), p)
	require.ErrorIs(t, err, plan.ErrInvalidMode)
}

func TestRun_CustomConstArg(t *testing.T) {
	t.Parallel()

	spawner := &fakeSpawner{}
	l := launcher.New(launcher.Options{
		Program:  "/opt/optimizer",
		ConstArg: "3",
		Spawner:  spawner,
	})

	_, err := l.Run(context.Background(), plan.DefaultParams())
	require.NoError(t, err)
	require.NotEmpty(t, spawner.requests)
	assert.Equal(t, "/opt/optimizer", spawner.requests[0].Program)
	assert.Equal(t, "3", spawner.requests[0].Args[2])
}

func TestNewRunID_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 100 {
		id := launcher.NewRunID(fixedTime)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
