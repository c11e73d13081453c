package registry_test

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/optsweep/pkg/sweep/launcher"
	"github.com/jamesainslie/optsweep/pkg/sweep/plan"
	"github.com/jamesainslie/optsweep/pkg/sweep/registry"
)

func openRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// report builds a default-sweep report with the given pids; a zero pid marks
// a failed spawn.
func report(t *testing.T, id string, started time.Time, pids ...int) *launcher.Report {
	t.Helper()
	params := plan.DefaultParams()
	points, err := plan.Generate(params)
	require.NoError(t, err)
	require.Len(t, points, len(pids))

	rep := &launcher.Report{ID: id, StartedAt: started, Program: "./optimization", Params: params}
	for i, pt := range points {
		res := launcher.Result{Point: pt, Args: []string{plan.FormatDecimal(pt.Alpha), plan.FormatDecimal(pt.AlphaEnd), "1"}, PID: pids[i]}
		if pids[i] == 0 {
			res.Err = errors.New("spawn failed")
			res.Error = res.Err.Error()
		}
		rep.Results = append(rep.Results, res)
	}
	return rep
}

func TestPutRunAndChildren(t *testing.T) {
	t.Parallel()
	r := openRegistry(t)

	require.NoError(t, r.PutRun(report(t, "sweep-a", time.Now(), 101, 102)))

	children, err := r.Children("sweep-a")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, 101, children[0].PID)
	assert.Equal(t, 0.8, children[0].Alpha)
	assert.Equal(t, "optim_0.8.log", children[0].LogPath)
	assert.Equal(t, []string{"0.9", "1.1", "1"}, children[1].Args)
	assert.Equal(t, "./optimization", children[1].Program)
}

func TestPutRunSkipsFailedChildren(t *testing.T) {
	t.Parallel()
	r := openRegistry(t)

	require.NoError(t, r.Record(report(t, "sweep-partial", time.Now(), 0, 202)))
	require.NoError(t, r.Record(report(t, "sweep-none", time.Now(), 0, 0)))

	children, err := r.Children("sweep-partial")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, 202, children[0].PID)

	_, err = r.ResolveRun("sweep-none")
	assert.ErrorIs(t, err, registry.ErrRunNotFound, "runs without children are not stored")
}

func TestPutRunRejectsMissingID(t *testing.T) {
	t.Parallel()
	r := openRegistry(t)

	assert.Error(t, r.PutRun(nil))
	assert.Error(t, r.PutRun(&launcher.Report{}))
}

func TestRunsNewestFirst(t *testing.T) {
	t.Parallel()
	r := openRegistry(t)

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.PutRun(report(t, "sweep-1", base, 1, 2)))
	require.NoError(t, r.PutRun(report(t, "sweep-3", base.Add(2*time.Hour), 5, 6)))
	require.NoError(t, r.PutRun(report(t, "sweep-2", base.Add(time.Hour), 3, 4)))

	runs, err := r.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"sweep-3", "sweep-2", "sweep-1"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.Equal(t, 2, runs[0].Children)

	latest, err := r.Latest()
	require.NoError(t, err)
	assert.Equal(t, "sweep-3", latest.ID)

	all, err := r.AllChildren()
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestResolveRun(t *testing.T) {
	t.Parallel()
	r := openRegistry(t)

	require.NoError(t, r.PutRun(report(t, "sweep-2026-05-01-aaaa", time.Now(), 1, 2)))
	require.NoError(t, r.PutRun(report(t, "sweep-2026-05-01-aabb", time.Now(), 3, 4)))
	require.NoError(t, r.PutRun(report(t, "sweep-2026-06-01-cccc", time.Now(), 5, 6)))

	run, err := r.ResolveRun("sweep-2026-06")
	require.NoError(t, err)
	assert.Equal(t, "sweep-2026-06-01-cccc", run.ID)

	run, err = r.ResolveRun("sweep-2026-05-01-aaaa")
	require.NoError(t, err)
	assert.Equal(t, "sweep-2026-05-01-aaaa", run.ID)

	_, err = r.ResolveRun("sweep-2026-05")
	assert.ErrorIs(t, err, registry.ErrAmbiguousID)

	_, err = r.ResolveRun("nope")
	assert.ErrorIs(t, err, registry.ErrRunNotFound)

	_, err = r.ResolveRun("")
	assert.ErrorIs(t, err, registry.ErrRunNotFound)
}

func TestLatestEmpty(t *testing.T) {
	t.Parallel()
	r := openRegistry(t)

	_, err := r.Latest()
	assert.ErrorIs(t, err, registry.ErrRunNotFound)
}

func TestForget(t *testing.T) {
	t.Parallel()
	r := openRegistry(t)

	require.NoError(t, r.PutRun(report(t, "sweep-keep", time.Now(), 1, 2)))
	require.NoError(t, r.PutRun(report(t, "sweep-drop", time.Now(), 3, 4)))

	removed, err := r.Forget("sweep-drop")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	children, err := r.Children("sweep-drop")
	require.NoError(t, err)
	assert.Empty(t, children)

	runs, err := r.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "sweep-keep", runs[0].ID)
}

func TestReopenKeepsRuns(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	r, err := registry.Open(dir)
	require.NoError(t, err)
	require.NoError(t, r.PutRun(report(t, "sweep-persist", time.Now(), 7, 8)))
	require.NoError(t, r.Close())

	r, err = registry.Open(dir)
	require.NoError(t, err)
	defer r.Close()

	require.NotNil(t, r.GetSchema())
	assert.Equal(t, registry.CurrentSchemaVersion, r.GetSchema().Version)

	children, err := r.Children("sweep-persist")
	require.NoError(t, err)
	assert.Len(t, children, 2)
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	r, err := registry.Open(dir)
	require.NoError(t, err)
	require.NoError(t, r.SetSchema(&registry.Schema{Version: registry.CurrentSchemaVersion + 1}))
	require.NoError(t, r.Close())

	_, err = registry.Open(dir)
	assert.ErrorIs(t, err, registry.ErrNewerSchema)
}

func TestIsAlive(t *testing.T) {
	t.Parallel()

	assert.True(t, registry.IsAlive(os.Getpid()))
	assert.False(t, registry.IsAlive(0))
	assert.False(t, registry.IsAlive(-1))
	if runtime.GOOS != "windows" {
		assert.False(t, registry.IsAlive(exitedPID(t)))
	}
}

// exitedPID returns the pid of a process that has exited and been reaped.
func exitedPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	return cmd.ProcessState.Pid()
}

func TestOpenWaitForLockedRegistry(t *testing.T) {
	dir := t.TempDir()
	holder, err := registry.Open(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = registry.OpenWait(ctx, dir)
	require.ErrorIs(t, err, registry.ErrLocked)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = holder.Close()
	}()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	r, err := registry.OpenWait(ctx2, dir)
	require.NoError(t, err)
	require.NoError(t, r.Close())
}

func TestOpenWaitReturnsOtherErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := registry.OpenWait(context.Background(), file)
	require.Error(t, err)
	assert.NotErrorIs(t, err, registry.ErrLocked)
}

// logWriter is a launcher.Spawner that only writes the child's log.
type logWriter struct{ pid int }

func (w *logWriter) Spawn(_ context.Context, req launcher.Request) (int, error) {
	w.pid++
	return w.pid, os.WriteFile(req.LogPath, []byte("iteration\n"), 0o644)
}

func TestRecordedLogPathsSurviveDirectoryChange(t *testing.T) {
	runDir, otherDir := t.TempDir(), t.TempDir()
	r := openRegistry(t)

	t.Chdir(runDir)
	l := launcher.New(launcher.Options{
		Spawner:   &logWriter{pid: 4000},
		Stderr:    io.Discard,
		Recorders: []launcher.Recorder{r},
	})
	rep, err := l.Run(context.Background(), plan.DefaultParams())
	require.NoError(t, err)
	require.Equal(t, 2, rep.Launched())

	t.Chdir(otherDir)
	children, err := r.Children(rep.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)

	for i, st := range registry.Inspect(children) {
		assert.True(t, filepath.IsAbs(st.LogPath), "log path %q", st.LogPath)
		assert.Equal(t, "optim_"+plan.FormatDecimal(children[i].Alpha)+".log", filepath.Base(st.LogPath))
		assert.Equal(t, int64(len("iteration\n")), st.LogSize, "log %s read from another directory", st.LogPath)
	}
}
