package follow_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/optsweep/pkg/sweep/follow"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// start runs a follower over paths and returns its output and a stop func
// that waits for Run to return.
func start(t *testing.T, opts follow.Options, paths ...string) (*syncBuffer, func()) {
	t.Helper()

	out := &syncBuffer{}
	f, err := follow.New(out, opts)
	require.NoError(t, err)
	require.NoError(t, f.Add(paths...))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Error("Run did not return after cancel")
			}
			_ = f.Close()
		})
	}
	t.Cleanup(stop)
	return out, stop
}

func appendTo(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(s)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func eventuallyContains(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte(want))
	}, 5*time.Second, 20*time.Millisecond, "output %q never contained %q", out.String(), want)
}

func TestFollowAppendedLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "optim_0.8.log")
	b := filepath.Join(dir, "optim_0.9.log")
	require.NoError(t, os.WriteFile(a, []byte("old line\n"), 0o644))

	out, stop := start(t, follow.Options{PollInterval: 50 * time.Millisecond}, a, b)

	appendTo(t, a, "iter 1 loss 0.5\n")
	appendTo(t, b, "iter 1 loss 0.7\n")

	eventuallyContains(t, out, "[optim_0.8.log] iter 1 loss 0.5\n")
	eventuallyContains(t, out, "[optim_0.9.log] iter 1 loss 0.7\n")

	stop()
	assert.NotContains(t, out.String(), "old line", "existing content is skipped")
}

func TestFollowFromStart(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "optim_0.8.log")
	require.NoError(t, os.WriteFile(path, []byte("first\nsecond\n"), 0o644))

	out, _ := start(t, follow.Options{FromStart: true, NoPrefix: true}, path)

	eventuallyContains(t, out, "first\nsecond\n")
}

func TestFollowPartialLineFlushedOnStop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "optim_0.8.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	out, stop := start(t, follow.Options{PollInterval: 20 * time.Millisecond}, path)

	appendTo(t, path, "complete\npartial")
	eventuallyContains(t, out, "[optim_0.8.log] complete\n")
	assert.NotContains(t, out.String(), "partial")

	stop()
	assert.Contains(t, out.String(), "[optim_0.8.log] partial\n")
}

func TestFollowTruncation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "optim_0.8.log")
	require.NoError(t, os.WriteFile(path, []byte("a long line from the previous sweep\n"), 0o644))

	out, _ := start(t, follow.Options{PollInterval: 20 * time.Millisecond}, path)

	require.NoError(t, os.WriteFile(path, []byte("new\n"), 0o644))
	eventuallyContains(t, out, "[optim_0.8.log] new\n")
}

func TestFollowFileCreatedLater(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "optim_0.9.log")
	out, _ := start(t, follow.Options{PollInterval: -1}, path)

	appendTo(t, path, "born\n")
	eventuallyContains(t, out, "[optim_0.9.log] born\n")
}

func TestFollowMissingDirectory(t *testing.T) {
	t.Parallel()

	f, err := follow.New(&syncBuffer{}, follow.Options{})
	require.NoError(t, err)
	defer f.Close()

	assert.Error(t, f.Add(filepath.Join(t.TempDir(), "absent", "optim_0.8.log")))
}

func TestFollowReturnsOnCancel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "optim_0.8.log")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := follow.Follow(ctx, []string{path}, &syncBuffer{})
	assert.NoError(t, err)
}
