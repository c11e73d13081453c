package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jamesainslie/optsweep/pkg/sweep/logging"
)

// ExecSpawner starts children as OS processes with stdout redirected to
// the request's log file.
type ExecSpawner struct {
	// Dir is the child's working directory. Empty means the launcher's.
	Dir string

	// Stderr receives the child's standard error. Nil discards it.
	Stderr io.Writer
}

// Spawn creates or truncates the log file, starts the program at the
// requested niceness and releases the process handle.
func (s *ExecSpawner) Spawn(_ context.Context, req Request) (int, error) {
	out, err := os.OpenFile(req.LogPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open log file: %w", err)
	}
	// The child holds its own descriptor once started.
	defer out.Close()

	cmd, err := s.command(req)
	if err != nil {
		return 0, fmt.Errorf("start %s: %w", req.Program, err)
	}
	cmd.Dir = s.Dir
	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = s.Stderr
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", req.Program, err)
	}

	// Also covers the moment before nice(1) has run, and platforms without it.
	pid := cmd.Process.Pid
	if err := setPriority(pid, req.Nice); err != nil {
		logging.Get("launcher").Warn("could not lower priority", "pid", pid, "nice", req.Nice, "error", err)
	}

	if err := cmd.Process.Release(); err != nil {
		logging.Get("launcher").Warn("release failed", "pid", pid, "error", err)
	}

	return pid, nil
}

// command builds the child command. A non-zero niceness is applied by
// exec'ing through nice(1) when it is on PATH, so threads the program
// creates at startup inherit it. exec.Command, not CommandContext: the
// child must outlive the launcher.
func (s *ExecSpawner) command(req Request) (*exec.Cmd, error) {
	if _, err := exec.LookPath(s.resolve(req.Program)); err != nil {
		return nil, err
	}

	if req.Nice != 0 {
		if nice, err := exec.LookPath("nice"); err == nil {
			args := append([]string{"-n", strconv.Itoa(req.Nice), "--", req.Program}, req.Args...)
			return exec.Command(nice, args...), nil //nolint:gosec // program path comes from configuration
		}
	}
	return exec.Command(req.Program, req.Args...), nil //nolint:gosec // program path comes from configuration
}

// resolve returns program as the child will see it from Dir.
func (s *ExecSpawner) resolve(program string) string {
	if s.Dir == "" || filepath.IsAbs(program) || !strings.ContainsRune(program, filepath.Separator) {
		return program
	}
	return filepath.Join(s.Dir, program)
}

var _ Spawner = (*ExecSpawner)(nil)
