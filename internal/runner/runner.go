// Package runner executes analyser builds with workspace bounds,
// timeouts, and output size limits.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// DrainTimeout bounds how long Run keeps reading output after a
// timed-out process has been killed.
const DrainTimeout = 2 * time.Second

// Runner executes commands within a workspace boundary.
type Runner struct {
	Workspace string
	Timeout   time.Duration
	MaxOutput int // bytes per stream
}

// Run executes a command with the given argv. The first element is the
// binary (a path, or a name resolved via PATH), and the rest are
// arguments. cwd is resolved relative to the workspace root and must
// remain within it.
//
// A run that exceeds the timeout is killed and reported with TimedOut
// set rather than as an error. Errors are returned only when the command
// could not be started or ctx was cancelled by the caller.
func (r *Runner) Run(ctx context.Context, argv []string, cwd string) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	dir, err := r.resolveDir(cwd)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if r.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = DrainTimeout

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitWriter{buf: &stdout, limit: r.MaxOutput}
	cmd.Stderr = &limitWriter{buf: &stderr, limit: r.MaxOutput}

	runErr := cmd.Run()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	timedOut := runErr != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)

	if runErr != nil && cmd.ProcessState == nil {
		// Binary not found or other start error.
		return nil, fmt.Errorf("executing %s: %w", argv[0], runErr)
	}

	return &Result{
		RunID:     uuid.New().String(),
		ExitCode:  exitCode(cmd.ProcessState),
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: r.MaxOutput > 0 && (stdout.Len() >= r.MaxOutput || stderr.Len() >= r.MaxOutput),
		TimedOut:  timedOut,
	}, nil
}

// exitCode reports the process exit status, using the negated signal
// number for processes terminated by a signal.
func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return state.ExitCode()
}

// resolveDir resolves cwd relative to the workspace and validates it
// is within the workspace boundary.
func (r *Runner) resolveDir(cwd string) (string, error) {
	if cwd == "" {
		return r.Workspace, nil
	}

	var dir string
	if filepath.IsAbs(cwd) {
		dir = filepath.Clean(cwd)
	} else {
		dir = filepath.Clean(filepath.Join(r.Workspace, cwd))
	}

	rel, err := filepath.Rel(r.Workspace, dir)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cwd %q is outside workspace %q", cwd, r.Workspace)
	}
	return dir, nil
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
// A limit <= 0 disables the cap.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
