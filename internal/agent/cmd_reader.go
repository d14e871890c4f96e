package agent

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// cmdReader wraps a process's stdout and owns the process lifecycle: it waits
// on the process when closed and terminates it when its context is cancelled.
type cmdReader struct {
	io.Reader
	cmd        *exec.Cmd
	ctx        context.Context
	stderr     *bytes.Buffer
	grace      time.Duration
	exitCode   int
	closeOnce  sync.Once
	exited     chan struct{}
	terminated atomic.Bool
}

// watch terminates the process group when ctx is cancelled: SIGTERM first,
// SIGKILL if the process is still running after the grace period.
func (r *cmdReader) watch() {
	if r.ctx == nil || r.cmd == nil || r.cmd.Process == nil {
		return
	}

	select {
	case <-r.exited:
		return
	case <-r.ctx.Done():
	}

	// Negative PID signals the whole process group.
	pid := r.cmd.Process.Pid
	r.terminated.Store(true)
	_ = syscall.Kill(-pid, syscall.SIGTERM)

	timer := time.NewTimer(r.grace)
	defer timer.Stop()

	select {
	case <-r.exited:
	case <-timer.C:
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
}

// Close waits for the command to complete and records its exit code.
// Safe for concurrent calls - only the first call performs cleanup.
func (r *cmdReader) Close() error {
	r.closeOnce.Do(func() {
		if closer, ok := r.Reader.(io.Closer); ok {
			_ = closer.Close()
		}

		if r.cmd != nil && r.cmd.Process != nil {
			err := r.cmd.Wait()
			if err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					r.exitCode = exitErr.ExitCode()
				} else {
					r.exitCode = -1
				}
			}
		}

		if r.exited != nil {
			close(r.exited)
		}
	})

	return nil
}

// ExitCode returns the process exit code. Only valid after Close().
// A process killed by a signal reports -1.
func (r *cmdReader) ExitCode() int {
	return r.exitCode
}

// Stderr returns captured stderr output. Only valid after Close().
func (r *cmdReader) Stderr() string {
	if r.stderr == nil {
		return ""
	}
	return r.stderr.String()
}

// Terminated reports whether the process was signalled because of cancellation.
func (r *cmdReader) Terminated() bool {
	return r.terminated.Load()
}
