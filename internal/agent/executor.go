package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"
)

// DefaultTerminateGrace is how long a cancelled process gets between SIGTERM and SIGKILL.
const DefaultTerminateGrace = 5 * time.Second

// executeOptions configures command execution for host agent invocations.
type executeOptions struct {
	// Command is the CLI executable name.
	Command string
	// Args are the command-line arguments.
	Args []string
	// Stdin provides input to the command. Nil means no input.
	Stdin io.Reader
	// WorkDir sets the working directory for the command.
	WorkDir string
	// Grace is the SIGTERM-to-SIGKILL delay on cancellation.
	Grace time.Duration
}

// executeCommand starts a CLI command in its own process group and returns a
// reader over its stdout.
//
// The command is deliberately not bound with exec.CommandContext: cancelling
// ctx sends SIGTERM to the whole group and escalates to SIGKILL only after
// opts.Grace, so the caller can still drain stdout and collect the exit code.
// The caller MUST Close the returned reader.
func executeCommand(ctx context.Context, opts executeOptions) (*cmdReader, error) {
	// #nosec G204 - Command is the configured host agent CLI, not user input.
	cmd := exec.Command(opts.Command, opts.Args...)

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", opts.Command, err)
	}

	grace := opts.Grace
	if grace <= 0 {
		grace = DefaultTerminateGrace
	}

	reader := &cmdReader{
		Reader: stdout,
		cmd:    cmd,
		ctx:    ctx,
		stderr: stderr,
		grace:  grace,
		exited: make(chan struct{}),
	}
	go reader.watch()

	return reader, nil
}
