package agent

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommand is the host agent CLI used when none is configured.
const DefaultCommand = "pi"

// ReadOnlyTools is the tool allowlist given to reviewers.
var ReadOnlyTools = []string{"read", "grep", "find", "ls", "bash"}

// Compile-time interface check
var _ Agent = (*HostAgent)(nil)

// HostAgent implements Agent by shelling out to the host agent CLI in
// non-interactive JSON mode.
type HostAgent struct {
	command string

	// TerminateGrace overrides DefaultTerminateGrace when positive.
	TerminateGrace time.Duration
}

// NewHostAgent creates a HostAgent for the given CLI command.
// An empty command selects DefaultCommand.
func NewHostAgent(command string) *HostAgent {
	if command == "" {
		command = DefaultCommand
	}
	return &HostAgent{command: command}
}

// Name returns the host CLI command.
func (h *HostAgent) Name() string {
	return h.command
}

// IsAvailable checks if the host CLI is installed and accessible.
func (h *HostAgent) IsAvailable() error {
	if _, err := exec.LookPath(h.command); err != nil {
		return fmt.Errorf("%s CLI not found in PATH: %w", h.command, err)
	}
	return nil
}

// ListModels runs `<command> --list-models` and parses its table output.
func (h *HostAgent) ListModels(ctx context.Context) ([]Model, error) {
	if err := h.IsAvailable(); err != nil {
		return nil, err
	}

	// #nosec G204 - command is the configured host agent CLI
	cmd := exec.CommandContext(ctx, h.command, "--list-models")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
				return nil, fmt.Errorf("failed to list models: %s", msg)
			}
		}
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	return ParseModelList(string(out)), nil
}

// Review runs one reviewer process and collects its retained message history.
// The returned Invocation is complete even when ctx was cancelled mid-run.
func (h *HostAgent) Review(ctx context.Context, req *ReviewRequest) (*Invocation, error) {
	start := time.Now()

	proc, err := executeCommand(ctx, executeOptions{
		Command: h.command,
		Args:    reviewArgs(req),
		WorkDir: req.WorkDir,
		Grace:   h.TerminateGrace,
	})
	if err != nil {
		return nil, err
	}

	messages, dropped, readErr := ReadMessages(proc, req.OnMessage)
	_ = proc.Close()

	inv := &Invocation{
		Messages:     messages,
		ExitCode:     proc.ExitCode(),
		Stderr:       proc.Stderr(),
		DroppedLines: dropped,
		Duration:     time.Since(start),
	}
	if readErr != nil {
		inv.Stderr = strings.TrimSpace(inv.Stderr + "\nfailed to read output: " + readErr.Error())
		if inv.ExitCode == 0 {
			inv.ExitCode = -1
		}
	}

	return inv, nil
}

// reviewArgs builds the host CLI arguments for one review.
func reviewArgs(req *ReviewRequest) []string {
	return []string{
		"--mode", "json",
		"--print",
		"--no-session",
		"--provider", req.Model.Provider,
		"--model", req.Model.ModelID,
		"--tools", strings.Join(ReadOnlyTools, ","),
		"--append-system-prompt", req.SystemPromptPath,
		BuildInstruction(req.DiffPath, req.ChangedFiles),
	}
}
