package agent

import (
	"context"
	"time"

	"github.com/richhaase/consensus-reviewer/internal/domain"
)

// Reviewer runs one review against a prepared diff.
type Reviewer interface {
	// Review runs a single reviewer process and returns its retained message
	// history, exit code and stderr. An error is returned only when the process
	// could not be started; a non-zero exit is reported through Invocation.
	Review(ctx context.Context, req *ReviewRequest) (*Invocation, error)
}

// Agent is a host agent runtime that can list its models and run reviews.
type Agent interface {
	Reviewer

	// Name returns the runtime's command name.
	Name() string

	// IsAvailable checks if the runtime's CLI is installed and accessible.
	IsAvailable() error

	// ListModels returns the models the runtime can currently use.
	ListModels(ctx context.Context) ([]Model, error)
}

// ReviewRequest describes one reviewer invocation.
type ReviewRequest struct {
	Model domain.ModelSelection

	// DiffPath is the patch file the reviewer reads.
	DiffPath string

	// ChangedFiles lists the files touched by the diff.
	ChangedFiles []string

	// SystemPromptPath is appended to the runtime's system prompt.
	SystemPromptPath string

	// WorkDir is the directory the reviewer runs in (repository or PR worktree).
	WorkDir string

	// OnMessage, if set, is called for every retained message as it arrives.
	OnMessage func(Message)
}

// Invocation is the outcome of one reviewer process.
type Invocation struct {
	Messages     []Message
	ExitCode     int
	Stderr       string
	DroppedLines int
	Duration     time.Duration
}

// FinalAnswer returns the reviewer's final answer text.
func (i *Invocation) FinalAnswer() string {
	if i == nil {
		return ""
	}
	return FinalAnswer(i.Messages)
}
