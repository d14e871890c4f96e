package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/richhaase/consensus-reviewer/internal/agent"
	"github.com/richhaase/consensus-reviewer/internal/consensus"
	"github.com/richhaase/consensus-reviewer/internal/domain"
	"github.com/richhaase/consensus-reviewer/internal/filter"
	"github.com/richhaase/consensus-reviewer/internal/runner"
	"github.com/richhaase/consensus-reviewer/internal/terminal"
)

// Report formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Handle identifies a running session.
type Handle struct {
	ID        string
	Input     string
	StartedAt time.Time

	cancel context.CancelFunc
}

// SessionState is either idle (nil Handle) or running.
type SessionState struct {
	Handle *Handle
}

// Running reports whether a session is in progress.
func (s SessionState) Running() bool {
	return s.Handle != nil
}

// Outcome is the result of one session.
type Outcome struct {
	Target *Target
	Models []domain.ModelSelection

	Results  []domain.AgentResult
	Findings []domain.ConsolidatedFinding
	Excluded int
	Stats    domain.ReviewStats

	// Report is the rendered report; empty when cancelled or NoChanges.
	Report string

	Cancelled bool
	NoChanges bool
}

// ExitCode maps the outcome to the process exit status.
func (o *Outcome) ExitCode() domain.ExitCode {
	switch {
	case o.Cancelled:
		return domain.ExitInterrupted
	case o.NoChanges:
		return domain.ExitNoFindings
	case o.Stats.AllFailed():
		return domain.ExitError
	case len(o.Findings) > 0:
		return domain.ExitFindings
	default:
		return domain.ExitNoFindings
	}
}

// Controller runs at most one review session at a time.
type Controller struct {
	Resolver  *Resolver
	Agent     agent.Agent
	Selection agent.SelectionPolicy
	Runner    runner.Config
	Consensus consensus.Policy
	Filter    *filter.Filter
	Format    string

	// TempDir is where session files are written; os.TempDir() if empty.
	TempDir string

	Logger *terminal.Logger

	mu    sync.Mutex
	state SessionState
}

// State returns the current session state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cancel stops the running session. It returns ErrNoActiveSession when idle.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Handle == nil {
		return ErrNoActiveSession
	}
	c.state.Handle.cancel()
	return nil
}

func (c *Controller) begin(ctx context.Context, input string) (context.Context, *Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Handle != nil {
		return nil, nil, ErrSessionActive
	}
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		ID:        uuid.New().String(),
		Input:     input,
		StartedAt: time.Now(),
		cancel:    cancel,
	}
	c.state = SessionState{Handle: h}
	return runCtx, h, nil
}

func (c *Controller) end(h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h.cancel()
	if c.state.Handle == h {
		c.state = SessionState{}
	}
}

// Start runs a full session for input and blocks until it finishes.
// Environment errors (unresolvable target, no models, unwritable temp
// files) are returned; per-agent failures are recorded in the outcome.
// Cancellation, via ctx or Cancel, yields an outcome with Cancelled set and
// no report.
func (c *Controller) Start(ctx context.Context, input string) (*Outcome, error) {
	if c.Resolver == nil || c.Agent == nil {
		return nil, fmt.Errorf("controller is missing a resolver or agent")
	}

	runCtx, h, err := c.begin(ctx, input)
	if err != nil {
		return nil, err
	}
	defer c.end(h)

	logger := c.logger()

	target, err := c.Resolver.Resolve(runCtx, input)
	if err != nil {
		if runCtx.Err() != nil {
			return &Outcome{Cancelled: true}, nil
		}
		return nil, err
	}
	defer func() {
		if err := target.Cleanup(); err != nil {
			logger.Logf(terminal.StyleWarning, "Failed to clean up worktree: %v", err)
		}
	}()

	out := &Outcome{Target: target}
	if strings.TrimSpace(target.Diff) == "" {
		out.NoChanges = true
		return out, nil
	}

	available, err := c.Agent.ListModels(runCtx)
	if err != nil {
		if runCtx.Err() != nil {
			out.Cancelled = true
			return out, nil
		}
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	models, err := agent.SelectModels(available, c.selection())
	if err != nil {
		return nil, err
	}
	out.Models = models

	files, err := agent.WriteSessionFiles(c.TempDir, target.Diff, agent.SystemPrompt)
	if err != nil {
		return nil, err
	}
	defer files.Cleanup()

	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name()
	}
	logger.Logf(terminal.StylePhase, "Reviewing %s → %s with %d agents: %s",
		target.Branch, target.BaseBranch, len(models), strings.Join(names, ", "))

	cfg := c.Runner
	cfg.WorkDir = target.WorkDir
	r, err := runner.New(cfg, c.Agent, logger)
	if err != nil {
		return nil, err
	}

	results, wallClock := r.Run(runCtx, runner.Request{
		Models:           models,
		DiffPath:         files.DiffPath,
		ChangedFiles:     target.ChangedFiles,
		SystemPromptPath: files.SystemPromptPath,
	})
	out.Results = results
	out.Stats = domain.BuildStats(results, wallClock)

	if runCtx.Err() != nil {
		out.Cancelled = true
		return out, nil
	}

	findings := consensus.Consolidate(results, c.consensusPolicy())
	out.Findings, out.Excluded = c.Filter.Apply(findings)
	if out.Excluded > 0 {
		logger.Logf(terminal.StyleDim, "Excluded %d finding(s) by pattern", out.Excluded)
	}

	report, err := c.render(runner.ReportInput{
		Results:     results,
		Findings:    out.Findings,
		Branch:      target.Branch,
		BaseBranch:  target.BaseBranch,
		FileCount:   len(target.ChangedFiles),
		CommitCount: target.CommitCount,
		TotalAgents: len(models),
	})
	if err != nil {
		return nil, err
	}
	out.Report = report

	logger.Logf(terminal.StyleSuccess, "Review finished in %s: %d/%d agents succeeded, %d finding(s)",
		terminal.FormatDuration(wallClock), out.Stats.SuccessfulAgents, out.Stats.TotalAgents, len(out.Findings))

	return out, nil
}

func (c *Controller) render(in runner.ReportInput) (string, error) {
	switch c.Format {
	case "", FormatMarkdown:
		return runner.RenderMarkdown(in), nil
	case FormatJSON:
		return runner.RenderJSON(in)
	default:
		return "", fmt.Errorf("unknown report format %q", c.Format)
	}
}

func (c *Controller) selection() agent.SelectionPolicy {
	if c.Selection.PrimaryProvider == "" && len(c.Selection.Secondary) == 0 {
		return agent.DefaultSelectionPolicy
	}
	return c.Selection
}

func (c *Controller) consensusPolicy() consensus.Policy {
	if c.Consensus == (consensus.Policy{}) {
		return consensus.DefaultPolicy
	}
	return c.Consensus
}

func (c *Controller) logger() *terminal.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return terminal.NewLogger()
}
