// Package runner provides the review execution engine.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richhaase/consensus-reviewer/internal/agent"
	"github.com/richhaase/consensus-reviewer/internal/domain"
	"github.com/richhaase/consensus-reviewer/internal/terminal"
)

// Defaults for the review fan-out.
const (
	DefaultConcurrency  = 4
	DefaultStagger      = 1500 * time.Millisecond
	DefaultAttempts     = 3
	DefaultRetryBackoff = 3000 * time.Millisecond
	DefaultTimeout      = 10 * time.Minute
)

// CancelledError is the error recorded for reviewers that never ran or were
// stopped by cancellation without producing output.
const CancelledError = "Cancelled"

// maxStderrInError bounds how much stderr is copied into an agent error.
const maxStderrInError = 300

// Config holds the runner configuration.
type Config struct {
	Concurrency  int
	Stagger      time.Duration
	Attempts     int
	RetryBackoff time.Duration
	Timeout      time.Duration
	WorkDir      string
	Verbose      bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Concurrency:  DefaultConcurrency,
		Stagger:      DefaultStagger,
		Attempts:     DefaultAttempts,
		RetryBackoff: DefaultRetryBackoff,
		Timeout:      DefaultTimeout,
	}
}

// Request describes one fan-out across the selected models.
type Request struct {
	Models           []domain.ModelSelection
	DiffPath         string
	ChangedFiles     []string
	SystemPromptPath string
}

// Runner executes parallel code reviews, one reviewer per model.
type Runner struct {
	config   Config
	reviewer agent.Reviewer
	logger   *terminal.Logger
	progress *terminal.Progress
}

// New creates a new runner that invokes reviewer once per selected model.
func New(config Config, reviewer agent.Reviewer, logger *terminal.Logger) (*Runner, error) {
	if reviewer == nil {
		return nil, fmt.Errorf("a reviewer is required")
	}
	if logger == nil {
		logger = terminal.NewLogger()
	}
	return &Runner{
		config:   config,
		reviewer: reviewer,
		logger:   logger,
		progress: terminal.NewProgress(0),
	}, nil
}

// Progress returns the counters of the current or last Run.
func (r *Runner) Progress() *terminal.Progress {
	return r.progress
}

// Run reviews the diff with every model and returns one result per model in
// model order. Per-agent failures are recorded in the results, never returned.
// Once ctx is done, reviewers that have not started resolve to a cancelled
// placeholder and running reviewers are terminated; Run still waits for them.
func (r *Runner) Run(ctx context.Context, req Request) ([]domain.AgentResult, time.Duration) {
	r.progress = terminal.NewProgress(len(req.Models))
	stopSpinner := terminal.NewSpinner("Running reviewers", "Reviewers complete", r.progress).Start()

	start := time.Now()

	results := Map(ctx, req.Models,
		PoolOptions{Concurrency: r.concurrency(), Stagger: r.config.Stagger},
		func(ctx context.Context, _ int, model domain.ModelSelection) domain.AgentResult {
			result := r.runReviewerWithRetry(ctx, req, model)
			r.progress.Finish(!result.Failed())
			return result
		},
		func(_ int, model domain.ModelSelection) domain.AgentResult {
			return cancelledResult(model)
		},
	)

	stopSpinner()

	return results, time.Since(start)
}

func (r *Runner) concurrency() int {
	if r.config.Concurrency > 0 {
		return r.config.Concurrency
	}
	return DefaultConcurrency
}

// attempt is the outcome of one reviewer process.
type attempt struct {
	inv      *agent.Invocation
	err      error
	timedOut bool
}

func (r *Runner) runReviewerWithRetry(ctx context.Context, req Request, model domain.ModelSelection) domain.AgentResult {
	start := time.Now()

	policy := RetryPolicy[attempt]{
		Attempts: r.config.Attempts,
		ShouldRetry: func(a attempt) bool {
			return a.err == nil && !a.timedOut && agent.IsLockContention(a.inv.ExitCode, a.inv.Stderr)
		},
		Backoff: LinearBackoff(r.config.RetryBackoff),
		OnRetry: func(n int, _ attempt, delay time.Duration) {
			r.logger.Logf(terminal.StyleWarning, "%s hit a lock file, retry %d/%d in %v",
				model.Name(), n, max(1, r.config.Attempts)-1, delay)
		},
	}

	last, attempts := Retry(ctx, policy, func(ctx context.Context, _ int) attempt {
		return r.runReviewer(ctx, req, model)
	})

	result := r.toResult(ctx, model, last)
	result.Attempts = attempts
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) runReviewer(ctx context.Context, req Request, model domain.ModelSelection) attempt {
	reviewCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		reviewCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	reviewReq := &agent.ReviewRequest{
		Model:            model,
		DiffPath:         req.DiffPath,
		ChangedFiles:     req.ChangedFiles,
		SystemPromptPath: req.SystemPromptPath,
		WorkDir:          r.config.WorkDir,
	}
	if r.config.Verbose {
		reviewReq.OnMessage = r.verboseLogger(model)
	}

	inv, err := r.reviewer.Review(reviewCtx, reviewReq)
	return attempt{
		inv:      inv,
		err:      err,
		timedOut: errors.Is(reviewCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil,
	}
}

// toResult classifies an attempt. Output from a cancelled run is still parsed;
// the controller decides whether to use it.
func (r *Runner) toResult(ctx context.Context, model domain.ModelSelection, a attempt) domain.AgentResult {
	result := domain.AgentResult{
		Model:       model,
		DisplayName: model.Name(),
		Cancelled:   ctx.Err() != nil,
	}

	if a.err != nil {
		result.ExitCode = -1
		result.Error = fmt.Sprintf("failed to start reviewer: %v", a.err)
		return result
	}

	result.ExitCode = a.inv.ExitCode

	if result.Cancelled {
		if out, err := agent.ParseReviewOutput(a.inv.FinalAnswer()); err == nil {
			result.Output = out
		} else {
			result.Error = CancelledError
		}
		return result
	}

	switch {
	case a.timedOut:
		result.Error = fmt.Sprintf("timed out after %s", terminal.FormatDuration(r.config.Timeout))
	case a.inv.ExitCode != 0:
		result.Error = exitError(a.inv)
	default:
		out, err := agent.ParseReviewOutput(a.inv.FinalAnswer())
		if err != nil {
			result.Error = err.Error()
			break
		}
		result.Output = out
	}

	if result.Error != "" && a.inv.DroppedLines > 0 && r.config.Verbose {
		r.logger.Logf(terminal.StyleDim, "%s: %d malformed output lines dropped", model.Name(), a.inv.DroppedLines)
	}

	return result
}

func exitError(inv *agent.Invocation) string {
	msg := fmt.Sprintf("exit code %d", inv.ExitCode)
	stderr := strings.TrimSpace(inv.Stderr)
	if stderr == "" {
		return msg
	}
	if len(stderr) > maxStderrInError {
		stderr = stderr[len(stderr)-maxStderrInError:]
	}
	return msg + ": " + stderr
}

func cancelledResult(model domain.ModelSelection) domain.AgentResult {
	return domain.AgentResult{
		Model:       model,
		DisplayName: model.Name(),
		ExitCode:    -1,
		Error:       CancelledError,
		Cancelled:   true,
	}
}

// verboseLogger streams tool activity and assistant text for one reviewer.
func (r *Runner) verboseLogger(model domain.ModelSelection) func(agent.Message) {
	return func(msg agent.Message) {
		text := strings.Join(strings.Fields(msg.Text), " ")
		if len(text) > 120 {
			text = text[:120] + "..."
		}
		label := msg.Role
		if msg.ToolName != "" {
			label = msg.ToolName
		}
		r.logger.Logf(terminal.StyleDim, "%s%s:%s [%s] %s",
			terminal.Color(terminal.Dim), model.Name(), terminal.Color(terminal.Reset), label, text)
	}
}
