package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/richhaase/consensus-reviewer/internal/agent"
	"github.com/richhaase/consensus-reviewer/internal/config"
	"github.com/richhaase/consensus-reviewer/internal/domain"
	"github.com/richhaase/consensus-reviewer/internal/filter"
	"github.com/richhaase/consensus-reviewer/internal/git"
	"github.com/richhaase/consensus-reviewer/internal/github"
	"github.com/richhaase/consensus-reviewer/internal/session"
	"github.com/richhaase/consensus-reviewer/internal/terminal"
)

func runReview(cmd *cobra.Command, args []string) error {
	// Disable colors if stdout is not a TTY
	if !terminal.IsStdoutTTY() {
		terminal.DisableColors()
	}

	logger := terminal.NewLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repoRoot, err := git.GetRoot()
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	cfg, err := loadConfig(logger)
	if err != nil {
		logger.Logf(terminal.StyleError, "Config error: %v", err)
		return exitCode(domain.ExitError)
	}
	resolved := resolveConfig(cmd, cfg, logger)
	if errs := resolved.ValidateAll(); len(errs) > 0 {
		for _, e := range errs {
			logger.Logf(terminal.StyleError, "%s", e)
		}
		return exitCode(domain.ExitError)
	}

	excludes, err := filter.New(config.Merge(cfg, excludePatterns))
	if err != nil {
		logger.Logf(terminal.StyleError, "%v", err)
		return exitCode(domain.ExitError)
	}

	host := agent.NewHostAgent(resolved.AgentCommand)
	if err := host.IsAvailable(); err != nil {
		logger.Logf(terminal.StyleError, "%s CLI not found: %v", host.Name(), err)
		return exitCode(domain.ExitError)
	}

	input := strings.TrimSpace(strings.Join(args, " "))
	if input != "" {
		if err := github.CheckGHAvailable(); err != nil {
			logger.Logf(terminal.StyleError, "Reviewing a pull request requires the gh CLI: %v", err)
			return exitCode(domain.ExitError)
		}
	}

	pidFile, err := acquirePIDFile()
	if err != nil {
		if errors.Is(err, session.ErrSessionActive) {
			logger.Logf(terminal.StyleError, "%v; run 'crv stop' to cancel it", err)
		} else {
			logger.Logf(terminal.StyleError, "%v", err)
		}
		return exitCode(domain.ExitError)
	}
	defer pidFile.Release()

	if n, err := git.PruneStaleWorktrees(ctx, repoRoot); err != nil {
		if verbose {
			logger.Logf(terminal.StyleDim, "Could not prune stale worktrees: %v", err)
		}
	} else if n > 0 {
		logger.Logf(terminal.StyleDim, "Pruned stale review worktrees: %d", n)
	}

	ctrl := &session.Controller{
		Resolver: &session.Resolver{
			Git:     session.LocalGit{Dir: repoRoot},
			PRs:     session.GHSource{Dir: repoRoot},
			Chooser: terminal.PRChooser{Query: input},
			Base:    resolved.Base,
			Fetch:   resolved.Fetch,
			Logger:  logger,
		},
		Agent:     host,
		Selection: resolved.Selection,
		Runner:    resolved.RunnerConfig(verbose),
		Consensus: resolved.Consensus,
		Filter:    excludes,
		Format:    resolved.Format,
		Logger:    logger,
	}

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr)
			logger.Log("Interrupted, shutting down...", terminal.StyleWarning)
			_ = ctrl.Cancel()
			cancel()
		case <-ctx.Done():
		}
	}()

	return exitCode(executeReview(ctx, ctrl, input, logger))
}

func executeReview(ctx context.Context, ctrl *session.Controller, input string, logger *terminal.Logger) domain.ExitCode {
	out, err := ctrl.Start(ctx, input)
	if err != nil {
		logger.Logf(terminal.StyleError, "%s", describeError(err))
		return domain.ExitError
	}

	if out.Cancelled {
		logger.Log("Review cancelled", terminal.StyleWarning)
		return domain.ExitInterrupted
	}

	if out.NoChanges {
		logger.Logf(terminal.StyleSuccess, "No changes detected between %s and %s. Nothing to review.",
			out.Target.Branch, out.Target.BaseBranch)
		return domain.ExitNoFindings
	}

	fmt.Println(out.Report)

	if out.Stats.AllFailed() {
		logger.Log("Every reviewer failed", terminal.StyleError)
	}
	return out.ExitCode()
}

// acquirePIDFile records this process as the running review for the repository.
func acquirePIDFile() (*session.PIDFile, error) {
	commonDir, err := git.GetCommonDir()
	if err != nil {
		return nil, err
	}
	return session.AcquirePIDFile(session.PIDFilePath(commonDir))
}
