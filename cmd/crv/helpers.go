package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/richhaase/consensus-reviewer/internal/agent"
	"github.com/richhaase/consensus-reviewer/internal/config"
	"github.com/richhaase/consensus-reviewer/internal/domain"
	"github.com/richhaase/consensus-reviewer/internal/git"
	"github.com/richhaase/consensus-reviewer/internal/github"
	"github.com/richhaase/consensus-reviewer/internal/session"
	"github.com/richhaase/consensus-reviewer/internal/terminal"
)

// exitCodeError is a wrapper type for returning exit codes via error interface.
type exitCodeError struct {
	code domain.ExitCode
}

func (e exitCodeError) Error() string {
	switch e.code {
	case domain.ExitFindings:
		return "findings were reported"
	case domain.ExitError:
		return "review failed with error"
	case domain.ExitInterrupted:
		return "review was interrupted"
	default:
		return fmt.Sprintf("exit code %d", e.code)
	}
}

func exitCode(code domain.ExitCode) error {
	if code == domain.ExitNoFindings {
		return nil
	}
	return exitCodeError{code: code}
}

// describeError turns environment errors into an actionable message.
func describeError(err error) string {
	switch {
	case errors.Is(err, github.ErrAuthFailed):
		return "GitHub authentication failed. Run 'gh auth login' to authenticate."
	case errors.Is(err, session.ErrNoCandidates):
		return fmt.Sprintf("%v. Pass a PR number or URL instead.", err)
	case errors.Is(err, github.ErrNoPRFound):
		return fmt.Sprintf("Pull request not found: %v", err)
	case errors.Is(err, terminal.ErrNotInteractive):
		return fmt.Sprintf("%v; pass a PR number instead", err)
	case errors.Is(err, terminal.ErrSelectionCancelled):
		return "No pull request selected"
	case errors.Is(err, agent.ErrNoModels):
		return fmt.Sprintf("%v; check 'crv models --all' and the models section of %s", err, config.ConfigFileName)
	case errors.Is(err, git.ErrNoBaseBranch):
		return fmt.Sprintf("%v; pass --base", err)
	default:
		return err.Error()
	}
}

// loadConfig loads .crv.yaml from the repository root unless --no-config is set.
func loadConfig(logger *terminal.Logger) (*config.Config, error) {
	if noConfig {
		return &config.Config{}, nil
	}
	result, err := config.LoadWithWarnings()
	if err != nil {
		return nil, err
	}
	for _, warning := range result.Warnings {
		logger.Logf(terminal.StyleWarning, "Warning: %s", warning)
	}
	return result.Config, nil
}

// resolveConfig applies env vars and the flags explicitly set on cmd over cfg.
func resolveConfig(cmd *cobra.Command, cfg *config.Config, logger *terminal.Logger) config.ResolvedConfig {
	envState, envWarnings := config.LoadEnvState()
	for _, w := range envWarnings {
		logger.Logf(terminal.StyleWarning, "Ignoring %s", w)
	}

	flags := cmd.Flags()
	flagState := config.FlagState{
		AgentCommandSet: flags.Changed("agent-command"),
		ConcurrencySet:  flags.Changed("concurrency"),
		StaggerSet:      flags.Changed("stagger"),
		RetriesSet:      flags.Changed("retries"),
		TimeoutSet:      flags.Changed("timeout"),
		BaseSet:         flags.Changed("base"),
		FetchSet:        flags.Changed("fetch") || flags.Changed("no-fetch"),
		FormatSet:       flags.Changed("format"),
	}

	// --no-fetch wins when both are given.
	flagValues := config.ResolvedConfig{
		AgentCommand: agentCommand,
		Concurrency:  concurrency,
		Stagger:      stagger,
		Retries:      retries,
		Timeout:      timeout,
		Base:         baseRef,
		Fetch:        fetch && !noFetch,
		Format:       format,
	}

	return config.Resolve(cfg, envState, flagState, flagValues)
}
