// Package main provides the CLI entry point for crv, the consensus code reviewer.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/richhaase/consensus-reviewer/internal/domain"
)

var (
	concurrency     int
	stagger         time.Duration
	retries         int
	timeout         time.Duration
	baseRef         string
	fetch           bool
	noFetch         bool
	format          string
	agentCommand    string
	excludePatterns []string
	noConfig        bool
	verbose         bool
)

func main() {
	os.Exit(run())
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crv [PR URL | owner/repo#N | #N | ticket or branch]",
		Short: "Consensus code review across multiple reviewer agents",
		Long: `Run several independent reviewer agents against the same diff, merge their
findings into consensus-ranked groups, and print one report.

With no target, the current branch is reviewed against the base branch
(--base, else master, else main). A PR URL, owner/repo#N, #N or N reviews that
pull request in a temporary worktree. Any other text searches open pull
requests by ticket ID or branch name.

Exit codes:
  0 - No findings
  1 - Findings found
  2 - Error
  130 - Interrupted`,
		Args:          cobra.ArbitraryArgs,
		RunE:          runReview,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildVersionString(),
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	// Defaults are resolved via config.Resolve with precedence: flag > env > config > default
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0,
		"Max concurrent reviewers (default: 4, env: CRV_CONCURRENCY)")
	rootCmd.Flags().DurationVar(&stagger, "stagger", 0,
		"Delay between reviewer starts (default: 1500ms, env: CRV_STAGGER)")
	rootCmd.Flags().IntVarP(&retries, "retries", "R", 0,
		"Retries on host agent lock contention (default: 2, env: CRV_RETRIES)")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0,
		"Timeout per reviewer (default: 10m, env: CRV_TIMEOUT)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"Log agent attempts, retries and messages as they arrive")
	rootCmd.Flags().StringVarP(&baseRef, "base", "b", "",
		"Base branch for local reviews (default: master, else main, env: CRV_BASE_REF)")
	rootCmd.Flags().BoolVar(&fetch, "fetch", false,
		"Fetch the base branch from origin before diffing (env: CRV_FETCH)")
	rootCmd.Flags().BoolVar(&noFetch, "no-fetch", false,
		"Diff against the local base branch")
	rootCmd.Flags().StringVar(&agentCommand, "agent-command", "",
		"Host agent CLI used to run reviewers (default: pi, env: CRV_AGENT_COMMAND)")
	rootCmd.Flags().StringVarP(&format, "format", "f", "",
		"Report format: markdown or json (default: markdown, env: CRV_FORMAT)")
	rootCmd.Flags().StringArrayVar(&excludePatterns, "exclude-pattern", nil,
		"Exclude findings matching regex pattern (repeatable)")
	rootCmd.Flags().BoolVar(&noConfig, "no-config", false,
		"Skip loading .crv.yaml config file")

	setGroupedUsage(rootCmd)

	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		// Check if this is an exit code wrapper (not a real error)
		if exitErr, ok := err.(exitCodeError); ok {
			return exitErr.code.Int()
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return domain.ExitError.Int()
	}

	return 0
}
