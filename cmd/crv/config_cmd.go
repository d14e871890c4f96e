package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/richhaase/consensus-reviewer/internal/config"
	"github.com/richhaase/consensus-reviewer/internal/git"
	"github.com/richhaase/consensus-reviewer/internal/terminal"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage crv configuration",
		Long:  "View, initialize, and validate crv configuration files and environment variables.",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display resolved configuration",
		Long:  "Show the fully resolved configuration from defaults, config file, and environment variables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := config.LoadWithWarnings()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}

			envState, _ := config.LoadEnvState()
			resolved := config.Resolve(result.Config, envState, config.FlagState{}, config.ResolvedConfig{})

			printResolved(cmd.OutOrStdout(), resolved)
			return nil
		},
	}
}

func printResolved(out io.Writer, r config.ResolvedConfig) {
	base := r.Base
	if base == "" {
		base = "(detect: master, else main)"
	}

	fmt.Fprintln(out, "Resolved configuration:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-32s %s\n", "agent_command:", r.AgentCommand)
	fmt.Fprintf(out, "  %-32s %d\n", "concurrency:", r.Concurrency)
	fmt.Fprintf(out, "  %-32s %s\n", "stagger:", r.Stagger)
	fmt.Fprintf(out, "  %-32s %d\n", "retries:", r.Retries)
	fmt.Fprintf(out, "  %-32s %s\n", "retry_backoff:", r.RetryBackoff)
	fmt.Fprintf(out, "  %-32s %s\n", "timeout:", r.Timeout)
	fmt.Fprintf(out, "  %-32s %s\n", "base:", base)
	fmt.Fprintf(out, "  %-32s %t\n", "fetch:", r.Fetch)
	fmt.Fprintf(out, "  %-32s %s\n", "format:", r.Format)
	fmt.Fprintf(out, "  %-32s %s\n", "models.primary_provider:", r.Selection.PrimaryProvider)
	fmt.Fprintf(out, "  %-32s %s\n", "models.preferred:", strings.Join(r.Selection.Preferred, ", "))
	fmt.Fprintf(out, "  %-32s %d\n", "models.max_primary:", r.Selection.MaxPrimary)
	for _, s := range r.Selection.Secondary {
		fmt.Fprintf(out, "  %-32s %s (%s)\n", "models.secondary:", s.Provider, strings.Join(s.Preferred, ", "))
	}
	fmt.Fprintf(out, "  %-32s %g\n", "consensus.similarity_threshold:", r.Consensus.SimilarityThreshold)
	fmt.Fprintf(out, "  %-32s %d\n", "consensus.line_window:", r.Consensus.LineWindow)
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate a starter .crv.yaml file",
		Long:  "Create a commented .crv.yaml configuration file in the git repository root.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Write to git repo root (same location runtime loading uses)
			repoRoot, err := git.GetRoot()
			if err != nil {
				return err
			}
			configPath := filepath.Join(repoRoot, config.ConfigFileName)

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists; remove it first or edit it directly", configPath)
			}

			if err := os.WriteFile(configPath, []byte(config.StarterFile), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", configPath, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s with default settings (commented out).\n", configPath)
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and environment variables",
		Long:  "Load and validate the config file and environment variables, reporting any warnings or errors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !terminal.IsStdoutTTY() {
				terminal.DisableColors()
			}
			logger := terminal.NewLogger()
			var errs []string
			var warnings []string

			// Keep going after a config file error so env var issues are also reported
			cfg := &config.Config{}
			configFileError := false
			result, err := config.LoadWithWarnings()
			if err != nil {
				errs = append(errs, fmt.Sprintf("config file: %v", err))
				configFileError = true
			}
			if result != nil {
				cfg = result.Config
				warnings = append(warnings, result.Warnings...)
			}

			// Unparseable env vars are ignored at runtime but count as errors here.
			envState, envWarnings := config.LoadEnvState()
			errs = append(errs, envWarnings...)

			if configFileError {
				cfg = &config.Config{}
			}
			resolved := config.Resolve(cfg, envState, config.FlagState{}, config.ResolvedConfig{})
			errs = append(errs, resolved.ValidateAll()...)

			for _, w := range warnings {
				logger.Logf(terminal.StyleWarning, "Config: %s", w)
			}
			for _, e := range errs {
				logger.Logf(terminal.StyleError, "%s", e)
			}

			if len(errs) > 0 {
				return fmt.Errorf("configuration has %d error(s)", len(errs))
			}

			if len(warnings) > 0 {
				logger.Log("Configuration is valid (with warnings).", terminal.StyleSuccess)
			} else {
				logger.Log("Configuration is valid.", terminal.StyleSuccess)
			}

			return nil
		},
	}
}
