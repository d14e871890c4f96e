package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/richhaase/consensus-reviewer/internal/agent"
	"github.com/richhaase/consensus-reviewer/internal/domain"
	"github.com/richhaase/consensus-reviewer/internal/terminal"
)

func newModelsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Show which reviewer models a review would use",
		Long: `List the models the host agent reports and the reviewer line-up selected from
them: up to max_primary models of the primary provider plus one model per
available secondary provider.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := terminal.NewLogger()

			cfg, err := loadConfig(logger)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			resolved := resolveConfig(cmd, cfg, logger)

			host := agent.NewHostAgent(resolved.AgentCommand)
			if err := host.IsAvailable(); err != nil {
				return fmt.Errorf("%s CLI not found: %w", host.Name(), err)
			}

			stop := terminal.NewSpinner("Listing models", "Models listed", nil).Start()
			available, err := host.ListModels(context.Background())
			stop()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if all {
				printAvailable(out, available)
				fmt.Fprintln(out)
			}

			selected, err := agent.SelectModels(available, resolved.Selection)
			if err != nil {
				return err
			}
			printSelected(out, selected)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Also list every available model")
	cmd.Flags().StringVar(&agentCommand, "agent-command", "",
		"Host agent CLI to query (default: pi, env: CRV_AGENT_COMMAND)")
	cmd.Flags().BoolVar(&noConfig, "no-config", false, "Skip loading .crv.yaml config file")

	return cmd
}

func printAvailable(out io.Writer, models []agent.Model) {
	fmt.Fprintf(out, "Available models (%d):\n", len(models))
	for _, m := range models {
		fmt.Fprintf(out, "  %s/%s\n", m.Provider, m.ID)
	}
}

func printSelected(out io.Writer, models []domain.ModelSelection) {
	fmt.Fprintf(out, "Selected reviewers (%d):\n", len(models))
	for _, m := range models {
		fmt.Fprintf(out, "  %-28s %s\n", m.Name(), m.String())
	}
}
