package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/richhaase/consensus-reviewer/internal/git"
	"github.com/richhaase/consensus-reviewer/internal/session"
	"github.com/richhaase/consensus-reviewer/internal/terminal"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Cancel the review running in this repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := terminal.NewLogger()

			commonDir, err := git.GetCommonDir()
			if err != nil {
				return err
			}

			pid, err := session.StopRunning(session.PIDFilePath(commonDir))
			if errors.Is(err, session.ErrNoActiveSession) {
				logger.Log("No review running", terminal.StyleDim)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to stop review: %w", err)
			}

			logger.Logf(terminal.StyleSuccess, "Sent interrupt to review (pid %d)", pid)
			return nil
		},
	}
}
