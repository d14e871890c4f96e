package domain

import (
	"fmt"
	"time"
)

// ModelSelection identifies one reviewer agent to spawn.
type ModelSelection struct {
	Provider    string `json:"provider"`
	ModelID     string `json:"model"`
	DisplayName string `json:"display_name"`
}

// String returns the "provider/model" identifier.
func (m ModelSelection) String() string {
	return fmt.Sprintf("%s/%s", m.Provider, m.ModelID)
}

// Name returns the display name, falling back to the model ID.
func (m ModelSelection) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ModelID
}

// AgentResult is the outcome of running one model against the diff.
// A nil Output signals an execution or parse failure; Error then explains it.
type AgentResult struct {
	Model       ModelSelection `json:"model"`
	DisplayName string         `json:"display_name"`
	ExitCode    int            `json:"exit_code"`
	Output      *ReviewOutput  `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	Attempts    int            `json:"attempts"`
	Cancelled   bool           `json:"cancelled,omitempty"`
	Duration    time.Duration  `json:"duration"`
}

// Failed returns true if the agent produced no usable output.
func (r AgentResult) Failed() bool {
	return r.Output == nil
}

// ReviewStats holds statistics about the review run.
type ReviewStats struct {
	TotalAgents      int
	SuccessfulAgents int
	FailedAgents     []string
	TotalFindings    int
	WallClock        time.Duration
}

// AllFailed returns true if no agent produced output.
func (s *ReviewStats) AllFailed() bool {
	return s.TotalAgents > 0 && s.SuccessfulAgents == 0
}

// BuildStats summarizes agent results.
func BuildStats(results []AgentResult, wallClock time.Duration) ReviewStats {
	stats := ReviewStats{
		TotalAgents: len(results),
		WallClock:   wallClock,
	}
	for _, r := range results {
		if r.Failed() {
			stats.FailedAgents = append(stats.FailedAgents, r.DisplayName)
			continue
		}
		stats.SuccessfulAgents++
		stats.TotalFindings += len(r.Output.Findings)
	}
	return stats
}
