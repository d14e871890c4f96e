package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/richhaase/consensus-reviewer/internal/domain"
	"github.com/richhaase/consensus-reviewer/internal/terminal"
)

// maxErrorLength bounds each failed agent's error in the warning line.
const maxErrorLength = 120

// ReportInput is everything the report renderers need.
type ReportInput struct {
	Results     []domain.AgentResult
	Findings    []domain.ConsolidatedFinding
	Branch      string
	BaseBranch  string
	FileCount   int
	CommitCount int
	TotalAgents int
}

func (in ReportInput) totalAgents() int {
	if in.TotalAgents > 0 {
		return in.TotalAgents
	}
	return len(in.Results)
}

var severityHeadings = map[domain.Severity]string{
	domain.SeverityCritical:   "🔴 Critical",
	domain.SeverityWarning:    "🟡 Warning",
	domain.SeveritySuggestion: "🔵 Suggestion",
}

// RenderMarkdown renders the review report. It is a pure function of in.
func RenderMarkdown(in ReportInput) string {
	var lines []string
	total := in.totalAgents()
	stats := domain.BuildStats(in.Results, 0)

	lines = append(lines, "# Consensus Code Review")
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("**%d %s** (%d succeeded): %s",
		total, plural(total, "agent", "agents"), stats.SuccessfulAgents, agentNames(in.Results)))
	lines = append(lines, fmt.Sprintf("**Branch:** `%s` → `%s` · %d %s · %d %s",
		in.Branch, in.BaseBranch,
		in.FileCount, plural(in.FileCount, "file", "files"),
		in.CommitCount, plural(in.CommitCount, "commit", "commits")))

	if failures := failureLine(in.Results); failures != "" {
		lines = append(lines, "")
		lines = append(lines, failures)
	}

	lines = append(lines, "")
	switch {
	case stats.AllFailed():
		lines = append(lines, "No agent produced a usable review.")
	case len(in.Findings) == 0:
		lines = append(lines, fmt.Sprintf("✅ No issues found by %d %s.",
			stats.SuccessfulAgents, plural(stats.SuccessfulAgents, "agent", "agents")))
	default:
		lines = append(lines, fmt.Sprintf("## Findings (%d)", len(in.Findings)))
		lines = append(lines, renderFindings(in.Findings, total)...)
	}

	lines = append(lines, "")
	lines = append(lines, renderScoreTable(in.Results)...)

	if summaries := renderSummaries(in.Results); len(summaries) > 0 {
		lines = append(lines, "")
		lines = append(lines, summaries...)
	}

	return strings.Join(lines, "\n") + "\n"
}

// renderFindings emits one block per severity, keeping the ranked order.
func renderFindings(findings []domain.ConsolidatedFinding, total int) []string {
	var lines []string
	n := 0

	for _, sev := range domain.Severities {
		var block []domain.ConsolidatedFinding
		for _, f := range findings {
			if f.Severity == sev {
				block = append(block, f)
			}
		}
		if len(block) == 0 {
			continue
		}

		lines = append(lines, "")
		lines = append(lines, fmt.Sprintf("### %s (%d)", severityHeadings[sev], len(block)))

		for _, f := range block {
			n++
			lines = append(lines, "")
			lines = append(lines, fmt.Sprintf("#### %d. %s (%d/%d agents)", n, f.Title, len(f.Agents), total))
			lines = append(lines, fmt.Sprintf("`%s` · %s · %s", location(f), f.Category, strings.Join(f.Agents, ", ")))
			if f.Description != "" {
				lines = append(lines, "")
				lines = append(lines, f.Description)
			}
			if f.Suggestion != "" {
				lines = append(lines, "")
				lines = append(lines, "> **Suggestion:** "+strings.ReplaceAll(f.Suggestion, "\n", "\n> "))
			}
		}
	}

	return lines
}

func renderScoreTable(results []domain.AgentResult) []string {
	lines := []string{
		"## Agents",
		"",
		"| Agent | Score | Findings |",
		"|---|---|---|",
	}
	for _, r := range results {
		if r.Failed() {
			lines = append(lines, fmt.Sprintf("| %s | failed | - |", r.DisplayName))
			continue
		}
		lines = append(lines, fmt.Sprintf("| %s | %d/10 | %d |", r.DisplayName, r.Output.Score, len(r.Output.Findings)))
	}
	return lines
}

func renderSummaries(results []domain.AgentResult) []string {
	var parts []string
	for _, r := range results {
		if r.Failed() || strings.TrimSpace(r.Output.Summary) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("**%s:** %s", r.DisplayName, strings.TrimSpace(r.Output.Summary)))
	}
	if len(parts) == 0 {
		return nil
	}
	return []string{"## Summaries", "", strings.Join(parts, "\n\n")}
}

// failureLine aggregates all failed agents into a single warning line.
func failureLine(results []domain.AgentResult) string {
	var parts []string
	for _, r := range results {
		if !r.Failed() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", r.DisplayName, terminal.Truncate(oneLine(r.Error), maxErrorLength)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "> ⚠️ **Failed agents:** " + strings.Join(parts, "; ")
}

func agentNames(results []domain.AgentResult) string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.DisplayName
	}
	return strings.Join(names, ", ")
}

func location(f domain.ConsolidatedFinding) string {
	if f.Line > 0 {
		return fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	return f.File
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// jsonReport is the machine-readable report shape.
type jsonReport struct {
	Branch      string                       `json:"branch"`
	BaseBranch  string                       `json:"base_branch"`
	FileCount   int                          `json:"file_count"`
	CommitCount int                          `json:"commit_count"`
	TotalAgents int                          `json:"total_agents"`
	Agents      []jsonAgent                  `json:"agents"`
	Findings    []domain.ConsolidatedFinding `json:"findings"`
}

type jsonAgent struct {
	Name     string `json:"name"`
	Model    string `json:"model"`
	Score    int    `json:"score,omitempty"`
	Findings int    `json:"findings"`
	Summary  string `json:"summary,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RenderJSON renders the same data as RenderMarkdown as indented JSON.
func RenderJSON(in ReportInput) (string, error) {
	report := jsonReport{
		Branch:      in.Branch,
		BaseBranch:  in.BaseBranch,
		FileCount:   in.FileCount,
		CommitCount: in.CommitCount,
		TotalAgents: in.totalAgents(),
		Agents:      make([]jsonAgent, 0, len(in.Results)),
		Findings:    in.Findings,
	}
	if report.Findings == nil {
		report.Findings = []domain.ConsolidatedFinding{}
	}

	for _, r := range in.Results {
		a := jsonAgent{Name: r.DisplayName, Model: r.Model.String(), Error: r.Error}
		if !r.Failed() {
			a.Score = r.Output.Score
			a.Findings = len(r.Output.Findings)
			a.Summary = r.Output.Summary
		}
		report.Agents = append(report.Agents, a)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	return string(data) + "\n", nil
}
