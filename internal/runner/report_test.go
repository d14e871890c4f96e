package runner

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/richhaase/consensus-reviewer/internal/consensus"
	"github.com/richhaase/consensus-reviewer/internal/domain"
)

func okResult(name string, score int, summary string, findings ...domain.Finding) domain.AgentResult {
	return domain.AgentResult{
		Model:       domain.ModelSelection{Provider: "test", ModelID: name, DisplayName: name},
		DisplayName: name,
		Output:      &domain.ReviewOutput{Findings: findings, Summary: summary, Score: score},
		Attempts:    1,
	}
}

func failedResult(name, errMsg string) domain.AgentResult {
	return domain.AgentResult{
		Model:       domain.ModelSelection{Provider: "test", ModelID: name, DisplayName: name},
		DisplayName: name,
		ExitCode:    1,
		Error:       errMsg,
		Attempts:    1,
	}
}

func reportInput(results []domain.AgentResult) ReportInput {
	return ReportInput{
		Results:     results,
		Findings:    consensus.Consolidate(results, consensus.DefaultPolicy),
		Branch:      "feature/login",
		BaseBranch:  "main",
		FileCount:   2,
		CommitCount: 1,
		TotalAgents: len(results),
	}
}

func TestRenderMarkdown_Deterministic(t *testing.T) {
	in := reportInput([]domain.AgentResult{
		okResult("a", 6, "fine", domain.Finding{File: "x.go", Line: 1, Severity: domain.SeverityWarning, Title: "leak"}),
	})

	if RenderMarkdown(in) != RenderMarkdown(in) {
		t.Error("RenderMarkdown is not deterministic")
	}
}

func TestRenderMarkdown_Header(t *testing.T) {
	got := RenderMarkdown(reportInput([]domain.AgentResult{okResult("a", 8, ""), okResult("b", 9, "")}))

	for _, want := range []string{
		"**2 agents** (2 succeeded): a, b",
		"`feature/login` → `main` · 2 files · 1 commit",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestRenderMarkdown_NoIssuesFound(t *testing.T) {
	got := RenderMarkdown(reportInput([]domain.AgentResult{okResult("a", 9, "clean"), okResult("b", 10, "")}))

	if !strings.Contains(got, "No issues found by 2 agents") {
		t.Errorf("expected no-issues line:\n%s", got)
	}
	if strings.Contains(got, "## Findings") {
		t.Errorf("unexpected findings section:\n%s", got)
	}
}

func TestRenderMarkdown_AllFailed(t *testing.T) {
	got := RenderMarkdown(reportInput([]domain.AgentResult{failedResult("a", "boom")}))

	if !strings.Contains(got, "No agent produced a usable review.") {
		t.Errorf("expected all-failed line:\n%s", got)
	}
	if strings.Contains(got, "No issues found") {
		t.Errorf("all-failed run must not claim no issues:\n%s", got)
	}
}

func TestRenderMarkdown_FailureContainment(t *testing.T) {
	shared := domain.Finding{File: "auth.go", Line: 10, Severity: domain.SeverityWarning, Title: "Missing input validation"}
	results := []domain.AgentResult{
		okResult("m1", 6, "m1 summary", shared),
		okResult("m2", 7, "m2 summary", shared),
		failedResult("m3", "exit code 1: "+strings.Repeat("e", 200)),
		okResult("m4", 8, "m4 summary", domain.Finding{File: "db.go", Line: 5, Severity: domain.SeverityCritical, Title: "SQL injection"}),
	}

	got := RenderMarkdown(reportInput(results))

	if n := strings.Count(got, "Failed agents:"); n != 1 {
		t.Errorf("expected exactly one aggregated failure line, got %d:\n%s", n, got)
	}
	if !strings.Contains(got, "m3 (exit code 1: ") {
		t.Errorf("failure line should name m3:\n%s", got)
	}
	if strings.Contains(got, strings.Repeat("e", 200)) {
		t.Error("failure error should be truncated")
	}
	if !strings.Contains(got, "(3 succeeded)") {
		t.Errorf("expected 3 successful agents:\n%s", got)
	}
	if !strings.Contains(got, "Missing input validation (2/4 agents)") {
		t.Errorf("expected consensus fraction 2/4:\n%s", got)
	}
	if !strings.Contains(got, "| m3 | failed | - |") {
		t.Errorf("score table should mark m3 failed:\n%s", got)
	}
	for _, s := range []string{"**m1:** m1 summary", "**m2:** m2 summary", "**m4:** m4 summary"} {
		if !strings.Contains(got, s) {
			t.Errorf("missing summary %q", s)
		}
	}
}

func TestRenderMarkdown_SeverityBlocksKeepRankedOrder(t *testing.T) {
	findings := []domain.ConsolidatedFinding{
		{File: "b.go", Line: 2, Severity: domain.SeverityWarning, Title: "warn-high", Agents: []string{"a", "b", "c"}, ConsensusScore: 6},
		{File: "a.go", Line: 1, Severity: domain.SeverityCritical, Title: "crit", Agents: []string{"a"}, ConsensusScore: 3},
		{File: "c.go", Severity: domain.SeverityWarning, Title: "warn-low", Agents: []string{"a"}, ConsensusScore: 2, Suggestion: "fix it\nnow"},
	}
	in := ReportInput{
		Results:     []domain.AgentResult{okResult("a", 5, ""), okResult("b", 5, ""), okResult("c", 5, "")},
		Findings:    findings,
		TotalAgents: 3,
	}

	got := RenderMarkdown(in)

	critIdx := strings.Index(got, "### 🔴 Critical (1)")
	warnIdx := strings.Index(got, "### 🟡 Warning (2)")
	if critIdx < 0 || warnIdx < 0 || critIdx > warnIdx {
		t.Fatalf("severity blocks missing or out of order:\n%s", got)
	}
	if strings.Index(got, "warn-high") > strings.Index(got, "warn-low") {
		t.Error("findings within a block should keep the ranked order")
	}
	if !strings.Contains(got, "`c.go` · ") {
		t.Error("line 0 should render the file without a line number")
	}
	if !strings.Contains(got, "> **Suggestion:** fix it\n> now") {
		t.Errorf("multi-line suggestion should stay quoted:\n%s", got)
	}
	if strings.Contains(got, "Suggestion (") {
		t.Error("empty severity block should be omitted")
	}
}

func TestRenderJSON(t *testing.T) {
	results := []domain.AgentResult{
		okResult("a", 7, "fine", domain.Finding{File: "x.go", Line: 1, Severity: domain.SeverityWarning, Title: "leak"}),
		failedResult("b", "boom"),
	}

	out, err := RenderJSON(reportInput(results))
	if err != nil {
		t.Fatalf("RenderJSON() error = %v", err)
	}

	var decoded jsonReport
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if decoded.TotalAgents != 2 || len(decoded.Agents) != 2 {
		t.Errorf("agents = %+v", decoded.Agents)
	}
	if decoded.Agents[1].Error != "boom" {
		t.Errorf("failed agent error = %q", decoded.Agents[1].Error)
	}
	if len(decoded.Findings) != 1 || decoded.Findings[0].Agents[0] != "a" {
		t.Errorf("findings = %+v", decoded.Findings)
	}
}

func TestRenderJSON_EmptyFindingsIsArray(t *testing.T) {
	out, err := RenderJSON(ReportInput{Results: []domain.AgentResult{okResult("a", 9, "")}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"findings": []`) {
		t.Errorf("expected empty findings array:\n%s", out)
	}
}
