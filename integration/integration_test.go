// Package integration provides end-to-end tests for the crv binary using a
// mock host agent CLI.
//
// The tests build the real binary, put a shell-script stand-in for the host
// agent first on PATH, and run crv against a throwaway git repository. The
// mock answers --list-models with a fixed table and answers review
// invocations with a canned JSONL event stream chosen per test.
package integration

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// testEnv holds paths and state for integration test execution.
type testEnv struct {
	crvBin   string // Path to built crv binary
	mockDir  string // Directory containing the mock host CLI
	repoDir  string // Temporary git repo for test execution
	origPath string // Original PATH
	extraEnv []string
}

// setupTestEnv builds the crv binary and creates a temporary git repo whose
// feature branch changes one file relative to master.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	rootDir := findRepoRoot(t)
	crvBin := filepath.Join(t.TempDir(), "crv")
	build := exec.Command("go", "build", "-o", crvBin, "./cmd/crv")
	build.Dir = rootDir
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("failed to build crv: %v\n%s", err, out)
	}

	mockDir := filepath.Join(t.TempDir(), "mocks")
	if err := os.MkdirAll(mockDir, 0755); err != nil {
		t.Fatal(err)
	}

	return &testEnv{
		crvBin:   crvBin,
		mockDir:  mockDir,
		repoDir:  createTestRepo(t),
		origPath: os.Getenv("PATH"),
		extraEnv: []string{"CRV_STAGGER=0", "CRV_RETRY_BACKOFF=10ms"},
	}
}

// environ returns the process environment with the mock directory first on
// PATH and any CRV_* variables from the outer environment removed.
func (e *testEnv) environ() []string {
	var env []string
	for _, v := range os.Environ() {
		if strings.HasPrefix(v, "PATH=") || strings.HasPrefix(v, "CRV_") {
			continue
		}
		env = append(env, v)
	}
	env = append(env, "PATH="+e.mockDir+":"+e.origPath)
	return append(env, e.extraEnv...)
}

// run executes crv with the given args and returns stdout, stderr, and exit code.
func (e *testEnv) run(args ...string) (stdout, stderr string, exitCode int) {
	cmd := exec.Command(e.crvBin, args...)
	cmd.Dir = e.repoDir
	cmd.Env = e.environ()

	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	return outBuf.String(), errBuf.String(), exitCode
}

// findRepoRoot walks up to find the go.mod file.
func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root (no go.mod)")
		}
		dir = parent
	}
}

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

// createTestRepo creates a repo with master holding main.go and a checked-out
// feature branch that modifies it.
func createTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	git(t, dir, "init", "--initial-branch=master")
	git(t, dir, "config", "user.email", "test@test.com")
	git(t, dir, "config", "user.name", "Test")

	testFile := filepath.Join(dir, "main.go")
	if err := os.WriteFile(testFile, []byte("package main\n\nfunc main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-m", "initial")

	git(t, dir, "checkout", "-b", "feature")
	if err := os.WriteFile(testFile, []byte("package main\n\nimport \"os\"\n\nfunc main() {\n\tos.Remove(os.Args[1])\n}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-m", "delete a file")

	return dir
}

// --- Mock host agent ---

const modelTable = `provider   model
anthropic  claude-opus-4-5
anthropic  claude-sonnet-4-5
openai     gpt-5.1`

const findingAnswer = "```json\n" + `{"findings": [{"file": "main.go", "line": 6, "severity": "warning",
"category": "error-handling", "title": "Unchecked os.Remove error",
"description": "The error returned by os.Remove is ignored."}], "summary": "One unchecked error.", "score": 6}` + "\n```"

const cleanAnswer = `{"findings": [], "summary": "Looks fine.", "score": 9}`

// assistantEvents renders a JSONL stream ending with a finalized assistant
// message whose text is answer.
func assistantEvents(t *testing.T, answer string) string {
	t.Helper()
	lines := []map[string]any{
		{"type": "message_start", "message": map[string]any{"role": "assistant"}},
		{"type": "message_end", "message": map[string]any{"role": "assistant", "content": "Let me read the diff."}},
		{"type": "tool_execution_end", "toolName": "read", "result": "diff --git a/main.go b/main.go"},
		{"type": "message_end", "message": map[string]any{
			"role":    "assistant",
			"content": []map[string]string{{"type": "text", "text": answer}},
		}},
	}
	var b strings.Builder
	for _, l := range lines {
		data, err := json.Marshal(l)
		if err != nil {
			t.Fatal(err)
		}
		b.Write(data)
		b.WriteByte('\n')
	}
	return b.String()
}

// writeMockHost writes the mock `pi`. behavior runs for review invocations
// with $model set to the requested model ID.
func (e *testEnv) writeMockHost(t *testing.T, behavior string) {
	t.Helper()
	script := fmt.Sprintf(`#!/bin/sh
if [ "$1" = "--list-models" ]; then
cat <<'MODELS_EOF'
%s
MODELS_EOF
exit 0
fi
model="$8"
%s
`, modelTable, behavior)

	path := filepath.Join(e.mockDir, "pi")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
}

// answerWith returns a behavior that prints events for every model.
func answerWith(events string) string {
	return "cat <<'EVENTS_EOF'\n" + events + "EVENTS_EOF\n"
}

// --- Tests ---

func TestReview_ConsensusFindings(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, answerWith(assistantEvents(t, findingAnswer)))

	stdout, stderr, code := env.run()

	if code != 1 {
		t.Fatalf("expected exit code 1 (findings), got %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	for _, want := range []string{
		"# Consensus Code Review",
		"**3 agents** (3 succeeded)",
		"`feature` → `master` · 1 file · 1 commit",
		"### 🟡 Warning (1)",
		"Unchecked os.Remove error (3/3 agents)",
		"`main.go:6`",
		"## Agents",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("report missing %q:\n%s", want, stdout)
		}
	}
}

func TestReview_NoFindings(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, answerWith(assistantEvents(t, cleanAnswer)))

	stdout, stderr, code := env.run()

	if code != 0 {
		t.Fatalf("expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "No issues found by 3 agents.") {
		t.Errorf("expected no-issues line, got:\n%s", stdout)
	}
}

func TestReview_NoChanges(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, `echo "reviewer should not run" >&2; exit 3`)
	git(t, env.repoDir, "checkout", "master")

	stdout, stderr, code := env.run()

	if code != 0 {
		t.Fatalf("expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stderr, "No changes detected") {
		t.Errorf("expected no-changes notice, got stderr:\n%s", stderr)
	}
	if stdout != "" {
		t.Errorf("expected no report, got:\n%s", stdout)
	}
}

func TestReview_FailureContainment(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, fmt.Sprintf(`if [ "$model" = "gpt-5.1" ]; then
  echo "provider quota exceeded" >&2
  exit 4
fi
%s`, answerWith(assistantEvents(t, findingAnswer))))

	stdout, _, code := env.run()

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d\n%s", code, stdout)
	}
	for _, want := range []string{
		"(2 succeeded)",
		"**Failed agents:**",
		"exit code 4",
		"Unchecked os.Remove error (2/3 agents)",
		"| failed | - |",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("report missing %q:\n%s", want, stdout)
		}
	}
}

func TestReview_AllAgentsFail(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, answerWith(assistantEvents(t, "I reviewed it and it seems fine overall.")))

	stdout, _, code := env.run()

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "No agent produced a usable review.") {
		t.Errorf("expected all-failed line, got:\n%s", stdout)
	}
}

func TestReview_LockContentionRetried(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, fmt.Sprintf(`count_file="%s/count-$model"
n=$(cat "$count_file" 2>/dev/null || echo 0)
n=$((n+1))
echo $n > "$count_file"
if [ $n -eq 1 ]; then
  echo "Error: ELOCKED: Lock file is already being held" >&2
  exit 1
fi
%s`, env.mockDir, answerWith(assistantEvents(t, cleanAnswer))))

	stdout, stderr, code := env.run("--verbose")

	if code != 0 {
		t.Fatalf("expected exit code 0 after retries, got %d\nstdout: %s\nstderr: %s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "(3 succeeded)") {
		t.Errorf("expected every agent to succeed after retry:\n%s", stdout)
	}
}

func TestReview_JSONFormat(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, answerWith(assistantEvents(t, findingAnswer)))

	stdout, _, code := env.run("--format", "json")

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d\n%s", code, stdout)
	}
	var report struct {
		Branch   string `json:"branch"`
		Findings []struct {
			Title  string   `json:"title"`
			Agents []string `json:"agents"`
		} `json:"findings"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if len(report.Findings) != 1 || len(report.Findings[0].Agents) != 3 {
		t.Errorf("unexpected findings: %+v", report.Findings)
	}
}

func TestReview_ExcludePattern(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, answerWith(assistantEvents(t, findingAnswer)))

	stdout, _, code := env.run("--exclude-pattern", "os\\.Remove")

	if code != 0 {
		t.Fatalf("expected exit code 0 with the only finding excluded, got %d\n%s", code, stdout)
	}
}

func TestReview_ConfigFileLineUp(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, answerWith(assistantEvents(t, cleanAnswer)))

	cfg := "models:\n  primary_provider: anthropic\n  max_primary: 1\n  secondary: []\n"
	if err := os.WriteFile(filepath.Join(env.repoDir, ".crv.yaml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := env.run()

	if code != 0 {
		t.Fatalf("expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "No issues found by 1 agent.") {
		t.Errorf("expected a single reviewer, got:\n%s", stdout)
	}
}

func TestReview_HostAgentMissing(t *testing.T) {
	env := setupTestEnv(t)
	env.extraEnv = append(env.extraEnv, "CRV_AGENT_COMMAND=definitely-not-installed-pi")

	_, stderr, code := env.run()

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stderr, "not found") {
		t.Errorf("expected not-found error, got:\n%s", stderr)
	}
}

func TestReview_InvalidFormat(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, answerWith(assistantEvents(t, cleanAnswer)))

	_, stderr, code := env.run("--format", "html")

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d\nstderr: %s", code, stderr)
	}
}

func TestStop_NoReviewRunning(t *testing.T) {
	env := setupTestEnv(t)

	_, stderr, code := env.run("stop")

	if code != 0 {
		t.Fatalf("expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stderr, "No review running") {
		t.Errorf("expected no-review notice, got:\n%s", stderr)
	}
}

func TestModels(t *testing.T) {
	env := setupTestEnv(t)
	env.writeMockHost(t, "exit 0")

	stdout, stderr, code := env.run("models", "--all")

	if code != 0 {
		t.Fatalf("expected exit code 0, got %d\nstderr: %s", code, stderr)
	}
	for _, want := range []string{"Available models (3)", "Selected reviewers (3)", "anthropic/claude-opus-4-5", "openai/gpt-5.1"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("models output missing %q:\n%s", want, stdout)
		}
	}
}

func TestHelp_GroupedFlags(t *testing.T) {
	env := setupTestEnv(t)

	stdout, stderr, code := env.run("--help")

	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	out := stdout + stderr
	for _, want := range []string{"Review Settings:", "Target:", "--exclude-pattern", "Exit codes:"} {
		if !strings.Contains(out, want) {
			t.Errorf("help missing %q:\n%s", want, out)
		}
	}
}
