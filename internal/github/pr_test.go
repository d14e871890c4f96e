package github

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubGH replaces the gh executable with a shell script for the test.
func stubGH(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0700); err != nil {
		t.Fatalf("failed to write gh stub: %v", err)
	}
	orig := ghCommand
	ghCommand = path
	t.Cleanup(func() { ghCommand = orig })
}

func TestParsePRViewJSON(t *testing.T) {
	data := []byte(`{
		"number": 42,
		"title": "Add login",
		"headRefName": "feature/login",
		"baseRefName": "main",
		"url": "https://github.com/o/r/pull/42",
		"author": {"login": "alice"},
		"commits": [{"oid": "a"}, {"oid": "b"}],
		"files": [{"path": "auth.ts", "additions": 3}, {"path": "db.ts"}]
	}`)

	pr, err := parsePRViewJSON(data)
	if err != nil {
		t.Fatalf("parsePRViewJSON() error = %v", err)
	}
	if pr.Number != 42 || pr.HeadRefName != "feature/login" || pr.BaseRefName != "main" {
		t.Errorf("unexpected PR: %+v", pr)
	}
	if pr.Author.Login != "alice" {
		t.Errorf("Author = %q", pr.Author.Login)
	}
	if pr.CommitCount != 2 {
		t.Errorf("CommitCount = %d, want 2", pr.CommitCount)
	}
	if strings.Join(pr.Files, ",") != "auth.ts,db.ts" {
		t.Errorf("Files = %v", pr.Files)
	}
}

func TestParsePRViewJSON_Invalid(t *testing.T) {
	if _, err := parsePRViewJSON([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestViewPR_WithRepo(t *testing.T) {
	stubGH(t, `echo "$@" >&2
[ "$4" = "-R" ] && [ "$5" = "o/r" ] || { echo "missing repo flag: $*" >&2; exit 1; }
echo '{"number": 9, "headRefName": "fix", "baseRefName": "main", "commits": [{}], "files": []}'`)

	pr, err := ViewPR(context.Background(), "", PRRef{Owner: "o", Name: "r", Number: 9})
	if err != nil {
		t.Fatalf("ViewPR() error = %v", err)
	}
	if pr.Number != 9 || pr.CommitCount != 1 {
		t.Errorf("unexpected PR: %+v", pr)
	}
}

func TestViewPR_NotFound(t *testing.T) {
	stubGH(t, `echo 'no pull requests found for branch "x"' >&2; exit 1`)

	_, err := ViewPR(context.Background(), "", PRRef{Number: 1})
	if !errors.Is(err, ErrNoPRFound) {
		t.Errorf("ViewPR() error = %v, want ErrNoPRFound", err)
	}
}

func TestPRDiff(t *testing.T) {
	stubGH(t, `[ "$1 $2 $3" = "pr diff 12" ] || exit 3
printf 'diff --git a/x b/x\n'`)

	diff, err := PRDiff(context.Background(), "", PRRef{Number: 12})
	if err != nil {
		t.Fatalf("PRDiff() error = %v", err)
	}
	if diff != "diff --git a/x b/x\n" {
		t.Errorf("PRDiff() = %q", diff)
	}
}

func TestSearchPRs(t *testing.T) {
	stubGH(t, `echo '[
  {"number": 1, "title": "PROJ-12 add cache", "headRefName": "cache"},
  {"number": 2, "title": "Refactor", "headRefName": "proj-12-followup"},
  {"number": 3, "title": "Docs", "headRefName": "docs"}
]'`)

	prs, err := SearchPRs(context.Background(), "", "PROJ-12")
	if err != nil {
		t.Fatalf("SearchPRs() error = %v", err)
	}
	if len(prs) != 2 || prs[0].Number != 1 || prs[1].Number != 2 {
		t.Errorf("SearchPRs() = %+v", prs)
	}
}

func TestSearchPRs_AuthFailure(t *testing.T) {
	stubGH(t, `echo 'HTTP 401: Bad credentials' >&2; exit 1`)

	_, err := SearchPRs(context.Background(), "", "x")
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("SearchPRs() error = %v, want ErrAuthFailed", err)
	}
}

func TestMatchPRs(t *testing.T) {
	pr := func(n int, title, head, author string) PullRequest {
		p := PullRequest{Number: n, Title: title, HeadRefName: head}
		p.Author.Login = author
		return p
	}
	prs := []PullRequest{
		pr(1, "Login flow", "feature/login", "alice"),
		pr(2, "Login flow v2", "feature/login-v2", "bob"),
		pr(3, "ABC-7: fix crash", "bugfix", "alice"),
		pr(4, "Login flow", "feature/login", "carol"),
	}

	numbers := func(got []PullRequest) []int {
		var out []int
		for _, p := range got {
			out = append(out, p.Number)
		}
		return out
	}

	tests := []struct {
		query string
		want  []int
	}{
		{"feature/login", []int{1, 4}},
		{"login", []int{1, 2, 4}},
		{"abc-7", []int{3}},
		{"bob:feature/login-v2", []int{2}},
		{"carol:feature/login", []int{4}},
		{"nobody:feature/login", nil},
		{"unrelated", nil},
		{"   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := numbers(MatchPRs(prs, tt.query))
			if len(got) != len(tt.want) {
				t.Fatalf("MatchPRs(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("MatchPRs(%q) = %v, want %v", tt.query, got, tt.want)
				}
			}
		})
	}
}

func TestParseForkNotation(t *testing.T) {
	tests := []struct {
		input      string
		wantUser   string
		wantBranch string
		wantOK     bool
	}{
		{"alice:feature/x", "alice", "feature/x", true},
		{"alice:", "", "", false},
		{":branch", "", "", false},
		{"no-colon", "", "", false},
		{"https://github.com/o/r/pull/1", "", "", false},
		{"a b:branch", "", "", false},
	}

	for _, tt := range tests {
		user, branch, ok := ParseForkNotation(tt.input)
		if user != tt.wantUser || branch != tt.wantBranch || ok != tt.wantOK {
			t.Errorf("ParseForkNotation(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.input, user, branch, ok, tt.wantUser, tt.wantBranch, tt.wantOK)
		}
	}
}

func TestClassifyGHError_NonExitError(t *testing.T) {
	err := classifyGHError(errors.New("exec: not found"))
	if err == nil || errors.Is(err, ErrNoPRFound) || errors.Is(err, ErrAuthFailed) {
		t.Errorf("classifyGHError() = %v", err)
	}
}
