// Package github provides GitHub pull request lookups via the gh CLI.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoPRFound indicates no pull request matched.
var ErrNoPRFound = errors.New("no pull request found")

// ErrAuthFailed indicates GitHub authentication failed.
var ErrAuthFailed = errors.New("GitHub authentication failed")

// ghCommand is the gh executable; tests point it at a stub.
var ghCommand = "gh"

// searchLimit caps how many open PRs are scanned by SearchPRs.
const searchLimit = 200

const prFields = "number,title,headRefName,baseRefName,url,author"

// PullRequest is the subset of PR metadata the reviewer needs.
type PullRequest struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	HeadRefName string `json:"headRefName"`
	BaseRefName string `json:"baseRefName"`
	URL         string `json:"url"`
	Author      struct {
		Login string `json:"login"`
	} `json:"author"`

	// CommitCount and Files are only populated by ViewPR.
	CommitCount int      `json:"-"`
	Files       []string `json:"-"`
}

// prViewResponse is gh pr view's JSON with the list fields we only count or flatten.
type prViewResponse struct {
	PullRequest
	Commits  []json.RawMessage `json:"commits"`
	FileList []struct {
		Path string `json:"path"`
	} `json:"files"`
}

// parsePRViewJSON parses the JSON output from gh pr view.
func parsePRViewJSON(data []byte) (*PullRequest, error) {
	var resp prViewResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse PR view response: %w", err)
	}
	pr := resp.PullRequest
	pr.CommitCount = len(resp.Commits)
	for _, f := range resp.FileList {
		pr.Files = append(pr.Files, f.Path)
	}
	return &pr, nil
}

func gh(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, ghCommand, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, classifyGHError(err)
	}
	return out, nil
}

// repoArgs scopes a gh command to ref's repository when it names one.
func repoArgs(ref PRRef) []string {
	if ref.Repo() == "" {
		return nil
	}
	return []string{"-R", ref.Repo()}
}

// ViewPR returns metadata, commit count and changed files for a PR.
// Returns ErrNoPRFound if no PR exists, ErrAuthFailed if authentication failed.
func ViewPR(ctx context.Context, dir string, ref PRRef) (*PullRequest, error) {
	args := append([]string{"pr", "view", fmt.Sprint(ref.Number)}, repoArgs(ref)...)
	args = append(args, "--json", prFields+",commits,files")

	out, err := gh(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	return parsePRViewJSON(out)
}

// PRDiff returns the unified diff of a PR.
func PRDiff(ctx context.Context, dir string, ref PRRef) (string, error) {
	args := append([]string{"pr", "diff", fmt.Sprint(ref.Number)}, repoArgs(ref)...)
	args = append(args, "--color", "never")

	out, err := gh(ctx, dir, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ListOpenPRs returns open PRs of the repository in dir.
func ListOpenPRs(ctx context.Context, dir string) ([]PullRequest, error) {
	out, err := gh(ctx, dir, "pr", "list", "--state", "open",
		"--limit", fmt.Sprint(searchLimit), "--json", prFields)
	if err != nil {
		return nil, err
	}

	var prs []PullRequest
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("failed to parse PR list response: %w", err)
	}
	return prs, nil
}

// SearchPRs returns the open PRs matching query (see MatchPRs).
func SearchPRs(ctx context.Context, dir, query string) ([]PullRequest, error) {
	prs, err := ListOpenPRs(ctx, dir)
	if err != nil {
		return nil, err
	}
	return MatchPRs(prs, query), nil
}

// MatchPRs filters prs by a free-text query. Fork notation "user:branch"
// matches the PR with that author and exact head branch. Any other query
// matches, case-insensitively, as a substring of the head branch or title,
// so ticket IDs like "PROJ-123" find PRs that mention them in either.
func MatchPRs(prs []PullRequest, query string) []PullRequest {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	if user, branch, ok := ParseForkNotation(query); ok {
		var out []PullRequest
		for _, pr := range prs {
			if strings.EqualFold(pr.Author.Login, user) && pr.HeadRefName == branch {
				out = append(out, pr)
			}
		}
		return out
	}

	needle := strings.ToLower(query)
	var exact, partial []PullRequest
	for _, pr := range prs {
		head := strings.ToLower(pr.HeadRefName)
		switch {
		case head == needle:
			exact = append(exact, pr)
		case strings.Contains(head, needle) || strings.Contains(strings.ToLower(pr.Title), needle):
			partial = append(partial, pr)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return partial
}

// ParseForkNotation parses GitHub's "username:branch" fork notation.
// Returns "", "", false if not fork notation or invalid.
func ParseForkNotation(ref string) (username, branch string, ok bool) {
	if strings.Contains(ref, "://") {
		return "", "", false
	}
	parts := strings.SplitN(ref, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	username, branch = parts[0], parts[1]
	if username == "" || branch == "" || strings.ContainsAny(username, " /") {
		return "", "", false
	}
	return username, branch, true
}

// classifyGHError examines a gh CLI error and returns a typed error.
func classifyGHError(err error) error {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("gh command failed: %w", err)
	}

	stderr := strings.ToLower(string(exitErr.Stderr))

	if strings.Contains(stderr, "no pull request") || strings.Contains(stderr, "could not resolve to a pullrequest") {
		return ErrNoPRFound
	}

	if strings.Contains(stderr, "401") ||
		strings.Contains(stderr, "auth") ||
		strings.Contains(stderr, "credentials") ||
		strings.Contains(stderr, "login") {
		return ErrAuthFailed
	}

	errMsg := strings.TrimSpace(string(exitErr.Stderr))
	if errMsg != "" {
		return fmt.Errorf("gh command failed: %s", errMsg)
	}
	return fmt.Errorf("gh command failed: %w", err)
}

// CheckGHAvailable returns an error if the gh CLI is not available.
func CheckGHAvailable() error {
	_, err := exec.LookPath(ghCommand)
	if err != nil {
		return fmt.Errorf("gh CLI not available: %w", err)
	}
	return nil
}
