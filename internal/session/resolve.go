package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richhaase/consensus-reviewer/internal/git"
	"github.com/richhaase/consensus-reviewer/internal/github"
	"github.com/richhaase/consensus-reviewer/internal/terminal"
)

// GitSource is the local repository a session reviews.
type GitSource interface {
	Root(ctx context.Context) (string, error)
	CurrentBranch(ctx context.Context) (string, error)
	DetectBaseBranch(ctx context.Context) (string, error)
	RefreshBase(ctx context.Context, base string) (string, error)
	Diff(ctx context.Context, base string) (string, error)
	CommitCount(ctx context.Context, base string) (int, error)

	// CreatePRWorktree checks out the head of ref, which may live in another
	// repository, in a temporary worktree and returns its directory and a
	// function that removes it.
	CreatePRWorktree(ctx context.Context, ref github.PRRef) (string, func() error, error)
}

// PRSource looks up pull requests.
type PRSource interface {
	View(ctx context.Context, ref github.PRRef) (*github.PullRequest, error)
	Diff(ctx context.Context, ref github.PRRef) (string, error)
	Search(ctx context.Context, query string) ([]github.PullRequest, error)
}

// Chooser asks the user to pick one of several matching pull requests.
type Chooser interface {
	Choose(ctx context.Context, candidates []github.PullRequest) (github.PullRequest, error)
}

// Target is a resolved review target.
type Target struct {
	Diff         string
	ChangedFiles []string
	Branch       string
	BaseBranch   string
	CommitCount  int

	// WorkDir is where reviewers run: the repository root for local
	// reviews, a temporary worktree for pull requests.
	WorkDir string

	// PR is set when the target is a pull request.
	PR *github.PullRequest

	cleanup func() error
}

// Cleanup releases anything the target holds on disk. Safe to call on a nil
// target and more than once.
func (t *Target) Cleanup() error {
	if t == nil || t.cleanup == nil {
		return nil
	}
	fn := t.cleanup
	t.cleanup = nil
	return fn()
}

// Resolver turns user input into a review target.
type Resolver struct {
	Git     GitSource
	PRs     PRSource
	Chooser Chooser

	// Base overrides base branch detection for local reviews.
	Base string

	// Fetch refreshes the base branch from origin before a local diff.
	Fetch bool

	Logger *terminal.Logger
}

// Resolve picks exactly one resolution path for input:
//   - empty input reviews the current branch against the base branch
//   - a PR URL, owner/repo#N, #N or N reviews that pull request
//   - anything else searches open pull requests by ticket ID or branch
func (r *Resolver) Resolve(ctx context.Context, input string) (*Target, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return r.resolveLocal(ctx)
	}
	if ref, ok := github.ParsePRReference(input); ok {
		return r.resolvePR(ctx, ref)
	}
	return r.resolveSearch(ctx, input)
}

func (r *Resolver) resolveLocal(ctx context.Context) (*Target, error) {
	root, err := r.Git.Root(ctx)
	if err != nil {
		return nil, err
	}
	branch, err := r.Git.CurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to determine current branch: %w", err)
	}

	base := r.Base
	if base == "" {
		base, err = r.Git.DetectBaseBranch(ctx)
		if err != nil {
			return nil, err
		}
	}

	if r.Fetch {
		refreshed, err := r.Git.RefreshBase(ctx, base)
		if err != nil {
			r.logf(terminal.StyleWarning, "Could not fetch %s, diffing against local ref: %v", base, err)
		} else {
			base = refreshed
		}
	}

	diff, err := r.Git.Diff(ctx, base)
	if err != nil {
		return nil, err
	}
	files, err := git.ChangedFiles(diff)
	if err != nil {
		return nil, err
	}
	commits, err := r.Git.CommitCount(ctx, base)
	if err != nil {
		return nil, err
	}

	return &Target{
		Diff:         diff,
		ChangedFiles: files,
		Branch:       branch,
		BaseBranch:   base,
		CommitCount:  commits,
		WorkDir:      root,
	}, nil
}

func (r *Resolver) resolvePR(ctx context.Context, ref github.PRRef) (*Target, error) {
	pr, err := r.PRs.View(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to look up PR %s: %w", ref, err)
	}
	diff, err := r.PRs.Diff(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch diff for PR %s: %w", ref, err)
	}

	files, err := git.ChangedFiles(diff)
	if err != nil || len(files) == 0 {
		files = pr.Files
	}

	target := &Target{
		Diff:         diff,
		ChangedFiles: files,
		Branch:       pr.HeadRefName,
		BaseBranch:   pr.BaseRefName,
		CommitCount:  pr.CommitCount,
		PR:           pr,
	}

	// An empty PR never reaches the reviewers, so skip the checkout.
	if strings.TrimSpace(diff) == "" {
		return target, nil
	}

	dir, remove, err := r.Git.CreatePRWorktree(ctx, github.PRRef{Owner: ref.Owner, Name: ref.Name, Number: pr.Number})
	if err != nil {
		return nil, fmt.Errorf("failed to check out PR %s: %w", ref, err)
	}
	target.WorkDir = dir
	target.cleanup = remove
	return target, nil
}

func (r *Resolver) resolveSearch(ctx context.Context, query string) (*Target, error) {
	prs, err := r.PRs.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search pull requests: %w", err)
	}

	var chosen github.PullRequest
	switch len(prs) {
	case 0:
		return nil, fmt.Errorf("%w %q", ErrNoCandidates, query)
	case 1:
		chosen = prs[0]
	default:
		if r.Chooser == nil {
			return nil, fmt.Errorf("%w %q (%s); pass a PR number", ErrAmbiguousTarget, query, describePRs(prs))
		}
		chosen, err = r.Chooser.Choose(ctx, prs)
		if err != nil {
			return nil, fmt.Errorf("%w (candidates: %s)", err, describePRs(prs))
		}
	}

	r.logf(terminal.StyleInfo, "Reviewing PR #%d: %s", chosen.Number, chosen.Title)
	return r.resolvePR(ctx, github.PRRef{Number: chosen.Number})
}

func (r *Resolver) logf(style terminal.Style, format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Logf(style, format, args...)
	}
}

func describePRs(prs []github.PullRequest) string {
	parts := make([]string, len(prs))
	for i, pr := range prs {
		parts[i] = fmt.Sprintf("#%d", pr.Number)
	}
	return strings.Join(parts, ", ")
}

// IsNotFound reports whether err means the requested target does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoCandidates) || errors.Is(err, github.ErrNoPRFound)
}
