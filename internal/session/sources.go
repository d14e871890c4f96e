package session

import (
	"context"

	"github.com/richhaase/consensus-reviewer/internal/git"
	"github.com/richhaase/consensus-reviewer/internal/github"
)

// LocalGit is a GitSource backed by the git CLI in Dir.
type LocalGit struct {
	Dir string
}

func (g LocalGit) Root(context.Context) (string, error) {
	return g.Dir, nil
}

func (g LocalGit) CurrentBranch(ctx context.Context) (string, error) {
	return git.CurrentBranch(ctx, g.Dir)
}

func (g LocalGit) DetectBaseBranch(ctx context.Context) (string, error) {
	return git.DetectBaseBranch(ctx, g.Dir)
}

func (g LocalGit) RefreshBase(ctx context.Context, base string) (string, error) {
	return git.RefreshBase(ctx, g.Dir, base)
}

func (g LocalGit) Diff(ctx context.Context, base string) (string, error) {
	return git.GetDiff(ctx, base, g.Dir)
}

func (g LocalGit) CommitCount(ctx context.Context, base string) (int, error) {
	return git.CommitCount(ctx, base, g.Dir)
}

func (g LocalGit) CreatePRWorktree(ctx context.Context, ref github.PRRef) (string, func() error, error) {
	wt, err := git.CreateWorktreeFromPR(ctx, g.Dir, git.PRRemote(ref.Repo()), ref.Number)
	if err != nil {
		return "", nil, err
	}
	return wt.Path, wt.Remove, nil
}

// GHSource is a PRSource backed by the gh CLI run in Dir.
type GHSource struct {
	Dir string
}

func (s GHSource) View(ctx context.Context, ref github.PRRef) (*github.PullRequest, error) {
	return github.ViewPR(ctx, s.Dir, ref)
}

func (s GHSource) Diff(ctx context.Context, ref github.PRRef) (string, error) {
	return github.PRDiff(ctx, s.Dir, ref)
}

func (s GHSource) Search(ctx context.Context, query string) ([]github.PullRequest, error) {
	return github.SearchPRs(ctx, s.Dir, query)
}
