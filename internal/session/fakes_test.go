package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/richhaase/consensus-reviewer/internal/agent"
	"github.com/richhaase/consensus-reviewer/internal/github"
)

const twoFileDiff = `diff --git a/auth.ts b/auth.ts
--- a/auth.ts
+++ b/auth.ts
@@ -1,1 +1,2 @@
 export {}
+const token = req.query.token
diff --git a/db.ts b/db.ts
--- a/db.ts
+++ b/db.ts
@@ -1,1 +1,2 @@
 export {}
+db.query("SELECT * FROM users WHERE id = " + id)
`

type fakeGit struct {
	root       string
	branch     string
	base       string
	diff       string
	commits    int
	refreshErr error

	mu              sync.Mutex
	diffedAgainst   string
	worktrees       []int
	worktreeRepos   []string
	removedWorktree int
}

func (g *fakeGit) Root(context.Context) (string, error)          { return g.root, nil }
func (g *fakeGit) CurrentBranch(context.Context) (string, error) { return g.branch, nil }

func (g *fakeGit) DetectBaseBranch(context.Context) (string, error) {
	if g.base == "" {
		return "", fmt.Errorf("no base")
	}
	return g.base, nil
}

func (g *fakeGit) RefreshBase(_ context.Context, base string) (string, error) {
	if g.refreshErr != nil {
		return base, g.refreshErr
	}
	return "origin/" + base, nil
}

func (g *fakeGit) Diff(_ context.Context, base string) (string, error) {
	g.mu.Lock()
	g.diffedAgainst = base
	g.mu.Unlock()
	return g.diff, nil
}

func (g *fakeGit) CommitCount(context.Context, string) (int, error) { return g.commits, nil }

func (g *fakeGit) CreatePRWorktree(_ context.Context, ref github.PRRef) (string, func() error, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.worktrees = append(g.worktrees, ref.Number)
	g.worktreeRepos = append(g.worktreeRepos, ref.Repo())
	return fmt.Sprintf("/tmp/wt-%d", ref.Number), func() error {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.removedWorktree++
		return nil
	}, nil
}

type fakePRs struct {
	prs   map[int]*github.PullRequest
	diffs map[int]string
	open  []github.PullRequest

	searched string
}

func (p *fakePRs) View(_ context.Context, ref github.PRRef) (*github.PullRequest, error) {
	pr, ok := p.prs[ref.Number]
	if !ok {
		return nil, github.ErrNoPRFound
	}
	return pr, nil
}

func (p *fakePRs) Diff(_ context.Context, ref github.PRRef) (string, error) {
	return p.diffs[ref.Number], nil
}

func (p *fakePRs) Search(_ context.Context, query string) ([]github.PullRequest, error) {
	p.searched = query
	return github.MatchPRs(p.open, query), nil
}

type fakeChooser struct {
	pick    int
	err     error
	offered []github.PullRequest
}

func (c *fakeChooser) Choose(_ context.Context, candidates []github.PullRequest) (github.PullRequest, error) {
	c.offered = candidates
	if c.err != nil {
		return github.PullRequest{}, c.err
	}
	return candidates[c.pick], nil
}

// fakeAgent is an agent.Agent whose reviews are scripted per model ID.
type fakeAgent struct {
	models  []agent.Model
	listErr error
	review  func(ctx context.Context, req *agent.ReviewRequest) (*agent.Invocation, error)

	mu       sync.Mutex
	requests []*agent.ReviewRequest
}

func (a *fakeAgent) Name() string       { return "fake" }
func (a *fakeAgent) IsAvailable() error { return nil }

func (a *fakeAgent) ListModels(context.Context) ([]agent.Model, error) {
	return a.models, a.listErr
}

func (a *fakeAgent) Review(ctx context.Context, req *agent.ReviewRequest) (*agent.Invocation, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	return a.review(ctx, req)
}

func (a *fakeAgent) reviewed() []*agent.ReviewRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*agent.ReviewRequest(nil), a.requests...)
}

func answer(text string) *agent.Invocation {
	return &agent.Invocation{Messages: []agent.Message{{Role: agent.RoleAssistant, Text: text}}}
}

func pr(number int, title, head string) github.PullRequest {
	return github.PullRequest{Number: number, Title: title, HeadRefName: head, BaseRefName: "main"}
}
