// Package git provides git operations: diffs against a base branch, commit
// metadata, and temporary worktrees for reviewing pull requests.
package git

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	worktreesDirName = ".worktrees"
	reviewPrefix     = "review-"
	branchPrefix     = "crv/"

	// staleWorktreeAge is how old a review worktree must be before it is pruned.
	staleWorktreeAge = 2 * time.Hour
)

// Worktree represents a git worktree with a path.
type Worktree struct {
	Path     string
	Branch   string
	repoRoot string
}

// Remove cleans up the worktree and its local branch.
func (w *Worktree) Remove() error {
	if w.Path == "" {
		return nil
	}
	cmd := exec.Command("git", "worktree", "remove", "--force", w.Path) //nolint:gosec // w.Path is controlled internally
	cmd.Dir = w.repoRoot
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to remove worktree %s: %w", w.Path, err)
	}
	if w.Branch != "" {
		del := exec.Command("git", "branch", "-D", w.Branch) //nolint:gosec // branch name is generated internally
		del.Dir = w.repoRoot
		_ = del.Run()
	}
	return nil
}

// GetRoot returns the root directory of the current git repository.
func GetRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// GetCommonDir returns the git common directory (shared across worktrees).
func GetCommonDir() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--git-common-dir")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git common dir: %w", err)
	}
	path := strings.TrimSpace(string(out))
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve common dir path: %w", err)
	}
	return abs, nil
}

// commonDirOf returns the absolute git common directory for dir.
func commonDirOf(ctx context.Context, dir string) (string, error) {
	path, err := run(ctx, dir, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", fmt.Errorf("failed to get git common dir: %w", err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return filepath.Clean(path), nil
}

// ensureWorktreesExcluded adds .worktrees/ to .git/info/exclude if not already present.
func ensureWorktreesExcluded(commonDir string) error {
	infoDir := filepath.Join(commonDir, "info")
	excludePath := filepath.Join(infoDir, "exclude")

	if err := os.MkdirAll(infoDir, 0755); err != nil {
		return fmt.Errorf("failed to create info directory: %w", err)
	}

	content, err := os.ReadFile(excludePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read exclude file: %w", err)
	}

	for _, line := range strings.Split(string(content), "\n") {
		if line == worktreesDirName+"/" {
			return nil
		}
	}

	f, err := os.OpenFile(excludePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open exclude file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(worktreesDirName + "/\n"); err != nil {
		return fmt.Errorf("failed to write to exclude file: %w", err)
	}

	return nil
}

func randomID() (string, error) {
	idBytes := make([]byte, 4)
	if _, err := rand.Read(idBytes); err != nil {
		return "", fmt.Errorf("failed to generate worktree ID: %w", err)
	}
	return hex.EncodeToString(idBytes), nil
}

// addWorktree checks out branch into .worktrees/<name> under repoRoot.
func addWorktree(ctx context.Context, repoRoot, name, branch string) (*Worktree, error) {
	commonDir, err := commonDirOf(ctx, repoRoot)
	if err != nil {
		return nil, err
	}
	if err := ensureWorktreesExcluded(commonDir); err != nil {
		return nil, err
	}

	worktreesDir := filepath.Join(repoRoot, worktreesDirName)
	worktreePath := filepath.Join(worktreesDir, name)

	if err := os.MkdirAll(worktreesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create worktrees directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "worktree", "add", worktreePath, branch)
	cmd.Dir = repoRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		output := strings.TrimSpace(string(out))
		if output != "" {
			return nil, fmt.Errorf("failed to create worktree for branch '%s' (%s): %w", branch, output, err)
		}
		return nil, fmt.Errorf("failed to create worktree for branch '%s': %w", branch, err)
	}

	return &Worktree{
		Path:     worktreePath,
		repoRoot: repoRoot,
	}, nil
}

// PRRemote returns the remote to fetch PR refs from: origin for the current
// repository, or the GitHub URL of repo ("owner/name") for any other.
func PRRemote(repo string) string {
	if repo == "" {
		return "origin"
	}
	return "https://github.com/" + repo + ".git"
}

// fetchPRRef fetches a PR ref from remote into a local branch.
func fetchPRRef(ctx context.Context, repoRoot, remote string, prNumber int, branch string) error {
	refSpec := fmt.Sprintf("pull/%d/head:%s", prNumber, branch)
	cmd := exec.CommandContext(ctx, "git", "fetch", "--force", remote, refSpec) //nolint:gosec // remote is origin or a URL built by PRRemote
	cmd.Dir = repoRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		output := strings.TrimSpace(string(out))
		if output != "" {
			return fmt.Errorf("failed to fetch PR #%d (%s): %w", prNumber, output, err)
		}
		return fmt.Errorf("failed to fetch PR #%d: %w", prNumber, err)
	}
	return nil
}

// CreateWorktreeFromPR fetches a PR's head into a throwaway local branch and
// checks it out in a new worktree. remote is where the PR lives, usually
// PRRemote's result. The caller is responsible for calling Remove() on the
// returned Worktree.
func CreateWorktreeFromPR(ctx context.Context, repoRoot, remote string, prNumber int) (*Worktree, error) {
	id, err := randomID()
	if err != nil {
		return nil, err
	}
	branch := fmt.Sprintf("%spr-%d-%s", branchPrefix, prNumber, id)

	if err := fetchPRRef(ctx, repoRoot, remote, prNumber, branch); err != nil {
		return nil, err
	}

	wt, err := addWorktree(ctx, repoRoot, fmt.Sprintf("%spr%d-%s", reviewPrefix, prNumber, id), branch)
	if err != nil {
		del := exec.Command("git", "branch", "-D", branch) //nolint:gosec // branch name is generated internally
		del.Dir = repoRoot
		_ = del.Run()
		return nil, err
	}
	wt.Branch = branch
	return wt, nil
}

// PruneStaleWorktrees removes review worktrees under root left behind by
// interrupted runs and returns how many it removed. Only .worktrees/review-*
// directories older than staleWorktreeAge are touched. Once any are removed,
// git's worktree metadata is pruned and orphaned crv/* branches are deleted;
// branches still checked out elsewhere survive because git refuses to delete
// them.
func PruneStaleWorktrees(ctx context.Context, root string) (int, error) {
	worktreesDir := filepath.Join(root, worktreesDirName)
	entries, err := os.ReadDir(worktreesDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read worktrees directory: %w", err)
	}

	cutoff := time.Now().Add(-staleWorktreeAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), reviewPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(worktreesDir, e.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove stale worktree %s: %w", e.Name(), err)
		}
		removed++
	}

	if removed > 0 {
		_, _ = run(ctx, root, "worktree", "prune")
		deleteReviewBranches(ctx, root)
	}
	return removed, nil
}

func deleteReviewBranches(ctx context.Context, root string) {
	out, err := run(ctx, root, "for-each-ref", "--format=%(refname:short)", "refs/heads/"+branchPrefix)
	if err != nil {
		return
	}
	for _, branch := range strings.Fields(out) {
		_, _ = run(ctx, root, "branch", "-D", branch)
	}
}
