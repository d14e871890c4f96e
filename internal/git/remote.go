package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FetchBranch fetches a specific branch from a remote.
func FetchBranch(ctx context.Context, repoDir, remote, branch string) error {
	cmd := exec.CommandContext(ctx, "git", "fetch", remote, branch)
	cmd.Dir = repoDir
	if out, err := cmd.CombinedOutput(); err != nil {
		output := strings.TrimSpace(string(out))
		if output != "" {
			return fmt.Errorf("failed to fetch '%s' from '%s': %s", branch, remote, output)
		}
		return fmt.Errorf("failed to fetch '%s' from '%s': %w", branch, remote, err)
	}
	return nil
}

// RefreshBase fetches baseRef's branch from origin and returns the ref to diff
// against. "main" becomes "origin/main" after a successful fetch; refs that
// already name origin are fetched in place.
func RefreshBase(ctx context.Context, repoDir, baseRef string) (string, error) {
	branch := strings.TrimPrefix(baseRef, "origin/")
	if err := FetchBranch(ctx, repoDir, "origin", branch); err != nil {
		return baseRef, err
	}
	return "origin/" + branch, nil
}
