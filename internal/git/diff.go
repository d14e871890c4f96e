package git

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// ErrNoBaseBranch indicates neither master nor main exists locally or on origin.
var ErrNoBaseBranch = errors.New("no base branch found (looked for master and main)")

// baseBranchCandidates are checked in order by DetectBaseBranch.
var baseBranchCandidates = []string{"master", "main"}

// run executes git in dir and returns trimmed stdout. Failures include stderr.
func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
				return "", fmt.Errorf("git %s: %s", args[0], msg)
			}
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

func validateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("base ref cannot be empty")
	}
	if strings.HasPrefix(ref, "-") {
		return fmt.Errorf("invalid base ref %q: must not start with -", ref)
	}
	return nil
}

// GetDiff returns the unified diff of HEAD against its merge base with baseRef.
func GetDiff(ctx context.Context, baseRef, workDir string) (string, error) {
	if err := validateRef(baseRef); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, "git", "diff", "--no-color", "--no-ext-diff", baseRef+"...HEAD")
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("failed to diff against %s: %s", baseRef, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("failed to diff against %s: %w", baseRef, err)
	}
	return string(out), nil
}

// ChangedFiles lists the paths touched by a unified diff, in diff order.
// Deleted files are reported by their old name.
func ChangedFiles(diff string) ([]string, error) {
	if strings.TrimSpace(diff) == "" {
		return nil, nil
	}

	files, _, err := gitdiff.Parse(strings.NewReader(diff))
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff: %w", err)
	}

	paths := make([]string, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		name := f.NewName
		if f.IsDelete || name == "" {
			name = f.OldName
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		paths = append(paths, name)
	}
	return paths, nil
}

// CommitCount returns the number of commits on HEAD that are not on baseRef.
func CommitCount(ctx context.Context, baseRef, workDir string) (int, error) {
	if err := validateRef(baseRef); err != nil {
		return 0, err
	}
	out, err := run(ctx, workDir, "rev-list", "--count", baseRef+"..HEAD")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output %q: %w", out, err)
	}
	return n, nil
}

// CurrentBranch returns the checked-out branch name, or "HEAD" when detached.
func CurrentBranch(ctx context.Context, workDir string) (string, error) {
	return run(ctx, workDir, "rev-parse", "--abbrev-ref", "HEAD")
}

// RefExists reports whether ref resolves to a commit.
func RefExists(ctx context.Context, workDir, ref string) bool {
	if validateRef(ref) != nil {
		return false
	}
	_, err := run(ctx, workDir, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	return err == nil
}

// DetectBaseBranch returns master if it exists, else main. Local branches are
// preferred; origin's remote-tracking branches are the fallback.
func DetectBaseBranch(ctx context.Context, workDir string) (string, error) {
	for _, name := range baseBranchCandidates {
		if RefExists(ctx, workDir, "refs/heads/"+name) {
			return name, nil
		}
		if RefExists(ctx, workDir, "refs/remotes/origin/"+name) {
			return "origin/" + name, nil
		}
	}
	return "", ErrNoBaseBranch
}
