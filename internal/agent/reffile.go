package agent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Session file names inside the session directory.
const (
	diffFileName         = "review.patch"
	systemPromptFileName = "reviewer-system-prompt.md"
)

// SessionFiles are the per-session temp files every reviewer reads.
type SessionFiles struct {
	Dir              string
	DiffPath         string
	SystemPromptPath string
}

// WriteSessionFiles writes the diff and system prompt into a fresh,
// uniquely named, owner-only directory under baseDir (os.TempDir() if empty).
// The caller is responsible for calling Cleanup.
func WriteSessionFiles(baseDir, diff, systemPrompt string) (*SessionFiles, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	dir := filepath.Join(baseDir, fmt.Sprintf("crv-review-%s", uuid.New().String()))
	if err := os.Mkdir(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	files := &SessionFiles{
		Dir:              dir,
		DiffPath:         filepath.Join(dir, diffFileName),
		SystemPromptPath: filepath.Join(dir, systemPromptFileName),
	}

	if err := os.WriteFile(files.DiffPath, []byte(diff), 0600); err != nil {
		files.Cleanup()
		return nil, fmt.Errorf("failed to write diff file: %w", err)
	}
	if err := os.WriteFile(files.SystemPromptPath, []byte(systemPrompt), 0600); err != nil {
		files.Cleanup()
		return nil, fmt.Errorf("failed to write system prompt file: %w", err)
	}

	return files, nil
}

// Cleanup removes the session directory. Errors are ignored.
func (f *SessionFiles) Cleanup() {
	if f == nil || f.Dir == "" {
		return
	}
	_ = os.RemoveAll(f.Dir)
}
