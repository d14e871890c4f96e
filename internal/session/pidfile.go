package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFileName is the pid file kept in the git common directory while a
// review runs.
const PIDFileName = "crv-review.pid"

// PIDFile records the process running a review so that other crv
// invocations in the same repository can refuse to start or stop it.
type PIDFile struct {
	path string
	pid  int
}

// PIDFilePath returns the pid file location for a git common directory.
func PIDFilePath(commonDir string) string {
	return filepath.Join(commonDir, PIDFileName)
}

// AcquirePIDFile records the current process at path. It fails with
// ErrSessionActive if a live process is already recorded; a stale file left
// by a dead process is replaced. The file appears with its pid already
// written, so a concurrent reader never sees it empty.
func AcquirePIDFile(path string) (*PIDFile, error) {
	pid := os.Getpid()
	tmp, err := writeTempPID(path, pid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(tmp) }()

	for range 2 {
		err := os.Link(tmp, path)
		if err == nil {
			return &PIDFile{path: path, pid: pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create pid file: %w", err)
		}

		other, rerr := ReadPID(path)
		if rerr == nil && processAlive(other) {
			return nil, fmt.Errorf("%w (pid %d)", ErrSessionActive, other)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale pid file: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: pid file %s keeps reappearing", ErrSessionActive, path)
}

// writeTempPID writes pid to a new file next to path and returns its name.
func writeTempPID(path string, pid int) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to write pid file: %w", err)
	}
	_, werr := fmt.Fprintf(f, "%d\n", pid)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write pid file: %w", errors.Join(werr, cerr))
	}
	return f.Name(), nil
}

// Release removes the pid file if it still records this process.
func (p *PIDFile) Release() {
	if p == nil {
		return
	}
	if pid, err := ReadPID(p.path); err == nil && pid == p.pid {
		_ = os.Remove(p.path)
	}
}

// ReadPID returns the pid recorded at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s", path)
	}
	return pid, nil
}

// StopRunning sends SIGINT to the review recorded at path and returns its
// pid. It returns ErrNoActiveSession when no live review is recorded.
func StopRunning(path string) (int, error) {
	pid, err := ReadPID(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNoActiveSession
		}
		return 0, err
	}
	if !processAlive(pid) {
		_ = os.Remove(path)
		return 0, ErrNoActiveSession
	}
	if err := syscall.Kill(pid, syscall.SIGINT); err != nil {
		return 0, fmt.Errorf("failed to signal review process %d: %w", pid, err)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
