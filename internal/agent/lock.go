package agent

import "strings"

// lockContentionMarkers are stderr substrings emitted by the host runtime when
// another process holds its settings/auth lock file. Concurrent reviewer
// startups hit this transiently.
var lockContentionMarkers = []string{
	"Lock file is already being held",
	"ELOCKED",
}

// IsLockContention returns true if a failed invocation was caused by transient
// lock contention and is worth retrying. Exit code 0 is never lock contention.
func IsLockContention(exitCode int, stderr string) bool {
	if exitCode == 0 {
		return false
	}
	for _, marker := range lockContentionMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}
