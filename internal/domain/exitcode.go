// Package domain provides the core types shared by the review pipeline.
package domain

// ExitCode represents the exit status of crv.
type ExitCode int

const (
	// ExitNoFindings indicates a completed review with no issues found.
	ExitNoFindings ExitCode = 0
	// ExitFindings indicates a completed review that reported issues.
	ExitFindings ExitCode = 1
	// ExitError indicates the review could not run (environment error) or every agent failed.
	ExitError ExitCode = 2
	// ExitInterrupted indicates the review was cancelled.
	ExitInterrupted ExitCode = 130
)

// Int returns the exit code as an int for use with os.Exit.
func (e ExitCode) Int() int {
	return int(e)
}
