// Package session runs one review session end to end: it resolves what to
// review, fans the diff out to the selected reviewers, and turns their
// answers into a single consensus report.
package session

import "errors"

var (
	// ErrSessionActive is returned by Start while another session is running.
	ErrSessionActive = errors.New("a review is already running")

	// ErrNoActiveSession is returned by Cancel when nothing is running.
	ErrNoActiveSession = errors.New("no review running")

	// ErrNoCandidates indicates a PR search matched nothing.
	ErrNoCandidates = errors.New("no open pull request matches")

	// ErrAmbiguousTarget indicates a PR search matched several PRs and no
	// chooser was available to pick one.
	ErrAmbiguousTarget = errors.New("several open pull requests match")
)
