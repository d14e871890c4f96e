package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"
)

const spinnerInterval = 200 * time.Millisecond

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Progress counts finished reviewers. It is safe for concurrent use.
type Progress struct {
	total  int
	done   atomic.Int32
	failed atomic.Int32
}

// NewProgress creates a counter for total reviewers.
func NewProgress(total int) *Progress {
	return &Progress{total: total}
}

// Finish records one reviewer as done, and as failed unless ok.
func (p *Progress) Finish(ok bool) {
	if !ok {
		p.failed.Add(1)
	}
	p.done.Add(1)
}

// Done returns how many reviewers have finished.
func (p *Progress) Done() int { return int(p.done.Load()) }

// Failed returns how many finished reviewers failed.
func (p *Progress) Failed() int { return int(p.failed.Load()) }

// String renders "2/3" or "2/3, 1 failed".
func (p *Progress) String() string {
	s := fmt.Sprintf("%d/%d", p.Done(), p.total)
	if n := p.Failed(); n > 0 {
		s += fmt.Sprintf(", %d failed", n)
	}
	return s
}

// Spinner animates a status line on stderr until its context is cancelled,
// then leaves a final checkmark line. Without a TTY it draws nothing.
type Spinner struct {
	out      io.Writer
	isTTY    bool
	label    string
	doneText string
	progress *Progress
}

// NewSpinner creates a spinner showing label while running and doneText once
// stopped. progress may be nil.
func NewSpinner(label, doneText string, progress *Progress) *Spinner {
	return &Spinner{
		out:      os.Stderr,
		isTTY:    IsStderrTTY(),
		label:    label,
		doneText: doneText,
		progress: progress,
	}
}

func (s *Spinner) line(mark, color, text string) string {
	line := fmt.Sprintf("\r%s %s%s%s %s", tag(color), Color(color), mark, Color(Reset), text)
	if s.progress != nil {
		line += fmt.Sprintf(" %s(%s)%s", Color(Dim), s.progress, Color(Reset))
	}
	return line
}

// Run draws the spinner until ctx is cancelled.
func (s *Spinner) Run(ctx context.Context) {
	if !s.isTTY {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for idx := 0; ; idx++ {
		select {
		case <-ctx.Done():
			fmt.Fprint(s.out, clearLine+s.line("✓", Green, s.doneText)+"\n")
			return
		case <-ticker.C:
			frame := string(spinnerFrames[idx%len(spinnerFrames)])
			fmt.Fprint(s.out, clearLine+s.line(frame, Cyan, s.label))
		}
	}
}

// Start runs the spinner in the background. The returned stop function
// cancels it and waits for the final line to be written.
func (s *Spinner) Start() (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}
