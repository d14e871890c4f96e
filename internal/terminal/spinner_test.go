package terminal

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestProgress(t *testing.T) {
	p := NewProgress(3)
	if p.String() != "0/3" {
		t.Errorf("String() = %q, want 0/3", p.String())
	}

	var wg sync.WaitGroup
	for _, ok := range []bool{true, false, true} {
		wg.Add(1)
		go func(ok bool) {
			defer wg.Done()
			p.Finish(ok)
		}(ok)
	}
	wg.Wait()

	if p.Done() != 3 || p.Failed() != 1 {
		t.Errorf("Done() = %d, Failed() = %d; want 3, 1", p.Done(), p.Failed())
	}
	if p.String() != "3/3, 1 failed" {
		t.Errorf("String() = %q", p.String())
	}
}

func TestSpinner_NonTTYWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{out: &buf, label: "Running", doneText: "Done"}

	stop := s.Start()
	stop()

	if buf.Len() != 0 {
		t.Errorf("expected no output without a TTY, got %q", buf.String())
	}
}

func TestSpinner_TTYFinalLine(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	p := NewProgress(2)
	p.Finish(true)
	p.Finish(false)
	s := &Spinner{out: &buf, isTTY: true, label: "Running reviewers", doneText: "Reviewers complete", progress: p}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("spinner did not exit")
	}

	if !strings.HasSuffix(buf.String(), "[crv] ✓ Reviewers complete (2/2, 1 failed)\n") {
		t.Errorf("unexpected final line: %q", buf.String())
	}
}

func TestSpinner_WithoutProgress(t *testing.T) {
	DisableColors()
	defer EnableColors()

	s := &Spinner{label: "Listing models"}
	if got := s.line("⠋", Cyan, s.label); got != "\r[crv] ⠋ Listing models" {
		t.Errorf("line() = %q", got)
	}
}
