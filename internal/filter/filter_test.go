package filter

import (
	"testing"

	"github.com/richhaase/consensus-reviewer/internal/domain"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		wantErr  bool
	}{
		{
			name:     "empty patterns",
			patterns: []string{},
			wantErr:  false,
		},
		{
			name:     "valid pattern",
			patterns: []string{"Next\\.js forbids"},
			wantErr:  false,
		},
		{
			name:     "multiple valid patterns",
			patterns: []string{"pattern1", "pattern2", ".*test.*"},
			wantErr:  false,
		},
		{
			name:     "invalid regex",
			patterns: []string{"[invalid"},
			wantErr:  true,
		},
		{
			name:     "one invalid among valid",
			patterns: []string{"valid", "[invalid", "also-valid"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.patterns)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if f == nil {
				t.Error("expected filter, got nil")
			}
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	findings := []domain.ConsolidatedFinding{
		{File: "app/page.tsx", Title: "Server component uses hooks", Description: "Next.js forbids hooks in server components."},
		{File: "vendor/lib.go", Title: "Unchecked error", Description: "Error is ignored."},
		{File: "main.go", Title: "Generated code drift", Description: "Regenerate mocks."},
		{File: "main.go", Title: "Race on counter", Description: "Counter is shared."},
	}

	tests := []struct {
		name        string
		patterns    []string
		wantTitles  []string
		wantRemoved int
	}{
		{
			name:       "no patterns - no filtering",
			patterns:   []string{},
			wantTitles: []string{"Server component uses hooks", "Unchecked error", "Generated code drift", "Race on counter"},
		},
		{
			name:        "matches description",
			patterns:    []string{"Next\\.js forbids"},
			wantTitles:  []string{"Unchecked error", "Generated code drift", "Race on counter"},
			wantRemoved: 1,
		},
		{
			name:        "matches file path",
			patterns:    []string{"^vendor/"},
			wantTitles:  []string{"Server component uses hooks", "Generated code drift", "Race on counter"},
			wantRemoved: 1,
		},
		{
			name:        "matches title",
			patterns:    []string{"(?i)generated"},
			wantTitles:  []string{"Server component uses hooks", "Unchecked error", "Race on counter"},
			wantRemoved: 1,
		},
		{
			name:        "multiple patterns",
			patterns:    []string{"^vendor/", "Race"},
			wantTitles:  []string{"Server component uses hooks", "Generated code drift"},
			wantRemoved: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.patterns)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			got, removed := f.Apply(findings)
			if removed != tt.wantRemoved {
				t.Errorf("removed = %d, want %d", removed, tt.wantRemoved)
			}
			if len(got) != len(tt.wantTitles) {
				t.Fatalf("got %d findings, want %d", len(got), len(tt.wantTitles))
			}
			for i, title := range tt.wantTitles {
				if got[i].Title != title {
					t.Errorf("finding %d = %q, want %q", i, got[i].Title, title)
				}
			}
		})
	}

	if len(findings) != 4 {
		t.Error("Apply mutated its input")
	}
}

func TestFilter_Apply_NilFilter(t *testing.T) {
	var f *Filter
	in := []domain.ConsolidatedFinding{{Title: "x"}}
	got, removed := f.Apply(in)
	if len(got) != 1 || removed != 0 {
		t.Errorf("nil filter should pass everything through, got %v, %d", got, removed)
	}
}
