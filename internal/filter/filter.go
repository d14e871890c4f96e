// Package filter provides filtering capabilities for consolidated findings.
package filter

import (
	"fmt"
	"regexp"

	"github.com/richhaase/consensus-reviewer/internal/domain"
)

// Filter holds compiled regex patterns for excluding findings.
type Filter struct {
	excludePatterns []*regexp.Regexp
}

// New creates a Filter from pattern strings.
// Returns an error if any pattern is an invalid regex.
func New(patterns []string) (*Filter, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return &Filter{excludePatterns: compiled}, nil
}

// Apply returns the findings not matched by any exclude pattern, in order,
// and the number removed. Does not mutate the input.
func (f *Filter) Apply(findings []domain.ConsolidatedFinding) ([]domain.ConsolidatedFinding, int) {
	if f == nil || len(f.excludePatterns) == 0 {
		return findings, 0
	}

	kept := make([]domain.ConsolidatedFinding, 0, len(findings))
	for _, finding := range findings {
		if !f.shouldExclude(finding) {
			kept = append(kept, finding)
		}
	}
	return kept, len(findings) - len(kept)
}

// shouldExclude returns true if any exclude pattern matches the finding's
// file, title or description.
func (f *Filter) shouldExclude(finding domain.ConsolidatedFinding) bool {
	for _, field := range []string{finding.File, finding.Title, finding.Description} {
		for _, re := range f.excludePatterns {
			if re.MatchString(field) {
				return true
			}
		}
	}
	return false
}
