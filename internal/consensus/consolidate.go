package consensus

import (
	"sort"

	"github.com/richhaase/consensus-reviewer/internal/domain"
)

// Policy holds the grouping parameters.
type Policy struct {
	// SimilarityThreshold is the minimum similarity for a finding to join a group.
	SimilarityThreshold float64
	// LineWindow is the largest line distance at which findings may still match.
	LineWindow int
}

// DefaultPolicy is the grouping policy used when none is configured.
var DefaultPolicy = Policy{
	SimilarityThreshold: 0.3,
	LineWindow:          15,
}

// attributedFinding is a raw finding tagged with the reviewer that reported it.
type attributedFinding struct {
	agent   string
	finding domain.Finding
}

// Consolidate groups the findings of all successful results and returns the
// groups ranked by consensus score, then severity. Failed results contribute
// nothing. Findings are processed in result order, then finding order.
func Consolidate(results []domain.AgentResult, policy Policy) []domain.ConsolidatedFinding {
	var groups []*domain.ConsolidatedFinding

	for _, af := range flatten(results) {
		best, bestScore := -1, 0.0
		for i, g := range groups {
			score := Similarity(af.finding, representative(g), policy)
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		if best >= 0 && bestScore >= policy.SimilarityThreshold {
			merge(groups[best], af)
			continue
		}
		groups = append(groups, newGroup(af))
	}

	out := make([]domain.ConsolidatedFinding, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	Rank(out)
	return out
}

// Rank sorts findings by descending consensus score, then descending severity.
// Equal findings keep their relative order.
func Rank(findings []domain.ConsolidatedFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].ConsensusScore != findings[j].ConsensusScore {
			return findings[i].ConsensusScore > findings[j].ConsensusScore
		}
		return findings[i].Severity.Weight() > findings[j].Severity.Weight()
	})
}

func flatten(results []domain.AgentResult) []attributedFinding {
	var out []attributedFinding
	for _, r := range results {
		if r.Failed() {
			continue
		}
		name := r.DisplayName
		if name == "" {
			name = r.Model.Name()
		}
		for _, f := range r.Output.Findings {
			out = append(out, attributedFinding{agent: name, finding: f})
		}
	}
	return out
}

func newGroup(af attributedFinding) *domain.ConsolidatedFinding {
	f := af.finding
	g := &domain.ConsolidatedFinding{
		File:        f.File,
		Line:        f.Line,
		Severity:    f.Severity,
		Category:    f.Category,
		Title:       f.Title,
		Description: f.Description,
		Suggestion:  f.Suggestion,
	}
	g.AddAgent(af.agent)
	g.Rescore()
	return g
}

// merge folds a finding into a group. Severity only rises; the longer
// description wins together with its title; the longer suggestion wins.
func merge(g *domain.ConsolidatedFinding, af attributedFinding) {
	f := af.finding

	g.AddAgent(af.agent)
	g.Severity = domain.MaxSeverity(g.Severity, f.Severity)
	if len(f.Description) > len(g.Description) {
		g.Description = f.Description
		g.Title = f.Title
	}
	if len(f.Suggestion) > len(g.Suggestion) {
		g.Suggestion = f.Suggestion
	}
	g.Rescore()
}

// representative is the group's current merged view, compared as a finding.
func representative(g *domain.ConsolidatedFinding) domain.Finding {
	return domain.Finding{
		File:        g.File,
		Line:        g.Line,
		Severity:    g.Severity,
		Category:    g.Category,
		Title:       g.Title,
		Description: g.Description,
		Suggestion:  g.Suggestion,
	}
}
