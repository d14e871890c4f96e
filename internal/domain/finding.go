package domain

// Severity is the reviewer-assigned severity of a finding.
type Severity string

const (
	SeverityCritical   Severity = "critical"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// Severities lists the known severities from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityWarning, SeveritySuggestion}

// Weight returns the ordinal weight used for ranking (critical=3, warning=2, suggestion=1).
// Unknown severities weigh 0.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeveritySuggestion:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s.Weight() > 0
}

// MaxSeverity returns the more severe of a and b. Ties keep a.
func MaxSeverity(a, b Severity) Severity {
	if b.Weight() > a.Weight() {
		return b
	}
	return a
}

// Finding is one reviewer's observation about a location in the diff.
// File is kept exactly as the reviewer reported it.
type Finding struct {
	File        string   `json:"file"`
	Line        int      `json:"line"`
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// ReviewOutput is the structured answer parsed from one reviewer.
type ReviewOutput struct {
	Findings []Finding `json:"findings"`
	Summary  string    `json:"summary"`
	Score    int       `json:"score"`
}

// ConsolidatedFinding is a group of findings from one or more agents judged
// to describe the same issue.
type ConsolidatedFinding struct {
	File           string   `json:"file"`
	Line           int      `json:"line"`
	Severity       Severity `json:"severity"`
	Category       string   `json:"category"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Suggestion     string   `json:"suggestion,omitempty"`
	Agents         []string `json:"agents"`
	ConsensusScore int      `json:"consensus_score"`
}

// AddAgent records name as a contributor if it is not already present.
func (c *ConsolidatedFinding) AddAgent(name string) {
	for _, a := range c.Agents {
		if a == name {
			return
		}
	}
	c.Agents = append(c.Agents, name)
}

// Rescore recomputes ConsensusScore from the agent count and severity.
func (c *ConsolidatedFinding) Rescore() {
	c.ConsensusScore = len(c.Agents) * c.Severity.Weight()
}
