package agent

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/richhaase/consensus-reviewer/internal/domain"
)

// ErrNoReviewJSON indicates the reviewer's answer contained no parseable
// findings object. It is distinct from a successful answer with zero findings.
var ErrNoReviewJSON = errors.New("no valid findings JSON in reviewer output")

const (
	defaultScore    = 5
	minScore        = 1
	maxScore        = 10
	defaultCategory = "other"
)

// ParseReviewOutput extracts and normalizes a review object from free-form
// reviewer text. It returns ErrNoReviewJSON if no candidate parses as JSON
// with an array-typed "findings" field.
func ParseReviewOutput(text string) (*domain.ReviewOutput, error) {
	for _, candidate := range Candidates(text) {
		var raw map[string]any
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			continue
		}
		items, ok := raw["findings"].([]any)
		if !ok {
			continue
		}
		return normalizeReview(raw, items), nil
	}
	return nil, ErrNoReviewJSON
}

func normalizeReview(raw map[string]any, items []any) *domain.ReviewOutput {
	out := &domain.ReviewOutput{
		Findings: make([]domain.Finding, 0, len(items)),
		Summary:  stringField(raw, "summary"),
		Score:    clampScore(raw["score"]),
	}

	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if f, ok := normalizeFinding(obj); ok {
			out.Findings = append(out.Findings, f)
		}
	}

	return out
}

// normalizeFinding applies per-field defaults. Findings without a file or a
// title are dropped.
func normalizeFinding(obj map[string]any) (domain.Finding, bool) {
	file := stringField(obj, "file")
	title := stringField(obj, "title")
	if file == "" || title == "" {
		return domain.Finding{}, false
	}

	line := 0
	if n, ok := toNumber(obj["line"]); ok {
		line = int(n)
	}

	// Severity must match exactly; "Critical" is not critical.
	severity := domain.Severity(stringField(obj, "severity"))
	if !severity.Valid() {
		severity = domain.SeveritySuggestion
	}

	category := stringField(obj, "category")
	if category == "" {
		category = defaultCategory
	}

	return domain.Finding{
		File:        file,
		Line:        line,
		Severity:    severity,
		Category:    category,
		Title:       title,
		Description: stringField(obj, "description"),
		Suggestion:  stringField(obj, "suggestion"),
	}, true
}

// clampScore coerces a score into [1, 10], defaulting to 5 when it is missing
// or not numeric.
func clampScore(v any) int {
	n, ok := toNumber(v)
	if !ok {
		return defaultScore
	}
	score := int(math.Round(n))
	return min(maxScore, max(minScore, score))
}

// toNumber accepts JSON numbers and numeric strings.
func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// stringField returns obj[key] if it is a string, else "".
func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
