package agent

import (
	"errors"
	"strings"

	"github.com/richhaase/consensus-reviewer/internal/domain"
)

// ErrNoModels indicates no reviewer model could be selected.
var ErrNoModels = errors.New("no review models available")

// DefaultMaxPrimary is the number of primary-provider models selected by default.
const DefaultMaxPrimary = 3

// Model is one model the host runtime can use.
type Model struct {
	Provider string
	ID       string
}

// SecondaryProvider contributes at most one reviewer.
type SecondaryProvider struct {
	Provider  string   `yaml:"provider"`
	Preferred []string `yaml:"preferred"`
}

// SelectionPolicy decides which available models become reviewers.
type SelectionPolicy struct {
	PrimaryProvider string
	Preferred       []string
	MaxPrimary      int
	Secondary       []SecondaryProvider
}

// DefaultSelectionPolicy is the built-in reviewer line-up.
var DefaultSelectionPolicy = SelectionPolicy{
	PrimaryProvider: "anthropic",
	Preferred:       []string{"claude-opus-4-5", "claude-sonnet-4-5", "claude-haiku-4-5"},
	MaxPrimary:      DefaultMaxPrimary,
	Secondary: []SecondaryProvider{
		{Provider: "openai", Preferred: []string{"gpt-5.1-codex", "gpt-5.1", "gpt-5"}},
		{Provider: "google", Preferred: []string{"gemini-2.5-pro"}},
	},
}

// ParseModelList parses the table printed by `--list-models`. The first two
// whitespace-separated columns are provider and model ID; a header row whose
// first column is "provider" is skipped.
func ParseModelList(output string) []Model {
	var models []Model
	seen := make(map[Model]bool)

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if strings.EqualFold(fields[0], "provider") {
			continue
		}
		m := Model{Provider: fields[0], ID: fields[1]}
		if seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}

	return models
}

// SelectModels picks reviewers from the available models: up to MaxPrimary
// models of the primary provider in preference order (falling back to the
// provider's first available models when no preferred ID matches), plus at
// most one model for each secondary provider that is available.
// Returns ErrNoModels if nothing can be selected.
func SelectModels(available []Model, policy SelectionPolicy) ([]domain.ModelSelection, error) {
	maxPrimary := policy.MaxPrimary
	if maxPrimary <= 0 {
		maxPrimary = DefaultMaxPrimary
	}

	var picked []Model

	primary := modelsFor(available, policy.PrimaryProvider)
	chosen := pickPreferred(primary, policy.Preferred, maxPrimary)
	if len(chosen) == 0 {
		chosen = primary[:min(maxPrimary, len(primary))]
	}
	picked = append(picked, chosen...)

	for _, sec := range policy.Secondary {
		if sec.Provider == policy.PrimaryProvider {
			continue
		}
		candidates := modelsFor(available, sec.Provider)
		if len(candidates) == 0 {
			continue
		}
		one := pickPreferred(candidates, sec.Preferred, 1)
		if len(one) == 0 {
			one = candidates[:1]
		}
		picked = append(picked, one...)
	}

	if len(picked) == 0 {
		return nil, ErrNoModels
	}

	return toSelections(picked), nil
}

func modelsFor(available []Model, provider string) []Model {
	var out []Model
	for _, m := range available {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

// pickPreferred returns up to limit models matching preferred IDs, in
// preference order. An exact ID match wins over a dated variant
// ("claude-sonnet-4-5" matches "claude-sonnet-4-5-20250929").
func pickPreferred(candidates []Model, preferred []string, limit int) []Model {
	var out []Model
	used := make(map[Model]bool)

	for _, pref := range preferred {
		if len(out) >= limit {
			break
		}
		if m, ok := matchModel(candidates, pref, used); ok {
			used[m] = true
			out = append(out, m)
		}
	}
	return out
}

func matchModel(candidates []Model, pref string, used map[Model]bool) (Model, bool) {
	for _, m := range candidates {
		if !used[m] && m.ID == pref {
			return m, true
		}
	}
	for _, m := range candidates {
		if !used[m] && strings.HasPrefix(m.ID, pref+"-") {
			return m, true
		}
	}
	return Model{}, false
}

// toSelections assigns display names, qualifying with the provider only when
// two selected models share an ID.
func toSelections(models []Model) []domain.ModelSelection {
	counts := make(map[string]int)
	for _, m := range models {
		counts[m.ID]++
	}

	out := make([]domain.ModelSelection, 0, len(models))
	for _, m := range models {
		name := m.ID
		if counts[m.ID] > 1 {
			name = m.Provider + "/" + m.ID
		}
		out = append(out, domain.ModelSelection{
			Provider:    m.Provider,
			ModelID:     m.ID,
			DisplayName: name,
		})
	}
	return out
}
