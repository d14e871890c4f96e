// Package config provides configuration file support for crv.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/richhaase/consensus-reviewer/internal/agent"
	"github.com/richhaase/consensus-reviewer/internal/consensus"
	"github.com/richhaase/consensus-reviewer/internal/git"
	"github.com/richhaase/consensus-reviewer/internal/runner"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = ".crv.yaml"

// Report formats accepted by the format setting.
var Formats = []string{"markdown", "json"}

// Duration is a custom type that handles YAML duration parsing.
// Supports both Go duration format ("5m", "300s") and numeric seconds.
type Duration time.Duration

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	default:
		return fmt.Errorf("invalid duration type: %T", v)
	}
	return nil
}

// AsDuration returns the underlying time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Config represents the crv configuration file. Pointer fields are nil when
// the key is absent.
type Config struct {
	AgentCommand *string         `yaml:"agent_command"`
	Concurrency  *int            `yaml:"concurrency"`
	Stagger      *Duration       `yaml:"stagger"`
	Retries      *int            `yaml:"retries"`
	RetryBackoff *Duration       `yaml:"retry_backoff"`
	Timeout      *Duration       `yaml:"timeout"`
	Base         *string         `yaml:"base"`
	Fetch        *bool           `yaml:"fetch"`
	Format       *string         `yaml:"format"`
	Models       ModelsConfig    `yaml:"models"`
	Consensus    ConsensusConfig `yaml:"consensus"`
	Filters      FilterConfig    `yaml:"filters"`
}

// ModelsConfig overrides the reviewer model line-up.
type ModelsConfig struct {
	PrimaryProvider *string                   `yaml:"primary_provider"`
	Preferred       []string                  `yaml:"preferred"`
	MaxPrimary      *int                      `yaml:"max_primary"`
	Secondary       []agent.SecondaryProvider `yaml:"secondary"`
}

// ConsensusConfig tunes how findings from different agents are grouped.
type ConsensusConfig struct {
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
	LineWindow          *int     `yaml:"line_window"`
}

// FilterConfig holds filter-related configuration.
type FilterConfig struct {
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

// LoadResult contains the loaded config and any warnings encountered.
type LoadResult struct {
	Config    *Config
	ConfigDir string
	Warnings  []string
}

// LoadWithWarnings reads .crv.yaml from the git repository root and returns warnings.
// Returns an empty config (not error) if the file doesn't exist or we are not
// in a repository.
func LoadWithWarnings() (*LoadResult, error) {
	repoRoot, err := git.GetRoot()
	if err != nil {
		return &LoadResult{Config: &Config{}}, nil
	}
	return LoadFromDirWithWarnings(repoRoot)
}

// LoadFromDirWithWarnings reads .crv.yaml from the specified directory and returns warnings.
func LoadFromDirWithWarnings(dir string) (*LoadResult, error) {
	result, err := LoadFromPathWithWarnings(filepath.Join(dir, ConfigFileName))
	if result != nil {
		result.ConfigDir = dir
	}
	return result, err
}

// LoadFromPathWithWarnings reads a config file and returns warnings for unknown keys.
// Returns an empty config (not error) if the file doesn't exist.
// Returns an error if the file exists but is invalid YAML, contains invalid
// regex patterns or out-of-range values.
func LoadFromPathWithWarnings(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &LoadResult{Config: &Config{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	warnings := checkUnknownKeys(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ConfigFileName, err)
	}

	if err := cfg.validatePatterns(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigFileName, err)
	}

	return &LoadResult{Config: &cfg, Warnings: warnings}, nil
}

// validatePatterns checks that all exclude patterns are valid regex.
func (c *Config) validatePatterns() error {
	for _, pattern := range c.Filters.ExcludePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid regex pattern %q in %s: %w", pattern, ConfigFileName, err)
		}
	}
	return nil
}

// knownKeys lists the valid keys per section; "" is the top level.
var knownKeys = map[string][]string{
	"": {
		"agent_command", "concurrency", "stagger", "retries", "retry_backoff", "timeout",
		"base", "fetch", "format", "models", "consensus", "filters",
	},
	"models":    {"primary_provider", "preferred", "max_primary", "secondary"},
	"secondary": {"provider", "preferred"},
	"consensus": {"similarity_threshold", "line_window"},
	"filters":   {"exclude_patterns"},
}

// checkUnknownKeys checks for unknown keys in the YAML data and returns warnings.
func checkUnknownKeys(data []byte) []string {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// the main parser reports the error
		return nil
	}

	warnings := unknownKeyWarnings(raw, "")

	for _, section := range []string{"models", "consensus", "filters"} {
		if m, ok := raw[section].(map[string]any); ok {
			warnings = append(warnings, unknownKeyWarnings(m, section)...)
		}
	}

	if models, ok := raw["models"].(map[string]any); ok {
		if list, ok := models["secondary"].([]any); ok {
			for _, item := range list {
				if m, ok := item.(map[string]any); ok {
					warnings = append(warnings, unknownKeyWarnings(m, "secondary")...)
				}
			}
		}
	}

	return warnings
}

func unknownKeyWarnings(m map[string]any, section string) []string {
	known := knownKeys[section]
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var warnings []string
	for _, key := range keys {
		if slices.Contains(known, key) {
			continue
		}
		warning := fmt.Sprintf("unknown key %q in %s", key, ConfigFileName)
		if section != "" {
			warning = fmt.Sprintf("unknown key %q in %s section of %s", key, section, ConfigFileName)
		}
		if suggestion := findSimilar(key, known); suggestion != "" {
			warning += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		warnings = append(warnings, warning)
	}
	return warnings
}

// findSimilar finds the most similar string from candidates using Levenshtein distance.
// Returns empty string if no candidate is similar enough (threshold: 3 edits).
func findSimilar(input string, candidates []string) string {
	const maxDistance = 3
	bestMatch := ""
	bestDistance := maxDistance + 1

	for _, candidate := range candidates {
		dist := levenshtein(input, candidate)
		if dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	if bestDistance <= maxDistance {
		return bestMatch
	}
	return ""
}

// levenshtein calculates the Levenshtein distance between two strings.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	matrix := make([][]int, len(ra)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(rb)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(ra)][len(rb)]
}

// Merge combines config file patterns with CLI patterns.
// CLI patterns are appended after config patterns (both are applied).
func Merge(cfg *Config, cliPatterns []string) []string {
	if cfg == nil {
		return cliPatterns
	}
	return append(slices.Clone(cfg.Filters.ExcludePatterns), cliPatterns...)
}

// Validate checks that all config file values are in range.
func (c *Config) Validate() error {
	if c.AgentCommand != nil && *c.AgentCommand == "" {
		return fmt.Errorf("agent_command must not be empty")
	}
	if c.Concurrency != nil && *c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", *c.Concurrency)
	}
	if c.Stagger != nil && *c.Stagger < 0 {
		return fmt.Errorf("stagger must be >= 0, got %s", time.Duration(*c.Stagger))
	}
	if c.Retries != nil && *c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", *c.Retries)
	}
	if c.RetryBackoff != nil && *c.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff must be >= 0, got %s", time.Duration(*c.RetryBackoff))
	}
	if c.Timeout != nil && *c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %s", time.Duration(*c.Timeout))
	}
	if c.Format != nil && !slices.Contains(Formats, *c.Format) {
		return fmt.Errorf("format must be one of %v, got %q", Formats, *c.Format)
	}
	if c.Models.MaxPrimary != nil && *c.Models.MaxPrimary < 1 {
		return fmt.Errorf("models.max_primary must be >= 1, got %d", *c.Models.MaxPrimary)
	}
	for i, s := range c.Models.Secondary {
		if s.Provider == "" {
			return fmt.Errorf("models.secondary[%d].provider must not be empty", i)
		}
	}
	if t := c.Consensus.SimilarityThreshold; t != nil && (*t <= 0 || *t > 1) {
		return fmt.Errorf("consensus.similarity_threshold must be in (0, 1], got %g", *t)
	}
	if w := c.Consensus.LineWindow; w != nil && *w < 0 {
		return fmt.Errorf("consensus.line_window must be >= 0, got %d", *w)
	}
	return nil
}

// ResolvedConfig holds the final resolved configuration values.
type ResolvedConfig struct {
	AgentCommand string
	Concurrency  int
	Stagger      time.Duration
	Retries      int
	RetryBackoff time.Duration
	Timeout      time.Duration
	Base         string // empty means detect master, then main
	Fetch        bool
	Format       string
	Selection    agent.SelectionPolicy
	Consensus    consensus.Policy
}

// Defaults holds the built-in default values.
var Defaults = ResolvedConfig{
	AgentCommand: agent.DefaultCommand,
	Concurrency:  runner.DefaultConcurrency,
	Stagger:      runner.DefaultStagger,
	Retries:      runner.DefaultAttempts - 1,
	RetryBackoff: runner.DefaultRetryBackoff,
	Timeout:      runner.DefaultTimeout,
	Format:       "markdown",
	Selection:    agent.DefaultSelectionPolicy,
	Consensus:    consensus.DefaultPolicy,
}

// RunnerConfig converts the resolved values into the runner's configuration.
func (r ResolvedConfig) RunnerConfig(verbose bool) runner.Config {
	return runner.Config{
		Concurrency:  r.Concurrency,
		Stagger:      r.Stagger,
		Attempts:     r.Retries + 1,
		RetryBackoff: r.RetryBackoff,
		Timeout:      r.Timeout,
		Verbose:      verbose,
	}
}

// ValidateAll checks the resolved values and returns every problem found.
func (r ResolvedConfig) ValidateAll() []string {
	var errs []string
	if r.AgentCommand == "" {
		errs = append(errs, "agent command must not be empty")
	}
	if r.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("concurrency must be >= 1, got %d", r.Concurrency))
	}
	if r.Stagger < 0 {
		errs = append(errs, fmt.Sprintf("stagger must be >= 0, got %s", r.Stagger))
	}
	if r.Retries < 0 {
		errs = append(errs, fmt.Sprintf("retries must be >= 0, got %d", r.Retries))
	}
	if r.RetryBackoff < 0 {
		errs = append(errs, fmt.Sprintf("retry_backoff must be >= 0, got %s", r.RetryBackoff))
	}
	if r.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("timeout must be > 0, got %s", r.Timeout))
	}
	if !slices.Contains(Formats, r.Format) {
		errs = append(errs, fmt.Sprintf("format must be one of %v, got %q", Formats, r.Format))
	}
	return errs
}

// FlagState tracks whether a flag was explicitly set.
type FlagState struct {
	AgentCommandSet bool
	ConcurrencySet  bool
	StaggerSet      bool
	RetriesSet      bool
	TimeoutSet      bool
	BaseSet         bool
	FetchSet        bool
	FormatSet       bool
}

// EnvState captures env var values and whether they were set.
type EnvState struct {
	AgentCommand    string
	AgentCommandSet bool
	Concurrency     int
	ConcurrencySet  bool
	Stagger         time.Duration
	StaggerSet      bool
	Retries         int
	RetriesSet      bool
	RetryBackoff    time.Duration
	RetryBackoffSet bool
	Timeout         time.Duration
	TimeoutSet      bool
	Base            string
	BaseSet         bool
	Fetch           bool
	FetchSet        bool
	Format          string
	FormatSet       bool
}

// LoadEnvState reads CRV_* environment variables. Values that fail to parse
// are ignored and reported as warnings.
func LoadEnvState() (EnvState, []string) {
	var state EnvState
	var warnings []string

	if v := os.Getenv("CRV_AGENT_COMMAND"); v != "" {
		state.AgentCommand = v
		state.AgentCommandSet = true
	}
	if v := os.Getenv("CRV_CONCURRENCY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			state.Concurrency = i
			state.ConcurrencySet = true
		} else {
			warnings = append(warnings, fmt.Sprintf("CRV_CONCURRENCY=%q is not an integer", v))
		}
	}
	if v := os.Getenv("CRV_STAGGER"); v != "" {
		if d, ok := parseEnvDuration(v); ok {
			state.Stagger = d
			state.StaggerSet = true
		} else {
			warnings = append(warnings, fmt.Sprintf("CRV_STAGGER=%q is not a duration", v))
		}
	}
	if v := os.Getenv("CRV_RETRIES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			state.Retries = i
			state.RetriesSet = true
		} else {
			warnings = append(warnings, fmt.Sprintf("CRV_RETRIES=%q is not an integer", v))
		}
	}
	if v := os.Getenv("CRV_RETRY_BACKOFF"); v != "" {
		if d, ok := parseEnvDuration(v); ok {
			state.RetryBackoff = d
			state.RetryBackoffSet = true
		} else {
			warnings = append(warnings, fmt.Sprintf("CRV_RETRY_BACKOFF=%q is not a duration", v))
		}
	}
	if v := os.Getenv("CRV_TIMEOUT"); v != "" {
		if d, ok := parseEnvDuration(v); ok {
			state.Timeout = d
			state.TimeoutSet = true
		} else {
			warnings = append(warnings, fmt.Sprintf("CRV_TIMEOUT=%q is not a duration", v))
		}
	}
	if v := os.Getenv("CRV_BASE_REF"); v != "" {
		state.Base = v
		state.BaseSet = true
	}
	if v := os.Getenv("CRV_FETCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			state.Fetch = b
			state.FetchSet = true
		} else {
			warnings = append(warnings, fmt.Sprintf("CRV_FETCH=%q is not a boolean", v))
		}
	}
	if v := os.Getenv("CRV_FORMAT"); v != "" {
		state.Format = v
		state.FormatSet = true
	}

	return state, warnings
}

// parseEnvDuration accepts Go durations and plain seconds.
func parseEnvDuration(v string) (time.Duration, bool) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

// Resolve merges config file values with env vars and flags.
// Precedence: flags > env vars > config file > defaults
func Resolve(cfg *Config, envState EnvState, flagState FlagState, flagValues ResolvedConfig) ResolvedConfig {
	result := Defaults
	result.Selection = cloneSelection(Defaults.Selection)

	if cfg != nil {
		if cfg.AgentCommand != nil {
			result.AgentCommand = *cfg.AgentCommand
		}
		if cfg.Concurrency != nil {
			result.Concurrency = *cfg.Concurrency
		}
		if cfg.Stagger != nil {
			result.Stagger = cfg.Stagger.AsDuration()
		}
		if cfg.Retries != nil {
			result.Retries = *cfg.Retries
		}
		if cfg.RetryBackoff != nil {
			result.RetryBackoff = cfg.RetryBackoff.AsDuration()
		}
		if cfg.Timeout != nil {
			result.Timeout = cfg.Timeout.AsDuration()
		}
		if cfg.Base != nil {
			result.Base = *cfg.Base
		}
		if cfg.Fetch != nil {
			result.Fetch = *cfg.Fetch
		}
		if cfg.Format != nil {
			result.Format = *cfg.Format
		}
		if cfg.Models.PrimaryProvider != nil {
			result.Selection.PrimaryProvider = *cfg.Models.PrimaryProvider
		}
		if cfg.Models.Preferred != nil {
			result.Selection.Preferred = cfg.Models.Preferred
		}
		if cfg.Models.MaxPrimary != nil {
			result.Selection.MaxPrimary = *cfg.Models.MaxPrimary
		}
		if cfg.Models.Secondary != nil {
			result.Selection.Secondary = cfg.Models.Secondary
		}
		if cfg.Consensus.SimilarityThreshold != nil {
			result.Consensus.SimilarityThreshold = *cfg.Consensus.SimilarityThreshold
		}
		if cfg.Consensus.LineWindow != nil {
			result.Consensus.LineWindow = *cfg.Consensus.LineWindow
		}
	}

	if envState.AgentCommandSet {
		result.AgentCommand = envState.AgentCommand
	}
	if envState.ConcurrencySet {
		result.Concurrency = envState.Concurrency
	}
	if envState.StaggerSet {
		result.Stagger = envState.Stagger
	}
	if envState.RetriesSet {
		result.Retries = envState.Retries
	}
	if envState.RetryBackoffSet {
		result.RetryBackoff = envState.RetryBackoff
	}
	if envState.TimeoutSet {
		result.Timeout = envState.Timeout
	}
	if envState.BaseSet {
		result.Base = envState.Base
	}
	if envState.FetchSet {
		result.Fetch = envState.Fetch
	}
	if envState.FormatSet {
		result.Format = envState.Format
	}

	if flagState.AgentCommandSet {
		result.AgentCommand = flagValues.AgentCommand
	}
	if flagState.ConcurrencySet {
		result.Concurrency = flagValues.Concurrency
	}
	if flagState.StaggerSet {
		result.Stagger = flagValues.Stagger
	}
	if flagState.RetriesSet {
		result.Retries = flagValues.Retries
	}
	if flagState.TimeoutSet {
		result.Timeout = flagValues.Timeout
	}
	if flagState.BaseSet {
		result.Base = flagValues.Base
	}
	if flagState.FetchSet {
		result.Fetch = flagValues.Fetch
	}
	if flagState.FormatSet {
		result.Format = flagValues.Format
	}

	return result
}

func cloneSelection(p agent.SelectionPolicy) agent.SelectionPolicy {
	p.Preferred = slices.Clone(p.Preferred)
	p.Secondary = slices.Clone(p.Secondary)
	return p
}

// StarterFile is the commented template written by `crv config init`.
const StarterFile = `# crv configuration file

# Host agent CLI used to run every reviewer (default: pi)
# agent_command: pi

# Maximum reviewers running at once (default: 4)
# concurrency: 4

# Delay between reviewer starts, Go duration format (default: 1500ms)
# stagger: 1500ms

# Extra attempts when the host agent reports lock contention (default: 2)
# retries: 2

# Backoff unit between attempts; attempt N waits N times this (default: 3s)
# retry_backoff: 3s

# Timeout per reviewer (default: 10m)
# timeout: 10m

# Base branch for local reviews (default: master, else main)
# base: main

# Fetch the base branch from origin before diffing (default: false)
# fetch: false

# Report format: markdown or json (default: markdown)
# format: markdown

# Reviewer line-up
# models:
#   primary_provider: anthropic
#   preferred: [claude-opus-4-5, claude-sonnet-4-5, claude-haiku-4-5]
#   max_primary: 3
#   secondary:
#     - provider: openai
#       preferred: [gpt-5.1-codex, gpt-5.1]
#     - provider: google
#       preferred: [gemini-2.5-pro]

# Finding grouping
# consensus:
#   similarity_threshold: 0.3
#   line_window: 15

# Findings whose file, title or description match are dropped
# filters:
#   exclude_patterns:
#     - "pattern to exclude"
`
