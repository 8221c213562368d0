// Package config holds the external collaborator that loads the debate
// panel roster and run configuration. The orchestrator itself never reads
// a file path — it only ever sees the typed structs this package produces
// (spec.md §6, "Configuration surface consumed from external collaborators").
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// InputMode controls how the prompt is delivered to an agent process.
type InputMode string

const (
	// ArgMode substitutes the prompt into the {PROMPT} argument token.
	ArgMode InputMode = "arg"
	// StdinMode writes the prompt to stdin and closes it (EOF).
	StdinMode InputMode = "stdin"
)

// PromptToken is the literal placeholder an AgentDescriptor's Args must
// contain at least once (spec.md §3 invariant).
const PromptToken = "{PROMPT}"

// AgentDescriptor is the immutable, externally-supplied description of one
// panel member. Descriptors are shared read-only across every component for
// the lifetime of a run (spec.md §3, "Ownership summary").
type AgentDescriptor struct {
	ID          string    `yaml:"id"`
	DisplayName string    `yaml:"display_name"`
	Avatar      string    `yaml:"avatar,omitempty"`
	Color       string    `yaml:"color,omitempty"`
	Cmd         string    `yaml:"cmd"`
	Args        []string  `yaml:"args"`
	InputMode   InputMode `yaml:"input_mode"`
	TimeoutMS   int       `yaml:"timeout_ms"`

	// ResponseParser selects a parserkit registry entry; empty falls back
	// to the default parser (spec.md §4.2).
	ResponseParser string `yaml:"response_parser,omitempty"`
}

// ConsensusMode selects the threshold applied by the Consensus Evaluator.
type ConsensusMode string

const (
	ModeUnanimous ConsensusMode = "unanimous"
	ModeSuper     ConsensusMode = "super"
	ModeMajority  ConsensusMode = "majority"
)

// OwnerMode selects how owner approvals are combined.
type OwnerMode string

const (
	OwnerAny OwnerMode = "any"
	OwnerAll OwnerMode = "all"
)

// OwnerConfig configures the veto-holder approval gate (spec.md §4.8).
type OwnerConfig struct {
	IDs      []string  `yaml:"ids"`
	MinScore float64   `yaml:"min_score"`
	Mode     OwnerMode `yaml:"mode"`
}

// PromptTemplates holds one template string per debate phase plus the
// action-gate/execute templates (spec.md §4.4).
type PromptTemplates struct {
	Propose        string `yaml:"propose"`
	Critique       string `yaml:"critique"`
	Revise         string `yaml:"revise"`
	Vote           string `yaml:"vote"`
	ActionAgree    string `yaml:"action_agree"`
	ActionExecute  string `yaml:"action_execute"`
}

// RunConfig is the full configuration surface consumed by the orchestrator
// (spec.md §6). It is produced once, outside the orchestrator, and passed
// in as a value — the orchestrator never mutates or reloads it.
type RunConfig struct {
	Roster []AgentDescriptor `yaml:"roster"`

	ConsensusMode ConsensusMode `yaml:"consensus_mode"`
	MaxRounds     int           `yaml:"max_rounds"`

	UnanimousPct      float64 `yaml:"unanimous_pct"`
	SuperMajorityPct  float64 `yaml:"super_majority_pct"`
	MajorityPct       float64 `yaml:"majority_pct"`
	RubberPenalty     float64 `yaml:"rubber_penalty"`
	ResponseThreshold float64 `yaml:"response_threshold"`
	RequireNoBlockers bool    `yaml:"require_no_blockers"`

	Owner     OwnerConfig     `yaml:"owner"`
	Templates PromptTemplates `yaml:"templates"`

	// MaxConcurrentAgents bounds the Phase Executor's fan-out (0 = unbounded,
	// one goroutine per agent). See SPEC_FULL.md domain-stack notes.
	MaxConcurrentAgents int `yaml:"max_concurrent_agents"`
}

// DefaultRunConfig returns the spec's documented defaults (spec.md §6).
func DefaultRunConfig() RunConfig {
	return RunConfig{
		ConsensusMode:     ModeSuper,
		MaxRounds:         5,
		UnanimousPct:      0.99,
		SuperMajorityPct:  0.75,
		MajorityPct:       0.5,
		RubberPenalty:     0.5,
		ResponseThreshold: 0.8,
		RequireNoBlockers: false,
		Owner:             OwnerConfig{},
	}
}

// Load reads and validates a YAML run configuration file. This is the
// external collaborator the orchestrator never calls itself (spec.md §1
// Non-goals: "it does not persist state across invocations" — loading a
// roster once at process start is not persistence across runs).
func Load(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultRunConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return RunConfig{}, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the roster invariants from spec.md §3: unique IDs, unique
// display names, and at least one {PROMPT} token per descriptor's Args.
func Validate(cfg RunConfig) error {
	if len(cfg.Roster) == 0 {
		return fmt.Errorf("roster must contain at least one agent")
	}

	ids := make(map[string]bool, len(cfg.Roster))
	names := make(map[string]bool, len(cfg.Roster))

	for i, a := range cfg.Roster {
		if a.ID == "" {
			return fmt.Errorf("roster[%d]: id is required", i)
		}
		if a.DisplayName == "" {
			return fmt.Errorf("roster[%d] (%s): display_name is required", i, a.ID)
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		if names[a.DisplayName] {
			return fmt.Errorf("duplicate agent display_name %q", a.DisplayName)
		}
		ids[a.ID] = true
		names[a.DisplayName] = true

		if a.InputMode != ArgMode && a.InputMode != StdinMode {
			return fmt.Errorf("agent %q: input_mode must be %q or %q", a.ID, ArgMode, StdinMode)
		}
		if a.TimeoutMS <= 0 {
			return fmt.Errorf("agent %q: timeout_ms must be positive", a.ID)
		}

		hasPromptToken := false
		for _, arg := range a.Args {
			if strings.Contains(arg, PromptToken) {
				hasPromptToken = true
				break
			}
		}
		if !hasPromptToken {
			return fmt.Errorf("agent %q: args must contain the literal token %q", a.ID, PromptToken)
		}
	}

	if cfg.MaxRounds < 1 {
		return fmt.Errorf("max_rounds must be >= 1")
	}

	return nil
}
