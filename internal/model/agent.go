package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAgentConfig is returned by AgentConfig.Validate.
var ErrInvalidAgentConfig = errors.New("model: invalid agent config")

// AgentKind distinguishes rule-based agents from model-backed agents.
type AgentKind string

const (
	KindStrategy   AgentKind = "strategy"
	KindGenerative AgentKind = "generative"
)

// TableLabel is the agentN_type value written to round logs. The labels
// predate the generic backend and are kept so existing result tables line up.
func (k AgentKind) TableLabel() string {
	switch k {
	case KindStrategy:
		return "Strategy"
	case KindGenerative:
		return "Ollama"
	default:
		return string(k)
	}
}

// Strategy names understood by the strategy decision provider.
const (
	StrategyRandom          = "random"
	StrategyAlwaysCooperate = "always_cooperate"
	StrategyAlwaysDefect    = "always_defect"
	StrategyTitForTat       = "tit_for_tat"
	StrategyGrimTrigger     = "grim_trigger"
)

// Behavioral profile names for generative agents.
const (
	ProfileDefault     = "default"
	ProfileCooperative = "cooperative"
	ProfileGrudger     = "grudger"
	ProfileTitForTat   = "tit_for_tat"
	ProfileRandom      = "random"
	ProfileSelfish     = "selfish"
)

// AgentConfig is the static description of one agent. It is a pure value
// used to build a fresh agent state for every match.
type AgentConfig struct {
	Name string    `json:"name" yaml:"name"`
	Kind AgentKind `json:"kind" yaml:"kind"`

	// Strategy agents.
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// Generative agents.
	Model          string  `json:"model,omitempty" yaml:"model,omitempty"`
	Profile        string  `json:"profile,omitempty" yaml:"profile,omitempty"`
	IncludeContext bool    `json:"include_context,omitempty" yaml:"include_context,omitempty"`
	Temperature    float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// StrategyAgent returns the config of a rule-based agent named after its strategy.
func StrategyAgent(strategy string) AgentConfig {
	return AgentConfig{
		Name:     "Strat_" + strategy,
		Kind:     KindStrategy,
		Strategy: strategy,
	}
}

// GenerativeAgent returns the config of a model-backed agent with a
// deterministic name derived from all of its parameters.
func GenerativeAgent(modelID, profile string, includeContext bool, temperature float64) AgentConfig {
	return AgentConfig{
		Name:           GenerativeName(modelID, profile, includeContext, temperature),
		Kind:           KindGenerative,
		Model:          modelID,
		Profile:        profile,
		IncludeContext: includeContext,
		Temperature:    temperature,
	}
}

// GenerativeName builds names like "O_qwen257b_coop_Ctx_T0.7".
func GenerativeName(modelID, profile string, includeContext bool, temperature float64) string {
	short := strings.NewReplacer(":", "", ".", "").Replace(modelID)
	prof := profile
	if len(prof) > 4 {
		prof = prof[:4]
	}
	ctx := "NoCtx"
	if includeContext {
		ctx = "Ctx"
	}
	return fmt.Sprintf("O_%s_%s_%s_T%s", short, prof, ctx, formatTemperature(temperature))
}

// formatTemperature keeps at least one decimal place: 1 renders as "1.0".
func formatTemperature(t float64) string {
	s := strconv.FormatFloat(t, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// IsGenerative reports whether decisions for this agent come from a backend.
func (c AgentConfig) IsGenerative() bool {
	return c.Kind == KindGenerative
}

// Validate checks the fields required by the agent's kind. Unknown strategy
// and profile names are not errors: the decision providers fall back to
// defaults for those.
func (c AgentConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAgentConfig)
	}
	switch c.Kind {
	case KindStrategy:
		if c.Strategy == "" {
			return fmt.Errorf("%w: %s: strategy is required", ErrInvalidAgentConfig, c.Name)
		}
	case KindGenerative:
		if c.Model == "" {
			return fmt.Errorf("%w: %s: model is required", ErrInvalidAgentConfig, c.Name)
		}
		if c.Temperature < 0 {
			return fmt.Errorf("%w: %s: temperature must be non-negative", ErrInvalidAgentConfig, c.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidAgentConfig, c.Name, c.Kind)
	}
	return nil
}
