package game

import (
	"slices"

	"github.com/hatim381/dilemme-du-prisonnier/internal/decision"
	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

// AgentState is the mutable per-match record of one agent. It is owned by a
// single Match and must not be shared across matches or goroutines.
type AgentState struct {
	config  model.AgentConfig
	decide  decision.Func
	history []model.Move
	score   int64
}

// NewAgentState binds a config to its resolved decision function.
func NewAgentState(cfg model.AgentConfig, decide decision.Func) *AgentState {
	return &AgentState{config: cfg, decide: decide}
}

// Config returns the agent's static configuration.
func (a *AgentState) Config() model.AgentConfig { return a.config }

// Name returns the agent's identity.
func (a *AgentState) Name() string { return a.config.Name }

// History returns a copy of the agent's moves so far.
func (a *AgentState) History() []model.Move { return slices.Clone(a.history) }

// Score returns the cumulative score.
func (a *AgentState) Score() int64 { return a.score }

func (a *AgentState) reset() {
	a.history = nil
	a.score = 0
}

func (a *AgentState) record(m model.Move, points int64) {
	a.history = append(a.history, m)
	a.score += points
}
