package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

func TestMoveValid(t *testing.T) {
	assert.True(t, model.MoveCooperate.Valid())
	assert.True(t, model.MoveDefect.Valid())
	assert.False(t, model.MoveNone.Valid())
	assert.False(t, model.Move("X").Valid())
	assert.False(t, model.Move("c").Valid(), "moves are case-sensitive symbols")
}

func TestMoveName(t *testing.T) {
	assert.Equal(t, "COOPERATE", model.MoveCooperate.Name())
	assert.Equal(t, "DEFECT", model.MoveDefect.Name())
	assert.Equal(t, "", model.MoveNone.Name())
	assert.Equal(t, "-", model.MoveNone.String())
}

func TestStrategyAgent(t *testing.T) {
	cfg := model.StrategyAgent(model.StrategyTitForTat)
	assert.Equal(t, "Strat_tit_for_tat", cfg.Name)
	assert.Equal(t, model.KindStrategy, cfg.Kind)
	assert.False(t, cfg.IsGenerative())
	require.NoError(t, cfg.Validate())
}

func TestGenerativeName(t *testing.T) {
	tests := []struct {
		model   string
		profile string
		ctx     bool
		temp    float64
		want    string
	}{
		{"qwen2.5:7b", "cooperative", true, 0.7, "O_qwen257b_coop_Ctx_T0.7"},
		{"gemma2:9b", "selfish", false, 1.5, "O_gemma29b_self_NoCtx_T1.5"},
		{"llama3", "tit_for_tat", true, 1, "O_llama3_tit__Ctx_T1.0"},
		{"m", "abc", false, 0, "O_m_abc_NoCtx_T0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, model.GenerativeName(tt.model, tt.profile, tt.ctx, tt.temp))
		})
	}
}

func TestAgentKindTableLabel(t *testing.T) {
	assert.Equal(t, "Strategy", model.KindStrategy.TableLabel())
	assert.Equal(t, "Ollama", model.KindGenerative.TableLabel())
	assert.Equal(t, "human", model.AgentKind("human").TableLabel())
}

func TestAgentConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     model.AgentConfig
		wantErr bool
	}{
		{"strategy ok", model.StrategyAgent("random"), false},
		{"unknown strategy still valid", model.StrategyAgent("no_such_strategy"), false},
		{"generative ok", model.GenerativeAgent("llama3", "default", true, 0.7), false},
		{"unknown profile still valid", model.GenerativeAgent("llama3", "zen", true, 0.7), false},
		{"missing name", model.AgentConfig{Kind: model.KindStrategy, Strategy: "random"}, true},
		{"missing strategy", model.AgentConfig{Name: "s", Kind: model.KindStrategy}, true},
		{"missing model", model.AgentConfig{Name: "g", Kind: model.KindGenerative}, true},
		{"negative temperature", model.AgentConfig{Name: "g", Kind: model.KindGenerative, Model: "m", Temperature: -1}, true},
		{"unknown kind", model.AgentConfig{Name: "x", Kind: "human"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrInvalidAgentConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTaskGenerativeAgents(t *testing.T) {
	strat := model.StrategyAgent("random")
	gen := model.GenerativeAgent("llama3", "default", true, 0.7)

	assert.Equal(t, 0, model.Task{Agent1: strat, Agent2: strat}.GenerativeAgents())
	assert.Equal(t, 1, model.Task{Agent1: strat, Agent2: gen}.GenerativeAgents())
	assert.Equal(t, 1, model.Task{Agent1: gen, Agent2: strat}.GenerativeAgents())
	assert.Equal(t, 2, model.Task{Agent1: gen, Agent2: gen}.GenerativeAgents())
}
