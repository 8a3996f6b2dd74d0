package decision_test

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatim381/dilemme-du-prisonnier/internal/decision"
	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
	"github.com/hatim381/dilemme-du-prisonnier/internal/service/generation"
)

const (
	C = model.MoveCooperate
	D = model.MoveDefect
)

func moves(s string) []model.Move {
	out := make([]model.Move, 0, len(s))
	for _, r := range s {
		out = append(out, model.Move(string(r)))
	}
	return out
}

func TestConstantStrategies(t *testing.T) {
	ctx := context.Background()
	coop := decision.Strategy(model.StrategyAlwaysCooperate, nil, nil)
	def := decision.Strategy(model.StrategyAlwaysDefect, nil, nil)
	for _, opp := range []string{"", "D", "DDDD", "CDCD"} {
		assert.Equal(t, C, coop(ctx, nil, moves(opp)))
		assert.Equal(t, D, def(ctx, nil, moves(opp)))
	}
}

func TestTitForTat(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		opponent string
		want     model.Move
	}{
		{"", C},
		{"C", C},
		{"D", D},
		{"DDC", C},
		{"CCD", D},
	}
	for _, tt := range tests {
		t.Run("opp="+tt.opponent, func(t *testing.T) {
			assert.Equal(t, tt.want, decision.TitForTat(ctx, nil, moves(tt.opponent)))
		})
	}
}

func TestGrimTriggerScansFullHistory(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, C, decision.GrimTrigger(ctx, nil, nil))
	assert.Equal(t, C, decision.GrimTrigger(ctx, nil, moves("CCCC")))
	assert.Equal(t, D, decision.GrimTrigger(ctx, nil, moves("CD")))
	// A defection far back still triggers, even after many cooperations.
	assert.Equal(t, D, decision.GrimTrigger(ctx, nil, moves("D"+strings.Repeat("C", 50))))
}

func TestRandomIsSeeded(t *testing.T) {
	ctx := context.Background()
	play := func(seed uint64) []model.Move {
		f := decision.Random(rand.New(rand.NewPCG(seed, 1)))
		out := make([]model.Move, 100)
		for i := range out {
			out[i] = f(ctx, nil, nil)
		}
		return out
	}
	a, b := play(42), play(42)
	assert.Equal(t, a, b, "same seed must replay the same sequence")
	assert.Contains(t, a, C)
	assert.Contains(t, a, D)
}

func TestUnknownStrategyPlaysRandom(t *testing.T) {
	f := decision.Strategy("tit_for_two_tats", rand.New(rand.NewPCG(1, 2)), slog.New(slog.DiscardHandler))
	seen := map[model.Move]bool{}
	for range 100 {
		m := f(context.Background(), nil, nil)
		require.True(t, m.Valid())
		seen[m] = true
	}
	assert.Len(t, seen, 2)
}

func TestStrategiesAndProfiles(t *testing.T) {
	assert.Equal(t, []string{"always_cooperate", "always_defect", "grim_trigger", "random", "tit_for_tat"}, decision.Strategies())
	assert.True(t, decision.KnownStrategy(model.StrategyGrimTrigger))
	assert.False(t, decision.KnownStrategy("nope"))
	assert.Len(t, decision.Profiles(), 6)
}

func TestSystemPromptFallsBackToDefault(t *testing.T) {
	def, ok := decision.SystemPrompt(model.ProfileDefault)
	require.True(t, ok)

	coop, ok := decision.SystemPrompt("Cooperative")
	require.True(t, ok, "lookup is case-insensitive")
	assert.Contains(t, coop, "cooperative agent")

	got, ok := decision.SystemPrompt("philosopher")
	assert.False(t, ok)
	assert.Equal(t, def, got)
}

func TestParseMove(t *testing.T) {
	tests := []struct {
		in   string
		want model.Move
	}{
		{"C", C},
		{"d", D},
		{"  D\n", D},
		{"'C'", C},
		{"\"D\".", D},
		{"**C**", C},
		{"I will COOPERATE this round", C},
		{"defect", D},
		{"Defect!", D},
		{"cooperate or defect?", model.MoveNone},
		{"", model.MoveNone},
		{"maybe", model.MoveNone},
		{"CD", model.MoveNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, decision.ParseMove(tt.in))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Run("context toggles preamble only", func(t *testing.T) {
		with := decision.BuildPrompt(true, "Be nice.", nil, nil)
		without := decision.BuildPrompt(false, "Be nice.", nil, nil)
		assert.True(t, strings.HasPrefix(with, "You are playing the Iterated Prisoner's Dilemma."))
		assert.True(t, strings.HasPrefix(without, "You are playing a game with two options."))
		assert.Equal(t,
			strings.SplitN(with, "\n", 2)[1],
			strings.SplitN(without, "\n", 2)[1])
	})

	t.Run("history window is the last five rounds", func(t *testing.T) {
		own := moves("CCCCCCCD")
		opp := moves("DDDDDDDC")
		p := decision.BuildPrompt(true, "Be nice.", own, opp)
		assert.NotContains(t, p, "Round 3:")
		assert.Contains(t, p, "Round 4: You played C, Opponent played D")
		assert.Contains(t, p, "Round 8: You played D, Opponent played C")
		assert.Equal(t, 5, strings.Count(p, "Round "))
	})

	t.Run("ends with the answer instruction", func(t *testing.T) {
		p := decision.BuildPrompt(false, "x", nil, nil)
		assert.True(t, strings.HasSuffix(p, "Respond with ONLY the single character 'C' or 'D'."))
		assert.Contains(t, p, "Game History (last 5 moves):")
	})
}

func TestGenerativeDecisions(t *testing.T) {
	cfg := model.GenerativeAgent("qwen2.5:7b", model.ProfileGrudger, true, 0.7)
	logger := slog.New(slog.DiscardHandler)

	t.Run("passes request fields", func(t *testing.T) {
		var got generation.Request
		backend := generation.BackendFunc(func(_ context.Context, req generation.Request) (string, error) {
			got = req
			return " D ", nil
		})
		f := decision.Generative(cfg, backend, logger)
		assert.Equal(t, D, f(context.Background(), moves("C"), moves("D")))
		assert.Equal(t, "qwen2.5:7b", got.Model)
		assert.InDelta(t, 0.7, got.Temperature, 1e-9)
		assert.Contains(t, got.System, "rancorous")
		assert.Contains(t, got.Prompt, "Round 1: You played C, Opponent played D")
	})

	t.Run("backend error is no decision", func(t *testing.T) {
		backend := generation.BackendFunc(func(context.Context, generation.Request) (string, error) {
			return "", errors.New("connection refused")
		})
		f := decision.Generative(cfg, backend, logger)
		assert.Equal(t, model.MoveNone, f(context.Background(), nil, nil))
	})

	t.Run("unparseable answer is no decision", func(t *testing.T) {
		backend := generation.BackendFunc(func(context.Context, generation.Request) (string, error) {
			return "I refuse to play.", nil
		})
		f := decision.Generative(cfg, backend, logger)
		assert.Equal(t, model.MoveNone, f(context.Background(), nil, nil))
	})
}

func TestNew(t *testing.T) {
	t.Run("strategy", func(t *testing.T) {
		f, err := decision.New(model.StrategyAgent(model.StrategyTitForTat), decision.Deps{})
		require.NoError(t, err)
		assert.Equal(t, D, f(context.Background(), moves("C"), moves("D")))
	})

	t.Run("generative needs a backend", func(t *testing.T) {
		_, err := decision.New(model.GenerativeAgent("m", "default", false, 0.5), decision.Deps{})
		require.Error(t, err)
	})

	t.Run("generative with backend", func(t *testing.T) {
		deps := decision.Deps{Backend: generation.BackendFunc(func(context.Context, generation.Request) (string, error) {
			return "C", nil
		})}
		f, err := decision.New(model.GenerativeAgent("m", "default", false, 0.5), deps)
		require.NoError(t, err)
		assert.Equal(t, C, f(context.Background(), nil, nil))
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := decision.New(model.AgentConfig{Name: "x", Kind: "oracle"}, decision.Deps{})
		require.ErrorIs(t, err, model.ErrInvalidAgentConfig)
	})
}
