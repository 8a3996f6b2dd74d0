// Package decision turns an agent configuration into a decision function.
//
// Both variants share one contract: given the agent's own moves and the
// opponent's moves so far, return exactly one move. A decision function never
// fails. Rule-based strategies always return a legal move; generative agents
// return model.MoveNone when the backend errors or its answer cannot be
// parsed, and the match engine applies the fallback policy.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
	"github.com/hatim381/dilemme-du-prisonnier/internal/service/generation"
)

// Func decides the next move from both histories. Histories must be treated
// as read-only.
type Func func(ctx context.Context, own, opponent []model.Move) model.Move

// Deps are the collaborators a decision function may need.
type Deps struct {
	// Backend serves generative agents. Required for KindGenerative.
	Backend generation.Backend
	// Rand drives the random strategy. A nil Rand uses the global source.
	Rand *rand.Rand
	// Logger receives configuration warnings and backend failures.
	Logger *slog.Logger
}

// New resolves cfg into its decision function once, at construction time.
func New(cfg model.AgentConfig, deps Deps) (Func, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case model.KindGenerative:
		if deps.Backend == nil {
			return nil, fmt.Errorf("decision: %s: generative agent needs a backend", cfg.Name)
		}
		return Generative(cfg, deps.Backend, logger), nil
	default:
		return Strategy(cfg.Strategy, deps.Rand, logger), nil
	}
}
