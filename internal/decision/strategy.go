package decision

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

var strategies = map[string]func(rng *rand.Rand) Func{
	model.StrategyRandom:          Random,
	model.StrategyAlwaysCooperate: func(*rand.Rand) Func { return Constant(model.MoveCooperate) },
	model.StrategyAlwaysDefect:    func(*rand.Rand) Func { return Constant(model.MoveDefect) },
	model.StrategyTitForTat:       func(*rand.Rand) Func { return TitForTat },
	model.StrategyGrimTrigger:     func(*rand.Rand) Func { return GrimTrigger },
}

// Strategies returns the known strategy names, sorted.
func Strategies() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownStrategy reports whether name is a built-in strategy.
func KnownStrategy(name string) bool {
	_, ok := strategies[name]
	return ok
}

// Strategy returns the rule for name. Unknown names play Random.
func Strategy(name string, rng *rand.Rand, logger *slog.Logger) Func {
	build, ok := strategies[name]
	if !ok {
		if logger != nil {
			logger.Warn("decision: unknown strategy, playing random", "strategy", name)
		}
		build = Random
	}
	return build(rng)
}

// Random picks Cooperate or Defect uniformly.
func Random(rng *rand.Rand) Func {
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	return func(context.Context, []model.Move, []model.Move) model.Move {
		if intN(2) == 0 {
			return model.MoveCooperate
		}
		return model.MoveDefect
	}
}

// Constant always plays m.
func Constant(m model.Move) Func {
	return func(context.Context, []model.Move, []model.Move) model.Move { return m }
}

// TitForTat cooperates first, then repeats the opponent's last move.
func TitForTat(_ context.Context, _, opponent []model.Move) model.Move {
	if len(opponent) == 0 {
		return model.MoveCooperate
	}
	return opponent[len(opponent)-1]
}

// GrimTrigger cooperates until the opponent has defected once, then defects
// forever. The trigger is recomputed from the full history every round.
func GrimTrigger(_ context.Context, _, opponent []model.Move) model.Move {
	if slices.Contains(opponent, model.MoveDefect) {
		return model.MoveDefect
	}
	return model.MoveCooperate
}
