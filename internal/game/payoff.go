// Package game runs single iterated prisoner's dilemma matches: it owns the
// payoff table, the per-match agent state and the round-by-round engine.
package game

import (
	"fmt"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

// PayoffTable holds the four dilemma payoffs. Temptation is paid to a lone
// defector, Reward to mutual cooperators, Punishment to mutual defectors and
// Sucker to a lone cooperator.
type PayoffTable struct {
	Temptation int64
	Reward     int64
	Punishment int64
	Sucker     int64
}

// ClassicPayoffs is the standard matrix: (C,C)=(3,3), (C,D)=(0,5),
// (D,C)=(5,0), (D,D)=(1,1).
var ClassicPayoffs = PayoffTable{Temptation: 5, Reward: 3, Punishment: 1, Sucker: 0}

// Validate checks the dilemma ordering T > R > P > S.
func (p PayoffTable) Validate() error {
	if !(p.Temptation > p.Reward && p.Reward > p.Punishment && p.Punishment > p.Sucker) {
		return fmt.Errorf("game: payoffs must satisfy T > R > P > S, got T=%d R=%d P=%d S=%d",
			p.Temptation, p.Reward, p.Punishment, p.Sucker)
	}
	if p.Sucker < 0 {
		return fmt.Errorf("game: payoffs must be non-negative, got S=%d", p.Sucker)
	}
	return nil
}

// Score returns the (first, second) payoffs for the ordered move pair.
// Moves must already be sanitized; anything other than Defect scores as
// Cooperate.
func (p PayoffTable) Score(first, second model.Move) (int64, int64) {
	firstDefects := first == model.MoveDefect
	secondDefects := second == model.MoveDefect
	switch {
	case !firstDefects && !secondDefects:
		return p.Reward, p.Reward
	case !firstDefects && secondDefects:
		return p.Sucker, p.Temptation
	case firstDefects && !secondDefects:
		return p.Temptation, p.Sucker
	default:
		return p.Punishment, p.Punishment
	}
}

// Sanitize coerces anything outside {Cooperate, Defect}, including the
// "no decision" sentinel, to Cooperate. The second return value reports
// whether the fallback was applied.
func Sanitize(m model.Move) (model.Move, bool) {
	if m.Valid() {
		return m, false
	}
	return model.MoveCooperate, true
}
