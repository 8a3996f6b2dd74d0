package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
	"github.com/hatim381/dilemme-du-prisonnier/internal/storage"
	"github.com/hatim381/dilemme-du-prisonnier/internal/telemetry"
)

var (
	// ErrMatchNotStarted is returned by PlayRound before Reset.
	ErrMatchNotStarted = errors.New("game: match not started")
	// ErrMatchComplete is returned by PlayRound once every round has been played.
	ErrMatchComplete = errors.New("game: match already complete")
)

// State is the lifecycle state of a Match.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Match.
type Option func(*Match)

// WithPayoffs replaces the classic payoff table.
func WithPayoffs(p PayoffTable) Option {
	return func(m *Match) { m.payoffs = p }
}

// WithLogger sets the match logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Match) { m.logger = l }
}

// WithConcurrentDecisions queries both agents in parallel each round. Each
// agent only ever sees the other's moves from previous rounds, so the result
// is the same as sequential querying.
func WithConcurrentDecisions(on bool) Option {
	return func(m *Match) { m.concurrent = on }
}

// Match coordinates two agents through a fixed number of rounds and keeps
// the ordered round log.
type Match struct {
	agent1     *AgentState
	agent2     *AgentState
	payoffs    PayoffTable
	logger     *slog.Logger
	concurrent bool
	metrics    *matchMetrics

	state  State
	rounds int
	log    []model.RoundRecord
}

// NewMatch creates a match in the not-started state.
func NewMatch(agent1, agent2 *AgentState, opts ...Option) *Match {
	m := &Match{
		agent1:  agent1,
		agent2:  agent2,
		payoffs: ClassicPayoffs,
		logger:  slog.Default(),
		metrics: loadMatchMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Match) State() State { return m.state }

// Agents returns both agent states in seat order.
func (m *Match) Agents() (*AgentState, *AgentState) { return m.agent1, m.agent2 }

// Log returns a copy of the round log.
func (m *Match) Log() []model.RoundRecord { return slices.Clone(m.log) }

// Reset clears both agents and the log and enters the in-progress state for
// a match of the given length. A zero-length match is complete immediately.
func (m *Match) Reset(rounds int) error {
	if rounds < 0 {
		return fmt.Errorf("game: rounds must be non-negative, got %d", rounds)
	}
	m.agent1.reset()
	m.agent2.reset()
	m.log = make([]model.RoundRecord, 0, rounds)
	m.rounds = rounds
	m.state = StateInProgress
	if rounds == 0 {
		m.state = StateComplete
	}
	return nil
}

// PlayRound plays the next round and returns its record.
func (m *Match) PlayRound(ctx context.Context) (model.RoundRecord, error) {
	switch m.state {
	case StateNotStarted:
		return model.RoundRecord{}, ErrMatchNotStarted
	case StateComplete:
		return model.RoundRecord{}, ErrMatchComplete
	}

	raw1, raw2 := m.decide(ctx)

	move1, fallback1 := Sanitize(raw1)
	move2, fallback2 := Sanitize(raw2)
	if fallback1 {
		m.metrics.fallback(ctx, m.agent1.config)
		m.logger.Debug("game: no valid decision, cooperating", "agent", m.agent1.Name(), "round", len(m.log)+1)
	}
	if fallback2 {
		m.metrics.fallback(ctx, m.agent2.config)
		m.logger.Debug("game: no valid decision, cooperating", "agent", m.agent2.Name(), "round", len(m.log)+1)
	}

	score1, score2 := m.payoffs.Score(move1, move2)
	m.agent1.record(move1, score1)
	m.agent2.record(move2, score2)

	rec := m.newRecord(len(m.log)+1, move1, move2, fallback1, fallback2, score1, score2)
	m.log = append(m.log, rec)
	m.metrics.rounds.Add(ctx, 1)

	if len(m.log) == m.rounds {
		m.state = StateComplete
	}
	return rec, nil
}

// Run resets both agents and plays exactly rounds rounds. Outcomes never end
// a match early; only context cancellation does, in which case the partial
// log is discarded by the caller.
func (m *Match) Run(ctx context.Context, rounds int) ([]model.RoundRecord, error) {
	if err := m.Reset(rounds); err != nil {
		return nil, err
	}
	m.logger.Debug("game: match starting", "agent1", m.agent1.Name(), "agent2", m.agent2.Name(), "rounds", rounds)
	for m.state == StateInProgress {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("game: match interrupted at round %d: %w", len(m.log)+1, err)
		}
		if _, err := m.PlayRound(ctx); err != nil {
			return nil, err
		}
	}
	m.logger.Debug("game: match complete",
		"agent1", m.agent1.Name(), "score1", m.agent1.Score(),
		"agent2", m.agent2.Name(), "score2", m.agent2.Score())
	return m.Log(), nil
}

// Save writes the round log to a Parquet file at path.
func (m *Match) Save(path string) error {
	return storage.WriteRoundLog(path, m.log)
}

// decide queries both agents with the histories as of the previous round.
func (m *Match) decide(ctx context.Context) (model.Move, model.Move) {
	own1, own2 := slices.Clip(m.agent1.history), slices.Clip(m.agent2.history)
	if !m.concurrent {
		return m.agent1.decide(ctx, own1, own2), m.agent2.decide(ctx, own2, own1)
	}

	var (
		move1, move2 model.Move
		once         sync.Once
		panicked     any
	)
	guard := func(f func()) func() error {
		return func() error {
			defer func() {
				if p := recover(); p != nil {
					once.Do(func() { panicked = p })
				}
			}()
			f()
			return nil
		}
	}
	var g errgroup.Group
	g.Go(guard(func() { move1 = m.agent1.decide(ctx, own1, own2) }))
	g.Go(guard(func() { move2 = m.agent2.decide(ctx, own2, own1) }))
	_ = g.Wait()
	// Re-raise on the match goroutine so the caller's recover sees it.
	if panicked != nil {
		panic(panicked)
	}
	return move1, move2
}

func (m *Match) newRecord(round int, move1, move2 model.Move, fb1, fb2 bool, score1, score2 int64) model.RoundRecord {
	c1, c2 := m.agent1.config, m.agent2.config
	return model.RoundRecord{
		Round: round,

		Agent1Name:             c1.Name,
		Agent1Type:             c1.Kind.TableLabel(),
		Agent1ContextMentioned: c1.IncludeContext,
		Agent1Model:            c1.Model,
		Agent1Profile:          c1.Profile,
		Agent1Temperature:      c1.Temperature,
		Agent1Move:             string(move1),
		Agent1Fallback:         fb1,
		Agent1Score:            score1,
		Agent1TotalScore:       m.agent1.score,

		Agent2Name:             c2.Name,
		Agent2Type:             c2.Kind.TableLabel(),
		Agent2ContextMentioned: c2.IncludeContext,
		Agent2Model:            c2.Model,
		Agent2Profile:          c2.Profile,
		Agent2Temperature:      c2.Temperature,
		Agent2Move:             string(move2),
		Agent2Fallback:         fb2,
		Agent2Score:            score2,
		Agent2TotalScore:       m.agent2.score,
	}
}

type matchMetrics struct {
	rounds    metric.Int64Counter
	fallbacks metric.Int64Counter
}

func (mm *matchMetrics) fallback(ctx context.Context, cfg model.AgentConfig) {
	mm.fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent.kind", string(cfg.Kind)),
		attribute.String("agent.model", cfg.Model),
	))
}

var (
	matchMetricsOnce sync.Once
	sharedMetrics    *matchMetrics
)

// loadMatchMetrics creates the match instruments once. The global meter
// provider delegates, so instruments created before telemetry.Init still
// export once a real provider is installed.
func loadMatchMetrics() *matchMetrics {
	matchMetricsOnce.Do(func() {
		meter := telemetry.Meter("dilemma/game")
		rounds, _ := meter.Int64Counter("dilemma.match.rounds",
			metric.WithDescription("Rounds played across all matches"))
		fallbacks, _ := meter.Int64Counter("dilemma.decision.fallbacks",
			metric.WithDescription("Decisions replaced by Cooperate because the provider gave no valid move"))
		sharedMetrics = &matchMetrics{rounds: rounds, fallbacks: fallbacks}
	})
	return sharedMetrics
}
