package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hatim381/dilemme-du-prisonnier/internal/decision"
	"github.com/hatim381/dilemme-du-prisonnier/internal/game"
	"github.com/hatim381/dilemme-du-prisonnier/internal/integrity"
	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
	"github.com/hatim381/dilemme-du-prisonnier/internal/service/generation"
	"github.com/hatim381/dilemme-du-prisonnier/internal/storage"
	"github.com/hatim381/dilemme-du-prisonnier/internal/telemetry"
)

// ErrPoolExhausted marks tasks that were never started because the batch
// was cancelled.
var ErrPoolExhausted = errors.New("batch: pool exhausted")

// DefaultOutageThreshold is the number of consecutive backend failures of one
// seat after which its task is abandoned.
const DefaultOutageThreshold = 10

// Config controls one scheduler run.
type Config struct {
	Rounds              int
	OutputDir           string
	Workers             int
	ChunkSize           int
	Seed                uint64
	ConcurrentDecisions bool
	OutageThreshold     int
	Payoffs             game.PayoffTable
}

// Recorder persists task outcomes as they arrive.
type Recorder interface {
	RecordTask(ctx context.Context, batchID uuid.UUID, r model.TaskResult) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecorder records every outcome under batchID.
func WithRecorder(batchID uuid.UUID, rec Recorder) Option {
	return func(s *Scheduler) {
		s.batchID = batchID
		s.recorder = rec
	}
}

// WithProgress calls fn from the collector after each outcome.
func WithProgress(fn func(done, total int, r model.TaskResult)) Option {
	return func(s *Scheduler) { s.progress = fn }
}

// Scheduler runs tasks on a bounded worker pool. Workers share nothing but
// the backend; each returns one TaskResult per task and a single collector
// folds them into the Summary.
type Scheduler struct {
	cfg      Config
	backend  generation.Backend
	logger   *slog.Logger
	batchID  uuid.UUID
	recorder Recorder
	progress func(done, total int, r model.TaskResult)
	tracer   trace.Tracer
	metrics  *schedulerMetrics
}

// NewScheduler creates a scheduler. A zero seed is replaced by a
// time-derived one; Seed() reports the value in use. A zero or invalid
// payoff table is replaced by the classic one.
func NewScheduler(cfg Config, backend generation.Backend, logger *slog.Logger, opts ...Option) *Scheduler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano()) //nolint:gosec // wall clock is positive
	}
	if backend == nil {
		backend = generation.NoopBackend{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Payoffs == (game.PayoffTable{}) {
		cfg.Payoffs = game.ClassicPayoffs
	} else if err := cfg.Payoffs.Validate(); err != nil {
		logger.Warn("batch: invalid payoff table, using classic payoffs", "error", err)
		cfg.Payoffs = game.ClassicPayoffs
	}
	s := &Scheduler{
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		tracer:  telemetry.Tracer("dilemma/batch"),
		metrics: newSchedulerMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed returns the seed driving the random strategies of this run.
func (s *Scheduler) Seed() uint64 { return s.cfg.Seed }

// Run executes every task and returns the summary. It never fails: task
// errors and panics become failure records, and tasks not yet started when
// ctx is cancelled are recorded as ErrPoolExhausted failures.
func (s *Scheduler) Run(ctx context.Context, tasks []model.Task) *Summary {
	summary := NewSummary(len(tasks), s.cfg.Workers, s.cfg.Seed)
	if len(tasks) == 0 {
		summary.Finish()
		return summary
	}

	results := make(chan model.TaskResult, s.cfg.Workers*s.cfg.ChunkSize)
	var collected sync.WaitGroup
	collected.Add(1)
	go func() {
		defer collected.Done()
		for r := range results {
			summary.Add(r)
			s.record(ctx, r)
			if s.progress != nil {
				s.progress(summary.Done(), summary.Total, r)
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, chunk := range Chunk(tasks, s.cfg.ChunkSize) {
		if ctx.Err() != nil {
			for _, t := range chunk {
				results <- s.exhausted(ctx, t)
			}
			continue
		}
		g.Go(func() error {
			for _, t := range chunk {
				if ctx.Err() != nil {
					results <- s.exhausted(ctx, t)
					continue
				}
				results <- s.runTask(ctx, t)
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	collected.Wait()

	summary.Finish()
	return summary
}

func (s *Scheduler) exhausted(ctx context.Context, t model.Task) model.TaskResult {
	return model.TaskResult{
		TaskID: t.ID,
		Agent1: t.Agent1.Name,
		Agent2: t.Agent2.Name,
		Error:  fmt.Errorf("%w: %w", ErrPoolExhausted, context.Cause(ctx)).Error(),
	}
}

func (s *Scheduler) record(ctx context.Context, r model.TaskResult) {
	if s.recorder == nil {
		return
	}
	// Outcomes of a cancelled batch are still worth keeping.
	if err := s.recorder.RecordTask(context.WithoutCancel(ctx), s.batchID, r); err != nil {
		s.logger.Warn("batch: record task outcome failed", "task_id", r.TaskID, "error", err)
	}
}

// runTask is the failure boundary: whatever happens inside, exactly one
// result comes out.
func (s *Scheduler) runTask(ctx context.Context, t model.Task) (res model.TaskResult) {
	start := time.Now()
	res = model.TaskResult{TaskID: t.ID, Agent1: t.Agent1.Name, Agent2: t.Agent2.Name}

	ctx, span := s.tracer.Start(ctx, "batch.task", trace.WithAttributes(
		attribute.Int("task.id", t.ID),
		attribute.String("agent1", t.Agent1.Name),
		attribute.String("agent2", t.Agent2.Name),
	))
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", p)
			s.logger.Error("batch: task panicked", "task_id", t.ID, "panic", p, "stack", string(debug.Stack()))
		}
		res.Duration = time.Since(start)
		if !res.Success {
			span.SetStatus(codes.Error, res.Error)
		}
		span.End()
		s.metrics.observe(ctx, res)
	}()

	if err := s.play(ctx, t, &res); err != nil {
		res.Error = err.Error()
		s.logger.Warn("batch: task failed", "task_id", t.ID, "agent1", t.Agent1.Name, "agent2", t.Agent2.Name, "error", err)
		return res
	}
	res.Success = true
	return res
}

func (s *Scheduler) play(ctx context.Context, t model.Task, res *model.TaskResult) error {
	taskCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	logger := s.logger.With("task_id", t.ID)
	var guards []*outageGuard
	seat := func(cfg model.AgentConfig, slot uint64) (*game.AgentState, error) {
		deps := decision.Deps{
			Rand:   rand.New(rand.NewPCG(s.cfg.Seed, uint64(t.ID)<<1|slot)), //nolint:gosec // reproducible, not secret
			Logger: logger,
		}
		if cfg.IsGenerative() {
			g := newOutageGuard(s.backend, cfg.Name, s.cfg.OutageThreshold, cancel)
			guards = append(guards, g)
			deps.Backend = g
		}
		f, err := decision.New(cfg, deps)
		if err != nil {
			return nil, err
		}
		return game.NewAgentState(cfg, f), nil
	}

	a1, err := seat(t.Agent1, 0)
	if err != nil {
		return fmt.Errorf("batch: agent1: %w", err)
	}
	a2, err := seat(t.Agent2, 1)
	if err != nil {
		return fmt.Errorf("batch: agent2: %w", err)
	}

	match := game.NewMatch(a1, a2,
		game.WithPayoffs(s.cfg.Payoffs),
		game.WithLogger(logger),
		game.WithConcurrentDecisions(s.cfg.ConcurrentDecisions),
	)
	log, err := match.Run(taskCtx, s.cfg.Rounds)
	if err != nil {
		if cause := context.Cause(taskCtx); errors.Is(cause, ErrBackendOutage) {
			return cause
		}
		return err
	}
	for _, g := range guards {
		if err := g.err(); err != nil {
			return err
		}
	}

	res.Filename = integrity.ArtifactName(t.Agent1.Name, t.Agent2.Name, t.ID)
	if err := storage.WriteRoundLog(filepath.Join(s.cfg.OutputDir, res.Filename), log); err != nil {
		return err
	}
	res.Rows = len(log)
	res.LogHash = integrity.RoundLogHash(log)
	return nil
}

type schedulerMetrics struct {
	tasks    metric.Int64Counter
	duration metric.Float64Histogram
}

func newSchedulerMetrics() *schedulerMetrics {
	meter := telemetry.Meter("dilemma/batch")
	tasks, _ := meter.Int64Counter("dilemma.batch.tasks",
		metric.WithDescription("Completed batch tasks by outcome"))
	duration, _ := meter.Float64Histogram("dilemma.batch.task_duration",
		metric.WithDescription("Wall-clock time per task"),
		metric.WithUnit("s"))
	return &schedulerMetrics{tasks: tasks, duration: duration}
}

func (m *schedulerMetrics) observe(ctx context.Context, r model.TaskResult) {
	outcome := "success"
	if !r.Success {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.tasks.Add(ctx, 1, attrs)
	m.duration.Record(ctx, r.Duration.Seconds(), attrs)
}
