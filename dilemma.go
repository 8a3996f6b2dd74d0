// Package dilemma is the public API for embedding the prisoner's dilemma batch runner.
//
// Callers construct an App, run one batch and shut it down:
//
//	app, err := dilemma.New(
//	    dilemma.WithVersion(version),
//	    dilemma.WithLogger(logger),
//	    dilemma.WithPlanFile("plan.yaml"),
//	    dilemma.WithReportWriter(os.Stdout),
//	)
//	if err != nil { ... }
//	defer app.Shutdown(context.Background())
//	report, err := app.Run(ctx)
//
// The import graph enforces a strict no-cycle rule: dilemma (root) imports
// internal/*, but internal/* never imports dilemma (root). Public types
// (Request, Outcome, Report) are standalone structs with no internal imports;
// conversion helpers live here because this is the only file that sees both
// sides of the boundary.
package dilemma

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/hatim381/dilemme-du-prisonnier/internal/batch"
	"github.com/hatim381/dilemme-du-prisonnier/internal/config"
	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
	"github.com/hatim381/dilemme-du-prisonnier/internal/ratelimit"
	"github.com/hatim381/dilemme-du-prisonnier/internal/service/generation"
	"github.com/hatim381/dilemme-du-prisonnier/internal/storage"
	"github.com/hatim381/dilemme-du-prisonnier/internal/telemetry"
)

// progressSteps is roughly how many progress lines a batch logs.
const progressSteps = 20

// App is the batch runner lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	backend      generation.Backend
	backendName  string
	limiter      ratelimit.Limiter
	catalog      *storage.Catalog // nil when the catalog is disabled
	otelShutdown telemetry.Shutdown
	workers      int
	hooks        []TaskHook
	report       io.Writer
	logger       *slog.Logger
	version      string
}

// New loads configuration, initialises telemetry, selects the generation
// backend and opens the catalog. It does not run anything; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applyOverrides(&cfg, o); err != nil {
		return nil, err
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("dilemma starting", "version", version, "rounds", cfg.Rounds, "output_dir", cfg.OutputDir)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	var base generation.Backend
	name := "custom"
	if o.backend != nil {
		base = backendAdapter{b: o.backend}
		logger.Info("generation backend: custom")
	} else {
		base, name, err = generation.Select(context.Background(), generation.Settings{
			Backend:       cfg.Backend,
			OllamaURL:     cfg.OllamaURL,
			OpenAIAPIKey:  cfg.OpenAIAPIKey,
			OpenAIBaseURL: cfg.OpenAIBaseURL,
			Timeout:       cfg.BackendTimeout,
		}, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, err
		}
	}

	var limiter ratelimit.Limiter
	if cfg.BackendRPS > 0 {
		limiter = ratelimit.NewMemoryLimiter(cfg.BackendRPS, cfg.BackendBurst)
		logger.Info("backend throttling: per-model token bucket", "rps", cfg.BackendRPS, "burst", cfg.BackendBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("backend throttling: disabled")
	}

	backend := generation.WithRetry(base, cfg.BackendRetries, cfg.BackendRetryDelay)
	backend = generation.WithRateLimit(backend, limiter)
	backend = generation.WithTelemetry(backend, name)

	var catalog *storage.Catalog
	if path := cfg.CatalogFile(); path != "" {
		catalog, err = storage.OpenCatalog(context.Background(), path, logger)
		if err != nil {
			_ = limiter.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("catalog: %w", err)
		}
		logger.Info("catalog: enabled", "path", path)
	} else {
		logger.Info("catalog: disabled")
	}

	return &App{
		cfg:          cfg,
		backend:      backend,
		backendName:  name,
		limiter:      limiter,
		catalog:      catalog,
		otelShutdown: otelShutdown,
		workers:      o.workers,
		hooks:        o.hooks,
		report:       o.report,
		logger:       logger,
		version:      version,
	}, nil
}

// applyOverrides layers option values over the loaded configuration and
// re-validates the result.
func applyOverrides(cfg *config.Config, o resolvedOptions) error {
	if o.planPath != "" {
		if err := cfg.ApplyPlanFile(o.planPath); err != nil {
			return err
		}
	}
	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}
	if o.rounds != 0 {
		cfg.Rounds = o.rounds
	}
	if o.seed != 0 {
		cfg.Seed = o.seed
	}
	if o.workers < 0 {
		return fmt.Errorf("dilemma: workers must not be negative, got %d", o.workers)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

// Run enumerates the batch plan, sizes the worker pool and plays every task.
// Task failures never fail the run; they are counted in the Report. When
// ctx is cancelled, tasks not yet started are recorded as failures and the
// partial Report is returned with Cancelled set.
func (a *App) Run(ctx context.Context) (Report, error) {
	plan := a.cfg.Plan()
	tasks := batch.Enumerate(plan)
	if len(tasks) == 0 {
		a.logger.Warn("plan has no generative agents, nothing to run")
	}

	calls := batch.TotalCalls(tasks, plan.Rounds)
	workers := a.workers
	if workers == 0 {
		workers = batch.ComputeWorkers(calls, a.cfg.CallLatency, a.cfg.Budget, a.cfg.MaxWorkers, runtime.NumCPU())
	}
	estimate := batch.EstimateDuration(calls, a.cfg.CallLatency, workers)
	a.logger.Info("batch planned",
		"tasks", len(tasks),
		"backend_calls", humanize.Comma(int64(calls)),
		"workers", workers,
		"backend", a.backendName,
		"estimate", estimate.Round(time.Second).String(),
	)
	if a.cfg.Budget > 0 && estimate > a.cfg.Budget {
		a.logger.Warn("estimated duration exceeds budget, running anyway",
			"estimate", estimate.Round(time.Second).String(),
			"budget", a.cfg.Budget.String(),
			"overrun", (estimate - a.cfg.Budget).Round(time.Second).String(),
		)
	}

	batchID := uuid.New()
	schedOpts := []batch.Option{batch.WithProgress(a.progress(ctx, len(tasks)))}
	if a.catalog != nil {
		schedOpts = append(schedOpts, batch.WithRecorder(batchID, a.catalog))
	}
	sched := batch.NewScheduler(batch.Config{
		Rounds:              plan.Rounds,
		OutputDir:           a.cfg.OutputDir,
		Workers:             workers,
		ChunkSize:           a.cfg.ChunkSize,
		Seed:                a.cfg.Seed,
		ConcurrentDecisions: a.cfg.ConcurrentDecisions,
		OutageThreshold:     a.cfg.OutageThreshold,
		Payoffs:             a.cfg.Payoffs,
	}, a.backend, a.logger.With("batch_id", batchID), schedOpts...)

	run := model.BatchRun{
		ID:         batchID,
		Status:     model.BatchStatusRunning,
		Rounds:     plan.Rounds,
		TotalTasks: len(tasks),
		TotalCalls: calls,
		Workers:    workers,
		Seed:       sched.Seed(),
		OutputDir:  a.cfg.OutputDir,
		StartedAt:  time.Now().UTC(),
	}
	if a.catalog != nil {
		if err := a.catalog.BeginBatch(context.WithoutCancel(ctx), run); err != nil {
			return Report{}, fmt.Errorf("dilemma: begin batch: %w", err)
		}
	}
	a.logger.Info("batch started", "batch_id", batchID, "seed", run.Seed)

	summary := sched.Run(ctx, tasks)

	if ctx.Err() != nil {
		run.Status = model.BatchStatusCancelled
		a.logger.Warn("batch cancelled", "batch_id", batchID, "done", summary.Succeeded, "failed", summary.Failed)
	}
	run = summary.Run(run)
	if a.catalog != nil {
		if err := a.catalog.FinishBatch(context.WithoutCancel(ctx), run); err != nil {
			a.logger.Warn("catalog: finish batch failed", "batch_id", batchID, "error", err)
		}
	}

	a.logger.Info("batch finished",
		"batch_id", batchID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"rows", summary.Rows,
		"elapsed", summary.Elapsed.Round(time.Millisecond).String(),
		"fingerprint", run.Fingerprint,
	)

	if a.report != nil {
		if err := summary.Report(a.report); err != nil {
			return toPublicReport(batchID, run, summary), fmt.Errorf("dilemma: write report: %w", err)
		}
	}
	return toPublicReport(batchID, run, summary), nil
}

// Shutdown releases the catalog, the limiter and the telemetry exporters.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("catalog close: %w", err))
		}
	}
	if a.limiter != nil {
		if err := a.limiter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("limiter close: %w", err))
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// progress logs coarse batch progress and fans each outcome out to the hooks.
// Task failures are already logged by the scheduler.
func (a *App) progress(ctx context.Context, tasks int) func(done, total int, r model.TaskResult) {
	step := max(tasks/progressSteps, 1)
	return func(done, total int, r model.TaskResult) {
		if done%step == 0 || done == total {
			a.logger.Info("batch progress", "done", done, "total", total,
				"percent", fmt.Sprintf("%.0f", 100*float64(done)/float64(total)))
		}
		if len(a.hooks) == 0 {
			return
		}
		o := toPublicOutcome(r)
		for _, h := range a.hooks {
			if err := h.OnTaskFinished(ctx, o); err != nil {
				a.logger.Warn("task hook failed", "task_id", r.TaskID, "error", err)
			}
		}
	}
}

// backendAdapter exposes a public Backend as a generation.Backend.
type backendAdapter struct {
	b Backend
}

func (a backendAdapter) Generate(ctx context.Context, req generation.Request) (string, error) {
	return a.b.Generate(ctx, Request{
		Model:       req.Model,
		Prompt:      req.Prompt,
		System:      req.System,
		Temperature: req.Temperature,
	})
}

func toPublicOutcome(r model.TaskResult) Outcome {
	return Outcome{
		TaskID:   r.TaskID,
		Agent1:   r.Agent1,
		Agent2:   r.Agent2,
		Success:  r.Success,
		Rows:     r.Rows,
		Filename: r.Filename,
		Error:    r.Error,
		Duration: r.Duration,
	}
}

func toPublicReport(id uuid.UUID, run model.BatchRun, s *batch.Summary) Report {
	failures := make([]Outcome, 0, len(s.Failures))
	for _, f := range s.Failures {
		failures = append(failures, toPublicOutcome(f))
	}
	return Report{
		BatchID:     id,
		Total:       s.Total,
		Succeeded:   s.Succeeded,
		Failed:      s.Failed,
		Rows:        s.Rows,
		Workers:     s.Workers,
		Seed:        s.Seed,
		Elapsed:     s.Elapsed,
		Fingerprint: run.Fingerprint,
		Cancelled:   run.Status == model.BatchStatusCancelled,
		Failures:    failures,
	}
}
