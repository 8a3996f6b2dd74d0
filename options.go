package dilemma

import (
	"io"
	"log/slog"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all overrides after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	logger    *slog.Logger
	version   string
	backend   Backend
	planPath  string
	outputDir string
	rounds    int
	seed      uint64
	workers   int
	hooks     []TaskHook
	report    io.Writer
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithBackend replaces the auto-detected generation backend. Retry,
// throttling and instrumentation are still applied around it.
func WithBackend(b Backend) Option {
	return func(o *resolvedOptions) { o.backend = b }
}

// WithPlanFile overlays a YAML plan on the environment configuration
// (DILEMMA_PLAN env var).
func WithPlanFile(path string) Option {
	return func(o *resolvedOptions) { o.planPath = path }
}

// WithOutputDir overrides the artifact directory (DILEMMA_OUTPUT_DIR env var).
func WithOutputDir(dir string) Option {
	return func(o *resolvedOptions) { o.outputDir = dir }
}

// WithRounds overrides the number of rounds per match (DILEMMA_ROUNDS env var).
func WithRounds(n int) Option {
	return func(o *resolvedOptions) { o.rounds = n }
}

// WithSeed fixes the seed driving the random strategies (DILEMMA_SEED env var).
func WithSeed(seed uint64) Option {
	return func(o *resolvedOptions) { o.seed = seed }
}

// WithWorkers pins the worker count instead of deriving it from the budget.
// WithWorkers(1) runs the batch sequentially.
func WithWorkers(n int) Option {
	return func(o *resolvedOptions) { o.workers = n }
}

// WithTaskHook registers a hook notified after every task.
// Multiple hooks may be registered; they are called in registration order.
func WithTaskHook(h TaskHook) Option {
	return func(o *resolvedOptions) { o.hooks = append(o.hooks, h) }
}

// WithReportWriter sets where the operator summary is written after a run.
// If not set, no summary is written.
func WithReportWriter(w io.Writer) Option {
	return func(o *resolvedOptions) { o.report = w }
}
