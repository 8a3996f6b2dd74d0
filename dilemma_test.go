package dilemma

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatim381/dilemme-du-prisonnier/internal/config"
	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
	"github.com/hatim381/dilemme-du-prisonnier/internal/service/generation"
	"github.com/hatim381/dilemme-du-prisonnier/internal/storage"
)

type backendFunc func(ctx context.Context, req Request) (string, error)

func (f backendFunc) Generate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// smallBatch configures one strategy and one generative agent: two tasks.
func smallBatch(t *testing.T) string {
	t.Helper()
	out := t.TempDir()
	t.Setenv("DILEMMA_OUTPUT_DIR", out)
	t.Setenv("DILEMMA_ROUNDS", "5")
	t.Setenv("DILEMMA_STRATEGIES", "always_cooperate")
	t.Setenv("DILEMMA_MODELS", "m1")
	t.Setenv("DILEMMA_TEMPERATURES", "0.7")
	t.Setenv("DILEMMA_PROFILES", "default")
	t.Setenv("DILEMMA_CONTEXT_OPTIONS", "true")
	t.Setenv("DILEMMA_BACKEND_RETRIES", "0")
	t.Setenv("DILEMMA_CATALOG_PATH", "")
	t.Setenv("DILEMMA_PLAN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	return out
}

func TestAppRunWritesArtifactsAndCatalog(t *testing.T) {
	out := smallBatch(t)

	var outcomes []Outcome
	var report bytes.Buffer
	app, err := New(
		WithLogger(quietLogger()),
		WithSeed(7),
		WithBackend(backendFunc(func(_ context.Context, req Request) (string, error) {
			assert.Equal(t, "m1", req.Model)
			assert.InDelta(t, 0.7, req.Temperature, 1e-9)
			return "C", nil
		})),
		WithTaskHook(TaskHookFunc(func(_ context.Context, o Outcome) error {
			outcomes = append(outcomes, o)
			return nil
		})),
		WithReportWriter(&report),
	)
	require.NoError(t, err)

	rep, err := app.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, app.Shutdown(context.Background()))

	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Zero(t, rep.Failed)
	assert.Equal(t, 10, rep.Rows)
	assert.Equal(t, uint64(7), rep.Seed)
	assert.NotEmpty(t, rep.Fingerprint)
	assert.False(t, rep.Cancelled)
	assert.Empty(t, rep.Failures)
	assert.Contains(t, report.String(), "succeeded")

	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.True(t, o.Success)
		assert.FileExists(t, filepath.Join(out, o.Filename))
	}

	cat, err := storage.OpenCatalog(context.Background(), filepath.Join(out, "catalog.db"), quietLogger())
	require.NoError(t, err)
	defer func() { _ = cat.Close() }()

	run, err := cat.GetBatch(context.Background(), rep.BatchID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, run.Status)
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 15, run.TotalCalls)
	assert.Equal(t, rep.Fingerprint, run.Fingerprint)

	recorded, err := cat.TaskOutcomes(context.Background(), rep.BatchID)
	require.NoError(t, err)
	assert.Len(t, recorded, 2)
}

func TestAppRunSameSeedSameFingerprint(t *testing.T) {
	smallBatch(t)
	t.Setenv("DILEMMA_STRATEGIES", "random")
	t.Setenv("DILEMMA_CATALOG_PATH", config.CatalogOff)

	fingerprint := func() string {
		app, err := New(
			WithLogger(quietLogger()),
			WithSeed(42),
			WithOutputDir(t.TempDir()),
			WithBackend(backendFunc(func(context.Context, Request) (string, error) { return "D", nil })),
		)
		require.NoError(t, err)
		defer func() { _ = app.Shutdown(context.Background()) }()
		rep, err := app.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, rep.Succeeded)
		return rep.Fingerprint
	}
	assert.Equal(t, fingerprint(), fingerprint())
}

func TestAppRunCancelled(t *testing.T) {
	out := smallBatch(t)

	app, err := New(
		WithLogger(quietLogger()),
		WithWorkers(1),
		WithBackend(backendFunc(func(context.Context, Request) (string, error) { return "C", nil })),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := app.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, app.Shutdown(context.Background()))

	assert.True(t, rep.Cancelled)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 1, rep.Workers)
	for _, f := range rep.Failures {
		assert.Contains(t, f.Error, "pool exhausted")
	}

	cat, err := storage.OpenCatalog(context.Background(), filepath.Join(out, "catalog.db"), quietLogger())
	require.NoError(t, err)
	defer func() { _ = cat.Close() }()
	run, err := cat.GetBatch(context.Background(), rep.BatchID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCancelled, run.Status)
}

func TestAppRunBackendOutageFailsTasksOnly(t *testing.T) {
	smallBatch(t)
	t.Setenv("DILEMMA_CATALOG_PATH", config.CatalogOff)

	app, err := New(
		WithLogger(quietLogger()),
		WithBackend(backendFunc(func(context.Context, Request) (string, error) {
			return "", errors.New("connection refused")
		})),
	)
	require.NoError(t, err)
	defer func() { _ = app.Shutdown(context.Background()) }()

	rep, err := app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Failed)
	for _, f := range rep.Failures {
		assert.Contains(t, f.Error, "backend outage")
		assert.Empty(t, f.Filename)
	}
}

func TestNewAppliesPlanFile(t *testing.T) {
	out := smallBatch(t)
	t.Setenv("DILEMMA_CATALOG_PATH", config.CatalogOff)
	plan := filepath.Join(t.TempDir(), "plan.yaml")
	body := "rounds: 3\npayoffs: {temptation: 10, reward: 6, punishment: 2, sucker: 1}\n"
	require.NoError(t, os.WriteFile(plan, []byte(body), 0o600))

	var files []string
	app, err := New(
		WithLogger(quietLogger()),
		WithPlanFile(plan),
		WithBackend(backendFunc(func(context.Context, Request) (string, error) { return "C", nil })),
		WithTaskHook(TaskHookFunc(func(_ context.Context, o Outcome) error {
			files = append(files, o.Filename)
			return nil
		})),
	)
	require.NoError(t, err)
	defer func() { _ = app.Shutdown(context.Background()) }()

	rep, err := app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 6, rep.Rows)

	require.Len(t, files, 2)
	for _, f := range files {
		rows, err := storage.ReadRoundLog(filepath.Join(out, f))
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, int64(6), rows[0].Agent1Score)
		assert.Equal(t, int64(18), rows[2].Agent2TotalScore)
	}
}

func TestNewRejectsInvalidOverrides(t *testing.T) {
	smallBatch(t)
	t.Setenv("DILEMMA_CATALOG_PATH", config.CatalogOff)

	_, err := New(WithLogger(quietLogger()), WithWorkers(-1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")

	_, err = New(WithLogger(quietLogger()), WithRounds(-4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DILEMMA_ROUNDS")

	_, err = New(WithLogger(quietLogger()), WithPlanFile(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open plan")
}

func TestBackendAdapterCopiesRequest(t *testing.T) {
	var got Request
	a := backendAdapter{b: backendFunc(func(_ context.Context, req Request) (string, error) {
		got = req
		return "D", nil
	})}
	out, err := a.Generate(context.Background(), generation.Request{Model: "m", Prompt: "p", System: "s", Temperature: 1.5})
	require.NoError(t, err)
	assert.Equal(t, "D", out)
	assert.Equal(t, Request{Model: "m", Prompt: "p", System: "s", Temperature: 1.5}, got)
}
