// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hatim381/dilemme-du-prisonnier/internal/batch"
	"github.com/hatim381/dilemme-du-prisonnier/internal/game"
	"github.com/hatim381/dilemme-du-prisonnier/internal/service/generation"
)

// Backend names accepted by DILEMMA_BACKEND.
const (
	BackendAuto   = generation.BackendAuto
	BackendOllama = generation.BackendOllama
	BackendOpenAI = generation.BackendOpenAI
	BackendNoop   = generation.BackendNoop
)

// CatalogOff disables the SQLite catalog when used as DILEMMA_CATALOG_PATH.
const CatalogOff = "off"

// Config holds all application configuration.
type Config struct {
	// Batch plan.
	Rounds         int
	OutputDir      string
	Models         []string
	Temperatures   []float64
	Strategies     []string
	Profiles       []string
	ContextOptions []bool
	PlanPath       string // Optional YAML plan overriding the lists above.
	Payoffs        game.PayoffTable

	// Scheduling.
	Budget              time.Duration // Wall-clock budget for the whole batch; 0 disables sizing.
	MaxWorkers          int
	ChunkSize           int
	CallLatency         time.Duration // Estimated latency of one backend call.
	Seed                uint64        // 0 derives a seed from the clock.
	ConcurrentDecisions bool
	OutageThreshold     int // Consecutive backend failures that abandon a task; 0 disables.

	// Generation backend settings.
	Backend           string // "auto", "ollama", "openai", or "noop"
	OllamaURL         string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	BackendTimeout    time.Duration
	BackendRetries    int
	BackendRetryDelay time.Duration
	BackendRPS        float64 // Per-model request rate; 0 disables throttling.
	BackendBurst      int

	// Catalog settings.
	CatalogPath string // "" means <OutputDir>/catalog.db, "off" disables.

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string
	OTELInsecure bool

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Every malformed variable is reported, not just the first one.
func Load() (Config, error) {
	var l loader
	cfg := Config{
		Rounds:              l.int("DILEMMA_ROUNDS", 200),
		OutputDir:           envStr("DILEMMA_OUTPUT_DIR", "results"),
		Models:              envList("DILEMMA_MODELS", []string{"qwen2.5:7b", "gemma2:9b"}),
		Temperatures:        l.floatList("DILEMMA_TEMPERATURES", []float64{0.7, 1.5}),
		Strategies:          envList("DILEMMA_STRATEGIES", []string{"tit_for_tat", "random", "always_cooperate", "always_defect", "grim_trigger"}),
		Profiles:            envList("DILEMMA_PROFILES", []string{"default", "cooperative", "grudger", "tit_for_tat", "random", "selfish"}),
		ContextOptions:      l.boolList("DILEMMA_CONTEXT_OPTIONS", []bool{true, false}),
		PlanPath:            envStr("DILEMMA_PLAN", ""),
		Payoffs:             game.ClassicPayoffs,
		Budget:              l.duration("DILEMMA_BUDGET", 7*time.Hour),
		MaxWorkers:          l.int("DILEMMA_MAX_WORKERS", 16),
		ChunkSize:           l.int("DILEMMA_CHUNK_SIZE", 10),
		CallLatency:         l.duration("DILEMMA_CALL_LATENCY", 3500*time.Millisecond),
		Seed:                l.uint64("DILEMMA_SEED", 0),
		ConcurrentDecisions: l.bool("DILEMMA_CONCURRENT_DECISIONS", false),
		OutageThreshold:     l.int("DILEMMA_OUTAGE_THRESHOLD", batch.DefaultOutageThreshold),
		Backend:             envStr("DILEMMA_BACKEND", BackendAuto),
		OllamaURL:           envStr("OLLAMA_URL", generation.DefaultOllamaURL),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       envStr("OPENAI_BASE_URL", ""),
		BackendTimeout:      l.duration("DILEMMA_BACKEND_TIMEOUT", 60*time.Second),
		BackendRetries:      l.int("DILEMMA_BACKEND_RETRIES", 2),
		BackendRetryDelay:   l.duration("DILEMMA_BACKEND_RETRY_DELAY", 500*time.Millisecond),
		BackendRPS:          l.float("DILEMMA_BACKEND_RPS", 0),
		BackendBurst:        l.int("DILEMMA_BACKEND_BURST", 4),
		CatalogPath:         envStr("DILEMMA_CATALOG_PATH", ""),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "dilemma"),
		OTELInsecure:        l.bool("DILEMMA_OTEL_INSECURE", false),
		LogLevel:            envStr("DILEMMA_LOG_LEVEL", "info"),
	}
	if len(l.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(l.errs...))
	}

	if cfg.PlanPath != "" {
		if err := cfg.ApplyPlanFile(cfg.PlanPath); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration can drive a batch.
func (c Config) Validate() error {
	var errs []error
	if c.Rounds <= 0 {
		errs = append(errs, errors.New("DILEMMA_ROUNDS must be positive"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("DILEMMA_OUTPUT_DIR is required"))
	}
	for _, t := range c.Temperatures {
		if t < 0 {
			errs = append(errs, fmt.Errorf("DILEMMA_TEMPERATURES must be non-negative, got %g", t))
		}
	}
	if err := c.Payoffs.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Budget < 0 {
		errs = append(errs, errors.New("DILEMMA_BUDGET must not be negative"))
	}
	if c.MaxWorkers <= 0 {
		errs = append(errs, errors.New("DILEMMA_MAX_WORKERS must be positive"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("DILEMMA_CHUNK_SIZE must be positive"))
	}
	if c.CallLatency <= 0 {
		errs = append(errs, errors.New("DILEMMA_CALL_LATENCY must be positive"))
	}
	if c.OutageThreshold < 0 {
		errs = append(errs, errors.New("DILEMMA_OUTAGE_THRESHOLD must not be negative"))
	}
	switch c.Backend {
	case BackendAuto, BackendOllama, BackendOpenAI, BackendNoop:
	default:
		errs = append(errs, fmt.Errorf("DILEMMA_BACKEND must be one of auto, ollama, openai, noop, got %q", c.Backend))
	}
	if c.BackendTimeout <= 0 {
		errs = append(errs, errors.New("DILEMMA_BACKEND_TIMEOUT must be positive"))
	}
	if c.BackendRetries < 0 {
		errs = append(errs, errors.New("DILEMMA_BACKEND_RETRIES must not be negative"))
	}
	if c.BackendRPS < 0 {
		errs = append(errs, errors.New("DILEMMA_BACKEND_RPS must not be negative"))
	}
	if c.BackendBurst <= 0 {
		errs = append(errs, errors.New("DILEMMA_BACKEND_BURST must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Plan returns the batch configuration space.
func (c Config) Plan() batch.Plan {
	return batch.Plan{
		Rounds:         c.Rounds,
		Strategies:     c.Strategies,
		Models:         c.Models,
		Temperatures:   c.Temperatures,
		Profiles:       c.Profiles,
		ContextOptions: c.ContextOptions,
	}
}

// CatalogFile resolves the catalog location. An empty result means the
// catalog is disabled.
func (c Config) CatalogFile() string {
	switch c.CatalogPath {
	case CatalogOff:
		return ""
	case "":
		return filepath.Join(c.OutputDir, "catalog.db")
	default:
		return c.CatalogPath
	}
}

// loader collects parse errors so Load can report all of them at once.
type loader struct {
	errs []error
}

func (l *loader) int(key string, defaultVal int) int {
	v, err := envInt(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) uint64(key string, defaultVal uint64) uint64 {
	v, err := envUint64(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) float(key string, defaultVal float64) float64 {
	v, err := envFloat(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) bool(key string, defaultVal bool) bool {
	v, err := envBool(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) duration(key string, defaultVal time.Duration) time.Duration {
	v, err := envDuration(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) floatList(key string, defaultVal []float64) []float64 {
	v, err := envFloatList(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) boolList(key string, defaultVal []bool) []bool {
	v, err := envBoolList(key, defaultVal)
	l.add(err)
	return v
}

func (l *loader) add(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envUint64(key string, defaultVal uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid unsigned integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}

// envList splits a comma-separated variable, dropping blank entries.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envFloatList(key string, defaultVal []float64) ([]float64, error) {
	if os.Getenv(key) == "" {
		return defaultVal, nil
	}
	parts := envList(key, nil)
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return defaultVal, fmt.Errorf("%s=%q is not a valid number list", key, os.Getenv(key))
		}
		out = append(out, f)
	}
	return out, nil
}

func envBoolList(key string, defaultVal []bool) ([]bool, error) {
	if os.Getenv(key) == "" {
		return defaultVal, nil
	}
	parts := envList(key, nil)
	out := make([]bool, 0, len(parts))
	for _, p := range parts {
		b, err := strconv.ParseBool(p)
		if err != nil {
			return defaultVal, fmt.Errorf("%s=%q is not a valid boolean list", key, os.Getenv(key))
		}
		out = append(out, b)
	}
	return out, nil
}
