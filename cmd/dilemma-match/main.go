// Command dilemma-match plays a single match between two agents and writes
// its round log.
//
//	dilemma-match -a1-type strategy -a1-strategy tit_for_tat \
//	    -a2-type generative -a2-model qwen2.5:7b -a2-profile grudger -rounds 50
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hatim381/dilemme-du-prisonnier/internal/config"
	"github.com/hatim381/dilemme-du-prisonnier/internal/decision"
	"github.com/hatim381/dilemme-du-prisonnier/internal/game"
	"github.com/hatim381/dilemme-du-prisonnier/internal/integrity"
	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
	"github.com/hatim381/dilemme-du-prisonnier/internal/service/generation"
	"github.com/hatim381/dilemme-du-prisonnier/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("DILEMMA_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, os.Args[1:]); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

// agentFlags are the per-seat flags, registered under a prefix.
type agentFlags struct {
	kind        *string
	name        *string
	strategy    *string
	model       *string
	profile     *string
	context     *bool
	temperature *float64
}

func registerAgent(fs *flag.FlagSet, prefix, defaultStrategy string) agentFlags {
	return agentFlags{
		kind:        fs.String(prefix+"-type", string(model.KindStrategy), "agent type: strategy or generative"),
		name:        fs.String(prefix+"-name", "", "agent name; derived from the other flags when empty"),
		strategy:    fs.String(prefix+"-strategy", defaultStrategy, "strategy for a strategy agent"),
		model:       fs.String(prefix+"-model", "qwen2.5:7b", "model id for a generative agent"),
		profile:     fs.String(prefix+"-profile", model.ProfileDefault, "behavioral profile for a generative agent"),
		context:     fs.Bool(prefix+"-context", true, "tell a generative agent it is playing the prisoner's dilemma"),
		temperature: fs.Float64(prefix+"-temperature", 0.7, "sampling temperature for a generative agent"),
	}
}

func (f agentFlags) config() (model.AgentConfig, error) {
	var cfg model.AgentConfig
	switch model.AgentKind(*f.kind) {
	case model.KindStrategy:
		cfg = model.StrategyAgent(*f.strategy)
	case model.KindGenerative:
		cfg = model.GenerativeAgent(*f.model, *f.profile, *f.context, *f.temperature)
	default:
		return model.AgentConfig{}, fmt.Errorf("%w: unknown agent type %q", model.ErrInvalidAgentConfig, *f.kind)
	}
	if *f.name != "" {
		cfg.Name = *f.name
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("dilemma-match", flag.ContinueOnError)
	a1 := registerAgent(fs, "a1", model.StrategyTitForTat)
	a2 := registerAgent(fs, "a2", model.StrategyRandom)
	rounds := fs.Int("rounds", 0, "rounds to play; 0 uses DILEMMA_ROUNDS")
	out := fs.String("out", "", "round log path; defaults to a hashed name under DILEMMA_OUTPUT_DIR")
	seed := fs.Uint64("seed", 0, "seed for random strategies; 0 derives one from the clock")
	concurrent := fs.Bool("concurrent", false, "query both agents concurrently each round")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if present (non-fatal).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *rounds > 0 {
		cfg.Rounds = *rounds
	}
	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano()) //nolint:gosec // wall clock is positive
	}

	cfg1, err := a1.config()
	if err != nil {
		return fmt.Errorf("agent 1: %w", err)
	}
	cfg2, err := a2.config()
	if err != nil {
		return fmt.Errorf("agent 2: %w", err)
	}

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	var backend generation.Backend = generation.NoopBackend{}
	if cfg1.IsGenerative() || cfg2.IsGenerative() {
		base, name, err := generation.Select(ctx, generation.Settings{
			Backend:       cfg.Backend,
			OllamaURL:     cfg.OllamaURL,
			OpenAIAPIKey:  cfg.OpenAIAPIKey,
			OpenAIBaseURL: cfg.OpenAIBaseURL,
			Timeout:       cfg.BackendTimeout,
		}, logger)
		if err != nil {
			return err
		}
		backend = generation.WithTelemetry(generation.WithRetry(base, cfg.BackendRetries, cfg.BackendRetryDelay), name)
	}

	agent1, err := newAgent(cfg1, backend, *seed, 0, logger)
	if err != nil {
		return err
	}
	agent2, err := newAgent(cfg2, backend, *seed, 1, logger)
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = filepath.Join(cfg.OutputDir, integrity.ArtifactName(cfg1.Name, cfg2.Name, 0))
	}

	logger.Info("match starting", "agent1", cfg1.Name, "agent2", cfg2.Name, "rounds", cfg.Rounds, "seed", *seed)

	m := game.NewMatch(agent1, agent2,
		game.WithLogger(logger),
		game.WithConcurrentDecisions(*concurrent),
		game.WithPayoffs(cfg.Payoffs),
	)
	log, err := m.Run(ctx, cfg.Rounds)
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}
	if err := m.Save(path); err != nil {
		return fmt.Errorf("save round log: %w", err)
	}

	logger.Info("match finished",
		"agent1", cfg1.Name, "score1", agent1.Score(),
		"agent2", cfg2.Name, "score2", agent2.Score(),
		"rounds", len(log),
		"path", path,
		"log_hash", integrity.RoundLogHash(log),
	)
	return nil
}

func newAgent(cfg model.AgentConfig, backend generation.Backend, seed, slot uint64, logger *slog.Logger) (*game.AgentState, error) {
	decide, err := decision.New(cfg, decision.Deps{
		Backend: backend,
		Rand:    rand.New(rand.NewPCG(seed, slot)), //nolint:gosec // strategy randomness, not security
		Logger:  logger.With("agent", cfg.Name),
	})
	if err != nil {
		return nil, err
	}
	return game.NewAgentState(cfg, decide), nil
}
