package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	dilemma "github.com/hatim381/dilemme-du-prisonnier"
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

func run(ctx context.Context, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("dilemma", flag.ContinueOnError)
	planPath := fs.String("plan", "", "YAML batch plan (overrides DILEMMA_PLAN)")
	outputDir := fs.String("out", "", "artifact directory (overrides DILEMMA_OUTPUT_DIR)")
	seed := fs.Uint64("seed", 0, "seed for the random strategies; 0 derives one from the clock")
	workers := fs.Int("workers", 0, "fixed worker count; 0 sizes the pool from the budget, 1 runs sequentially")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	app, err := dilemma.New(
		dilemma.WithLogger(logger),
		dilemma.WithVersion(version),
		dilemma.WithPlanFile(*planPath),
		dilemma.WithOutputDir(*outputDir),
		dilemma.WithSeed(*seed),
		dilemma.WithWorkers(*workers),
		dilemma.WithReportWriter(os.Stderr),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Shutdown(context.Background()); err != nil {
			slog.Warn("shutdown error", "error", err)
		}
	}()

	report, err := app.Run(ctx)
	if err != nil {
		return err
	}
	if report.Cancelled {
		slog.Warn("dilemma interrupted", "succeeded", report.Succeeded, "failed", report.Failed)
		return nil
	}
	slog.Info("dilemma stopped", "succeeded", report.Succeeded, "failed", report.Failed)
	return nil
}
