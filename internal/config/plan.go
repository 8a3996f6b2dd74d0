package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hatim381/dilemme-du-prisonnier/internal/game"
)

// PlanFile is the YAML form of a batch plan. Absent keys keep the values
// loaded from the environment.
//
//	rounds: 50
//	models: [qwen2.5:7b]
//	temperatures: [0.2, 0.7]
//	strategies: [tit_for_tat, grim_trigger]
//	profiles: [default, selfish]
//	context_options: [true]
//	budget: 2h
//	max_workers: 8
//	seed: 7
//	payoffs: {temptation: 5, reward: 3, punishment: 1, sucker: 0}
type PlanFile struct {
	Rounds         *int      `yaml:"rounds"`
	Models         []string  `yaml:"models"`
	Temperatures   []float64 `yaml:"temperatures"`
	Strategies     []string  `yaml:"strategies"`
	Profiles       []string  `yaml:"profiles"`
	ContextOptions []bool    `yaml:"context_options"`
	Budget         string    `yaml:"budget"`
	MaxWorkers     *int      `yaml:"max_workers"`
	ChunkSize      *int      `yaml:"chunk_size"`
	Seed           *uint64   `yaml:"seed"`
	OutputDir      string    `yaml:"output_dir"`
	Payoffs        *Payoffs  `yaml:"payoffs"`
}

// Payoffs is the plan form of the payoff table. All four values are required.
type Payoffs struct {
	Temptation *int64 `yaml:"temptation"`
	Reward     *int64 `yaml:"reward"`
	Punishment *int64 `yaml:"punishment"`
	Sucker     *int64 `yaml:"sucker"`
}

// ReadPlanFile parses a YAML plan. Unknown keys are rejected so typos do not
// silently fall back to defaults.
func ReadPlanFile(path string) (PlanFile, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return PlanFile{}, fmt.Errorf("config: open plan: %w", err)
	}
	defer func() { _ = f.Close() }()

	var p PlanFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return PlanFile{}, fmt.Errorf("config: parse plan %s: %w", path, err)
	}
	return p, nil
}

// ApplyPlanFile reads path and overlays it on c.
func (c *Config) ApplyPlanFile(path string) error {
	p, err := ReadPlanFile(path)
	if err != nil {
		return err
	}
	if err := c.ApplyPlan(p); err != nil {
		return fmt.Errorf("config: plan %s: %w", path, err)
	}
	c.PlanPath = path
	return nil
}

// ApplyPlan overlays the keys present in p.
func (c *Config) ApplyPlan(p PlanFile) error {
	if p.Rounds != nil {
		c.Rounds = *p.Rounds
	}
	if p.Models != nil {
		c.Models = p.Models
	}
	if p.Temperatures != nil {
		c.Temperatures = p.Temperatures
	}
	if p.Strategies != nil {
		c.Strategies = p.Strategies
	}
	if p.Profiles != nil {
		c.Profiles = p.Profiles
	}
	if p.ContextOptions != nil {
		c.ContextOptions = p.ContextOptions
	}
	if p.Budget != "" {
		d, err := time.ParseDuration(p.Budget)
		if err != nil {
			return fmt.Errorf("budget %q is not a valid duration", p.Budget)
		}
		c.Budget = d
	}
	if p.MaxWorkers != nil {
		c.MaxWorkers = *p.MaxWorkers
	}
	if p.ChunkSize != nil {
		c.ChunkSize = *p.ChunkSize
	}
	if p.Seed != nil {
		c.Seed = *p.Seed
	}
	if p.OutputDir != "" {
		c.OutputDir = p.OutputDir
	}
	if p.Payoffs != nil {
		po := p.Payoffs
		if po.Temptation == nil || po.Reward == nil || po.Punishment == nil || po.Sucker == nil {
			return errors.New("payoffs needs temptation, reward, punishment and sucker")
		}
		c.Payoffs = game.PayoffTable{
			Temptation: *po.Temptation,
			Reward:     *po.Reward,
			Punishment: *po.Punishment,
			Sucker:     *po.Sucker,
		}
	}
	return nil
}
