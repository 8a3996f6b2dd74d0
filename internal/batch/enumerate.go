// Package batch enumerates a configuration space into match tasks, sizes the
// worker pool against a wall-clock budget and runs every task with failure
// isolation.
package batch

import (
	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

// Plan is the configuration space of one batch.
type Plan struct {
	Rounds         int       `json:"rounds" yaml:"rounds"`
	Strategies     []string  `json:"strategies" yaml:"strategies"`
	Models         []string  `json:"models" yaml:"models"`
	Temperatures   []float64 `json:"temperatures" yaml:"temperatures"`
	Profiles       []string  `json:"profiles" yaml:"profiles"`
	ContextOptions []bool    `json:"context_options" yaml:"context_options"`
}

// Configs returns every agent configuration of the plan: one per strategy,
// then the generative product models × temperatures × profiles × context.
func (p Plan) Configs() []model.AgentConfig {
	configs := make([]model.AgentConfig, 0,
		len(p.Strategies)+len(p.Models)*len(p.Temperatures)*len(p.Profiles)*len(p.ContextOptions))
	for _, s := range p.Strategies {
		configs = append(configs, model.StrategyAgent(s))
	}
	for _, m := range p.Models {
		for _, temp := range p.Temperatures {
			for _, prof := range p.Profiles {
				for _, withCtx := range p.ContextOptions {
					configs = append(configs, model.GenerativeAgent(m, prof, withCtx, temp))
				}
			}
		}
	}
	return configs
}

// Enumerate pairs every configuration with itself and every later one
// (unordered pairs with repetition), drops strategy-vs-strategy pairs and
// numbers the survivors 0..n-1 in enumeration order.
func Enumerate(p Plan) []model.Task {
	configs := p.Configs()
	var tasks []model.Task
	for i := range configs {
		for j := i; j < len(configs); j++ {
			a, b := configs[i], configs[j]
			if !a.IsGenerative() && !b.IsGenerative() {
				continue
			}
			tasks = append(tasks, model.Task{ID: len(tasks), Agent1: a, Agent2: b})
		}
	}
	return tasks
}

// Chunk splits items into consecutive groups of at most size elements.
// A non-positive size yields one group per item.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
