package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

func defaultPlan() Plan {
	return Plan{
		Rounds:         200,
		Strategies:     []string{"tit_for_tat", "random", "always_cooperate", "always_defect", "grim_trigger"},
		Models:         []string{"qwen2.5:7b", "gemma2:9b"},
		Temperatures:   []float64{0.7, 1.5},
		Profiles:       []string{"default", "cooperative", "grudger", "tit_for_tat", "random", "selfish"},
		ContextOptions: []bool{true, false},
	}
}

func TestEnumerateTwoStrategiesOneGenerative(t *testing.T) {
	p := Plan{
		Strategies:     []string{"always_cooperate", "always_defect"},
		Models:         []string{"qwen2.5:7b"},
		Temperatures:   []float64{0.7},
		Profiles:       []string{"default"},
		ContextOptions: []bool{true},
	}
	tasks := Enumerate(p)
	require.Len(t, tasks, 3)

	gen := "O_qwen257b_defa_Ctx_T0.7"
	assert.Equal(t, "Strat_always_cooperate", tasks[0].Agent1.Name)
	assert.Equal(t, gen, tasks[0].Agent2.Name)
	assert.Equal(t, "Strat_always_defect", tasks[1].Agent1.Name)
	assert.Equal(t, gen, tasks[1].Agent2.Name)
	assert.Equal(t, gen, tasks[2].Agent1.Name)
	assert.Equal(t, gen, tasks[2].Agent2.Name)

	for i, task := range tasks {
		assert.Equal(t, i, task.ID)
	}
}

func TestEnumerateDefaultPlan(t *testing.T) {
	p := defaultPlan()
	configs := p.Configs()
	require.Len(t, configs, 5+2*2*6*2)

	tasks := Enumerate(p)
	// 53 configs give 53*54/2 pairs; the 15 strategy-only pairs are dropped.
	require.Len(t, tasks, 1431-15)

	ids := make(map[int]bool, len(tasks))
	for _, task := range tasks {
		assert.True(t, task.Agent1.IsGenerative() || task.Agent2.IsGenerative())
		assert.False(t, ids[task.ID], "duplicate id %d", task.ID)
		ids[task.ID] = true
	}

	assert.Equal(t, 240*200+1176*400, TotalCalls(tasks, 200))
}

func TestEnumerateOrder(t *testing.T) {
	p := Plan{
		Models:         []string{"m1", "m2"},
		Temperatures:   []float64{0.5},
		Profiles:       []string{"default", "selfish"},
		ContextOptions: []bool{true, false},
	}
	var names []string
	for _, c := range p.Configs() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"O_m1_defa_Ctx_T0.5", "O_m1_defa_NoCtx_T0.5", "O_m1_self_Ctx_T0.5", "O_m1_self_NoCtx_T0.5",
		"O_m2_defa_Ctx_T0.5", "O_m2_defa_NoCtx_T0.5", "O_m2_self_Ctx_T0.5", "O_m2_self_NoCtx_T0.5",
	}, names)
}

func TestEnumerateStrategiesOnly(t *testing.T) {
	assert.Empty(t, Enumerate(Plan{Strategies: []string{"random", "tit_for_tat"}}))
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, Chunk(items, 3))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5, 6, 7}}, Chunk(items, 10))
	assert.Len(t, Chunk(items, 0), 7)
	assert.Empty(t, Chunk([]int(nil), 3))

	chunks := Chunk(items, 3)
	chunks[0] = append(chunks[0], 99)
	assert.Equal(t, 4, items[3], "appending to a chunk must not clobber the next one")
}

func TestTotalCalls(t *testing.T) {
	s := model.StrategyAgent("random")
	g := model.GenerativeAgent("m", "default", true, 0.7)
	tasks := []model.Task{
		{ID: 0, Agent1: s, Agent2: g},
		{ID: 1, Agent1: g, Agent2: g},
		{ID: 2, Agent1: s, Agent2: s},
	}
	assert.Equal(t, 10+20, TotalCalls(tasks, 10))
	assert.Zero(t, TotalCalls(nil, 10))
}

func TestComputeWorkers(t *testing.T) {
	tests := []struct {
		name          string
		calls         int
		perCall       time.Duration
		budget        time.Duration
		ceiling, host int
		want          int
	}{
		{"default plan hits ceiling", 518400, 3500 * time.Millisecond, 7 * time.Hour, 16, 64, 16},
		{"default plan hits host", 518400, 3500 * time.Millisecond, 7 * time.Hour, 16, 8, 8},
		{"small batch needs one", 100, time.Second, time.Hour, 16, 8, 1},
		{"exact fit rounds up", 7200, time.Second, time.Hour, 16, 8, 3},
		{"no calls", 0, time.Second, time.Hour, 16, 8, 1},
		{"no budget uses limits", 100, time.Second, 0, 4, 8, 4},
		{"never below one", 100, time.Second, time.Hour, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeWorkers(tt.calls, tt.perCall, tt.budget, tt.ceiling, tt.host))
		})
	}
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 35*time.Second, EstimateDuration(10, 3500*time.Millisecond, 1))
	assert.Equal(t, 17500*time.Millisecond, EstimateDuration(10, 3500*time.Millisecond, 2))
	assert.Equal(t, 35*time.Second, EstimateDuration(10, 3500*time.Millisecond, 0))
}
