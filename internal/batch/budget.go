package batch

import (
	"time"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

// TotalCalls is the number of backend calls the tasks imply: one per round
// for each generative seat.
func TotalCalls(tasks []model.Task, rounds int) int {
	total := 0
	for _, t := range tasks {
		total += t.GenerativeAgents() * rounds
	}
	return total
}

// ComputeWorkers returns the smallest worker count that fits totalCalls
// sequential calls of perCall latency into budget, clamped to ceiling and
// hostCapacity (non-positive limits are ignored). The result is at least 1.
// A non-positive budget asks for as many workers as the limits allow.
func ComputeWorkers(totalCalls int, perCall, budget time.Duration, ceiling, hostCapacity int) int {
	var required int
	if budget <= 0 {
		required = max(ceiling, hostCapacity, 1)
	} else {
		required = int(float64(totalCalls)*perCall.Seconds()/budget.Seconds()) + 1
	}
	if ceiling > 0 {
		required = min(required, ceiling)
	}
	if hostCapacity > 0 {
		required = min(required, hostCapacity)
	}
	return max(required, 1)
}

// EstimateDuration projects the wall-clock time of totalCalls calls spread
// over workers.
func EstimateDuration(totalCalls int, perCall time.Duration, workers int) time.Duration {
	if workers < 1 {
		workers = 1
	}
	return time.Duration(float64(totalCalls) * float64(perCall) / float64(workers))
}
