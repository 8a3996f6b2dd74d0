package dilemma

import (
	"time"

	"github.com/google/uuid"
)

// Request is one generation call issued on behalf of a generative agent.
type Request struct {
	Model       string
	Prompt      string
	System      string
	Temperature float64
}

// Outcome is the public view of one finished task.
// No internal package imports, safe to use from outside the module.
type Outcome struct {
	TaskID   int
	Agent1   string
	Agent2   string
	Success  bool
	Rows     int
	Filename string // Artifact name relative to the output directory; empty on failure.
	Error    string
	Duration time.Duration
}

// Report summarises one batch run.
type Report struct {
	BatchID     uuid.UUID
	Total       int
	Succeeded   int
	Failed      int
	Rows        int
	Workers     int
	Seed        uint64
	Elapsed     time.Duration
	Fingerprint string
	// Cancelled is set when the run was interrupted before every task finished.
	Cancelled bool
	// Failures in arrival order.
	Failures []Outcome
}
