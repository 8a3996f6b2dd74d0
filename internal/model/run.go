package model

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the lifecycle state of a batch run.
type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// BatchRun is one execution of the batch scheduler over an enumerated task list.
type BatchRun struct {
	ID          uuid.UUID     `json:"id"`
	Status      BatchStatus   `json:"status"`
	Rounds      int           `json:"rounds"`
	TotalTasks  int           `json:"total_tasks"`
	TotalCalls  int           `json:"total_calls"`
	Workers     int           `json:"workers"`
	Seed        uint64        `json:"seed"`
	OutputDir   string        `json:"output_dir"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Elapsed     time.Duration `json:"elapsed"`
	Fingerprint string        `json:"fingerprint,omitempty"`
}
