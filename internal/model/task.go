package model

import "time"

// Task is one scheduled match within a batch. Tasks are created once during
// enumeration and never modified afterwards.
type Task struct {
	ID     int         `json:"id"`
	Agent1 AgentConfig `json:"agent1"`
	Agent2 AgentConfig `json:"agent2"`
}

// GenerativeAgents returns how many of the task's agents call a backend.
func (t Task) GenerativeAgents() int {
	n := 0
	if t.Agent1.IsGenerative() {
		n++
	}
	if t.Agent2.IsGenerative() {
		n++
	}
	return n
}

// TaskResult is the completion record a worker hands back to the scheduler.
type TaskResult struct {
	TaskID   int           `json:"task_id"`
	Agent1   string        `json:"agent1"`
	Agent2   string        `json:"agent2"`
	Success  bool          `json:"success"`
	Rows     int           `json:"rows"`
	Filename string        `json:"filename,omitempty"`
	LogHash  string        `json:"log_hash,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}
