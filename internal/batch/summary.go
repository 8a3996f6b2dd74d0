package batch

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hatim381/dilemme-du-prisonnier/internal/integrity"
	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

// reportedFailures is how many failures Report lists.
const reportedFailures = 5

// Summary accumulates task outcomes. It is only touched by the collector,
// so it carries no lock.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Rows      int
	Workers   int
	Seed      uint64
	Started   time.Time
	Elapsed   time.Duration

	// Failures in arrival order.
	Failures []model.TaskResult

	hashes []string
	now    func() time.Time
}

// NewSummary starts the clock for a run of total tasks.
func NewSummary(total, workers int, seed uint64) *Summary {
	s := &Summary{Total: total, Workers: workers, Seed: seed, now: time.Now}
	s.Started = s.now()
	return s
}

// Add folds one outcome in.
func (s *Summary) Add(r model.TaskResult) {
	if r.Success {
		s.Succeeded++
		s.Rows += r.Rows
		if r.LogHash != "" {
			s.hashes = append(s.hashes, r.LogHash)
		}
		return
	}
	s.Failed++
	s.Failures = append(s.Failures, r)
}

// Done is the number of outcomes folded so far.
func (s *Summary) Done() int { return s.Succeeded + s.Failed }

// Finish stops the clock.
func (s *Summary) Finish() {
	s.Elapsed = s.now().Sub(s.Started)
}

// Fingerprint is the Merkle root over the round-log hashes of successful
// tasks. Identical plans and seeds yield identical fingerprints.
func (s *Summary) Fingerprint() string {
	return integrity.Fingerprint(s.hashes)
}

// MeanTaskTime is the elapsed time divided by the task count.
func (s *Summary) MeanTaskTime() time.Duration {
	if s.Total == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Total)
}

// Throughput is tasks per second of wall-clock time.
func (s *Summary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Total) / s.Elapsed.Seconds()
}

// Run converts the summary into the catalog's batch record.
func (s *Summary) Run(run model.BatchRun) model.BatchRun {
	completed := s.Started.Add(s.Elapsed).UTC()
	run.Succeeded = s.Succeeded
	run.Failed = s.Failed
	run.Elapsed = s.Elapsed
	run.CompletedAt = &completed
	run.Fingerprint = s.Fingerprint()
	run.Workers = s.Workers
	run.Seed = s.Seed
	if run.Status == "" || run.Status == model.BatchStatusRunning {
		run.Status = model.BatchStatusCompleted
	}
	return run
}

// Report writes the operator summary.
func (s *Summary) Report(w io.Writer) error {
	lines := []string{
		"batch summary",
		fmt.Sprintf("  succeeded:        %s", humanize.Comma(int64(s.Succeeded))),
		fmt.Sprintf("  failed:           %s", humanize.Comma(int64(s.Failed))),
		fmt.Sprintf("  total:            %s", humanize.Comma(int64(s.Total))),
		fmt.Sprintf("  rows written:     %s", humanize.Comma(int64(s.Rows))),
		fmt.Sprintf("  workers:          %d", s.Workers),
		fmt.Sprintf("  elapsed:          %s", s.Elapsed.Round(time.Millisecond)),
		fmt.Sprintf("  mean per task:    %s", s.MeanTaskTime().Round(time.Millisecond)),
		fmt.Sprintf("  tasks per second: %.2f", s.Throughput()),
	}
	if fp := s.Fingerprint(); fp != "" {
		lines = append(lines, fmt.Sprintf("  fingerprint:      %s", fp))
	}
	if len(s.Failures) > 0 {
		n := min(reportedFailures, len(s.Failures))
		lines = append(lines, fmt.Sprintf("first failures (%d of %d):", n, len(s.Failures)))
		for _, f := range s.Failures[:n] {
			lines = append(lines, fmt.Sprintf("  - %s vs %s: %s", f.Agent1, f.Agent2, f.Error))
		}
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return fmt.Errorf("batch: write report: %w", err)
		}
	}
	return nil
}
