package sync

import (
	"fmt"
	"strings"
	"time"

	"github.com/klauern/assetsync/internal/model"
)

// Outcome represents what happened to a task during a run.
type Outcome string

const (
	// OutcomeFetched indicates a file was downloaded and verified.
	OutcomeFetched Outcome = "fetched"

	// OutcomeSkipped indicates an entry was already up to date.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeMaterialized indicates a directory or symlink was created.
	OutcomeMaterialized Outcome = "materialized"

	// OutcomeFailed indicates the task returned an error.
	OutcomeFailed Outcome = "failed"

	// OutcomeNotRun indicates the task was never started because the run
	// stopped first.
	OutcomeNotRun Outcome = "not-run"
)

// TaskResult represents the outcome of a single task.
type TaskResult struct {
	// Task is the planned task.
	Task Task

	// Outcome is what happened to it.
	Outcome Outcome

	// Error contains the task error when Outcome is OutcomeFailed.
	Error error
}

// Success returns true unless the task failed.
func (tr *TaskResult) Success() bool {
	return tr.Outcome != OutcomeFailed
}

// Result contains the complete outcome of a sync run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	// Platform is the platform artifacts were filtered for.
	Platform model.Platform

	// Root is the directory the tree was reconciled under.
	Root string

	// Tasks contains the result for each planned task, in plan order.
	Tasks []TaskResult

	// Stats are the final counters.
	Stats Stats

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Fetched returns tasks whose file was downloaded.
func (r *Result) Fetched() []TaskResult {
	return r.filterByOutcome(OutcomeFetched)
}

// Skipped returns tasks that were already up to date.
func (r *Result) Skipped() []TaskResult {
	return r.filterByOutcome(OutcomeSkipped)
}

// Materialized returns directories and symlinks that were created.
func (r *Result) Materialized() []TaskResult {
	return r.filterByOutcome(OutcomeMaterialized)
}

// Failed returns tasks that failed.
func (r *Result) Failed() []TaskResult {
	return r.filterByOutcome(OutcomeFailed)
}

// NotRun returns tasks that never started.
func (r *Result) NotRun() []TaskResult {
	return r.filterByOutcome(OutcomeNotRun)
}

func (r *Result) filterByOutcome(o Outcome) []TaskResult {
	var filtered []TaskResult
	for _, tr := range r.Tasks {
		if tr.Outcome == o {
			filtered = append(filtered, tr)
		}
	}
	return filtered
}

// Success returns true if every task either succeeded or was skipped.
func (r *Result) Success() bool {
	return len(r.Failed()) == 0 && len(r.NotRun()) == 0
}

// TotalProcessed returns the number of planned tasks.
func (r *Result) TotalProcessed() int {
	return len(r.Tasks)
}

// TotalChanged returns the number of entries written to the tree.
func (r *Result) TotalChanged() int {
	return len(r.Fetched()) + len(r.Materialized())
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Synced %d artifacts for %s into %s in %s\n",
		r.TotalProcessed(), r.Platform, r.Root, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "  Fetched:      %d (%d bytes)\n", len(r.Fetched()), r.Stats.BytesTransferred)
	fmt.Fprintf(&sb, "  Materialized: %d\n", len(r.Materialized()))
	fmt.Fprintf(&sb, "  Skipped:      %d\n", len(r.Skipped()))
	fmt.Fprintf(&sb, "  Failed:       %d\n", len(r.Failed()))
	if n := len(r.NotRun()); n > 0 {
		fmt.Fprintf(&sb, "  Not run:      %d\n", n)
	}

	if failed := r.Failed(); len(failed) > 0 {
		sb.WriteString("\nErrors:\n")
		for _, f := range failed {
			fmt.Fprintf(&sb, "  - %s: %v\n", f.Task.Artifact.Path, f.Error)
		}
	}

	return sb.String()
}
