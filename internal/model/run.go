package model

import (
	"time"

	"github.com/iliyamo/event-seating-planner/internal/seating"
)

// RunStatus is the lifecycle state of an optimization run.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"   // queued for the background worker
	RunCompleted RunStatus = "COMPLETED" // result available, not applied
	RunApplied   RunStatus = "APPLIED"   // proposal written into the event
	RunDiscarded RunStatus = "DISCARDED" // rejected by a planner
	RunFailed    RunStatus = "FAILED"    // the worker could not compute a result
)

// Run modes.
const (
	RunModeSync  = "SYNC"
	RunModeAsync = "ASYNC"
)

// OptimizationRun mirrors the `optimization_runs` table.  Result is only set
// once the run left PENDING.
type OptimizationRun struct {
	ID           uint64                      `json:"id"`               // optimization_runs.id
	EventID      uint64                      `json:"event_id"`         // optimization_runs.event_id
	RequestedBy  uint64                      `json:"requested_by"`     // optimization_runs.requested_by -> users.id
	EventVersion uint32                      `json:"event_version"`    // events.version the run was computed from
	Mode         string                      `json:"mode"`             // SYNC or ASYNC
	Status       RunStatus                   `json:"status"`           // optimization_runs.status
	Budget       seating.Budget              `json:"budget"`           // optimization_runs.budget (JSON)
	Result       *seating.OptimizationResult `json:"result,omitempty"` // optimization_runs.result (JSON, nullable)
	Error        string                      `json:"error,omitempty"`  // optimization_runs.error
	CreatedAt    time.Time                   `json:"created_at"`       // optimization_runs.created_at
	FinishedAt   *time.Time                  `json:"finished_at"`      // optimization_runs.finished_at (nullable)
}

// RunSummary is a compact view of a run for list endpoints.
type RunSummary struct {
	ID           uint64     `json:"id"`
	EventID      uint64     `json:"event_id"`
	EventVersion uint32     `json:"event_version"`
	Mode         string     `json:"mode"`
	Status       RunStatus  `json:"status"`
	MovedGuests  int        `json:"moved_guests"`
	Violations   int        `json:"violations"`
	HasCritical  bool       `json:"has_critical"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at"`
}

// Summary condenses r for list responses.
func (r OptimizationRun) Summary() RunSummary {
	s := RunSummary{
		ID:           r.ID,
		EventID:      r.EventID,
		EventVersion: r.EventVersion,
		Mode:         r.Mode,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		FinishedAt:   r.FinishedAt,
	}
	if r.Result != nil {
		s.MovedGuests = len(r.Result.MovedGuestIDs)
		s.Violations = len(r.Result.Violations)
		s.HasCritical = r.Result.HasCritical()
	}
	return s
}
