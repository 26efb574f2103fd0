// Package queue defines the messages exchanged over RabbitMQ and the
// background consumer that processes them.
package queue

import (
	"errors"
	"time"
)

// DefaultOptimizeQueue carries OptimizeRequested messages.
const DefaultOptimizeQueue = "seating.optimize.requested"

// OptimizeRequested is published when a planner asks for a background
// optimization.  The run row already exists in PENDING state; the message
// only points at it.
type OptimizeRequested struct {
	RunID        uint64    `json:"run_id"`
	EventID      uint64    `json:"event_id"`
	EventVersion uint32    `json:"event_version"`
	RequestedBy  uint64    `json:"requested_by"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Validate rejects messages that cannot refer to a real run.
func (m OptimizeRequested) Validate() error {
	if m.RunID == 0 || m.EventID == 0 {
		return errors.New("run_id and event_id are required")
	}
	return nil
}
