package config

import (
	"time"

	"github.com/iliyamo/event-seating-planner/internal/seating"
)

// OptimizerConfig bounds every optimization the service runs and controls
// the background worker.
type OptimizerConfig struct {
	MaxPasses      int           // refinement passes; 0 lets the engine scale by guest count
	MaxEvaluations int           // candidate evaluations; 0 takes the engine default
	TimeLimit      time.Duration // wall clock cap; 0 keeps runs reproducible
	WorkerEnabled  bool          // start the RabbitMQ consumer alongside the HTTP server
	Queue          string        // queue carrying optimization requests
}

// LoadOptimizerConfig reads OPTIMIZER_* variables.  Negative values fall
// back to the engine defaults.
func LoadOptimizerConfig() OptimizerConfig {
	c := OptimizerConfig{
		MaxPasses:      envInt("OPTIMIZER_MAX_PASSES", 0),
		MaxEvaluations: envInt("OPTIMIZER_MAX_EVALUATIONS", 0),
		TimeLimit:      envDur("OPTIMIZER_TIME_LIMIT", 0),
		WorkerEnabled:  envBool("OPTIMIZER_WORKER_ENABLED", true),
		Queue:          envStr("OPTIMIZER_QUEUE", "seating.optimize.requested"),
	}
	if c.MaxPasses < 0 {
		c.MaxPasses = 0
	}
	if c.MaxEvaluations < 0 {
		c.MaxEvaluations = 0
	}
	if c.TimeLimit < 0 {
		c.TimeLimit = 0
	}
	return c
}

// Budget converts the configuration into an engine budget.
func (c OptimizerConfig) Budget() seating.Budget {
	return seating.Budget{
		MaxPasses:      c.MaxPasses,
		MaxEvaluations: c.MaxEvaluations,
		TimeLimit:      c.TimeLimit,
	}
}
