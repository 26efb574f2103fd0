package seating

import "time"

// Optimize computes a proposed assignment for snap and explains it. It owns
// no state, never fails, and returns the same result for the same input as
// long as budget.TimeLimit is not reached.
func Optimize(snap Snapshot, budget Budget) OptimizationResult {
	return optimize(snap, budget, time.Now)
}

func optimize(snap Snapshot, budget Budget, now func() time.Time) OptimizationResult {
	p := newProblem(snap.Guests, snap.Tables, snap.Constraints)

	current := make(Assignment, len(p.guests))
	for _, g := range p.guests {
		if snap.CurrentAssignment != nil {
			current[g.ID] = snap.CurrentAssignment[g.ID]
		} else {
			current[g.ID] = g.TableID
		}
	}

	s := newSearcher(p, budget)
	s.now = now
	final := s.run(p.placements(current))

	ex := p.explain(current, final)
	violations := p.detect(final)
	violations = append(violations, s.notes...)
	rankViolations(violations)

	return OptimizationResult{
		CurrentAssignments:  current,
		ProposedAssignments: p.assignment(final),
		MovedGuestIDs:       ex.MovedGuestIDs,
		PerGuestScores:      ex.PerGuestScores,
		PerTableScores:      ex.PerTableScores,
		Violations:          violations,
		Stats:               s.stats,
	}
}
