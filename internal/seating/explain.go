package seating

import "fmt"

// Explanation is the diff between two assignments plus the score breakdowns
// of the later one.
type Explanation struct {
	MovedGuestIDs  []string                 `json:"moved_guest_ids"`
	PerGuestScores []AssignmentScore        `json:"per_guest_scores"`
	PerTableScores []TableOptimizationScore `json:"per_table_scores"`
}

// Explain compares before and after guest by guest and scores every guest
// against its final tablemates. A guest counts as moved when its table
// differs, including assigned to unassigned and back. Ids missing from an
// assignment are unassigned.
func Explain(before, after Assignment, tables []Table, guests []Guest, constraints []Constraint) Explanation {
	p := newProblem(guests, tables, constraints)
	return p.explain(before, p.placements(after))
}

func (p *problem) explain(before Assignment, after []int) Explanation {
	ex := Explanation{
		MovedGuestIDs:  []string{},
		PerGuestScores: make([]AssignmentScore, 0, len(p.guests)),
	}
	for gi, g := range p.guests {
		var now string
		if ti := after[gi]; ti >= 0 {
			now = p.tables[ti].ID
		}
		if before.TableOf(g.ID) != now {
			ex.MovedGuestIDs = append(ex.MovedGuestIDs, g.ID)
		}
	}

	occ := p.occupants(after)
	for gi, g := range p.guests {
		ti := after[gi]
		if ti < 0 {
			ex.PerGuestScores = append(ex.PerGuestScores, AssignmentScore{GuestID: g.ID, Reasons: []ScoreReason{}})
			continue
		}
		s := scoreWith(p.rel, g, occ[ti], p.constraintsOf[gi])
		s.TableID = p.tables[ti].ID
		ex.PerGuestScores = append(ex.PerGuestScores, s)
	}
	ex.PerTableScores = p.tableScores(occ)
	return ex
}

// tableScores builds a TableOptimizationScore for every table in order.
func (p *problem) tableScores(occ [][]Guest) []TableOptimizationScore {
	out := make([]TableOptimizationScore, 0, len(p.tables))
	for ti, t := range p.tables {
		mates := occ[ti]
		ts := TableOptimizationScore{
			TableID:            t.ID,
			TableName:          t.DisplayName(),
			CompatibilityScore: compatibility(p.rel, mates, p.constraints),
			OccupantCount:      len(mates),
			Capacity:           t.Capacity,
			Issues:             []string{},
		}
		if len(mates) > 0 && len(mates) > t.Capacity {
			ts.Issues = append(ts.Issues, fmt.Sprintf("over capacity (%d/%d)", len(mates), max(t.Capacity, 0)))
		}
		for i := 0; i < len(mates); i++ {
			for j := i + 1; j < len(mates); j++ {
				if conflicting(p.rel, mates[i], mates[j], p.constraints) {
					ts.Issues = append(ts.Issues, fmt.Sprintf("conflicting guests seated together: %s and %s",
						mates[i].DisplayName(), mates[j].DisplayName()))
				}
			}
		}
		if ts.CompatibilityScore < LowCompatibilityThreshold {
			ts.Issues = append(ts.Issues, "low compatibility")
		}
		out = append(out, ts)
	}
	return out
}
