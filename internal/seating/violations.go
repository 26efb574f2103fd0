package seating

import (
	"fmt"
	"sort"
)

func severityFor(p Priority) Severity {
	switch p {
	case PriorityRequired:
		return SeverityCritical
	case PriorityPreferred:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// DetectViolations evaluates assignment against table capacity, every
// constraint and table compatibility. Guest ids in constraints that are not
// in guests are ignored. The list is ranked critical, warning, info; within
// a rank it follows table order, then constraint order.
func DetectViolations(guests []Guest, tables []Table, constraints []Constraint, assignment Assignment) []OptimizationViolation {
	p := newProblem(guests, tables, constraints)
	return p.detect(p.placements(assignment))
}

func (p *problem) detect(place []int) []OptimizationViolation {
	out := []OptimizationViolation{}
	occ := p.occupants(place)

	for ti, t := range p.tables {
		if n := len(occ[ti]); n > 0 && n > t.Capacity {
			limit := t.Capacity
			if limit < 0 {
				limit = 0
			}
			out = append(out, OptimizationViolation{
				Severity: SeverityCritical,
				Kind:     KindOverCapacity,
				Message:  fmt.Sprintf("Table %s is over capacity (%d/%d)", t.DisplayName(), n, limit),
				TableID:  t.ID,
				GuestIDs: guestIDs(occ[ti]),
			})
		}
	}

	for _, c := range p.constraints {
		sev := severityFor(c.Priority)
		switch c.Type {
		case KeepApart:
			byTable := make(map[int][]string)
			for _, id := range c.GuestIDs {
				if ti := place[p.guestIdx[id]]; ti >= 0 {
					byTable[ti] = append(byTable[ti], id)
				}
			}
			for ti := range p.tables {
				ids := byTable[ti]
				if len(ids) < 2 {
					continue
				}
				out = append(out, OptimizationViolation{
					Severity:     sev,
					Kind:         KindKeepApart,
					Message:      fmt.Sprintf("%s must be kept apart but share table %s", joinNames(p.names(ids)), p.tables[ti].DisplayName()),
					TableID:      p.tables[ti].ID,
					ConstraintID: c.ID,
					GuestIDs:     ids,
				})
			}
		case KeepTogether:
			seen := make(map[int]bool)
			for _, id := range c.GuestIDs {
				seen[place[p.guestIdx[id]]] = true
			}
			if len(seen) > 1 {
				msg := fmt.Sprintf("%s must sit together but are split across %d tables", joinNames(p.names(c.GuestIDs)), len(seen))
				if seen[-1] {
					msg = fmt.Sprintf("%s must sit together but are split across tables, some unassigned", joinNames(p.names(c.GuestIDs)))
				}
				out = append(out, OptimizationViolation{
					Severity:     sev,
					Kind:         KindKeepTogether,
					Message:      msg,
					ConstraintID: c.ID,
					GuestIDs:     append([]string(nil), c.GuestIDs...),
				})
			}
		}
	}

	for ti, t := range p.tables {
		score := compatibility(p.rel, occ[ti], p.constraints)
		if score < LowCompatibilityThreshold {
			out = append(out, OptimizationViolation{
				Severity: SeverityWarning,
				Kind:     KindLowCompatibility,
				Message:  fmt.Sprintf("Table %s has low compatibility (%.1f)", t.DisplayName(), score),
				TableID:  t.ID,
				GuestIDs: guestIDs(occ[ti]),
			})
		}
	}

	rankViolations(out)
	return out
}

// rankViolations orders by severity, keeping the relative order within a rank.
func rankViolations(vs []OptimizationViolation) {
	sort.SliceStable(vs, func(i, j int) bool {
		return vs[i].Severity.rank() < vs[j].Severity.rank()
	})
}

func guestIDs(gs []Guest) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.ID
	}
	return out
}
