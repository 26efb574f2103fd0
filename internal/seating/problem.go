package seating

// problem is the normalised, index-based view of a Snapshot that the search,
// detector and explainer share. It never aliases caller slices.
type problem struct {
	guests      []Guest
	guestIdx    map[string]int
	tables      []Table
	tableIdx    map[string]int
	constraints []Constraint
	rel         relationIndex

	// constraintsOf[g] lists the constraints naming guest g.
	constraintsOf [][]Constraint
}

func newProblem(guests []Guest, tables []Table, constraints []Constraint) *problem {
	p := &problem{
		guestIdx: make(map[string]int, len(guests)),
		tableIdx: make(map[string]int, len(tables)),
	}
	for _, g := range guests {
		if g.ID == "" {
			continue
		}
		if _, dup := p.guestIdx[g.ID]; dup {
			continue
		}
		p.guestIdx[g.ID] = len(p.guests)
		p.guests = append(p.guests, g)
	}
	for _, t := range tables {
		if t.ID == "" {
			continue
		}
		if _, dup := p.tableIdx[t.ID]; dup {
			continue
		}
		p.tableIdx[t.ID] = len(p.tables)
		p.tables = append(p.tables, t)
	}
	p.constraints = normalizeConstraints(constraints, p.guestIdx)
	p.rel = newRelationIndex(p.guests)

	p.constraintsOf = make([][]Constraint, len(p.guests))
	for _, c := range p.constraints {
		for _, id := range c.GuestIDs {
			gi := p.guestIdx[id]
			p.constraintsOf[gi] = append(p.constraintsOf[gi], c)
		}
	}
	return p
}

// normalizeConstraints drops guest ids that are unknown or repeated, and
// drops constraints left with fewer than two members or an unknown type.
// An unknown priority is treated as optional.
func normalizeConstraints(in []Constraint, known map[string]int) []Constraint {
	out := make([]Constraint, 0, len(in))
	for _, c := range in {
		if c.Type != KeepTogether && c.Type != KeepApart {
			continue
		}
		switch c.Priority {
		case PriorityRequired, PriorityPreferred, PriorityOptional:
		default:
			c.Priority = PriorityOptional
		}
		seen := make(map[string]bool, len(c.GuestIDs))
		ids := make([]string, 0, len(c.GuestIDs))
		for _, id := range c.GuestIDs {
			if _, ok := known[id]; !ok || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) < 2 {
			continue
		}
		c.GuestIDs = ids
		out = append(out, c)
	}
	return out
}

// tableOf resolves a table id to its index, or -1.
func (p *problem) tableOf(id string) int {
	if id == "" {
		return -1
	}
	if ti, ok := p.tableIdx[id]; ok {
		return ti
	}
	return -1
}

// placements converts an Assignment into per-guest table indices. Unknown
// table ids count as unassigned.
func (p *problem) placements(a Assignment) []int {
	place := make([]int, len(p.guests))
	for gi, g := range p.guests {
		place[gi] = p.tableOf(a.TableOf(g.ID))
	}
	return place
}

// occupants returns the guests seated at each table, in guest order.
func (p *problem) occupants(place []int) [][]Guest {
	occ := make([][]Guest, len(p.tables))
	for gi, ti := range place {
		if ti >= 0 {
			occ[ti] = append(occ[ti], p.guests[gi])
		}
	}
	return occ
}

// assignment renders per-guest table indices as an Assignment that lists
// every guest, unassigned ones with "".
func (p *problem) assignment(place []int) Assignment {
	a := make(Assignment, len(p.guests))
	for gi, g := range p.guests {
		if ti := place[gi]; ti >= 0 {
			a[g.ID] = p.tables[ti].ID
		} else {
			a[g.ID] = ""
		}
	}
	return a
}

func (p *problem) names(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if gi, ok := p.guestIdx[id]; ok {
			out = append(out, p.guests[gi].DisplayName())
		} else {
			out = append(out, id)
		}
	}
	return out
}
