package seating

import "math"

// edge is one relationship as seen from its owner, already converted to
// points.
type edge struct {
	other    int
	pts      float64
	strength int
}

// evalData is the numeric form of a problem used by the search. It yields
// the same totals as scoreWith without building reasons, maps or strings.
type evalData struct {
	edges     [][]edge // per guest, as lookup sees it
	group     []int    // interned group per guest, -1 for none
	interests [][]int  // distinct interned interests per guest
	cons      [][]int  // indices into problem.constraints naming the guest

	groups, topics int
}

// strength is the clamped strength of a's relationship with b, or 0.
func (d *evalData) strength(a, b int) int {
	for _, ed := range d.edges[a] {
		if ed.other == b {
			return ed.strength
		}
	}
	return 0
}

func newEvalData(p *problem) evalData {
	n := len(p.guests)
	d := evalData{
		edges:     make([][]edge, n),
		group:     make([]int, n),
		interests: make([][]int, n),
		cons:      make([][]int, n),
	}

	// lookup is symmetric, so every stored pair gives both guests a view.
	seen := make([]map[int]bool, n)
	addView := func(a, b int) {
		if seen[a] == nil {
			seen[a] = make(map[int]bool)
		}
		if seen[a][b] {
			return
		}
		seen[a][b] = true
		if r, ok := p.rel.lookup(p.guests[a].ID, p.guests[b].ID); ok {
			d.edges[a] = append(d.edges[a], edge{other: b, pts: RelationshipPoints(r), strength: clampStrength(r.Strength)})
		}
	}
	for gi, g := range p.guests {
		for _, r := range g.Relationships {
			oi, ok := p.guestIdx[r.OtherGuestID]
			if !ok || oi == gi {
				continue
			}
			addView(gi, oi)
			addView(oi, gi)
		}
	}

	groupIDs := make(map[string]int)
	topicIDs := make(map[string]int)
	for gi, g := range p.guests {
		d.group[gi] = -1
		if g.Group != "" {
			id, ok := groupIDs[g.Group]
			if !ok {
				id = len(groupIDs)
				groupIDs[g.Group] = id
			}
			d.group[gi] = id
		}
		var mine map[int]bool
		for _, in := range g.Interests {
			k := normInterest(in)
			if k == "" {
				continue
			}
			id, ok := topicIDs[k]
			if !ok {
				id = len(topicIDs)
				topicIDs[k] = id
			}
			if mine == nil {
				mine = make(map[int]bool)
			}
			if !mine[id] {
				mine[id] = true
				d.interests[gi] = append(d.interests[gi], id)
			}
		}
	}
	d.groups, d.topics = len(groupIDs), len(topicIDs)

	for ci, c := range p.constraints {
		for _, id := range c.GuestIDs {
			gi := p.guestIdx[id]
			d.cons[gi] = append(d.cons[gi], ci)
		}
	}
	return d
}

// evaluator scores candidate tables with reusable scratch tallies. It is
// owned by one searcher and is not safe for concurrent use.
type evaluator struct {
	p *problem
	d evalData

	here     []bool
	groupCnt []int
	topicCnt []int
	consCnt  []int
}

func newEvaluator(p *problem) *evaluator {
	d := newEvalData(p)
	return &evaluator{
		p:        p,
		d:        d,
		here:     make([]bool, len(p.guests)),
		groupCnt: make([]int, d.groups),
		topicCnt: make([]int, d.topics),
		consCnt:  make([]int, len(p.constraints)),
	}
}

// sum returns the summed AssignmentScore totals of the guests in scored when
// seated together with everyone in a and b. Every scored guest must appear
// in a or b, and a and b must not overlap.
func (e *evaluator) sum(scored, a, b []int) float64 {
	e.mark(a, 1)
	e.mark(b, 1)
	var total float64
	for _, gi := range scored {
		total += e.guest(gi)
	}
	e.mark(a, -1)
	e.mark(b, -1)
	return total
}

func (e *evaluator) mark(guests []int, delta int) {
	for _, gi := range guests {
		e.here[gi] = delta > 0
		if g := e.d.group[gi]; g >= 0 {
			e.groupCnt[g] += delta
		}
		for _, t := range e.d.interests[gi] {
			e.topicCnt[t] += delta
		}
		for _, ci := range e.d.cons[gi] {
			e.consCnt[ci] += delta
		}
	}
}

// guest mirrors scoreWith for gi against the marked guests.
func (e *evaluator) guest(gi int) float64 {
	var s float64
	for _, ed := range e.d.edges[gi] {
		if e.here[ed.other] {
			s += ed.pts
		}
	}
	if g := e.d.group[gi]; g >= 0 {
		s += groupBonus(e.groupCnt[g] - 1)
	}
	shared := 0
	for _, t := range e.d.interests[gi] {
		if e.topicCnt[t] > 1 {
			shared++
		}
	}
	if shared > 0 {
		s += math.Min(InterestBonus*float64(shared), InterestBonusCap)
	}
	for _, ci := range e.d.cons[gi] {
		c := &e.p.constraints[ci]
		switch c.Type {
		case KeepApart:
			if e.consCnt[ci] > 1 {
				s += keepApartPenalty(c.Priority)
			}
		case KeepTogether:
			if e.consCnt[ci] == len(c.GuestIDs) {
				s += keepTogetherBonus(c.Priority)
			}
		}
	}
	return s
}
