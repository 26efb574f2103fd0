package seating

import (
	"fmt"
	"sort"
	"time"
)

// Default search budget.
const (
	DefaultPassesPerGuest = 20
	DefaultMaxEvaluations = 2_000_000
)

// Budget bounds the refinement phase. Zero fields take defaults. A
// TimeLimit makes results depend on machine speed once it is hit, so it is
// off unless set.
type Budget struct {
	MaxPasses      int           `json:"max_passes,omitempty"`
	MaxEvaluations int           `json:"max_evaluations,omitempty"`
	TimeLimit      time.Duration `json:"time_limit,omitempty"`
}

func (b Budget) withDefaults(guests int) Budget {
	if b.MaxPasses <= 0 {
		b.MaxPasses = DefaultPassesPerGuest * guests
		if b.MaxPasses < 1 {
			b.MaxPasses = 1
		}
	}
	if b.MaxEvaluations <= 0 {
		b.MaxEvaluations = DefaultMaxEvaluations
	}
	return b
}

// unit is a set of guests that always share a table: a required
// keep-together closure, or a single guest.
type unit struct {
	members []int
	fixed   bool // holds a locked guest; never moved
	minID   string
}

type searcher struct {
	p      *problem
	budget Budget
	now    func() time.Time
	start  time.Time

	units    []unit
	unitOf   []int
	excluded []bool // guests left unassigned because of contradictory rules
	apart    [][]int

	place []int
	count []int
	occ   [][]int // guest indices per table, kept sorted

	eval   *evaluator
	tscore []float64 // cached tableScore, valid while fresh
	fresh  []bool

	notes []OptimizationViolation
	stats SearchStats
}

func newSearcher(p *problem, budget Budget) *searcher {
	s := &searcher{
		p:        p,
		budget:   budget.withDefaults(len(p.guests)),
		now:      time.Now,
		excluded: make([]bool, len(p.guests)),
		apart:    make([][]int, len(p.guests)),
		place:    make([]int, len(p.guests)),
		count:    make([]int, len(p.tables)),
		occ:      make([][]int, len(p.tables)),
		eval:     newEvaluator(p),
		tscore:   make([]float64, len(p.tables)),
		fresh:    make([]bool, len(p.tables)),
	}
	for gi := range s.place {
		s.place[gi] = -1
	}
	for _, c := range p.constraints {
		if c.Type != KeepApart || c.Priority != PriorityRequired {
			continue
		}
		for _, a := range c.GuestIDs {
			for _, b := range c.GuestIDs {
				if a != b {
					ai := p.guestIdx[a]
					s.apart[ai] = appendUnique(s.apart[ai], p.guestIdx[b])
				}
			}
		}
	}
	s.buildUnits()
	return s
}

func appendUnique(xs []int, x int) []int {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}

// buildUnits unions guests joined by required keep-together constraints.
// Guests whose closure also contains a required keep-apart partner are
// excluded and the closure is rebuilt without them.
func (s *searcher) buildUnits() {
	p := s.p
	roots := s.closure()
	for _, c := range p.constraints {
		if c.Type != KeepApart || c.Priority != PriorityRequired {
			continue
		}
		perRoot := make(map[int]int)
		for _, id := range c.GuestIDs {
			perRoot[roots[p.guestIdx[id]]]++
		}
		for _, id := range c.GuestIDs {
			gi := p.guestIdx[id]
			if perRoot[roots[gi]] < 2 || s.excluded[gi] || p.guests[gi].Locked {
				continue
			}
			s.excluded[gi] = true
			s.notes = append(s.notes, OptimizationViolation{
				Severity:     SeverityInfo,
				Kind:         KindContradiction,
				Message:      fmt.Sprintf("%s must sit with and apart from the same guests; left unassigned", p.guests[gi].DisplayName()),
				ConstraintID: c.ID,
				GuestIDs:     []string{p.guests[gi].ID},
			})
		}
	}
	roots = s.closure()

	s.unitOf = make([]int, len(p.guests))
	byRoot := make(map[int]int)
	for gi := range p.guests {
		if s.excluded[gi] {
			s.unitOf[gi] = -1
			continue
		}
		r := roots[gi]
		ui, ok := byRoot[r]
		if !ok {
			ui = len(s.units)
			byRoot[r] = ui
			s.units = append(s.units, unit{minID: p.guests[gi].ID})
		}
		u := &s.units[ui]
		u.members = append(u.members, gi)
		if p.guests[gi].ID < u.minID {
			u.minID = p.guests[gi].ID
		}
		s.unitOf[gi] = ui
	}
}

// closure returns a union-find root per guest over required keep-together
// constraints, skipping excluded guests.
func (s *searcher) closure() []int {
	p := s.p
	parent := make([]int, len(p.guests))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for _, c := range p.constraints {
		if c.Type != KeepTogether || c.Priority != PriorityRequired {
			continue
		}
		first := -1
		for _, id := range c.GuestIDs {
			gi := p.guestIdx[id]
			if s.excluded[gi] {
				continue
			}
			if first < 0 {
				first = gi
				continue
			}
			if ra, rb := find(first), find(gi); ra != rb {
				parent[rb] = ra
			}
		}
	}
	roots := make([]int, len(parent))
	for i := range parent {
		roots[i] = find(i)
	}
	return roots
}

// seat places guest gi at table ti (or unseats it when ti < 0).
func (s *searcher) seat(gi, ti int) {
	if old := s.place[gi]; old >= 0 {
		s.fresh[old] = false
		s.count[old]--
		list := s.occ[old]
		for k, v := range list {
			if v == gi {
				s.occ[old] = append(list[:k:k], list[k+1:]...)
				break
			}
		}
	}
	s.place[gi] = ti
	if ti >= 0 {
		s.fresh[ti] = false
		s.count[ti]++
		list := s.occ[ti]
		k := sort.SearchInts(list, gi)
		list = append(list, 0)
		copy(list[k+1:], list[k:])
		list[k] = gi
		s.occ[ti] = list
	}
}

func (s *searcher) moveUnit(ui, ti int) {
	for _, gi := range s.units[ui].members {
		s.seat(gi, ti)
	}
}

func (s *searcher) unitTable(ui int) int {
	return s.place[s.units[ui].members[0]]
}

// canHost reports whether table ti can take unit ui while the guests of
// unit leaving (or -1) vacate it, without breaking capacity or a required
// keep-apart constraint.
func (s *searcher) canHost(ti, ui, leaving int) bool {
	t := s.p.tables[ti]
	if t.Capacity <= 0 {
		return false
	}
	free := t.Capacity - s.count[ti]
	if leaving >= 0 && s.unitTable(leaving) == ti {
		free += len(s.units[leaving].members)
	}
	if free < len(s.units[ui].members) {
		return false
	}
	for _, gi := range s.units[ui].members {
		for _, other := range s.apart[gi] {
			if s.place[other] != ti {
				continue
			}
			ou := s.unitOf[other]
			if ou == ui || (leaving >= 0 && ou == leaving) {
				continue
			}
			return false
		}
	}
	return true
}

// tableScore is the summed AssignmentScore of everyone at table ti.
func (s *searcher) tableScore(ti int) float64 {
	if ti < 0 {
		return 0
	}
	if !s.fresh[ti] {
		s.tscore[ti] = s.eval.sum(s.occ[ti], s.occ[ti], nil)
		s.fresh[ti] = true
	}
	return s.tscore[ti]
}

// restoreScore puts back a cached score after a rejected move was undone.
func (s *searcher) restoreScore(ti int, v float64) {
	if ti >= 0 {
		s.tscore[ti], s.fresh[ti] = v, true
	}
}

// unitScoreAt scores unit ui as if it joined table ti. The unit must not
// already sit there.
func (s *searcher) unitScoreAt(ui, ti int) float64 {
	members := s.units[ui].members
	return s.eval.sum(members, s.occ[ti], members)
}

func (s *searcher) ratio(ti int) float64 {
	return float64(s.count[ti]) / float64(s.p.tables[ti].Capacity)
}

// construct keeps locked and still-legal placements, then greedily seats
// everyone else.
func (s *searcher) construct(current []int) {
	s.anchorFixed(current)

	var queue []int
	for ui, u := range s.units {
		if u.fixed {
			continue
		}
		ti := current[u.members[0]]
		together := ti >= 0
		for _, gi := range u.members[1:] {
			if current[gi] != ti {
				together = false
				break
			}
		}
		if together && s.canHost(ti, ui, -1) {
			s.moveUnit(ui, ti)
			continue
		}
		queue = append(queue, ui)
	}

	s.placeQueue(queue)
}

// placeQueue seats queued units one at a time. The next unit is the one
// with the highest summed relationship strength toward guests already
// seated, then the smallest guest id; the ranking is refreshed after every
// placement.
func (s *searcher) placeQueue(queue []int) {
	d := &s.eval.d
	weight := make(map[int]int, len(queue))
	for _, ui := range queue {
		w := 0
		for _, gi := range s.units[ui].members {
			for _, ed := range d.edges[gi] {
				if s.place[ed.other] >= 0 {
					w += ed.strength
				}
			}
		}
		weight[ui] = w
	}
	waiting := append([]int(nil), queue...)
	for len(waiting) > 0 {
		next := 0
		for k := 1; k < len(waiting); k++ {
			a, b := waiting[k], waiting[next]
			if weight[a] > weight[b] || (weight[a] == weight[b] && s.units[a].minID < s.units[b].minID) {
				next = k
			}
		}
		ui := waiting[next]
		waiting = append(waiting[:next], waiting[next+1:]...)
		delete(weight, ui)

		ti := s.bestTable(ui)
		if ti < 0 {
			continue
		}
		s.moveUnit(ui, ti)
		for _, gi := range s.units[ui].members {
			for _, ed := range d.edges[gi] {
				if ou := s.unitOf[ed.other]; ou >= 0 {
					if _, queued := weight[ou]; queued {
						weight[ou] += d.strength(ed.other, gi)
					}
				}
			}
		}
	}
}

// anchorFixed seats every locked guest where the caller put it and brings
// the rest of its keep-together unit to the same table. A member that
// cannot legally join is taken out of the unit and left unassigned.
func (s *searcher) anchorFixed(current []int) {
	p := s.p
	anchors := make([]int, len(s.units))
	for ui := range s.units {
		anchors[ui] = -1
		for _, gi := range s.units[ui].members {
			if p.guests[gi].Locked && current[gi] >= 0 {
				if anchors[ui] < 0 {
					anchors[ui] = current[gi]
				}
				s.seat(gi, current[gi])
			}
		}
		if anchors[ui] >= 0 {
			s.units[ui].fixed = true
		}
	}
	for ui := range s.units {
		anchor := anchors[ui]
		if anchor < 0 {
			continue
		}
		u := &s.units[ui]
		kept := u.members[:0:0]
		for _, gi := range u.members {
			if s.place[gi] >= 0 {
				kept = append(kept, gi)
				continue
			}
			if s.canJoin(gi, anchor) {
				s.seat(gi, anchor)
				kept = append(kept, gi)
				continue
			}
			s.excluded[gi] = true
			s.unitOf[gi] = -1
			s.notes = append(s.notes, OptimizationViolation{
				Severity: SeverityInfo,
				Kind:     KindContradiction,
				Message: fmt.Sprintf("%s must sit with guests forced onto %s but cannot legally join them; left unassigned",
					p.guests[gi].DisplayName(), p.tables[anchor].DisplayName()),
				TableID:  p.tables[anchor].ID,
				GuestIDs: []string{p.guests[gi].ID},
			})
		}
		u.members = kept
	}
}

// canJoin reports whether the single guest gi fits at table ti without
// breaking capacity or a required keep-apart constraint.
func (s *searcher) canJoin(gi, ti int) bool {
	t := s.p.tables[ti]
	if t.Capacity <= 0 || s.count[ti] >= t.Capacity {
		return false
	}
	for _, other := range s.apart[gi] {
		if s.place[other] == ti {
			return false
		}
	}
	return true
}

// bestTable picks the highest-scoring legal table for unit ui, or -1.
func (s *searcher) bestTable(ui int) int {
	best := -1
	var bestScore, bestRatio float64
	for ti, t := range s.p.tables {
		if !s.canHost(ti, ui, -1) {
			continue
		}
		sc := s.unitScoreAt(ui, ti)
		r := s.ratio(ti)
		if best < 0 || betterTable(sc, r, t.ID, bestScore, bestRatio, s.p.tables[best].ID) {
			best, bestScore, bestRatio = ti, sc, r
		}
	}
	return best
}

// spend charges one candidate evaluation and reports whether the budget
// still allows it.
func (s *searcher) spend() bool {
	if s.stats.Evaluations >= s.budget.MaxEvaluations {
		s.stats.BudgetExhausted = true
		return false
	}
	if s.budget.TimeLimit > 0 && s.now().Sub(s.start) >= s.budget.TimeLimit {
		s.stats.BudgetExhausted = true
		return false
	}
	s.stats.Evaluations++
	return true
}

// trySwap exchanges the tables of units a and b when that strictly raises
// the summed score of both affected tables and stays legal. An unassigned
// side is allowed; the other side must be seated.
func (s *searcher) trySwap(a, b int) (applied, ok bool) {
	ta, tb := s.unitTable(a), s.unitTable(b)
	if ta == tb {
		return false, true
	}
	if tb >= 0 && !s.canHost(tb, a, b) {
		return false, true
	}
	if ta >= 0 && !s.canHost(ta, b, a) {
		return false, true
	}
	if !s.spend() {
		return false, false
	}
	sa, sb := s.tableScore(ta), s.tableScore(tb)
	s.moveUnit(a, tb)
	s.moveUnit(b, ta)
	after := s.tableScore(ta) + s.tableScore(tb)
	if after > sa+sb+scoreEpsilon {
		return true, true
	}
	s.moveUnit(a, ta)
	s.moveUnit(b, tb)
	s.restoreScore(ta, sa)
	s.restoreScore(tb, sb)
	return false, true
}

// tryRelocate moves unit a into spare seats at table t. An unassigned unit
// is always seated when it legally fits; a seated one only moves when the
// summed score of both tables strictly rises.
func (s *searcher) tryRelocate(a, t int) (applied, ok bool) {
	from := s.unitTable(a)
	if from == t || !s.canHost(t, a, -1) {
		return false, true
	}
	if !s.spend() {
		return false, false
	}
	if from < 0 {
		s.moveUnit(a, t)
		return true, true
	}
	sf, st := s.tableScore(from), s.tableScore(t)
	s.moveUnit(a, t)
	after := s.tableScore(from) + s.tableScore(t)
	if after > sf+st+scoreEpsilon {
		return true, true
	}
	s.moveUnit(a, from)
	s.restoreScore(from, sf)
	s.restoreScore(t, st)
	return false, true
}

// refine runs first-improvement 2-opt passes until a pass changes nothing
// or the budget runs out.
func (s *searcher) refine() {
	var movable []int
	for ui, u := range s.units {
		if !u.fixed {
			movable = append(movable, ui)
		}
	}
	for pass := 0; pass < s.budget.MaxPasses; pass++ {
		s.stats.Passes++
		improved := false
		for i, a := range movable {
			for _, b := range movable[i+1:] {
				applied, ok := s.trySwap(a, b)
				if !ok {
					return
				}
				if applied {
					improved = true
					s.stats.MovesApplied++
				}
			}
			for ti := range s.p.tables {
				applied, ok := s.tryRelocate(a, ti)
				if !ok {
					return
				}
				if applied {
					improved = true
					s.stats.MovesApplied++
				}
			}
		}
		if !improved {
			return
		}
	}
	s.stats.BudgetExhausted = true
}

// unseatedNotes explains every unit the search left without a table.
func (s *searcher) unseatedNotes() []OptimizationViolation {
	var out []OptimizationViolation
	for ui, u := range s.units {
		if s.unitTable(ui) >= 0 {
			continue
		}
		size := len(u.members)
		fits, room := false, false
		for ti, t := range s.p.tables {
			if t.Capacity >= size {
				fits = true
			}
			if t.Capacity > 0 && t.Capacity-s.count[ti] >= size {
				room = true
			}
		}
		ids := make([]string, 0, size)
		for _, gi := range u.members {
			ids = append(ids, s.p.guests[gi].ID)
		}
		who := joinNames(s.p.names(ids))
		var why string
		switch {
		case !fits && size > 1:
			why = fmt.Sprintf("no table can seat a group of %d", size)
		case !room:
			why = "no table has remaining capacity"
		default:
			why = "every table with room breaks a required keep-apart constraint"
		}
		out = append(out, OptimizationViolation{
			Severity: SeverityInfo,
			Kind:     KindUnseated,
			Message:  fmt.Sprintf("%s could not be seated: %s", who, why),
			GuestIDs: ids,
		})
	}
	return out
}

// run executes both phases and returns the final placement.
func (s *searcher) run(current []int) []int {
	s.start = s.now()
	s.construct(current)
	s.refine()
	s.notes = append(s.notes, s.unseatedNotes()...)
	return append([]int(nil), s.place...)
}
