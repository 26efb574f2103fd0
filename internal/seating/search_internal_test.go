package seating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetDefaults(t *testing.T) {
	b := Budget{}.withDefaults(10)
	assert.Equal(t, 200, b.MaxPasses)
	assert.Equal(t, DefaultMaxEvaluations, b.MaxEvaluations)
	assert.Zero(t, b.TimeLimit)

	assert.Equal(t, 1, Budget{}.withDefaults(0).MaxPasses)
	assert.Equal(t, 7, Budget{MaxPasses: 7}.withDefaults(10).MaxPasses)
}

func TestOptimizeTimeLimit(t *testing.T) {
	snap := Snapshot{
		Guests: []Guest{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Tables: []Table{{ID: "t1", Capacity: 2}, {ID: "t2", Capacity: 2}},
	}
	// every reading of the clock is a minute later than the previous one
	clock := time.Unix(0, 0)
	now := func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	res := optimize(snap, Budget{TimeLimit: time.Second}, now)
	assert.True(t, res.Stats.BudgetExhausted)
	assert.Zero(t, res.Stats.Evaluations)
	assert.Len(t, res.ProposedAssignments, 4)
}

func TestBuildUnits(t *testing.T) {
	p := newProblem(
		[]Guest{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}},
		[]Table{{ID: "t1", Capacity: 4}},
		[]Constraint{
			{ID: "k1", Type: KeepTogether, GuestIDs: []string{"a", "b"}, Priority: PriorityRequired},
			{ID: "k2", Type: KeepTogether, GuestIDs: []string{"b", "c"}, Priority: PriorityRequired},
			{ID: "k3", Type: KeepTogether, GuestIDs: []string{"d", "e"}, Priority: PriorityPreferred},
		},
	)
	s := newSearcher(p, Budget{})
	require.Len(t, s.units, 3)
	assert.Equal(t, []int{0, 1, 2}, s.units[0].members)
	assert.Equal(t, "a", s.units[0].minID)
	assert.Equal(t, []int{3}, s.units[1].members)
	assert.Equal(t, []int{4}, s.units[2].members)
	assert.Empty(t, s.notes)
}

func TestBuildUnitsLockedContradiction(t *testing.T) {
	p := newProblem(
		[]Guest{{ID: "a", TableID: "t1", Locked: true}, {ID: "b"}},
		[]Table{{ID: "t1", Capacity: 4}},
		[]Constraint{
			{ID: "k", Type: KeepTogether, GuestIDs: []string{"a", "b"}, Priority: PriorityRequired},
			{ID: "x", Type: KeepApart, GuestIDs: []string{"a", "b"}, Priority: PriorityRequired},
		},
	)
	s := newSearcher(p, Budget{})
	// the locked guest stays, its partner in contradiction is excluded
	assert.False(t, s.excluded[0])
	assert.True(t, s.excluded[1])
	require.Len(t, s.notes, 1)
	assert.Equal(t, KindContradiction, s.notes[0].Kind)
	assert.Equal(t, []string{"b"}, s.notes[0].GuestIDs)
}

func TestSeatKeepsOccupantsSorted(t *testing.T) {
	p := newProblem([]Guest{{ID: "a"}, {ID: "b"}, {ID: "c"}}, []Table{{ID: "t1", Capacity: 3}}, nil)
	s := newSearcher(p, Budget{})
	s.seat(2, 0)
	s.seat(0, 0)
	s.seat(1, 0)
	assert.Equal(t, []int{0, 1, 2}, s.occ[0])
	assert.Equal(t, 3, s.count[0])

	s.seat(1, -1)
	assert.Equal(t, []int{0, 2}, s.occ[0])
	assert.Equal(t, 2, s.count[0])
	assert.Equal(t, -1, s.place[1])
}

func TestRelationIndexLookup(t *testing.T) {
	ix := newRelationIndex([]Guest{
		{ID: "a", Relationships: []Relationship{
			{OtherGuestID: "b", Type: RelFriend, Strength: 3},
			{OtherGuestID: "b", Type: RelAvoid, Strength: 5},
			{OtherGuestID: "a", Type: RelPartner, Strength: 5},
		}},
		{ID: "b"},
	})

	r, ok := ix.lookup("a", "b")
	require.True(t, ok)
	assert.Equal(t, RelFriend, r.Type, "first record for a pair wins")

	r, ok = ix.lookup("b", "a")
	require.True(t, ok)
	assert.Equal(t, "a", r.OtherGuestID)
	assert.Equal(t, RelFriend, r.Type)

	_, ok = ix.lookup("a", "a")
	assert.False(t, ok)
	_, ok = ix.lookup("a", "z")
	assert.False(t, ok)
}

func TestEvaluatorMatchesScoreWith(t *testing.T) {
	gs := []Guest{
		{ID: "a", Group: "bride", Interests: []string{"Golf", "golf ", "jazz"},
			Relationships: []Relationship{{OtherGuestID: "b", Type: RelPartner, Strength: 5}}},
		{ID: "b", Group: "bride", Interests: []string{"golf"}},
		{ID: "c", Group: "bride", Interests: []string{"jazz", "film"},
			Relationships: []Relationship{{OtherGuestID: "a", Type: RelAvoid, Strength: 9}}},
		{ID: "d", Interests: []string{"film"},
			Relationships: []Relationship{{OtherGuestID: "c", Type: RelFriend, Strength: 2}, {OtherGuestID: "ghost", Type: RelFamily, Strength: 5}}},
		{ID: "e", Group: "groom"},
	}
	cons := []Constraint{
		{ID: "ap", Type: KeepApart, GuestIDs: []string{"a", "c"}, Priority: PriorityPreferred},
		{ID: "kt", Type: KeepTogether, GuestIDs: []string{"b", "d"}, Priority: PriorityOptional},
		{ID: "kt3", Type: KeepTogether, GuestIDs: []string{"a", "b", "e"}, Priority: PriorityPreferred},
	}
	p := newProblem(gs, []Table{{ID: "t1", Capacity: 5}, {ID: "t2", Capacity: 5}}, cons)

	for mask := 0; mask < 1<<len(gs); mask++ {
		s := newSearcher(p, Budget{})
		for gi := range gs {
			ti := 1
			if mask&(1<<gi) != 0 {
				ti = 0
			}
			s.seat(gi, ti)
		}
		for ti := range p.tables {
			occ := p.occupants(s.place)[ti]
			var want float64
			for _, g := range occ {
				want += scoreWith(p.rel, g, occ, p.constraintsOf[p.guestIdx[g.ID]]).TotalScore
			}
			assert.InDelta(t, want, s.tableScore(ti), 1e-9, "mask %b table %d", mask, ti)
		}
	}
}

func TestTableScoreCacheFollowsMoves(t *testing.T) {
	gs := []Guest{
		{ID: "a", Relationships: []Relationship{{OtherGuestID: "b", Type: RelFriend, Strength: 5}}},
		{ID: "b"},
	}
	p := newProblem(gs, []Table{{ID: "t1", Capacity: 2}, {ID: "t2", Capacity: 2}}, nil)
	s := newSearcher(p, Budget{})
	s.seat(0, 0)
	s.seat(1, 1)
	assert.Zero(t, s.tableScore(0))

	s.seat(1, 0)
	assert.InDelta(t, 2*FriendPoints, s.tableScore(0), 1e-9)
	assert.Zero(t, s.tableScore(1))
}

func TestConstructReranksAfterEachPlacement(t *testing.T) {
	gs := []Guest{
		{ID: "a", TableID: "t1", Locked: true, Group: "x"},
		{ID: "b", Relationships: []Relationship{{OtherGuestID: "a", Type: RelFriend, Strength: 5}}},
		{ID: "c", Group: "x"},
		{ID: "d", Relationships: []Relationship{{OtherGuestID: "b", Type: RelPartner, Strength: 5}}},
	}
	p := newProblem(gs, []Table{{ID: "t1", Capacity: 3}, {ID: "t2", Capacity: 3}}, nil)
	s := newSearcher(p, Budget{})
	s.construct(p.placements(Assignment{"a": "t1"}))

	// b joins a first; d is then tied to b and takes the last seat before c
	assert.Equal(t, []int{0, 0, 1, 0}, s.place)
}

func TestAnchorFixedDropsIllegalMember(t *testing.T) {
	p := newProblem(
		[]Guest{{ID: "a", TableID: "t1", Locked: true}, {ID: "b"}, {ID: "c"}},
		[]Table{{ID: "t1", Capacity: 1}, {ID: "t2", Capacity: 4}},
		[]Constraint{{ID: "k", Type: KeepTogether, GuestIDs: []string{"a", "b", "c"}, Priority: PriorityRequired}},
	)
	s := newSearcher(p, Budget{})
	s.construct(p.placements(Assignment{"a": "t1"}))

	assert.Equal(t, []int{0, -1, -1}, s.place)
	assert.True(t, s.excluded[1])
	assert.True(t, s.excluded[2])
	assert.Equal(t, []int{0}, s.units[0].members)
	require.Len(t, s.notes, 2)
	for _, n := range s.notes {
		assert.Equal(t, KindContradiction, n.Kind)
	}
}
