package seating_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seating-planner/internal/seating"
)

func weddingSnapshot() seating.Snapshot {
	gs := guests("a", "b", "c", "d", "e", "f", "g", "h")
	gs[0].Relationships = []seating.Relationship{rel("b", seating.RelPartner, 5)}
	gs[1].Relationships = []seating.Relationship{rel("a", seating.RelPartner, 5)}
	return seating.Snapshot{
		Guests: gs,
		Tables: []seating.Table{{ID: "t1", Capacity: 4}, {ID: "t2", Capacity: 4}},
		Constraints: []seating.Constraint{
			{ID: "cd", Type: seating.KeepApart, GuestIDs: []string{"c", "d"}, Priority: seating.PriorityRequired},
		},
	}
}

func tableMembers(a seating.Assignment, table string) []string {
	var out []string
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		if a[id] == table {
			out = append(out, id)
		}
	}
	return out
}

func TestOptimizePartnersTogetherRivalsApart(t *testing.T) {
	res := seating.Optimize(weddingSnapshot(), seating.Budget{})

	assert.Equal(t, res.ProposedAssignments["a"], res.ProposedAssignments["b"])
	assert.NotEqual(t, res.ProposedAssignments["c"], res.ProposedAssignments["d"])
	assert.Equal(t, []string{"a", "b", "d", "g"}, tableMembers(res.ProposedAssignments, "t1"))
	assert.Equal(t, []string{"c", "e", "f", "h"}, tableMembers(res.ProposedAssignments, "t2"))

	assert.Len(t, res.MovedGuestIDs, 8)
	assert.False(t, res.HasCritical())
	assert.Empty(t, res.Violations)
	assert.False(t, res.Stats.BudgetExhausted)

	require.Len(t, res.PerTableScores, 2)
	assert.Equal(t, 60.0, res.PerTableScores[0].CompatibilityScore)
	assert.Equal(t, 50.0, res.PerTableScores[1].CompatibilityScore)
}

func TestOptimizeOverflowLeavesGuestUnassigned(t *testing.T) {
	snap := seating.Snapshot{
		Guests: guests("x", "y", "z"),
		Tables: []seating.Table{{ID: "t1", Capacity: 2}},
	}
	res := seating.Optimize(snap, seating.Budget{})

	seated := 0
	for _, tbl := range res.ProposedAssignments {
		if tbl == "t1" {
			seated++
		}
	}
	assert.Equal(t, 2, seated)
	assert.Equal(t, "", res.ProposedAssignments["z"])
	assert.False(t, res.HasCritical())
	require.Len(t, res.Violations, 1)
	assert.Equal(t, seating.SeverityInfo, res.Violations[0].Severity)
	assert.Equal(t, seating.KindUnseated, res.Violations[0].Kind)
	assert.Equal(t, []string{"z"}, res.Violations[0].GuestIDs)
	assert.Equal(t, "z could not be seated: no table has remaining capacity", res.Violations[0].Message)
}

func TestOptimizeLockedGuestsOverCapacity(t *testing.T) {
	gs := guests("x", "y", "z")
	for i := range gs {
		gs[i].TableID = "t1"
		gs[i].Locked = true
	}
	res := seating.Optimize(seating.Snapshot{Guests: gs, Tables: []seating.Table{{ID: "t1", Capacity: 2}}}, seating.Budget{})

	for _, id := range []string{"x", "y", "z"} {
		assert.Equal(t, "t1", res.ProposedAssignments[id])
	}
	assert.Empty(t, res.MovedGuestIDs)
	require.True(t, res.HasCritical())
	assert.Equal(t, seating.KindOverCapacity, res.Violations[0].Kind)
	assert.Equal(t, "Table t1 is over capacity (3/2)", res.Violations[0].Message)
}

func TestOptimizeLockedGuestAnchorsGroup(t *testing.T) {
	gs := guests("a", "b", "c")
	gs[0].TableID = "t2"
	gs[0].Locked = true
	snap := seating.Snapshot{
		Guests: gs,
		Tables: []seating.Table{{ID: "t1", Capacity: 3}, {ID: "t2", Capacity: 3}},
		Constraints: []seating.Constraint{
			{ID: "k", Type: seating.KeepTogether, GuestIDs: []string{"a", "b"}, Priority: seating.PriorityRequired},
		},
	}
	res := seating.Optimize(snap, seating.Budget{})
	assert.Equal(t, "t2", res.ProposedAssignments["a"])
	assert.Equal(t, "t2", res.ProposedAssignments["b"])
	assert.Empty(t, res.Violations)
}

func TestOptimizeLockedAnchorOnClosedTable(t *testing.T) {
	gs := guests("a", "b")
	gs[0].TableID = "closed"
	gs[0].Locked = true
	snap := seating.Snapshot{
		Guests: gs,
		Tables: []seating.Table{{ID: "closed", Capacity: 0}, {ID: "open", Capacity: 4}},
		Constraints: []seating.Constraint{
			{ID: "k", Type: seating.KeepTogether, GuestIDs: []string{"a", "b"}, Priority: seating.PriorityRequired},
		},
	}
	res := seating.Optimize(snap, seating.Budget{})

	assert.Equal(t, "closed", res.ProposedAssignments["a"])
	assert.Equal(t, "", res.ProposedAssignments["b"])
	var note *seating.OptimizationViolation
	for i, v := range res.Violations {
		if v.Kind == seating.KindOverCapacity {
			assert.Equal(t, "Table closed is over capacity (1/0)", v.Message)
		}
		if v.Kind == seating.KindContradiction {
			note = &res.Violations[i]
		}
	}
	require.NotNil(t, note)
	assert.Equal(t, seating.SeverityInfo, note.Severity)
	assert.Equal(t, []string{"b"}, note.GuestIDs)
	assert.Equal(t, "closed", note.TableID)
}

func TestOptimizeLockedAnchorRespectsKeepApart(t *testing.T) {
	gs := guests("a", "b", "c")
	for _, i := range []int{0, 2} {
		gs[i].TableID = "t1"
		gs[i].Locked = true
	}
	snap := seating.Snapshot{
		Guests: gs,
		Tables: []seating.Table{{ID: "t1", Capacity: 4}, {ID: "t2", Capacity: 4}},
		Constraints: []seating.Constraint{
			{ID: "together", Type: seating.KeepTogether, GuestIDs: []string{"a", "b"}, Priority: seating.PriorityRequired},
			{ID: "apart", Type: seating.KeepApart, GuestIDs: []string{"b", "c"}, Priority: seating.PriorityRequired},
		},
	}
	res := seating.Optimize(snap, seating.Budget{})

	assert.Equal(t, "t1", res.ProposedAssignments["a"])
	assert.Equal(t, "t1", res.ProposedAssignments["c"])
	assert.Equal(t, "", res.ProposedAssignments["b"])
	for _, v := range res.Violations {
		assert.NotEqual(t, seating.KindKeepApart, v.Kind, v.Message)
	}
	assert.Contains(t, kinds(res.Violations), seating.KindContradiction)
}

func TestOptimizeKeepsLegalPlacements(t *testing.T) {
	gs := guests("a", "b", "c", "d")
	for i, tbl := range []string{"t2", "t2", "t1", "t1"} {
		gs[i].TableID = tbl
	}
	snap := seating.Snapshot{
		Guests: gs,
		Tables: []seating.Table{{ID: "t1", Capacity: 2}, {ID: "t2", Capacity: 2}},
	}
	res := seating.Optimize(snap, seating.Budget{})
	assert.Empty(t, res.MovedGuestIDs)
	assert.Equal(t, res.CurrentAssignments, res.ProposedAssignments)
}

func TestOptimizeCurrentAssignmentOverridesGuests(t *testing.T) {
	gs := guests("a", "b")
	gs[0].TableID = "t1"
	gs[1].TableID = "t1"
	snap := seating.Snapshot{
		Guests:            gs,
		Tables:            []seating.Table{{ID: "t1", Capacity: 2}, {ID: "t2", Capacity: 2}},
		CurrentAssignment: seating.Assignment{"a": "t2", "b": "t2"},
	}
	res := seating.Optimize(snap, seating.Budget{})
	assert.Equal(t, seating.Assignment{"a": "t2", "b": "t2"}, res.CurrentAssignments)
	assert.Equal(t, seating.Assignment{"a": "t2", "b": "t2"}, res.ProposedAssignments)
}

func TestOptimizeSwapImprovesPartners(t *testing.T) {
	// a and b are partners but start at different full tables
	gs := guests("a", "b", "c", "d")
	gs[0].Relationships = []seating.Relationship{rel("b", seating.RelPartner, 5)}
	for i, tbl := range []string{"t1", "t2", "t1", "t2"} {
		gs[i].TableID = tbl
	}
	snap := seating.Snapshot{
		Guests: gs,
		Tables: []seating.Table{{ID: "t1", Capacity: 2}, {ID: "t2", Capacity: 2}},
	}
	res := seating.Optimize(snap, seating.Budget{})
	assert.Equal(t, res.ProposedAssignments["a"], res.ProposedAssignments["b"])
	assert.Positive(t, res.Stats.MovesApplied)
	assert.Len(t, res.MovedGuestIDs, 2)
}

func TestOptimizeEmptyInput(t *testing.T) {
	res := seating.Optimize(seating.Snapshot{}, seating.Budget{})
	assert.NotNil(t, res.ProposedAssignments)
	assert.Empty(t, res.ProposedAssignments)
	assert.NotNil(t, res.MovedGuestIDs)
	assert.NotNil(t, res.PerGuestScores)
	assert.NotNil(t, res.PerTableScores)
	assert.NotNil(t, res.Violations)
	assert.Empty(t, res.Violations)
}

func TestOptimizeNoTables(t *testing.T) {
	res := seating.Optimize(seating.Snapshot{Guests: guests("a", "b")}, seating.Budget{})
	assert.Equal(t, seating.Assignment{"a": "", "b": ""}, res.ProposedAssignments)
	require.Len(t, res.Violations, 2)
	for _, v := range res.Violations {
		assert.Equal(t, seating.KindUnseated, v.Kind)
	}
}

func TestOptimizeZeroCapacityTable(t *testing.T) {
	snap := seating.Snapshot{
		Guests: guests("a", "b"),
		Tables: []seating.Table{{ID: "closed", Capacity: 0}, {ID: "open", Capacity: 2}},
	}
	res := seating.Optimize(snap, seating.Budget{})
	assert.Equal(t, "open", res.ProposedAssignments["a"])
	assert.Equal(t, "open", res.ProposedAssignments["b"])
}

func TestOptimizeGroupTooLarge(t *testing.T) {
	snap := seating.Snapshot{
		Guests: guests("a", "b", "c"),
		Tables: []seating.Table{{ID: "t1", Capacity: 2}},
		Constraints: []seating.Constraint{
			{ID: "k", Type: seating.KeepTogether, GuestIDs: []string{"a", "b", "c"}, Priority: seating.PriorityRequired},
		},
	}
	res := seating.Optimize(snap, seating.Budget{})
	assert.Equal(t, seating.Assignment{"a": "", "b": "", "c": ""}, res.ProposedAssignments)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, seating.KindUnseated, res.Violations[0].Kind)
	assert.Equal(t, "a, b and c could not be seated: no table can seat a group of 3", res.Violations[0].Message)
}

func TestOptimizeContradictoryConstraints(t *testing.T) {
	snap := seating.Snapshot{
		Guests: guests("a", "b", "c"),
		Tables: []seating.Table{{ID: "t1", Capacity: 4}},
		Constraints: []seating.Constraint{
			{ID: "together", Type: seating.KeepTogether, GuestIDs: []string{"a", "b"}, Priority: seating.PriorityRequired},
			{ID: "apart", Type: seating.KeepApart, GuestIDs: []string{"a", "b"}, Priority: seating.PriorityRequired},
		},
	}
	res := seating.Optimize(snap, seating.Budget{})
	assert.Equal(t, "", res.ProposedAssignments["a"])
	assert.Equal(t, "", res.ProposedAssignments["b"])
	assert.Equal(t, "t1", res.ProposedAssignments["c"])
	assert.Equal(t, []seating.ViolationKind{seating.KindContradiction, seating.KindContradiction}, kinds(res.Violations))
	assert.False(t, res.HasCritical())
}

func TestOptimizeIgnoresUnknownConstraintMembers(t *testing.T) {
	snap := seating.Snapshot{
		Guests: guests("a", "b"),
		Tables: []seating.Table{{ID: "t1", Capacity: 2}},
		Constraints: []seating.Constraint{
			{ID: "k", Type: seating.KeepApart, GuestIDs: []string{"a", "ghost"}, Priority: seating.PriorityRequired},
		},
	}
	res := seating.Optimize(snap, seating.Budget{})
	assert.Equal(t, seating.Assignment{"a": "t1", "b": "t1"}, res.ProposedAssignments)
	assert.Empty(t, res.Violations)
}

func TestOptimizeBudgetExhausted(t *testing.T) {
	res := seating.Optimize(weddingSnapshot(), seating.Budget{MaxEvaluations: 1})
	assert.True(t, res.Stats.BudgetExhausted)
	assert.Equal(t, 1, res.Stats.Evaluations)
	// construction alone still honours every hard rule
	assert.False(t, res.HasCritical())
	assert.Len(t, tableMembers(res.ProposedAssignments, "t1"), 4)
}

func TestOptimizeDoesNotMutateInput(t *testing.T) {
	snap := weddingSnapshot()
	snap.CurrentAssignment = seating.Assignment{"a": "t2"}
	before := seating.Assignment{"a": "t2"}
	guestsBefore := append([]seating.Guest(nil), snap.Guests...)

	_ = seating.Optimize(snap, seating.Budget{})
	assert.Equal(t, before, snap.CurrentAssignment)
	assert.Equal(t, guestsBefore, snap.Guests)
}

func randomSnapshot(r *rand.Rand) seating.Snapshot {
	types := []seating.RelationshipType{
		seating.RelPartner, seating.RelFamily, seating.RelFriend,
		seating.RelColleague, seating.RelAcquaintance, seating.RelAvoid,
	}
	priorities := []seating.Priority{seating.PriorityRequired, seating.PriorityPreferred, seating.PriorityOptional}
	interests := []string{"golf", "chess", "jazz", "hiking", "film"}
	groups := []string{"", "bride", "groom", "work"}

	n := 6 + r.Intn(14)
	gs := make([]seating.Guest, n)
	for i := range gs {
		gs[i] = seating.Guest{ID: fmt.Sprintf("g%02d", i), Group: groups[r.Intn(len(groups))]}
		for k := 0; k < 2; k++ {
			gs[i].Interests = append(gs[i].Interests, interests[r.Intn(len(interests))])
		}
	}
	for k := 0; k < n; k++ {
		a, b := r.Intn(n), r.Intn(n)
		gs[a].Relationships = append(gs[a].Relationships,
			rel(gs[b].ID, types[r.Intn(len(types))], 1+r.Intn(5)))
	}

	tables := make([]seating.Table, 2+r.Intn(4))
	for i := range tables {
		tables[i] = seating.Table{ID: fmt.Sprintf("t%d", i), Capacity: 2 + r.Intn(5)}
	}
	for i := range gs {
		if r.Intn(3) == 0 {
			gs[i].TableID = tables[r.Intn(len(tables))].ID
		}
	}

	var cons []seating.Constraint
	for k := 0; k < 1+r.Intn(4); k++ {
		ct := seating.KeepApart
		if r.Intn(2) == 0 {
			ct = seating.KeepTogether
		}
		members := []string{gs[r.Intn(n)].ID, gs[r.Intn(n)].ID}
		if r.Intn(3) == 0 {
			members = append(members, gs[r.Intn(n)].ID)
		}
		cons = append(cons, seating.Constraint{
			ID:       fmt.Sprintf("c%d", k),
			Type:     ct,
			GuestIDs: members,
			Priority: priorities[r.Intn(len(priorities))],
		})
	}
	return seating.Snapshot{Guests: gs, Tables: tables, Constraints: cons}
}

func TestOptimizeProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		snap := randomSnapshot(r)
		t.Run(fmt.Sprintf("case%02d", i), func(t *testing.T) {
			first := seating.Optimize(snap, seating.Budget{})
			second := seating.Optimize(snap, seating.Budget{})
			require.Empty(t, cmp.Diff(first, second), "results differ between identical runs")
			require.False(t, first.Stats.BudgetExhausted)

			counts := make(map[string]int)
			for _, tbl := range first.ProposedAssignments {
				if tbl != "" {
					counts[tbl]++
				}
			}
			for _, tbl := range snap.Tables {
				assert.LessOrEqual(t, counts[tbl.ID], tbl.Capacity, "table %s", tbl.ID)
			}

			for _, v := range first.Violations {
				assert.NotEqual(t, seating.KindOverCapacity, v.Kind)
				if v.Kind == seating.KindKeepApart {
					assert.NotEqual(t, seating.SeverityCritical, v.Severity, v.Message)
				}
			}

			for _, s := range first.PerGuestScores {
				assert.InDelta(t, sumReasons(s), s.TotalScore, 1e-9)
			}

			// feeding the proposal back in changes nothing
			again := snap
			again.CurrentAssignment = first.ProposedAssignments
			rerun := seating.Optimize(again, seating.Budget{})
			assert.Empty(t, rerun.MovedGuestIDs)
			assert.Empty(t, cmp.Diff(first.ProposedAssignments, rerun.ProposedAssignments))
		})
	}
}

func largeSnapshot(r *rand.Rand, n, tables, capacity, relations int) seating.Snapshot {
	types := []seating.RelationshipType{
		seating.RelPartner, seating.RelFamily, seating.RelFriend,
		seating.RelColleague, seating.RelAcquaintance, seating.RelAvoid,
	}
	gs := make([]seating.Guest, n)
	for i := range gs {
		gs[i] = seating.Guest{ID: fmt.Sprintf("g%03d", i)}
	}
	for k := 0; k < relations; k++ {
		a, b := r.Intn(n), r.Intn(n)
		gs[a].Relationships = append(gs[a].Relationships,
			rel(gs[b].ID, types[r.Intn(len(types))], 1+r.Intn(5)))
	}
	ts := make([]seating.Table, tables)
	for i := range ts {
		ts[i] = seating.Table{ID: fmt.Sprintf("t%02d", i), Capacity: capacity}
	}
	return seating.Snapshot{Guests: gs, Tables: ts}
}

func TestOptimizeLargeEventFinishesQuickly(t *testing.T) {
	if testing.Short() {
		t.Skip("large event")
	}
	snap := largeSnapshot(rand.New(rand.NewSource(7)), 200, 20, 10, 600)

	start := time.Now()
	res := seating.Optimize(snap, seating.Budget{})
	took := time.Since(start)

	assert.Less(t, took, 5*time.Second, "stats %+v", res.Stats)
	assert.False(t, res.Stats.BudgetExhausted)
	for _, tbl := range res.ProposedAssignments {
		assert.NotEmpty(t, tbl)
	}
}

func TestOptimizeConcurrentCallsMatchSequential(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	snaps := make([]seating.Snapshot, 8)
	want := make([]seating.OptimizationResult, len(snaps))
	for i := range snaps {
		snaps[i] = randomSnapshot(r)
		want[i] = seating.Optimize(snaps[i], seating.Budget{})
	}

	got := make([]seating.OptimizationResult, len(snaps))
	var wg sync.WaitGroup
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = seating.Optimize(snaps[i], seating.Budget{})
		}(i)
	}
	wg.Wait()

	for i := range snaps {
		assert.Empty(t, cmp.Diff(want[i], got[i]), "snapshot %d", i)
	}
}
