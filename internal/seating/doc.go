// Package seating assigns event guests to tables and explains the result.
//
// The package is pure: every entry point takes plain values, shares no state
// between calls and performs no I/O. Given the same input and a Budget
// without a TimeLimit, Optimize returns the same result on every run.
//
// # Scoring
//
// ScoreGuestAtTable rates a guest against a set of tablemates. Each
// contribution is reported as a ScoreReason and the total is their exact
// sum:
//
//	relationship  base points by type, scaled by strength/5
//	group         +8 for the first co-member, +3 for each further one, cap 20
//	interest      +2 per distinct shared interest, cap 10
//	constraint    bonus when a keep-together group is complete at the table
//	penalty       per keep-apart constraint broken at the table
//
// Relationships are looked up symmetrically: a record stored on either guest
// counts for both, and a guest's own record wins when both exist.
//
// # Search
//
// Optimize runs in two phases. Construction keeps locked guests where they
// are, keeps every other placement that is still legal, then seats the rest
// greedily, strongest ties to already decided guests first. Refinement
// repeats first-improvement passes of unit swaps and moves into free seats
// until a pass changes nothing or the Budget runs out.
//
// Guests joined by required keep-together constraints form a unit that is
// always moved as a whole. Required keep-apart constraints and table
// capacity are never broken by the search; only locked guests can leave an
// assignment in that state, and DetectViolations reports it as critical.
//
// # Violations
//
// DetectViolations checks capacity, every constraint and table
// compatibility. Optimize adds informational notes for guests it could not
// seat. Violations are ranked critical, warning, info.
package seating
