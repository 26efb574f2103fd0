package seating

import (
	"fmt"
	"math"
	"strings"
)

// Relationship base points, scaled by strength/5. These values are part of
// the public contract: tests and stored explanations depend on them.
const (
	PartnerPoints      = 30.0
	FamilyPoints       = 20.0
	FriendPoints       = 12.0
	ColleaguePoints    = 6.0
	AcquaintancePoints = 0.0
	AvoidPoints        = -40.0
)

// Group and interest bonuses.
const (
	GroupFirstBonus      = 8.0
	GroupAdditionalBonus = 3.0
	GroupBonusCap        = 20.0
	InterestBonus        = 2.0
	InterestBonusCap     = 10.0
)

// Constraint interaction points.
const (
	KeepApartRequiredPenalty  = -50.0
	KeepApartPreferredPenalty = -15.0
	KeepApartOptionalPenalty  = -5.0

	KeepTogetherRequiredBonus  = 25.0
	KeepTogetherPreferredBonus = 10.0
	KeepTogetherOptionalBonus  = 5.0
)

// Table compatibility normalisation.
const (
	CompatibilityBaseline     = 50.0
	CompatibilityScale        = 2.0
	LowCompatibilityThreshold = 40.0
)

// scoreEpsilon absorbs float noise when comparing candidate scores.
const scoreEpsilon = 1e-9

// Weights is a read-only description of the scoring constants, suitable
// for rendering next to an explanation.
type Weights struct {
	Relationships             map[RelationshipType]float64 `json:"relationships"`
	GroupFirstBonus           float64                      `json:"group_first_bonus"`
	GroupAdditionalBonus      float64                      `json:"group_additional_bonus"`
	GroupBonusCap             float64                      `json:"group_bonus_cap"`
	InterestBonus             float64                      `json:"interest_bonus"`
	InterestBonusCap          float64                      `json:"interest_bonus_cap"`
	KeepApartPenalty          map[Priority]float64         `json:"keep_apart_penalty"`
	KeepTogetherBonus         map[Priority]float64         `json:"keep_together_bonus"`
	CompatibilityBaseline     float64                      `json:"compatibility_baseline"`
	CompatibilityScale        float64                      `json:"compatibility_scale"`
	LowCompatibilityThreshold float64                      `json:"low_compatibility_threshold"`
}

// DefaultWeights returns the constants used by ScoreGuestAtTable.
func DefaultWeights() Weights {
	return Weights{
		Relationships: map[RelationshipType]float64{
			RelPartner:      PartnerPoints,
			RelFamily:       FamilyPoints,
			RelFriend:       FriendPoints,
			RelColleague:    ColleaguePoints,
			RelAcquaintance: AcquaintancePoints,
			RelAvoid:        AvoidPoints,
		},
		GroupFirstBonus:      GroupFirstBonus,
		GroupAdditionalBonus: GroupAdditionalBonus,
		GroupBonusCap:        GroupBonusCap,
		InterestBonus:        InterestBonus,
		InterestBonusCap:     InterestBonusCap,
		KeepApartPenalty: map[Priority]float64{
			PriorityRequired:  KeepApartRequiredPenalty,
			PriorityPreferred: KeepApartPreferredPenalty,
			PriorityOptional:  KeepApartOptionalPenalty,
		},
		KeepTogetherBonus: map[Priority]float64{
			PriorityRequired:  KeepTogetherRequiredBonus,
			PriorityPreferred: KeepTogetherPreferredBonus,
			PriorityOptional:  KeepTogetherOptionalBonus,
		},
		CompatibilityBaseline:     CompatibilityBaseline,
		CompatibilityScale:        CompatibilityScale,
		LowCompatibilityThreshold: LowCompatibilityThreshold,
	}
}

func basePoints(t RelationshipType) float64 {
	switch t {
	case RelPartner:
		return PartnerPoints
	case RelFamily:
		return FamilyPoints
	case RelFriend:
		return FriendPoints
	case RelColleague:
		return ColleaguePoints
	case RelAvoid:
		return AvoidPoints
	default:
		return AcquaintancePoints
	}
}

func clampStrength(s int) int {
	if s < 1 {
		return 1
	}
	if s > 5 {
		return 5
	}
	return s
}

// RelationshipPoints is the score contribution of r for the guest owning it.
func RelationshipPoints(r Relationship) float64 {
	return basePoints(r.Type) * float64(clampStrength(r.Strength)) / 5
}

func keepApartPenalty(p Priority) float64 {
	switch p {
	case PriorityRequired:
		return KeepApartRequiredPenalty
	case PriorityPreferred:
		return KeepApartPreferredPenalty
	default:
		return KeepApartOptionalPenalty
	}
}

func keepTogetherBonus(p Priority) float64 {
	switch p {
	case PriorityRequired:
		return KeepTogetherRequiredBonus
	case PriorityPreferred:
		return KeepTogetherPreferredBonus
	default:
		return KeepTogetherOptionalBonus
	}
}

func groupBonus(coMembers int) float64 {
	if coMembers <= 0 {
		return 0
	}
	return math.Min(GroupFirstBonus+GroupAdditionalBonus*float64(coMembers-1), GroupBonusCap)
}

func normInterest(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sharedInterests lists the distinct interests of g that at least one of
// others also has, in g's own order.
func sharedInterests(g Guest, others []Guest) []string {
	if len(g.Interests) == 0 {
		return nil
	}
	theirs := make(map[string]bool)
	for _, o := range others {
		for _, in := range o.Interests {
			if k := normInterest(in); k != "" {
				theirs[k] = true
			}
		}
	}
	seen := make(map[string]bool)
	var out []string
	for _, in := range g.Interests {
		k := normInterest(in)
		if k == "" || seen[k] || !theirs[k] {
			continue
		}
		seen[k] = true
		out = append(out, strings.TrimSpace(in))
	}
	return out
}

func describeRelationship(r Relationship, other Guest) string {
	name := other.DisplayName()
	s := clampStrength(r.Strength)
	switch r.Type {
	case RelPartner:
		return fmt.Sprintf("Seated with partner %s (strength %d)", name, s)
	case RelFamily:
		return fmt.Sprintf("Seated with family member %s (strength %d)", name, s)
	case RelFriend:
		return fmt.Sprintf("Seated with friend %s (strength %d)", name, s)
	case RelColleague:
		return fmt.Sprintf("Seated with colleague %s (strength %d)", name, s)
	case RelAvoid:
		return fmt.Sprintf("Seated with %s, whom they avoid (strength %d)", name, s)
	default:
		return fmt.Sprintf("Seated with acquaintance %s", name)
	}
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}

// ScoreGuestAtTable scores guest against the guests already seated at a
// candidate table. The aggregate is order independent. Constraints that do
// not name guest are ignored.
func ScoreGuestAtTable(guest Guest, occupants []Guest, constraints []Constraint) AssignmentScore {
	ix := newRelationIndex(append([]Guest{guest}, occupants...))
	return scoreWith(ix, guest, occupants, constraints)
}

// scoreWith is ScoreGuestAtTable with a prebuilt relationship index.
func scoreWith(ix relationIndex, guest Guest, occupants []Guest, constraints []Constraint) AssignmentScore {
	res := AssignmentScore{GuestID: guest.ID, Reasons: []ScoreReason{}}
	add := func(t ReasonType, desc string, pts float64) {
		if pts == 0 {
			return
		}
		res.Reasons = append(res.Reasons, ScoreReason{Type: t, Description: desc, Points: pts})
		res.TotalScore += pts
	}

	mates := make([]Guest, 0, len(occupants))
	present := make(map[string]Guest, len(occupants))
	for _, o := range occupants {
		if o.ID == guest.ID {
			continue
		}
		if _, dup := present[o.ID]; dup {
			continue
		}
		present[o.ID] = o
		mates = append(mates, o)
	}

	for _, o := range mates {
		if r, ok := ix.lookup(guest.ID, o.ID); ok {
			add(ReasonRelationship, describeRelationship(r, o), RelationshipPoints(r))
		}
	}

	if guest.Group != "" {
		co := 0
		for _, o := range mates {
			if o.Group == guest.Group {
				co++
			}
		}
		if co > 0 {
			add(ReasonGroup, fmt.Sprintf("Shares group %q with %d tablemate(s)", guest.Group, co), groupBonus(co))
		}
	}

	if shared := sharedInterests(guest, mates); len(shared) > 0 {
		pts := math.Min(InterestBonus*float64(len(shared)), InterestBonusCap)
		add(ReasonInterest, fmt.Sprintf("Shares interests with tablemates: %s", strings.Join(shared, ", ")), pts)
	}

	for _, c := range constraints {
		if !c.has(guest.ID) {
			continue
		}
		switch c.Type {
		case KeepApart:
			var names []string
			for _, id := range c.GuestIDs {
				if o, ok := present[id]; ok && id != guest.ID {
					names = append(names, o.DisplayName())
				}
			}
			if len(names) > 0 {
				add(ReasonPenalty,
					fmt.Sprintf("Must be kept apart from %s (%s)", joinNames(names), c.Priority),
					keepApartPenalty(c.Priority))
			}
		case KeepTogether:
			complete := true
			for _, id := range c.GuestIDs {
				if id == guest.ID {
					continue
				}
				if _, ok := present[id]; !ok {
					complete = false
					break
				}
			}
			if complete {
				add(ReasonConstraint,
					fmt.Sprintf("Keep-together group complete (%s)", c.Priority),
					keepTogetherBonus(c.Priority))
			}
		}
	}
	return res
}

// pairScore is the symmetric compatibility of two tablemates: the mean of
// both relationship views, a shared-group and shared-interest term, and the
// penalty of every keep-apart constraint naming both.
func pairScore(ix relationIndex, a, b Guest, constraints []Constraint) float64 {
	var rel float64
	if r, ok := ix.lookup(a.ID, b.ID); ok {
		rel += RelationshipPoints(r)
	}
	if r, ok := ix.lookup(b.ID, a.ID); ok {
		rel += RelationshipPoints(r)
	}
	s := rel / 2
	if a.Group != "" && a.Group == b.Group {
		s += GroupAdditionalBonus
	}
	if n := len(sharedInterests(a, []Guest{b})); n > 0 {
		s += math.Min(InterestBonus*float64(n), InterestBonusCap)
	}
	for _, c := range constraints {
		if c.Type == KeepApart && c.has(a.ID) && c.has(b.ID) {
			s += keepApartPenalty(c.Priority)
		}
	}
	return s
}

// conflicting reports whether a and b should not share a table: an avoid
// relationship in either direction or a common keep-apart constraint.
func conflicting(ix relationIndex, a, b Guest, constraints []Constraint) bool {
	if r, ok := ix.lookup(a.ID, b.ID); ok && r.Type == RelAvoid {
		return true
	}
	if r, ok := ix.lookup(b.ID, a.ID); ok && r.Type == RelAvoid {
		return true
	}
	for _, c := range constraints {
		if c.Type == KeepApart && c.has(a.ID) && c.has(b.ID) {
			return true
		}
	}
	return false
}

// compatibility maps the mean pairwise score of occupants onto 0..100,
// rounded to one decimal.
func compatibility(ix relationIndex, occupants []Guest, constraints []Constraint) float64 {
	n := len(occupants)
	var sum float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += pairScore(ix, occupants[i], occupants[j], constraints)
		}
	}
	pairs := n * (n - 1) / 2
	if pairs == 0 {
		pairs = 1
	}
	v := CompatibilityBaseline + sum/float64(pairs)*CompatibilityScale
	v = math.Max(0, math.Min(100, v))
	return math.Round(v*10) / 10
}

// betterTable reports whether candidate a beats incumbent b for a guest:
// higher score, then lower occupancy ratio, then smaller table id.
func betterTable(scoreA, ratioA float64, idA string, scoreB, ratioB float64, idB string) bool {
	if math.Abs(scoreA-scoreB) > scoreEpsilon {
		return scoreA > scoreB
	}
	if math.Abs(ratioA-ratioB) > scoreEpsilon {
		return ratioA < ratioB
	}
	return idA < idB
}
