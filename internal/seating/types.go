package seating

// RelationshipType classifies how two guests know each other.
type RelationshipType string

const (
	RelFamily       RelationshipType = "family"
	RelFriend       RelationshipType = "friend"
	RelColleague    RelationshipType = "colleague"
	RelPartner      RelationshipType = "partner"
	RelAcquaintance RelationshipType = "acquaintance"
	RelAvoid        RelationshipType = "avoid"
)

// Relationship is one directed record from the owning guest to OtherGuestID.
// Callers normally store both directions; lookups never depend on that.
type Relationship struct {
	OtherGuestID string           `json:"other_guest_id"`
	Type         RelationshipType `json:"type"`
	Strength     int              `json:"strength"` // 1..5, clamped on use
}

// Guest is a snapshot of one invitee. TableID and SeatIndex describe the
// placement the caller currently has on record.
type Guest struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Group         string         `json:"group,omitempty"`
	Interests     []string       `json:"interests,omitempty"`
	TableID       string         `json:"table_id,omitempty"`
	SeatIndex     *int           `json:"seat_index,omitempty"`
	// Locked pins the guest to TableID. The search never moves a locked
	// guest, even when the placement breaks capacity or a constraint.
	Locked bool `json:"locked,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (g Guest) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

// Table is a seating table. Capacity <= 0 tables are never offered as a
// placement candidate.
type Table struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Capacity int    `json:"capacity"`
}

// DisplayName returns Name, falling back to ID.
func (t Table) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// ConstraintType is either keep-together or keep-apart.
type ConstraintType string

const (
	KeepTogether ConstraintType = "keep-together"
	KeepApart    ConstraintType = "keep-apart"
)

// Priority controls how a broken constraint is reported and penalised.
type Priority string

const (
	PriorityRequired  Priority = "required"
	PriorityPreferred Priority = "preferred"
	PriorityOptional  Priority = "optional"
)

// Constraint is an explicit seating rule over two or more guests.
type Constraint struct {
	ID       string         `json:"id"`
	Type     ConstraintType `json:"type"`
	GuestIDs []string       `json:"guest_ids"`
	Priority Priority       `json:"priority"`
}

// has reports whether id is one of the constraint members.
func (c Constraint) has(id string) bool {
	for _, g := range c.GuestIDs {
		if g == id {
			return true
		}
	}
	return false
}

// Assignment maps guest id to table id. The empty string means unassigned.
type Assignment map[string]string

// Clone returns an independent copy of a.
func (a Assignment) Clone() Assignment {
	out := make(Assignment, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// TableOf returns the table of guestID, or "" when unassigned or unknown.
func (a Assignment) TableOf(guestID string) string {
	if a == nil {
		return ""
	}
	return a[guestID]
}

// ReasonType tags a ScoreReason.
type ReasonType string

const (
	ReasonRelationship ReasonType = "relationship"
	ReasonConstraint   ReasonType = "constraint"
	ReasonGroup        ReasonType = "group"
	ReasonInterest     ReasonType = "interest"
	ReasonPenalty      ReasonType = "penalty"
)

// ScoreReason is one contribution to an AssignmentScore.
type ScoreReason struct {
	Type        ReasonType `json:"type"`
	Description string     `json:"description"`
	Points      float64    `json:"points"`
}

// AssignmentScore explains how much a guest likes a table. TotalScore is
// always the exact sum of Reasons[i].Points.
type AssignmentScore struct {
	GuestID    string        `json:"guest_id"`
	TableID    string        `json:"table_id"`
	TotalScore float64       `json:"total_score"`
	Reasons    []ScoreReason `json:"reasons"`
}

// TableOptimizationScore summarises how well a table's occupants get along.
type TableOptimizationScore struct {
	TableID            string   `json:"table_id"`
	TableName          string   `json:"table_name"`
	CompatibilityScore float64  `json:"compatibility_score"`
	OccupantCount      int      `json:"occupant_count"`
	Capacity           int      `json:"capacity"`
	Issues             []string `json:"issues"`
}

// Severity ranks an OptimizationViolation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// ViolationKind lets callers filter violations without parsing messages.
type ViolationKind string

const (
	KindOverCapacity     ViolationKind = "over_capacity"
	KindKeepApart        ViolationKind = "keep_apart"
	KindKeepTogether     ViolationKind = "keep_together"
	KindLowCompatibility ViolationKind = "low_compatibility"
	KindUnseated         ViolationKind = "unseated"
	KindContradiction    ViolationKind = "contradiction"
)

// OptimizationViolation is a rule the assignment still breaks, or a note
// about a guest the search could not place.
type OptimizationViolation struct {
	Severity     Severity      `json:"severity"`
	Kind         ViolationKind `json:"kind"`
	Message      string        `json:"message"`
	TableID      string        `json:"table_id,omitempty"`
	ConstraintID string        `json:"constraint_id,omitempty"`
	GuestIDs     []string      `json:"guest_ids,omitempty"`
}

// SearchStats reports how much work the search did.
type SearchStats struct {
	Passes          int  `json:"passes"`
	Evaluations     int  `json:"evaluations"`
	MovesApplied    int  `json:"moves_applied"`
	BudgetExhausted bool `json:"budget_exhausted"`
}

// OptimizationResult is the complete, immutable outcome of one Optimize call.
type OptimizationResult struct {
	CurrentAssignments  Assignment               `json:"current_assignments"`
	ProposedAssignments Assignment               `json:"proposed_assignments"`
	MovedGuestIDs       []string                 `json:"moved_guest_ids"`
	PerGuestScores      []AssignmentScore        `json:"per_guest_scores"`
	PerTableScores      []TableOptimizationScore `json:"per_table_scores"`
	Violations          []OptimizationViolation  `json:"violations"`
	Stats               SearchStats              `json:"stats"`
}

// HasCritical reports whether any violation is critical.
func (r OptimizationResult) HasCritical() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Snapshot is the input of one optimization run.
type Snapshot struct {
	Guests      []Guest      `json:"guests"`
	Tables      []Table      `json:"tables"`
	Constraints []Constraint `json:"constraints"`
	// CurrentAssignment overrides Guest.TableID when non-nil.
	CurrentAssignment Assignment `json:"current_assignment,omitempty"`
}
