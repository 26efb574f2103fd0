package model

import (
	"fmt"
	"time"

	"github.com/iliyamo/event-seating-planner/internal/seating"
)

// EventDocument is the JSON stored in events.document: everything the
// optimizer needs to seat an event.
type EventDocument struct {
	Guests      []seating.Guest      `json:"guests"`
	Tables      []seating.Table      `json:"tables"`
	Constraints []seating.Constraint `json:"constraints"`
}

// Snapshot converts the document into engine input.  Current placements
// come from the guests' table ids.
func (d EventDocument) Snapshot() seating.Snapshot {
	return seating.Snapshot{Guests: d.Guests, Tables: d.Tables, Constraints: d.Constraints}
}

// Event mirrors the `events` table.  Version increases on every change to
// Document and guards run application against stale proposals.
type Event struct {
	ID        uint64        `json:"id"`         // events.id
	OwnerID   uint64        `json:"owner_id"`   // events.owner_id -> users.id
	Name      string        `json:"name"`       // events.name
	StartsAt  *time.Time    `json:"starts_at"`  // events.starts_at (nullable)
	Document  EventDocument `json:"document"`   // events.document (JSON column)
	Version   uint32        `json:"version"`    // events.version
	CreatedAt time.Time     `json:"created_at"` // events.created_at
	UpdatedAt time.Time     `json:"updated_at"` // events.updated_at
}

// Validate rejects documents the planner UI could never have produced:
// missing or duplicate ids, negative capacities, unknown constraint types or
// priorities, and guests placed at tables that do not exist.
func (d EventDocument) Validate() error {
	tables := make(map[string]bool, len(d.Tables))
	for i, t := range d.Tables {
		if t.ID == "" {
			return fmt.Errorf("tables[%d]: id is required", i)
		}
		if tables[t.ID] {
			return fmt.Errorf("tables[%d]: duplicate id %q", i, t.ID)
		}
		if t.Capacity < 0 {
			return fmt.Errorf("table %q: capacity must not be negative", t.ID)
		}
		tables[t.ID] = true
	}
	guests := make(map[string]bool, len(d.Guests))
	for i, g := range d.Guests {
		if g.ID == "" {
			return fmt.Errorf("guests[%d]: id is required", i)
		}
		if guests[g.ID] {
			return fmt.Errorf("guests[%d]: duplicate id %q", i, g.ID)
		}
		if g.TableID != "" && !tables[g.TableID] {
			return fmt.Errorf("guest %q: unknown table %q", g.ID, g.TableID)
		}
		guests[g.ID] = true
	}
	ids := make(map[string]bool, len(d.Constraints))
	for i, c := range d.Constraints {
		if c.ID == "" {
			return fmt.Errorf("constraints[%d]: id is required", i)
		}
		if ids[c.ID] {
			return fmt.Errorf("constraints[%d]: duplicate id %q", i, c.ID)
		}
		ids[c.ID] = true
		if c.Type != seating.KeepTogether && c.Type != seating.KeepApart {
			return fmt.Errorf("constraint %q: unknown type %q", c.ID, c.Type)
		}
		switch c.Priority {
		case seating.PriorityRequired, seating.PriorityPreferred, seating.PriorityOptional:
		default:
			return fmt.Errorf("constraint %q: unknown priority %q", c.ID, c.Priority)
		}
	}
	return nil
}
