package seating

// relationIndex stores relationships as directed edges keyed by owner id and
// answers queries symmetrically, so a pair recorded in only one direction is
// still visible from both guests.
type relationIndex struct {
	out map[string]map[string]Relationship
}

func newRelationIndex(guests []Guest) relationIndex {
	ix := relationIndex{out: make(map[string]map[string]Relationship, len(guests))}
	for _, g := range guests {
		for _, r := range g.Relationships {
			if r.OtherGuestID == "" || r.OtherGuestID == g.ID {
				continue
			}
			edges := ix.out[g.ID]
			if edges == nil {
				edges = make(map[string]Relationship)
				ix.out[g.ID] = edges
			}
			// first record for a pair wins
			if _, dup := edges[r.OtherGuestID]; !dup {
				edges[r.OtherGuestID] = r
			}
		}
	}
	return ix
}

// lookup returns the relationship between a and b as seen from a. The
// record owned by a takes precedence over the one owned by b.
func (ix relationIndex) lookup(a, b string) (Relationship, bool) {
	if r, ok := ix.out[a][b]; ok {
		return r, true
	}
	if r, ok := ix.out[b][a]; ok {
		r.OtherGuestID = b
		return r, true
	}
	return Relationship{}, false
}
