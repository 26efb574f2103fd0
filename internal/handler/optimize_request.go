package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/iliyamo/event-seating-planner/internal/model"
	"github.com/iliyamo/event-seating-planner/internal/seating"
)

// MaxOptimizeBody bounds stateless optimize requests.
const MaxOptimizeBody = 4 << 20

// budgetReq is the wire form of a search budget.  Durations travel as
// milliseconds.
type budgetReq struct {
	MaxPasses      int   `json:"max_passes"`
	MaxEvaluations int   `json:"max_evaluations"`
	TimeLimitMS    int64 `json:"time_limit_ms"`
}

func (b budgetReq) budget() seating.Budget {
	return seating.Budget{
		MaxPasses:      b.MaxPasses,
		MaxEvaluations: b.MaxEvaluations,
		TimeLimit:      time.Duration(b.TimeLimitMS) * time.Millisecond,
	}
}

func budgetFrom(r gjson.Result) seating.Budget {
	return budgetReq{
		MaxPasses:      int(r.Get("max_passes").Int()),
		MaxEvaluations: int(r.Get("max_evaluations").Int()),
		TimeLimitMS:    r.Get("time_limit_ms").Int(),
	}.budget()
}

// DecodeOptimizeRequest reads a stateless optimize body.  The body is either
// {"snapshot": {...}, "budget": {...}} or a bare snapshot object.  The
// snapshot must pass the same checks as a stored event document.
func DecodeOptimizeRequest(body []byte) (seating.Snapshot, seating.Budget, error) {
	if !gjson.ValidBytes(body) {
		return seating.Snapshot{}, seating.Budget{}, errors.New("body is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return seating.Snapshot{}, seating.Budget{}, errors.New("body must be a JSON object")
	}
	raw := body
	if snap := root.Get("snapshot"); snap.Exists() {
		if !snap.IsObject() {
			return seating.Snapshot{}, seating.Budget{}, errors.New("snapshot must be a JSON object")
		}
		raw = []byte(snap.Raw)
	}
	var snap seating.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return seating.Snapshot{}, seating.Budget{}, fmt.Errorf("decode snapshot: %w", err)
	}
	doc := model.EventDocument{Guests: snap.Guests, Tables: snap.Tables, Constraints: snap.Constraints}
	if err := doc.Validate(); err != nil {
		return seating.Snapshot{}, seating.Budget{}, err
	}
	return snap, budgetFrom(root.Get("budget")), nil
}
