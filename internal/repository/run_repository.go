package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/event-seating-planner/internal/model"
	"github.com/iliyamo/event-seating-planner/internal/seating"
)

// RunRepo persists optimization runs.  Status transitions are guarded in SQL
// so concurrent workers and planners cannot move a run backwards.
type RunRepo struct {
	db     *sql.DB
	events *EventRepo
}

// NewRunRepo returns a RunRepo sharing db with events.
func NewRunRepo(db *sql.DB, events *EventRepo) *RunRepo {
	return &RunRepo{db: db, events: events}
}

const runColumns = "id, event_id, requested_by, event_version, mode, status, budget, result, error, created_at, finished_at"

func scanRun(s rowScanner) (*model.OptimizationRun, error) {
	var (
		run      model.OptimizationRun
		budget   []byte
		result   []byte
		errText  sql.NullString
		finished sql.NullTime
	)
	if err := s.Scan(&run.ID, &run.EventID, &run.RequestedBy, &run.EventVersion, &run.Mode, &run.Status,
		&budget, &result, &errText, &run.CreatedAt, &finished); err != nil {
		return nil, err
	}
	if len(budget) > 0 {
		if err := json.Unmarshal(budget, &run.Budget); err != nil {
			return nil, fmt.Errorf("decode run %d budget: %w", run.ID, err)
		}
	}
	if len(result) > 0 {
		var res seating.OptimizationResult
		if err := json.Unmarshal(result, &res); err != nil {
			return nil, fmt.Errorf("decode run %d result: %w", run.ID, err)
		}
		run.Result = &res
	}
	run.Error = errText.String
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// Create inserts run.  A run created with a result is stored as finished.
func (r *RunRepo) Create(ctx context.Context, run *model.OptimizationRun) error {
	budget, err := json.Marshal(run.Budget)
	if err != nil {
		return fmt.Errorf("encode budget: %w", err)
	}
	var (
		result   []byte
		finished sql.NullTime
	)
	if run.Result != nil {
		if result, err = json.Marshal(run.Result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		finished = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO optimization_runs (event_id, requested_by, event_version, mode, status, budget, result, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.EventID, run.RequestedBy, run.EventVersion, run.Mode, run.Status, budget, result, finished)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*run = *got
	return nil
}

// GetByID returns the run or ErrRunNotFound.
func (r *RunRepo) GetByID(ctx context.Context, id uint64) (*model.OptimizationRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM optimization_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// ListByEvent returns up to limit runs of an event, newest first.
func (r *RunRepo) ListByEvent(ctx context.Context, eventID uint64, limit int) ([]model.OptimizationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM optimization_runs WHERE event_id = ? ORDER BY id DESC LIMIT ?`, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.OptimizationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Complete stores the result of a pending run.
func (r *RunRepo) Complete(ctx context.Context, id uint64, res seating.OptimizationResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return r.transition(ctx, id,
		`UPDATE optimization_runs SET status = ?, result = ?, finished_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = ?`,
		model.RunCompleted, raw, id, model.RunPending)
}

// Fail marks a pending run as failed with msg.
func (r *RunRepo) Fail(ctx context.Context, id uint64, msg string) error {
	return r.transition(ctx, id,
		`UPDATE optimization_runs SET status = ?, error = ?, finished_at = UTC_TIMESTAMP()
		 WHERE id = ? AND status = ?`,
		model.RunFailed, msg, id, model.RunPending)
}

// Discard rejects a pending or completed run.
func (r *RunRepo) Discard(ctx context.Context, id uint64) error {
	return r.transition(ctx, id,
		`UPDATE optimization_runs SET status = ?, finished_at = COALESCE(finished_at, UTC_TIMESTAMP())
		 WHERE id = ? AND status IN (?, ?)`,
		model.RunDiscarded, id, model.RunPending, model.RunCompleted)
}

// transition runs a guarded status update and tells a missing run apart
// from one in the wrong state.
func (r *RunRepo) transition(ctx context.Context, id uint64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM optimization_runs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRunNotFound
	}
	if err != nil {
		return err
	}
	return ErrRunState
}

// ApplyFunc builds the new event document from the locked event and the run
// being applied.
type ApplyFunc func(ev *model.Event, run *model.OptimizationRun) (model.EventDocument, error)

// Apply writes a completed run into its event inside one transaction.  The
// run must be COMPLETED and computed from the event's current version;
// otherwise ErrRunState or ErrStaleRun is returned and nothing changes.
// ownerID must own the event.
func (r *RunRepo) Apply(ctx context.Context, runID, ownerID uint64, build ApplyFunc) (ev *model.Event, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	run, err := scanRun(tx.QueryRowContext(ctx, `SELECT `+runColumns+` FROM optimization_runs WHERE id = ? FOR UPDATE`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	ev, err = r.events.getForUpdateTx(ctx, tx, run.EventID)
	if err != nil {
		return nil, err
	}
	if ev.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	if run.Status != model.RunCompleted || run.Result == nil {
		return nil, ErrRunState
	}
	if run.EventVersion != ev.Version {
		return nil, ErrStaleRun
	}

	doc, err := build(ev, run)
	if err != nil {
		return nil, err
	}
	if err = r.events.updateDocumentTx(ctx, tx, ev.ID, doc); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE optimization_runs SET status = ? WHERE id = ?`, model.RunApplied, run.ID); err != nil {
		return nil, err
	}
	ev.Document = doc
	ev.Version++
	return ev, nil
}
