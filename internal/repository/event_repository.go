package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/event-seating-planner/internal/model"
)

// EventRepo manages persistence for events and their seating documents.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying sql.DB so callers can run transactions spanning
// events and runs.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = "id, owner_id, name, starts_at, document, version, created_at, updated_at"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(s rowScanner) (*model.Event, error) {
	var (
		e        model.Event
		startsAt sql.NullTime
		doc      []byte
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &e.Name, &startsAt, &doc, &e.Version, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if startsAt.Valid {
		t := startsAt.Time
		e.StartsAt = &t
	}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &e.Document); err != nil {
			return nil, fmt.Errorf("decode event %d document: %w", e.ID, err)
		}
	}
	return &e, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Create inserts a new event owned by e.OwnerID with version 1 and fills in
// the generated ID and timestamps.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	doc, err := json.Marshal(e.Document)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (owner_id, name, starts_at, document, version) VALUES (?, ?, ?, ?, 1)`,
		e.OwnerID, e.Name, nullTime(e.StartsAt), doc)
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
	*e = *got
	return nil
}

// GetByID returns the event or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

// GetForOwner returns the event when it belongs to ownerID, ErrForbidden when
// it belongs to someone else, or ErrEventNotFound.
func (r *EventRepo) GetForOwner(ctx context.Context, id, ownerID uint64) (*model.Event, error) {
	e, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return e, nil
}

// ListByOwner returns the owner's events, newest first.
func (r *EventRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE owner_id = ? ORDER BY id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces name, start time and document of an owned event and bumps
// its version.  When expectedVersion is non-zero and no longer current, the
// update is refused with ErrConflict.
func (r *EventRepo) Update(ctx context.Context, e *model.Event, expectedVersion uint32) error {
	current, err := r.GetForOwner(ctx, e.ID, e.OwnerID)
	if err != nil {
		return err
	}
	if expectedVersion == 0 {
		expectedVersion = current.Version
	}
	doc, err := json.Marshal(e.Document)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET name = ?, starts_at = ?, document = ?, version = version + 1
		 WHERE id = ? AND owner_id = ? AND version = ?`,
		e.Name, nullTime(e.StartsAt), doc, e.ID, e.OwnerID, expectedVersion)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	got, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = *got
	return nil
}

// updateDocumentTx writes doc into a locked event row and bumps its version.
func (r *EventRepo) updateDocumentTx(ctx context.Context, tx *sql.Tx, id uint64, doc model.EventDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE events SET document = ?, version = version + 1 WHERE id = ?`, raw, id)
	return err
}

// getForUpdateTx loads and locks an event row inside tx.
func (r *EventRepo) getForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	e, err := scanEvent(tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}

// Delete removes an owned event together with its optimization runs.
func (r *EventRepo) Delete(ctx context.Context, id, ownerID uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	var dbOwnerID uint64
	if err = tx.QueryRowContext(ctx, `SELECT owner_id FROM events WHERE id = ? FOR UPDATE`, id).Scan(&dbOwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return err
	}
	if dbOwnerID != ownerID {
		return ErrForbidden
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM optimization_runs WHERE event_id = ?`, id); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	return err
}
