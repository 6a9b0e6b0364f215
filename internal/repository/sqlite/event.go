package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/model"
)

const eventColumns = `id, title, description, date, end_date, location, category, organizer,
	image, registration_deadline, max_attendees, current_attendees, is_featured,
	created_at, updated_at`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEvent reads one row selected with eventColumns.
//
// NULLABLE COLUMNS:
// end_date, registration_deadline and max_attendees are optional. They are read
// through sql.NullTime / sql.NullInt64 and converted to nil pointers when NULL.
func scanEvent(s scanner) (*model.Event, error) {
	var (
		e        model.Event
		category string
		endDate  sql.NullTime
		deadline sql.NullTime
		max      sql.NullInt64
	)
	err := s.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Date,
		&endDate,
		&e.Location,
		&category,
		&e.Organizer,
		&e.Image,
		&deadline,
		&max,
		&e.CurrentAttendees,
		&e.IsFeatured,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Category = model.Category(category)
	if endDate.Valid {
		t := endDate.Time
		e.EndDate = &t
	}
	if deadline.Valid {
		t := deadline.Time
		e.RegistrationDeadline = &t
	}
	if max.Valid {
		n := int(max.Int64)
		e.MaxAttendees = &n
	}
	return &e, nil
}

// Times are stored in UTC so that lexical order on the column matches time order.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func (db *DB) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}

	return events, nil
}

func (db *DB) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("event", id)
		}
		return nil, fmt.Errorf("sqlite: getting event %s: %w", id, err)
	}
	return e, nil
}

// CreateEvent keeps a caller-supplied ID (the seed data has fixed IDs) and
// generates one otherwise.
func (db *DB) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		e.ID = xid.New().String()
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Title,
		e.Description,
		e.Date.UTC(),
		nullTime(e.EndDate),
		e.Location,
		string(e.Category),
		e.Organizer,
		e.Image,
		nullTime(e.RegistrationDeadline),
		nullInt(e.MaxAttendees),
		e.CurrentAttendees,
		e.IsFeatured,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating event: %w", err)
	}
	return nil
}

// UpdateEvent writes every editable column. current_attendees is owned by
// CreateRegistration and is read back into e afterwards.
func (db *DB) UpdateEvent(ctx context.Context, e *model.Event) error {
	e.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE events
		 SET title = ?, description = ?, date = ?, end_date = ?, location = ?,
		     category = ?, organizer = ?, image = ?, registration_deadline = ?,
		     max_attendees = ?, is_featured = ?, updated_at = ?
		 WHERE id = ?`,
		e.Title,
		e.Description,
		e.Date.UTC(),
		nullTime(e.EndDate),
		e.Location,
		string(e.Category),
		e.Organizer,
		e.Image,
		nullTime(e.RegistrationDeadline),
		nullInt(e.MaxAttendees),
		e.IsFeatured,
		e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		if isCheckViolation(err) {
			return apperror.ValidationFailed("maxAttendees", "max attendees is below the current attendee count")
		}
		return fmt.Errorf("sqlite: updating event %s: %w", e.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("event", e.ID)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT current_attendees, created_at FROM events WHERE id = ?`, e.ID,
	).Scan(&e.CurrentAttendees, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: reloading event %s: %w", e.ID, err)
	}
	return nil
}

// DeleteEvent relies on ON DELETE CASCADE to drop the event's registrations.
func (db *DB) DeleteEvent(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting event %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("event", id)
	}
	return nil
}
