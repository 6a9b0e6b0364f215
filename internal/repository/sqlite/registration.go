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

// CreateRegistration runs in a transaction: the capacity check, the insert and
// the attendee increment either all happen or none do.
func (db *DB) CreateRegistration(ctx context.Context, reg *model.Registration) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning registration tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var (
		current int
		max     sql.NullInt64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT current_attendees, max_attendees FROM events WHERE id = ?`, reg.EventID,
	).Scan(&current, &max)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("event", reg.EventID)
		}
		return fmt.Errorf("sqlite: loading event %s: %w", reg.EventID, err)
	}

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE user_id = ? AND event_id = ?`,
		reg.UserID, reg.EventID,
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("sqlite: checking registration: %w", err)
	}
	if existing > 0 {
		return apperror.Conflict("already registered for this event")
	}
	if max.Valid && int64(current) >= max.Int64 {
		return apperror.Conflict("event is full")
	}

	reg.ID = xid.New().String()
	if reg.RegistrationDate.IsZero() {
		reg.RegistrationDate = time.Now()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO registrations (id, user_id, event_id, registration_date)
		 VALUES (?, ?, ?, ?)`,
		reg.ID, reg.UserID, reg.EventID, reg.RegistrationDate.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting registration: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE events SET current_attendees = current_attendees + 1 WHERE id = ?`,
		reg.EventID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing attendees for %s: %w", reg.EventID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing registration: %w", err)
	}
	return nil
}

// ListRegistrationsByUser returns the user's registrations, newest first.
func (db *DB) ListRegistrationsByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, event_id, registration_date
		 FROM registrations
		 WHERE user_id = ?
		 ORDER BY registration_date DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing registrations for %s: %w", userID, err)
	}
	defer rows.Close()

	regs := make([]model.Registration, 0)
	for rows.Next() {
		var r model.Registration
		if err := rows.Scan(&r.ID, &r.UserID, &r.EventID, &r.RegistrationDate); err != nil {
			return nil, fmt.Errorf("sqlite: scanning registration row: %w", err)
		}
		regs = append(regs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating registrations: %w", err)
	}
	return regs, nil
}

func (db *DB) CountRegistrations(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting registrations: %w", err)
	}
	return n, nil
}
