package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/model"
)

func (db *DB) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var (
		p    model.Profile
		role string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, display_name, avatar_url, role, created_at, updated_at
		 FROM profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &p.DisplayName, &p.AvatarURL, &role, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", userID, err)
	}

	p.Role = model.ParseRole(role)
	return &p, nil
}

// UpsertProfile uses INSERT ... ON CONFLICT so created_at survives updates.
func (db *DB) UpsertProfile(ctx context.Context, p *model.Profile) error {
	now := time.Now()
	p.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (user_id, display_name, avatar_url, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     display_name = excluded.display_name,
		     avatar_url   = excluded.avatar_url,
		     role         = excluded.role,
		     updated_at   = excluded.updated_at`,
		p.UserID, p.DisplayName, p.AvatarURL, string(p.Role), now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting profile %s: %w", p.UserID, err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT created_at FROM profiles WHERE user_id = ?`, p.UserID,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: reloading profile %s: %w", p.UserID, err)
	}
	return nil
}
