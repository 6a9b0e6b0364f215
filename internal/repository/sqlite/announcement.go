package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/campus-connect/internal/model"
)

func (db *DB) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, content, author, date, important
		 FROM announcements
		 ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing announcements: %w", err)
	}
	defer rows.Close()

	list := make([]model.Announcement, 0)
	for rows.Next() {
		var a model.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Author, &a.Date, &a.Important); err != nil {
			return nil, fmt.Errorf("sqlite: scanning announcement row: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating announcements: %w", err)
	}
	return list, nil
}

func (db *DB) CreateAnnouncement(ctx context.Context, a *model.Announcement) error {
	if a.ID == "" {
		a.ID = xid.New().String()
	}
	if a.Date.IsZero() {
		a.Date = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO announcements (id, title, content, author, date, important)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Content, a.Author, a.Date.UTC(), a.Important,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating announcement: %w", err)
	}
	return nil
}
