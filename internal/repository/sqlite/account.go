package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/model"
)

const accountColumns = `id, email, password_hash, github_id, email_confirmed,
	confirmation_token, created_at, updated_at`

// github_id is NULL for accounts without a GitHub identity, which keeps the
// unique index from colliding on zero.
func nullGitHubID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func scanAccount(s scanner) (*model.Account, error) {
	var (
		a        model.Account
		githubID sql.NullInt64
	)
	err := s.Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&githubID,
		&a.EmailConfirmed,
		&a.ConfirmationToken,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.GitHubID = githubID.Int64
	return &a, nil
}

// isUniqueViolation matches SQLite's constraint error text. modernc.org/sqlite
// reports it as "constraint failed: UNIQUE constraint failed: ...".
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isCheckViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}

func (db *DB) CreateAccount(ctx context.Context, a *model.Account) error {
	a.ID = xid.New().String()
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Email,
		a.PasswordHash,
		nullGitHubID(a.GitHubID),
		a.EmailConfirmed,
		a.ConfirmationToken,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("email already registered")
		}
		return fmt.Errorf("sqlite: creating account: %w", err)
	}
	return nil
}

func (db *DB) UpdateAccount(ctx context.Context, a *model.Account) error {
	a.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE accounts
		 SET email = ?, password_hash = ?, github_id = ?, email_confirmed = ?,
		     confirmation_token = ?, updated_at = ?
		 WHERE id = ?`,
		a.Email,
		a.PasswordHash,
		nullGitHubID(a.GitHubID),
		a.EmailConfirmed,
		a.ConfirmationToken,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account already linked")
		}
		return fmt.Errorf("sqlite: updating account %s: %w", a.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("account", a.ID)
	}
	return nil
}

func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	return db.getAccount(ctx, "id", id, id)
}

func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return db.getAccount(ctx, "email", email, email)
}

func (db *DB) GetAccountByGitHubID(ctx context.Context, githubID int64) (*model.Account, error) {
	if githubID == 0 {
		return nil, apperror.NotFound("account", "github")
	}
	return db.getAccount(ctx, "github_id", githubID, fmt.Sprint(githubID))
}

func (db *DB) GetAccountByConfirmationToken(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, apperror.NotFound("account", "token")
	}
	return db.getAccount(ctx, "confirmation_token", token, "token")
}

// getAccount looks an account up by one column. column is always a constant
// from this file, never user input.
func (db *DB) getAccount(ctx context.Context, column string, value any, label string) (*model.Account, error) {
	a, err := scanAccount(db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE `+column+` = ?`, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", label)
		}
		return nil, fmt.Errorf("sqlite: getting account by %s: %w", column, err)
	}
	return a, nil
}
