// Package model defines the data structures used throughout the application.
package model

import "time"

// Role is the authorisation level stored on a profile.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// ParseRole resolves a stored role string.
//
// The stored value is trusted, but anything that is not exactly "admin" resolves
// to RoleStudent. An empty or misspelled role therefore never grants admin rights.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleStudent
}

// Account is the identity provider's record of a user who can sign in.
//
// An account can have a password, a GitHub identity, or both.
// GitHubID is 0 when the account has never signed in through GitHub, and
// PasswordHash is empty for GitHub-only accounts.
//
// EmailConfirmed gates password sign-in: sign-up creates the account with
// EmailConfirmed=false and a single-use ConfirmationToken that is mailed to the user.
type Account struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	GitHubID          int64     `json:"githubId,omitempty"`
	EmailConfirmed    bool      `json:"emailConfirmed"`
	ConfirmationToken string    `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Profile is the supplementary identity data keyed by the account ID.
// It lives in its own table, separate from the provider's accounts, and is
// fetched by the session manager after sign-in.
type Profile struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the profile carries the admin role.
// A nil profile is never admin.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
