package seed_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/campus-connect/internal/auth"
	"github.com/sakif/campus-connect/internal/identity"
	"github.com/sakif/campus-connect/internal/mail"
	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/notification"
	"github.com/sakif/campus-connect/internal/ratelimit"
	"github.com/sakif/campus-connect/internal/repository/memory"
	"github.com/sakif/campus-connect/internal/seed"
	"github.com/sakif/campus-connect/internal/service"
	"github.com/sakif/campus-connect/internal/validate"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newDeps(t *testing.T) seed.Deps {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	profiles := service.NewProfileService(store, logger)

	tokens, err := auth.NewTokenService("seed-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	svc := identity.NewService(identity.Config{
		Accounts:         store,
		Passwords:        auth.NewPasswordServiceForTest(4),
		Tokens:           tokens,
		Mailer:           mail.NewLog(logger),
		Limiter:          ratelimit.NewMemory(5, time.Minute),
		PublicURL:        "http://localhost:8080",
		OnAccountCreated: profiles.Provision,
		Logger:           logger,
	})
	return seed.Deps{Identity: svc, Profiles: profiles, Store: store, Logger: logger}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	require.NoError(t, seed.Load(ctx, d, now))

	admin, err := d.Store.GetAccountByEmail(ctx, seed.AdminEmail)
	require.NoError(t, err)
	assert.True(t, admin.EmailConfirmed)
	profile, err := d.Profiles.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, profile.Role)

	student, err := d.Store.GetAccountByEmail(ctx, seed.StudentEmail)
	require.NoError(t, err)
	profile, err = d.Profiles.Get(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, profile.Role)

	events, err := d.Store.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, len(seed.Events(now)))

	announcements, err := d.Store.ListAnnouncements(ctx)
	require.NoError(t, err)
	assert.Len(t, announcements, len(seed.Announcements(now)))
}

func TestLoad_Idempotent(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	require.NoError(t, seed.Load(ctx, d, now))
	require.NoError(t, seed.Load(ctx, d, now))

	events, err := d.Store.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, events, len(seed.Events(now)))
}

func TestLoad_CredentialsSignIn(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)
	require.NoError(t, seed.Load(ctx, d, now))

	session, err := d.Identity.NewClient().SignInWithPassword(ctx, seed.StudentEmail, seed.StudentPassword)
	require.NoError(t, err)
	assert.Equal(t, seed.StudentEmail, session.User.Email)
}

// Every demo event must be something an admin could have entered by hand.
func TestEvents_PassFormValidation(t *testing.T) {
	for _, e := range seed.Events(now) {
		form := validate.FormFromEvent(e, time.UTC)
		assert.Empty(t, validate.CheckEvent(form), e.Title)
		assert.True(t, e.Category.Valid(), e.Title)
	}
}

func TestEvents_ReminderWindow(t *testing.T) {
	var soon int
	for _, e := range seed.Events(now) {
		if e.Date.After(now) && !e.Date.After(now.Add(notification.ReminderWindow)) {
			soon++
		}
	}
	assert.Equal(t, 2, soon)
}
