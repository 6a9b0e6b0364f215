package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/model"
)

// newTestDB opens a fresh in-memory database that is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestEvent(t *testing.T, db *DB, title string, date time.Time, max *int) *model.Event {
	t.Helper()
	e := &model.Event{
		Title:        title,
		Description:  "A test event description",
		Date:         date,
		Location:     "Main Hall",
		Category:     model.CategoryTech,
		Organizer:    "CS Club",
		MaxAttendees: max,
	}
	if err := db.CreateEvent(context.Background(), e); err != nil {
		t.Fatalf("failed to create test event: %v", err)
	}
	return e
}

func intPtr(n int) *int { return &n }

// =========================================================================
// EVENT TESTS
// =========================================================================

func TestCreateEvent_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	date := time.Date(2026, 5, 1, 18, 30, 0, 0, time.UTC)
	deadline := date.Add(-24 * time.Hour)
	original := &model.Event{
		Title:                "Hack Night",
		Description:          "Build something overnight",
		Date:                 date,
		Location:             "Lab 2",
		Category:             model.CategoryTech,
		Organizer:            "CS Club",
		RegistrationDeadline: &deadline,
		MaxAttendees:         intPtr(50),
		IsFeatured:           true,
	}
	if err := db.CreateEvent(ctx, original); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if original.ID == "" {
		t.Fatal("CreateEvent() did not set ID")
	}

	got, err := db.GetEvent(ctx, original.ID)
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}

	if got.Title != original.Title {
		t.Errorf("Title = %q, want %q", got.Title, original.Title)
	}
	if !got.Date.Equal(date) {
		t.Errorf("Date = %v, want %v", got.Date, date)
	}
	if got.RegistrationDeadline == nil || !got.RegistrationDeadline.Equal(deadline) {
		t.Errorf("RegistrationDeadline = %v, want %v", got.RegistrationDeadline, deadline)
	}
	if got.EndDate != nil {
		t.Errorf("EndDate = %v, want nil", got.EndDate)
	}
	if got.MaxAttendees == nil || *got.MaxAttendees != 50 {
		t.Errorf("MaxAttendees = %v, want 50", got.MaxAttendees)
	}
	if got.Category != model.CategoryTech {
		t.Errorf("Category = %q, want %q", got.Category, model.CategoryTech)
	}
	if !got.IsFeatured {
		t.Error("IsFeatured = false, want true")
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetEvent(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetEvent() error = %v, want ErrNotFound", err)
	}
}

func TestListEvents_SoonestFirst(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	createTestEvent(t, db, "later", now.Add(72*time.Hour), nil)
	createTestEvent(t, db, "sooner", now.Add(24*time.Hour), nil)

	events, err := db.ListEvents(context.Background())
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("ListEvents() returned %d events, want 2", len(events))
	}
	if events[0].Title != "sooner" {
		t.Errorf("events[0].Title = %q, want %q", events[0].Title, "sooner")
	}
}

func TestUpdateEvent_PreservesAttendees(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := createTestEvent(t, db, "Career Expo", time.Now().Add(48*time.Hour), nil)
	if err := db.CreateRegistration(ctx, &model.Registration{UserID: "u1", EventID: e.ID}); err != nil {
		t.Fatalf("CreateRegistration() error = %v", err)
	}

	e.Title = "Career Expo 2026"
	e.CurrentAttendees = 0
	if err := db.UpdateEvent(ctx, e); err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	if e.CurrentAttendees != 1 {
		t.Errorf("CurrentAttendees after update = %d, want 1", e.CurrentAttendees)
	}

	got, _ := db.GetEvent(ctx, e.ID)
	if got.Title != "Career Expo 2026" {
		t.Errorf("Title = %q, want %q", got.Title, "Career Expo 2026")
	}
}

func TestUpdateEvent_CapacityBelowAttendees(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := createTestEvent(t, db, "Workshop", time.Now().Add(48*time.Hour), intPtr(3))
	for _, user := range []string{"u1", "u2"} {
		if err := db.CreateRegistration(ctx, &model.Registration{UserID: user, EventID: e.ID}); err != nil {
			t.Fatalf("CreateRegistration() error = %v", err)
		}
	}

	e.MaxAttendees = intPtr(1)
	if err := db.UpdateEvent(ctx, e); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("UpdateEvent() error = %v, want ErrValidation", err)
	}

	got, _ := db.GetEvent(ctx, e.ID)
	if got.MaxAttendees == nil || *got.MaxAttendees != 3 {
		t.Errorf("MaxAttendees = %v, want 3", got.MaxAttendees)
	}
}

func TestUpdateEvent_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateEvent(context.Background(), &model.Event{ID: "nonexistent", Category: model.CategoryArt})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateEvent() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteEvent_CascadesRegistrations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := createTestEvent(t, db, "Art Fair", time.Now().Add(time.Hour), nil)
	if err := db.CreateRegistration(ctx, &model.Registration{UserID: "u1", EventID: e.ID}); err != nil {
		t.Fatalf("CreateRegistration() error = %v", err)
	}

	if err := db.DeleteEvent(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}

	n, err := db.CountRegistrations(ctx)
	if err != nil {
		t.Fatalf("CountRegistrations() error = %v", err)
	}
	if n != 0 {
		t.Errorf("CountRegistrations() = %d after delete, want 0", n)
	}

	if err := db.DeleteEvent(ctx, e.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteEvent() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// REGISTRATION TESTS
// =========================================================================

func TestCreateRegistration_Capacity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	e := createTestEvent(t, db, "Small Workshop", time.Now().Add(time.Hour), intPtr(1))

	if err := db.CreateRegistration(ctx, &model.Registration{UserID: "u1", EventID: e.ID}); err != nil {
		t.Fatalf("first CreateRegistration() error = %v", err)
	}

	err := db.CreateRegistration(ctx, &model.Registration{UserID: "u1", EventID: e.ID})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate CreateRegistration() error = %v, want ErrConflict", err)
	}

	err = db.CreateRegistration(ctx, &model.Registration{UserID: "u2", EventID: e.ID})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("over-capacity CreateRegistration() error = %v, want ErrConflict", err)
	}

	got, _ := db.GetEvent(ctx, e.ID)
	if got.CurrentAttendees != 1 {
		t.Errorf("CurrentAttendees = %d, want 1", got.CurrentAttendees)
	}
}

func TestCreateRegistration_MissingEvent(t *testing.T) {
	db := newTestDB(t)

	err := db.CreateRegistration(context.Background(), &model.Registration{UserID: "u1", EventID: "nope"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CreateRegistration() error = %v, want ErrNotFound", err)
	}
}

func TestListRegistrationsByUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := createTestEvent(t, db, "A", time.Now().Add(time.Hour), nil)
	b := createTestEvent(t, db, "B", time.Now().Add(2*time.Hour), nil)
	for _, r := range []*model.Registration{
		{UserID: "u1", EventID: a.ID},
		{UserID: "u1", EventID: b.ID},
		{UserID: "u2", EventID: a.ID},
	} {
		if err := db.CreateRegistration(ctx, r); err != nil {
			t.Fatalf("CreateRegistration() error = %v", err)
		}
	}

	regs, err := db.ListRegistrationsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListRegistrationsByUser() error = %v", err)
	}
	if len(regs) != 2 {
		t.Errorf("len = %d, want 2", len(regs))
	}
}

// =========================================================================
// ACCOUNT & PROFILE TESTS
// =========================================================================

func TestAccounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := &model.Account{Email: "student@campus.edu", PasswordHash: "hash", ConfirmationToken: "tok"}
	if err := db.CreateAccount(ctx, a); err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}

	if err := db.CreateAccount(ctx, &model.Account{Email: "student@campus.edu"}); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate CreateAccount() error = %v, want ErrConflict", err)
	}

	// two accounts without GitHub must not collide on the github_id index
	if err := db.CreateAccount(ctx, &model.Account{Email: "other@campus.edu"}); err != nil {
		t.Fatalf("second CreateAccount() error = %v", err)
	}

	got, err := db.GetAccountByConfirmationToken(ctx, "tok")
	if err != nil {
		t.Fatalf("GetAccountByConfirmationToken() error = %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("ID = %q, want %q", got.ID, a.ID)
	}

	a.GitHubID = 1234
	a.EmailConfirmed = true
	a.ConfirmationToken = ""
	if err := db.UpdateAccount(ctx, a); err != nil {
		t.Fatalf("UpdateAccount() error = %v", err)
	}

	got, err = db.GetAccountByGitHubID(ctx, 1234)
	if err != nil {
		t.Fatalf("GetAccountByGitHubID() error = %v", err)
	}
	if !got.EmailConfirmed {
		t.Error("EmailConfirmed = false, want true")
	}

	if _, err := db.GetAccountByEmail(ctx, "missing@campus.edu"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetAccountByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestProfiles_Upsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.GetProfile(ctx, "u1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetProfile() error = %v, want ErrNotFound", err)
	}

	p := &model.Profile{UserID: "u1", DisplayName: "Sam", Role: model.RoleStudent}
	if err := db.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	p.Role = model.RoleAdmin
	if err := db.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("second UpsertProfile() error = %v", err)
	}

	got, err := db.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if !got.IsAdmin() {
		t.Errorf("Role = %q, want admin", got.Role)
	}
}

func TestAnnouncements(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	for _, a := range []*model.Announcement{
		{Title: "older", Date: now.Add(-48 * time.Hour)},
		{Title: "newer", Date: now, Important: true},
	} {
		if err := db.CreateAnnouncement(ctx, a); err != nil {
			t.Fatalf("CreateAnnouncement() error = %v", err)
		}
	}

	list, err := db.ListAnnouncements(ctx)
	if err != nil {
		t.Fatalf("ListAnnouncements() error = %v", err)
	}
	if len(list) != 2 || list[0].Title != "newer" || !list[0].Important {
		t.Errorf("ListAnnouncements() = %+v, want newer (important) first", list)
	}
}
