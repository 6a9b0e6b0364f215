package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/model"
)

func validForm() EventForm {
	return EventForm{
		Title:       "Hack Night",
		Description: "An evening of building things together.",
		Date:        "2025-04-18",
		Time:        "18:30",
		Location:    "Engineering Hall",
		Category:    "tech",
		Organizer:   "CS Society",
	}
}

func fieldNames(fields []apperror.FieldError) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return names
}

func TestCheckCredentials(t *testing.T) {
	tests := []struct {
		name   string
		creds  Credentials
		fields []string
	}{
		{"valid", Credentials{Email: "student@campus.edu", Password: "student123"}, nil},
		{"bad email", Credentials{Email: "not-an-email", Password: "student123"}, []string{"email"}},
		{"short password", Credentials{Email: "student@campus.edu", Password: "12345"}, []string{"password"}},
		{"both empty", Credentials{}, []string{"email", "password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckCredentials(tt.creds)
			if tt.fields == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.fields, fieldNames(got))
		})
	}
}

func TestCheckCredentials_Messages(t *testing.T) {
	got := CheckCredentials(Credentials{Email: "x", Password: "y"})
	require.Len(t, got, 2)
	assert.Equal(t, "Please enter a valid email address.", got[0].Message)
	assert.Equal(t, "Password must be at least 6 characters.", got[1].Message)
}

func TestCheckEvent(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EventForm)
		field   string
		message string
	}{
		{"short title", func(f *EventForm) { f.Title = "H" }, "title", "Title must be at least 2 characters."},
		{"short description", func(f *EventForm) { f.Description = "too short" }, "description", "Description must be at least 10 characters."},
		{"missing date", func(f *EventForm) { f.Date = "" }, "date", "Event date is required."},
		{"bad date", func(f *EventForm) { f.Date = "18/04/2025" }, "date", "Event date must be a valid date."},
		{"bad time", func(f *EventForm) { f.Time = "25:00" }, "time", "Please enter a valid time in 24-hour format (HH:MM)."},
		{"time without minutes", func(f *EventForm) { f.Time = "18" }, "time", "Please enter a valid time in 24-hour format (HH:MM)."},
		{"short location", func(f *EventForm) { f.Location = "X" }, "location", "Location must be at least 2 characters."},
		{"missing category", func(f *EventForm) { f.Category = "" }, "category", "Please select a category."},
		{"unknown category", func(f *EventForm) { f.Category = "party" }, "category", "Please select a valid category."},
		{"short organizer", func(f *EventForm) { f.Organizer = "C" }, "organizer", "Organizer must be at least 2 characters."},
		{"non-numeric capacity", func(f *EventForm) { f.MaxAttendees = "lots" }, "maxAttendees", "Max attendees must be a positive number."},
		{"zero capacity", func(f *EventForm) { f.MaxAttendees = "0" }, "maxAttendees", "Max attendees must be a positive number."},
		{"bad deadline", func(f *EventForm) { f.RegistrationDeadline = "soon" }, "registrationDeadline", "Registration deadline must be a valid date."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)

			got := CheckEvent(form)
			require.Len(t, got, 1)
			assert.Equal(t, tt.field, got[0].Field)
			assert.Equal(t, tt.message, got[0].Message)
		})
	}
}

func TestCheckEvent_Valid(t *testing.T) {
	form := validForm()
	assert.Empty(t, CheckEvent(form))

	form.Time = "9:05"
	form.MaxAttendees = "120"
	form.RegistrationDeadline = "2025-04-17"
	form.EndDate = "2025-04-19"
	assert.Empty(t, CheckEvent(form))
}

func TestError(t *testing.T) {
	assert.NoError(t, Error(nil))

	err := Error(CheckCredentials(Credentials{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Len(t, appErr.Fields, 2)
}

func TestEventForm_Event(t *testing.T) {
	form := validForm()
	form.Time = "9:05"
	form.MaxAttendees = " 40 "
	form.RegistrationDeadline = "2025-04-17"
	form.IsFeatured = true

	e, err := form.Event(time.UTC)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 4, 18, 9, 5, 0, 0, time.UTC), e.Date)
	assert.Equal(t, model.CategoryTech, e.Category)
	require.NotNil(t, e.MaxAttendees)
	assert.Equal(t, 40, *e.MaxAttendees)
	require.NotNil(t, e.RegistrationDeadline)
	assert.Equal(t, time.Date(2025, 4, 17, 23, 59, 59, 0, time.UTC), *e.RegistrationDeadline)
	assert.Nil(t, e.EndDate)
	assert.True(t, e.IsFeatured)
	assert.Zero(t, e.CurrentAttendees)
}

func TestFormFromEvent_RoundTrip(t *testing.T) {
	form := validForm()
	form.MaxAttendees = "40"
	form.RegistrationDeadline = "2025-04-17"
	form.EndDate = "2025-04-19"

	e, err := form.Event(time.UTC)
	require.NoError(t, err)

	assert.Equal(t, form, FormFromEvent(e, time.UTC))
}
