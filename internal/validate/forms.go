package validate

import (
	"strconv"
	"strings"
	"time"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/model"
)

// DateLayout is the format of the date fields on EventForm.
const DateLayout = "2006-01-02"

// Credentials is the sign-in and sign-up form.
type Credentials struct {
	Email    string `json:"email" validate:"email"`
	Password string `json:"password" validate:"min=6"`
}

var credentialMessages = map[string]string{
	"email":    "Please enter a valid email address.",
	"password": "Password must be at least 6 characters.",
}

// CheckCredentials returns one FieldError per invalid field, or nil.
func CheckCredentials(c Credentials) []apperror.FieldError {
	return check(c, credentialMessages)
}

// EventForm is the admin create/edit event form. Dates are calendar dates
// (YYYY-MM-DD), Time is the start time on Date, MaxAttendees is free text
// that must hold a positive number when given.
type EventForm struct {
	Title                string `json:"title" validate:"min=2"`
	Description          string `json:"description" validate:"min=10"`
	Date                 string `json:"date" validate:"required,datetime=2006-01-02"`
	EndDate              string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Time                 string `json:"time" validate:"clock24"`
	Location             string `json:"location" validate:"min=2"`
	Category             string `json:"category" validate:"required,category"`
	Organizer            string `json:"organizer" validate:"min=2"`
	Image                string `json:"image" validate:"omitempty,max=2048"`
	RegistrationDeadline string `json:"registrationDeadline" validate:"omitempty,datetime=2006-01-02"`
	MaxAttendees         string `json:"maxAttendees" validate:"omitempty,attendees"`
	IsFeatured           bool   `json:"isFeatured"`
}

var eventMessages = map[string]string{
	"title":                "Title must be at least 2 characters.",
	"description":          "Description must be at least 10 characters.",
	"date.required":        "Event date is required.",
	"date":                 "Event date must be a valid date.",
	"endDate":              "End date must be a valid date.",
	"time":                 "Please enter a valid time in 24-hour format (HH:MM).",
	"location":             "Location must be at least 2 characters.",
	"category.required":    "Please select a category.",
	"category":             "Please select a valid category.",
	"organizer":            "Organizer must be at least 2 characters.",
	"image":                "Image URL is too long.",
	"registrationDeadline": "Registration deadline must be a valid date.",
	"maxAttendees":         "Max attendees must be a positive number.",
}

// CheckEvent returns one FieldError per invalid field, or nil.
func CheckEvent(f EventForm) []apperror.FieldError {
	return check(f, eventMessages)
}

// Event builds the event described by a valid form. Dates are interpreted in
// loc. ID, attendee count and timestamps are left for the store.
func (f EventForm) Event(loc *time.Location) (model.Event, error) {
	day, err := time.ParseInLocation(DateLayout, f.Date, loc)
	if err != nil {
		return model.Event{}, apperror.ValidationFailed("date", eventMessages["date"])
	}
	clock, err := time.Parse("15:04", normaliseClock(f.Time))
	if err != nil {
		return model.Event{}, apperror.ValidationFailed("time", eventMessages["time"])
	}

	e := model.Event{
		Title:       f.Title,
		Description: f.Description,
		Date:        day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute),
		Location:    f.Location,
		Category:    model.Category(f.Category),
		Organizer:   f.Organizer,
		Image:       f.Image,
		IsFeatured:  f.IsFeatured,
	}

	if f.EndDate != "" {
		end, err := time.ParseInLocation(DateLayout, f.EndDate, loc)
		if err != nil {
			return model.Event{}, apperror.ValidationFailed("endDate", eventMessages["endDate"])
		}
		e.EndDate = &end
	}
	if f.RegistrationDeadline != "" {
		deadline, err := time.ParseInLocation(DateLayout, f.RegistrationDeadline, loc)
		if err != nil {
			return model.Event{}, apperror.ValidationFailed("registrationDeadline", eventMessages["registrationDeadline"])
		}
		// a deadline day stays open until its end
		deadline = deadline.Add(24*time.Hour - time.Second)
		e.RegistrationDeadline = &deadline
	}
	if f.MaxAttendees != "" {
		n, err := strconv.Atoi(strings.TrimSpace(f.MaxAttendees))
		if err != nil || n <= 0 {
			return model.Event{}, apperror.ValidationFailed("maxAttendees", eventMessages["maxAttendees"])
		}
		e.MaxAttendees = &n
	}
	return e, nil
}

// FormFromEvent fills the form with an existing event, for editing.
func FormFromEvent(e model.Event, loc *time.Location) EventForm {
	date := e.Date.In(loc)
	f := EventForm{
		Title:       e.Title,
		Description: e.Description,
		Date:        date.Format(DateLayout),
		Time:        date.Format("15:04"),
		Location:    e.Location,
		Category:    string(e.Category),
		Organizer:   e.Organizer,
		Image:       e.Image,
		IsFeatured:  e.IsFeatured,
	}
	if e.EndDate != nil {
		f.EndDate = e.EndDate.In(loc).Format(DateLayout)
	}
	if e.RegistrationDeadline != nil {
		f.RegistrationDeadline = e.RegistrationDeadline.In(loc).Format(DateLayout)
	}
	if e.MaxAttendees != nil {
		f.MaxAttendees = strconv.Itoa(*e.MaxAttendees)
	}
	return f
}

// normaliseClock pads a single digit hour, so "9:30" parses as "09:30".
func normaliseClock(s string) string {
	if len(s) == 4 {
		return "0" + s
	}
	return s
}
