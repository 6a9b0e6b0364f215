package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/campus-connect/internal/auth"
	"github.com/sakif/campus-connect/internal/config"
	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/seed"
	"github.com/sakif/campus-connect/internal/server"
	"github.com/sakif/campus-connect/internal/session"
)

// =========================================================================
// HARNESS
// =========================================================================
//
// Each test runs the whole application against the seeded in-memory store.
// A browser is an http.Client with its own cookie jar.

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	env := map[string]string{
		"JWT_SECRET": "server-test-secret-0123456789",
		"STORE":      "memory",
		"SEED":       "true",
	}
	cfg, err := config.FromEnv(func(k string) string { return env[k] })
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := server.New(context.Background(), cfg, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

type browser struct {
	t    *testing.T
	base string
	http *http.Client
}

func newBrowser(t *testing.T, ts *httptest.Server) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: ts.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// do sends body as JSON and decodes the response into out when out is non-nil.
func (b *browser) do(method, path string, body, out any) *http.Response {
	b.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.base+path, r)
	require.NoError(b.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := b.http.Do(req)
	require.NoError(b.t, err)
	defer res.Body.Close()

	if out != nil {
		require.NoError(b.t, json.NewDecoder(res.Body).Decode(out), "%s %s", method, path)
	}
	return res
}

func (b *browser) login(email, password string) session.Snapshot {
	b.t.Helper()
	var snap session.Snapshot
	res := b.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &snap)
	require.Equal(b.t, http.StatusOK, res.StatusCode)
	return snap
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.base)
	for _, c := range b.http.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Fields  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"fields"`
}

func seedNow() time.Time { return time.Now() }

func eventID(t *testing.T, b *browser, q string) string {
	t.Helper()
	var events []model.Event
	b.do(http.MethodGet, "/api/events?q="+url.QueryEscape(q), nil, &events)
	require.Len(t, events, 1)
	return events[0].ID
}

// =========================================================================
// PUBLIC PAGES
// =========================================================================

func TestEvents_Query(t *testing.T) {
	b := newBrowser(t, newTestServer(t))

	var all []model.Event
	res := b.do(http.MethodGet, "/api/events", nil, &all)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, all, len(seed.Events(seedNow())))

	var tech []model.Event
	b.do(http.MethodGet, "/api/events?category=tech,all", nil, &tech)
	require.Len(t, tech, 1)
	assert.Equal(t, "Spring Hackathon", tech[0].Title)

	var sorted []model.Event
	b.do(http.MethodGet, "/api/events?sort=title-asc", nil, &sorted)
	require.NotEmpty(t, sorted)
	assert.Equal(t, "Guest Lecture: The Future of AI", sorted[0].Title)

	var bad errorBody
	res = b.do(http.MethodGet, "/api/events?category=cooking", nil, &bad)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "validation_error", bad.Error)
}

func TestEvents_Details(t *testing.T) {
	b := newBrowser(t, newTestServer(t))
	id := eventID(t, b, "hackathon")

	var event model.Event
	res := b.do(http.MethodGet, "/api/events/"+id, nil, &event)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Spring Hackathon", event.Title)

	var missing errorBody
	res = b.do(http.MethodGet, "/api/events/nope", nil, &missing)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", missing.Error)
}

func TestUnknownRoute(t *testing.T) {
	b := newBrowser(t, newTestServer(t))

	var body errorBody
	res := b.do(http.MethodGet, "/nowhere", nil, &body)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", body.Error)
}

func TestAnonymousSnapshot(t *testing.T) {
	b := newBrowser(t, newTestServer(t))

	var snap session.Snapshot
	res := b.do(http.MethodGet, "/api/me", nil, &snap)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, session.StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
	assert.NotEmpty(t, b.cookie("cc_client"))
}

// =========================================================================
// AUTH
// =========================================================================

func TestLogin_WrongPassword(t *testing.T) {
	b := newBrowser(t, newTestServer(t))

	var body errorBody
	res := b.do(http.MethodPost, "/auth/login", map[string]string{"email": seed.StudentEmail, "password": "wrong-password"}, &body)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", body.Error)
	assert.Empty(t, b.cookie(auth.TokenCookie))

	var toasts []session.Toast
	b.do(http.MethodGet, "/api/toasts", nil, &toasts)
	require.Len(t, toasts, 1)
	assert.Equal(t, "Error signing in", toasts[0].Title)
	assert.Equal(t, session.VariantDestructive, toasts[0].Variant)

	b.do(http.MethodGet, "/api/toasts", nil, &toasts)
	assert.Empty(t, toasts)
}

func TestLogin_InvalidForm(t *testing.T) {
	b := newBrowser(t, newTestServer(t))

	var body errorBody
	res := b.do(http.MethodPost, "/auth/login", map[string]string{"email": "nope", "password": "123"}, &body)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Len(t, body.Fields, 2)
}

func TestStudentFlow(t *testing.T) {
	ts := newTestServer(t)
	b := newBrowser(t, ts)

	snap := b.login(seed.StudentEmail, seed.StudentPassword)
	assert.Equal(t, session.StateAuthenticated, snap.State)
	assert.False(t, snap.IsAdmin)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, model.RoleStudent, snap.Profile.Role)
	assert.NotEmpty(t, b.cookie(auth.TokenCookie))

	// welcome plus the two demo events inside the reminder window
	var notes struct {
		Notifications []model.Notification `json:"notifications"`
		UnreadCount   int                  `json:"unreadCount"`
	}
	b.do(http.MethodGet, "/api/notifications", nil, &notes)
	require.Len(t, notes.Notifications, 3)
	assert.Equal(t, "welcome", notes.Notifications[0].ID)
	assert.Equal(t, 3, notes.UnreadCount)

	res := b.do(http.MethodPost, "/api/notifications/welcome/read", nil, &notes)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 2, notes.UnreadCount)

	res = b.do(http.MethodPost, "/api/notifications/missing/read", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	b.do(http.MethodPost, "/api/notifications/read-all", nil, &notes)
	assert.Equal(t, 0, notes.UnreadCount)

	id := eventID(t, b, "hackathon")
	res = b.do(http.MethodPost, "/api/events/"+id+"/register", nil, nil)
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	var dup errorBody
	res = b.do(http.MethodPost, "/api/events/"+id+"/register", nil, &dup)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	full := eventID(t, b, "watercolour")
	res = b.do(http.MethodPost, "/api/events/"+full+"/register", nil, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	var mine struct {
		Upcoming []model.RegistrationWithEvent `json:"upcoming"`
		Past     []model.RegistrationWithEvent `json:"past"`
	}
	b.do(http.MethodGet, "/api/me/registrations", nil, &mine)
	require.Len(t, mine.Upcoming, 1)
	assert.Equal(t, id, mine.Upcoming[0].Event.ID)

	var dash struct {
		RegisteredEvents []model.Event `json:"registeredEvents"`
		UpcomingEvents   []model.Event `json:"upcomingEvents"`
	}
	res = b.do(http.MethodGet, "/api/dashboard", nil, &dash)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, dash.RegisteredEvents, 1)
	assert.Len(t, dash.UpcomingEvents, 3)

	res = b.do(http.MethodGet, "/api/admin/stats", nil, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = b.do(http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, b.cookie(auth.TokenCookie))

	var after session.Snapshot
	b.do(http.MethodGet, "/api/me", nil, &after)
	assert.Equal(t, session.StateAnonymous, after.State)

	res = b.do(http.MethodGet, "/api/notifications", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestSignedOutRegistration(t *testing.T) {
	b := newBrowser(t, newTestServer(t))
	id := eventID(t, b, "hackathon")

	res := b.do(http.MethodPost, "/api/events/"+id+"/register", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

// A browser that only kept its token cookie gets a new client that resumes
// the session.
func TestSessionResumesFromToken(t *testing.T) {
	ts := newTestServer(t)
	first := newBrowser(t, ts)
	first.login(seed.StudentEmail, seed.StudentPassword)
	token := first.cookie(auth.TokenCookie)
	require.NotEmpty(t, token)

	second := newBrowser(t, ts)
	u, _ := url.Parse(ts.URL)
	second.http.Jar.SetCookies(u, []*http.Cookie{{Name: auth.TokenCookie, Value: token, Path: "/"}})

	var snap session.Snapshot
	second.do(http.MethodGet, "/api/me", nil, &snap)
	assert.Equal(t, session.StateAuthenticated, snap.State)
	require.NotNil(t, snap.User)
	assert.Equal(t, seed.StudentEmail, snap.User.Email)
}

func TestSignup_ThenLoginNeedsConfirmation(t *testing.T) {
	b := newBrowser(t, newTestServer(t))
	creds := map[string]string{"email": "new@campus.edu", "password": "secret123"}

	res := b.do(http.MethodPost, "/auth/signup", creds, nil)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)

	var toasts []session.Toast
	b.do(http.MethodGet, "/api/toasts", nil, &toasts)
	require.Len(t, toasts, 1)
	assert.Equal(t, "Check your email", toasts[0].Title)

	res = b.do(http.MethodPost, "/auth/signup", creds, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	var body errorBody
	res = b.do(http.MethodPost, "/auth/login", creds, &body)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "email_not_confirmed", body.Error)
}

func TestConfirm_BadToken(t *testing.T) {
	b := newBrowser(t, newTestServer(t))

	res := b.do(http.MethodGet, "/auth/confirm?token=bogus&next=https://evil.example", nil, nil)
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.NotContains(t, res.Header.Get("Location"), "evil.example")

	var toasts []session.Toast
	b.do(http.MethodGet, "/api/toasts", nil, &toasts)
	require.Len(t, toasts, 1)
	assert.Equal(t, "Confirmation failed", toasts[0].Title)
}

func TestOAuth_UnknownProvider(t *testing.T) {
	b := newBrowser(t, newTestServer(t))

	res := b.do(http.MethodGet, "/auth/myspace/login", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

// =========================================================================
// ADMIN
// =========================================================================

func TestAdminFlow(t *testing.T) {
	b := newBrowser(t, newTestServer(t))

	res := b.do(http.MethodGet, "/api/admin/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	snap := b.login(seed.AdminEmail, seed.AdminPassword)
	assert.True(t, snap.IsAdmin)

	var stats struct {
		TotalEvents        int `json:"totalEvents"`
		TotalAnnouncements int `json:"totalAnnouncements"`
	}
	res = b.do(http.MethodGet, "/api/admin/stats", nil, &stats)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, len(seed.Events(seedNow())), stats.TotalEvents)
	assert.Equal(t, 3, stats.TotalAnnouncements)

	var invalid errorBody
	res = b.do(http.MethodPost, "/api/admin/events", map[string]any{"title": "x"}, &invalid)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.NotEmpty(t, invalid.Fields)

	form := map[string]any{
		"title":       "Chess Tournament",
		"description": "Swiss format, seven rounds, all levels welcome.",
		"date":        "2099-05-01",
		"time":        "9:30",
		"location":    "Library Annex",
		"category":    "club",
		"organizer":   "Chess Society",
	}
	var created model.Event
	res = b.do(http.MethodPost, "/api/admin/events", form, &created)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.NotEmpty(t, created.ID)

	var edit map[string]any
	res = b.do(http.MethodGet, "/api/admin/events/"+created.ID+"/form", nil, &edit)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "09:30", edit["time"])

	form["title"] = "Chess Open"
	var updated model.Event
	res = b.do(http.MethodPut, "/api/admin/events/"+created.ID, form, &updated)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Chess Open", updated.Title)

	var found []model.Event
	b.do(http.MethodGet, "/api/admin/events?q=chess", nil, &found)
	assert.Len(t, found, 1)

	// admins browse but cannot register
	res = b.do(http.MethodPost, "/api/events/"+created.ID+"/register", nil, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = b.do(http.MethodDelete, "/api/admin/events/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	res = b.do(http.MethodDelete, "/api/admin/events/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
