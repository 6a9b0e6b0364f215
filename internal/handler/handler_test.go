package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/identity"
	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/query"
	"github.com/sakif/campus-connect/internal/ratelimit"
)

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", apperror.ValidationFailed("title", "too short"), http.StatusBadRequest, "validation_error"},
		{"not found", apperror.NotFound("event", "x"), http.StatusNotFound, "not_found"},
		{"unauthorized", apperror.Unauthorized("sign in"), http.StatusUnauthorized, "unauthorized"},
		{"forbidden", apperror.Forbidden("admins cannot register"), http.StatusForbidden, "forbidden"},
		{"conflict", apperror.Conflict("already registered"), http.StatusConflict, "conflict"},
		{"wrapped", fmt.Errorf("service: %w", apperror.NotFound("event", "x")), http.StatusNotFound, "not_found"},
		{"plain error", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			body := decodeError(t, rr)
			assert.Equal(t, tt.kind, body.Error)
			assert.NotContains(t, body.Message, "disk on fire")
		})
	}
}

func TestWriteError_Fields(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, apperror.Invalid([]apperror.FieldError{
		{Field: "title", Message: "Title must be at least 2 characters."},
		{Field: "time", Message: "Time must be in 24-hour format (HH:MM)."},
	}))

	body := decodeError(t, rr)
	require.Len(t, body.Fields, 2)
	assert.Equal(t, "title", body.Fields[0].Field)
}

func TestWriteAuthError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{identity.ErrInvalidCredentials, http.StatusUnauthorized},
		{identity.ErrEmailNotConfirmed, http.StatusForbidden},
		{identity.ErrEmailTaken, http.StatusConflict},
		{identity.ErrUnknownProvider, http.StatusNotFound},
		{identity.ErrInvalidOAuthState, http.StatusBadRequest},
		{ratelimit.ErrTooManyAttempts, http.StatusTooManyRequests},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeAuthError(rr, tt.err)

			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, identity.PublicMessage(tt.err), decodeError(t, rr).Message)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type form struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x"}`, false},
		{"malformed", `{"name":`, true},
		{"unknown field", `{"name":"x","admin":true}`, true},
		{"two objects", `{"name":"x"}{"name":"y"}`, true},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst form
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", dst.Name)
		})
	}
}

func TestCriteriaFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/events?q=hack&category=Tech,art&category=all&sort=popularity", nil)

	c, err := criteriaFromQuery(req)
	require.NoError(t, err)
	assert.Equal(t, "hack", c.Query)
	assert.Equal(t, []model.Category{model.CategoryTech, model.CategoryArt}, c.Categories)
	assert.Equal(t, query.SortPopularity, c.Sort)

	_, err = criteriaFromQuery(httptest.NewRequest(http.MethodGet, "/api/events?sort=random", nil))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = criteriaFromQuery(httptest.NewRequest(http.MethodGet, "/api/events?category=cooking", nil))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestSafeRedirect(t *testing.T) {
	h := NewAuthHandler(nil, "https://campus.example/", true, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := map[string]string{
		"":                                "https://campus.example/",
		"/dashboard":                      "/dashboard",
		"//evil.example/x":                "https://campus.example/",
		"https://evil.example/":           "https://campus.example/",
		"https://campus.example/login":    "https://campus.example/login",
		"https://campus.example.evil.com": "https://campus.example/",
	}
	for in, want := range tests {
		assert.Equal(t, want, h.safeRedirect(in), in)
	}
}

func TestNotFoundView(t *testing.T) {
	rr := httptest.NewRecorder()
	NotFound(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	body := decodeError(t, rr)
	assert.Equal(t, "not_found", body.Error)
	assert.Contains(t, body.Message, "/missing")
}

func TestCategories(t *testing.T) {
	h := NewEventHandler(nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rr := httptest.NewRecorder()
	h.HandleCategories(rr, httptest.NewRequest(http.MethodGet, "/api/categories", nil))

	var out []categoryResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	require.Len(t, out, len(model.Categories()))
	assert.Equal(t, "Academic", out[0].Label)
}

func TestHandlersWithoutClient(t *testing.T) {
	h := NewMeHandler(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rr := httptest.NewRecorder()
	h.HandleMe(rr, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
