package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"
)

// fakeGitHub serves the three endpoints the provider talks to.
func fakeGitHub(t *testing.T, user map[string]any, emails []map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "bad_verification_code"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "gh-token", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(user)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(emails)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGitHubProvider(srv *httptest.Server) *GitHubProvider {
	return newGitHubProvider("client-id", "client-secret", "http://localhost/auth/github/callback",
		oauth2.Endpoint{
			AuthURL:  srv.URL + "/login/oauth/authorize",
			TokenURL: srv.URL + "/login/oauth/access_token",
		},
		srv.URL,
	)
}

func TestGitHubProvider_AuthURL(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost/auth/github/callback")

	u, err := url.Parse(p.AuthURL("state-123"))
	if err != nil {
		t.Fatalf("AuthURL() is not a URL: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "state-123" {
		t.Errorf("state = %q, want %q", q.Get("state"), "state-123")
	}
	if q.Get("client_id") != "client-id" {
		t.Errorf("client_id = %q, want %q", q.Get("client_id"), "client-id")
	}
}

func TestGitHubProvider_Exchange(t *testing.T) {
	srv := fakeGitHub(t,
		map[string]any{"id": 42, "login": "octo", "name": "Octo Cat", "email": "octo@campus.edu"},
		nil,
	)

	user, err := newTestGitHubProvider(srv).Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if user.ID != 42 || user.Login != "octo" || user.Email != "octo@campus.edu" {
		t.Errorf("Exchange() = %+v", user)
	}
}

func TestGitHubProvider_Exchange_PrivateEmail(t *testing.T) {
	srv := fakeGitHub(t,
		map[string]any{"id": 7, "login": "shy"},
		[]map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "shy@campus.edu", "primary": true, "verified": true},
		},
	)

	user, err := newTestGitHubProvider(srv).Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if user.Email != "shy@campus.edu" {
		t.Errorf("Email = %q, want the primary verified address", user.Email)
	}
}

func TestGitHubProvider_Exchange_BadCode(t *testing.T) {
	srv := fakeGitHub(t, map[string]any{"id": 1}, nil)

	if _, err := newTestGitHubProvider(srv).Exchange(context.Background(), "bad-code"); err == nil {
		t.Fatal("Exchange() should fail for a rejected code")
	}
}
