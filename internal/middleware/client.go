package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/campus-connect/internal/auth"
	"github.com/sakif/campus-connect/internal/client"
)

// ClientCookie identifies the browser's client in the registry.
const ClientCookie = "cc_client"

// clientCookieTTL only bounds the cookie; the registry evicts idle clients much sooner.
const clientCookieTTL = 30 * 24 * time.Hour

// RefreshMargin is how close to expiry a session's token may get before a
// request refreshes it.
const RefreshMargin = 10 * time.Minute

// Clients attaches the browser's client to the request context. A browser
// without a live client gets a new one, resumed from its token cookie when
// it has one. Every request also gives the session a chance to notice that
// its token has expired, and renews a token that is about to expire.
func Clients(registry *client.Registry, secure bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var c *client.Client
			if cookie, err := r.Cookie(ClientCookie); err == nil {
				c, _ = registry.Get(cookie.Value)
			}

			if c == nil {
				var err error
				c, err = registry.Create(r.Context(), auth.TokenFromRequest(r))
				if err != nil {
					logger.Error("creating client", slog.String("error", err.Error()))
					writeStatus(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookie,
					Value:    c.ID,
					Path:     "/",
					MaxAge:   int(clientCookieTTL.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			refreshed, err := c.Session.CheckSession(r.Context(), RefreshMargin)
			if err != nil {
				logger.Warn("checking session", slog.String("error", err.Error()))
			}
			if refreshed != nil {
				auth.SetTokenCookie(w, refreshed.AccessToken, refreshed.ExpiresAt, secure)
			}

			next.ServeHTTP(w, r.WithContext(client.WithClient(r.Context(), c)))
		})
	}
}

// RequireUser rejects requests from signed-out clients with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := client.FromContext(r.Context())
		if !ok || c.Session.UserID() == "" {
			writeStatus(w, http.StatusUnauthorized, "unauthorized", "please sign in to continue")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from clients that are not signed in as an
// admin. It waits for a pending profile fetch before deciding.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := client.FromContext(r.Context())
		if !ok || c.Session.UserID() == "" {
			writeStatus(w, http.StatusUnauthorized, "unauthorized", "please sign in to continue")
			return
		}
		if err := c.Session.Settle(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable", "please try again")
			return
		}
		if !c.Session.IsAdmin() {
			writeStatus(w, http.StatusForbidden, "forbidden", "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeStatus writes the same error shape as the handlers.
func writeStatus(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": message})
}
