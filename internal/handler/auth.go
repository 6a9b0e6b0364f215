package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/campus-connect/internal/auth"
	"github.com/sakif/campus-connect/internal/client"
	"github.com/sakif/campus-connect/internal/identity"
	"github.com/sakif/campus-connect/internal/ratelimit"
	"github.com/sakif/campus-connect/internal/session"
	"github.com/sakif/campus-connect/internal/validate"
)

// AuthHandler drives the sign-in flows of the browser's session manager.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin          → password sign-in, sets the token cookie
//   - HandleSignup         → creates an unconfirmed account
//   - HandleConfirm        → consumes the emailed confirmation link
//   - HandleLogout         → signs out and clears the token cookie
//   - HandleOAuthLogin     → redirects to the provider's consent page
//   - HandleOAuthCallback  → completes the provider sign-in
//
// The session manager already reports failures to the client's toast inbox;
// these handlers only pick a status code and echo the same message.
type AuthHandler struct {
	identity  *identity.Service
	publicURL string
	secure    bool
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secure marks cookies Secure, which
// should be on whenever publicURL is https.
func NewAuthHandler(svc *identity.Service, publicURL string, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		identity:  svc,
		publicURL: strings.TrimRight(publicURL, "/"),
		secure:    secure,
		logger:    logger,
	}
}

func mustClient(w http.ResponseWriter, r *http.Request) (*client.Client, bool) {
	c, ok := client.FromContext(r.Context())
	if !ok {
		writeError(w, errors.New("handler: no client on request"))
		return nil, false
	}
	return c, true
}

// writeAuthError answers a provider failure with the message already shown as a toast.
func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal_error"
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		status, kind = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, identity.ErrEmailNotConfirmed):
		status, kind = http.StatusForbidden, "email_not_confirmed"
	case errors.Is(err, identity.ErrEmailTaken):
		status, kind = http.StatusConflict, "email_taken"
	case errors.Is(err, identity.ErrUnknownProvider):
		status, kind = http.StatusNotFound, "unknown_provider"
	case errors.Is(err, identity.ErrInvalidOAuthState), errors.Is(err, identity.ErrInvalidConfirmation):
		status, kind = http.StatusBadRequest, "invalid_link"
	case errors.Is(err, ratelimit.ErrTooManyAttempts):
		status, kind = http.StatusTooManyRequests, "too_many_attempts"
	}
	writeJSON(w, status, ErrorResponse{Error: kind, Message: identity.PublicMessage(err)})
}

func (h *AuthHandler) readCredentials(w http.ResponseWriter, r *http.Request) (validate.Credentials, bool) {
	var creds validate.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, err)
		return creds, false
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if err := validate.Error(validate.CheckCredentials(creds)); err != nil {
		writeError(w, err)
		return creds, false
	}
	return creds, true
}

// setSessionCookie persists the client's current access token, if any.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, snap session.Snapshot) {
	if snap.Session == nil {
		return
	}
	auth.SetTokenCookie(w, snap.Session.AccessToken, snap.Session.ExpiresAt, h.secure)
}

// HandleLogin signs in with email and password.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"email": "student@campus.edu", "password": "student123"}
// RESPONSE: the session snapshot, with the profile resolved.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClient(w, r)
	if !ok {
		return
	}
	creds, ok := h.readCredentials(w, r)
	if !ok {
		return
	}

	if err := c.Session.SignInWithPassword(r.Context(), creds.Email, creds.Password); err != nil {
		writeAuthError(w, err)
		return
	}
	if err := c.Session.Settle(r.Context()); err != nil {
		h.logger.Warn("waiting for profile", slog.String("error", err.Error()))
	}

	snap := c.Session.Snapshot()
	h.setSessionCookie(w, snap)
	writeJSON(w, http.StatusOK, snap)
}

// HandleSignup creates an account and mails its confirmation link. It does
// not sign in.
//
// HTTP: POST /auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClient(w, r)
	if !ok {
		return
	}
	creds, ok := h.readCredentials(w, r)
	if !ok {
		return
	}

	if err := c.Session.SignUp(r.Context(), creds.Email, creds.Password); err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Check your email for a confirmation link.",
	})
}

// HandleConfirm consumes a confirmation link and sends the browser on to
// the page it names.
//
// HTTP: GET /auth/confirm?token=...&next=...
func (h *AuthHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClient(w, r)
	if !ok {
		return
	}

	next := h.safeRedirect(r.URL.Query().Get("next"))
	if _, err := h.identity.ConfirmEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		h.logger.Info("email confirmation rejected", slog.String("error", err.Error()))
		c.Inbox().Push(session.Toast{
			Title:       "Confirmation failed",
			Description: identity.PublicMessage(err),
			Variant:     session.VariantDestructive,
		})
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	c.Inbox().Push(session.Toast{
		Title:       "Email confirmed",
		Description: "Your account is active. You can sign in now.",
	})
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// HandleLogout signs out. The local session is gone even when the provider
// call fails, so the cookie is always cleared.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClient(w, r)
	if !ok {
		return
	}

	err := c.Session.Logout(r.Context())
	auth.ClearTokenCookie(w, h.secure)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleOAuthLogin redirects the browser to the provider.
//
// HTTP: GET /auth/{provider}/login
func (h *AuthHandler) HandleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClient(w, r)
	if !ok {
		return
	}

	target, err := c.Session.SignInWithOAuth(r.Context(), chi.URLParam(r, "provider"))
	if err != nil {
		writeAuthError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// HandleOAuthCallback completes an OAuth sign-in and returns the browser to
// the app. Failures are reported as toasts on the sign-in page.
//
// HTTP: GET /auth/{provider}/callback?code=...&state=...
func (h *AuthHandler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	c, ok := mustClient(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	failed := h.publicURL + "/login"

	if denied := q.Get("error"); denied != "" {
		h.logger.Info("oauth authorization denied", slog.String("error", denied))
		c.Inbox().Push(session.Toast{
			Title:       "Error signing in",
			Description: "Sign-in was cancelled.",
			Variant:     session.VariantDestructive,
		})
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	_, redirectURL, err := c.Identity.CompleteOAuth(r.Context(), chi.URLParam(r, "provider"), q.Get("state"), q.Get("code"))
	if err != nil {
		h.logger.Warn("oauth callback failed", slog.String("error", err.Error()))
		c.Inbox().Push(session.Toast{
			Title:       "Error signing in",
			Description: identity.PublicMessage(err),
			Variant:     session.VariantDestructive,
		})
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	h.setSessionCookie(w, c.Session.Snapshot())
	http.Redirect(w, r, h.safeRedirect(redirectURL), http.StatusSeeOther)
}

// safeRedirect keeps redirects on this site. Anything else goes to the home page.
func (h *AuthHandler) safeRedirect(target string) string {
	switch {
	case target == "":
		return h.publicURL + "/"
	case strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//"):
		return target
	case target == h.publicURL || strings.HasPrefix(target, h.publicURL+"/"):
		return target
	}
	return h.publicURL + "/"
}
