package auth

import (
	"net/http"
	"time"
)

// TokenCookie holds the access token so a returning browser can resume its session.
const TokenCookie = "token"

// SetTokenCookie stores token in an HttpOnly cookie that expires with the token.
//
// HttpOnly keeps page scripts from reading it. SameSite=Lax sends it on
// top-level navigations (the OAuth redirect back to us) but not on cross-site
// subrequests.
func SetTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie tells the browser to drop the token cookie immediately.
func ClearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the token cookie's value, or "" when absent.
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(TokenCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
