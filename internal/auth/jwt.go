// Package auth holds the credential primitives used by the identity provider:
// signed access tokens (JWT), password hashing (bcrypt) and OAuth sign-in.
//
// Nothing in here knows about sessions or browser clients. It only answers
// "is this token/password valid" and "who did GitHub say this is".
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	issuer = "campus-connect"

	// DefaultTokenTTL is how long an access token stays valid.
	DefaultTokenTTL = time.Hour
)

// ErrTokenExpired is returned by Validate for a well-formed token past its expiry.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenService signs and validates HS256 access tokens.
//
// JWT STRUCTURE:
// header.payload.signature, each part base64url-encoded. The payload is
// readable by anyone, so it carries only the account id and email. The
// signature is an HMAC over header and payload with the server secret, so a
// modified payload fails validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService rejects secrets shorter than 16 characters.
// A ttl of zero selects DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Claims is the validated content of an access token.
type Claims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Generate issues a token for the account using the service's TTL.
func (s *TokenService) Generate(userID, email string) (string, time.Time, error) {
	return s.GenerateWithDuration(userID, email, s.ttl)
}

// GenerateWithDuration issues a token with an explicit lifetime.
// Tests use a negative duration to obtain an already expired token.
func (s *TokenService) GenerateWithDuration(userID, email string, d time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(d)

	c := tokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			// A unique token id keeps two tokens minted in the same second distinct,
			// so revoking one never revokes the other.
			ID:        xid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}

	// NumericDate truncates to seconds; report what the token actually says.
	return signed, c.ExpiresAt.Time, nil
}

// Validate parses tokenStr and checks signature, algorithm, issuer and expiry.
//
// ALGORITHM PINNING:
// WithValidMethods rejects tokens whose header names any algorithm other than
// HS256, including "none".
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}

	return &Claims{
		UserID:    c.Subject,
		Email:     c.Email,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
