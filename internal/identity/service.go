package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sakif/campus-connect/internal/apperror"
	"github.com/sakif/campus-connect/internal/auth"
	"github.com/sakif/campus-connect/internal/mail"
	"github.com/sakif/campus-connect/internal/model"
	"github.com/sakif/campus-connect/internal/ratelimit"
	"github.com/sakif/campus-connect/internal/repository"
)

// AccountHook runs after an account is created. displayName and avatarURL are
// the best guesses available at creation time (an email prefix, or what the
// OAuth provider reported). The server uses it to create the profile row.
type AccountHook func(ctx context.Context, account *model.Account, displayName, avatarURL string) error

// Config collects the Service's collaborators.
type Config struct {
	Accounts  repository.AccountRepository
	Passwords *auth.PasswordService
	Tokens    *auth.TokenService
	// OAuth maps a provider name ("github") to its implementation.
	OAuth   map[string]auth.OAuthProvider
	Mailer  mail.Sender
	Limiter ratelimit.Limiter
	// PublicURL is the externally visible base URL used in confirmation links.
	PublicURL        string
	OnAccountCreated AccountHook
	Logger           *slog.Logger
}

// Service is the identity authority shared by every Client.
type Service struct {
	accounts  repository.AccountRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	oauth     map[string]auth.OAuthProvider
	mailer    mail.Sender
	limiter   ratelimit.Limiter
	publicURL string
	onCreated AccountHook
	logger    *slog.Logger

	// revoked holds signed-out access tokens until they would have expired.
	mu      sync.Mutex
	revoked map[string]time.Time

	now func() time.Time
}

func NewService(cfg Config) *Service {
	return &Service{
		accounts:  cfg.Accounts,
		passwords: cfg.Passwords,
		tokens:    cfg.Tokens,
		oauth:     cfg.OAuth,
		mailer:    cfg.Mailer,
		limiter:   cfg.Limiter,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		onCreated: cfg.OnAccountCreated,
		logger:    cfg.Logger,
		revoked:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// NewClient returns a fresh, signed-out client bound to this service.
func (s *Service) NewClient() *Client {
	return &Client{
		svc:       s,
		listeners: make(map[int]Listener),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ===== ACCOUNTS =====

// CreateAccount creates a password account directly. confirmed=true skips the
// email confirmation step; it is used to seed the demo accounts.
func (s *Service) CreateAccount(ctx context.Context, email, password string, confirmed bool) (*model.Account, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		Email:          normalizeEmail(email),
		PasswordHash:   hash,
		EmailConfirmed: confirmed,
	}
	if !confirmed {
		if account.ConfirmationToken, err = newConfirmationToken(); err != nil {
			return nil, err
		}
	}

	if err := s.insertAccount(ctx, account, displayNameFromEmail(account.Email), ""); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) insertAccount(ctx context.Context, account *model.Account, displayName, avatarURL string) error {
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return ErrEmailTaken
		}
		return fmt.Errorf("identity: creating account: %w", err)
	}

	if s.onCreated != nil {
		if err := s.onCreated(ctx, account, displayName, avatarURL); err != nil {
			return fmt.Errorf("identity: account created hook: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "account created",
		slog.String("userID", account.ID),
		slog.Bool("confirmed", account.EmailConfirmed),
	)
	return nil
}

// displayNameFromEmail turns "jane.doe@campus.edu" into "jane.doe".
func displayNameFromEmail(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

// newConfirmationToken returns 32 random bytes, hex encoded. xid is not used
// here because its IDs are predictable from the creation time.
func newConfirmationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("identity: generating confirmation token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ===== PASSWORD SIGN-IN =====

func (s *Service) signInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	if err := s.limiter.Hit(ctx, email); err != nil {
		if errors.Is(err, ratelimit.ErrTooManyAttempts) {
			s.logger.WarnContext(ctx, "login rate limited", slog.String("email", email))
		}
		return nil, err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("identity: loading account: %w", err)
	}

	// OAuth-only accounts have no password to compare against.
	if account.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.passwords.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !account.EmailConfirmed {
		return nil, ErrEmailNotConfirmed
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "resetting login attempts failed", slog.String("error", err.Error()))
	}
	return s.issue(account)
}

// ===== SIGN-UP =====

func (s *Service) signUp(ctx context.Context, email, password, redirectURL string) error {
	account, err := s.CreateAccount(ctx, email, password, false)
	if err != nil {
		return err
	}

	link := s.publicURL + "/auth/confirm?" + url.Values{
		"token": {account.ConfirmationToken},
		"next":  {redirectURL},
	}.Encode()

	subject, body, err := mail.ConfirmationEmail(link)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, account.Email, subject, body); err != nil {
		return fmt.Errorf("identity: sending confirmation email: %w", err)
	}
	return nil
}

// ConfirmEmail consumes a single-use confirmation token and marks the account
// as confirmed.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (*model.Account, error) {
	account, err := s.accounts.GetAccountByConfirmationToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrInvalidConfirmation
		}
		return nil, fmt.Errorf("identity: loading account by token: %w", err)
	}

	account.EmailConfirmed = true
	account.ConfirmationToken = ""
	if err := s.accounts.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("identity: confirming account %s: %w", account.ID, err)
	}

	s.logger.InfoContext(ctx, "email confirmed", slog.String("userID", account.ID))
	return account, nil
}

// ===== OAUTH =====

func (s *Service) oauthProvider(name string) (auth.OAuthProvider, error) {
	p, ok := s.oauth[name]
	if !ok || p == nil {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// signInWithOAuth exchanges the code and finds or creates the account.
//
// ACCOUNT LINKING:
// A GitHub identity is matched by GitHub id first. If none matches but an
// account with the same email exists, the GitHub id is attached to it. The
// provider vouches for the email, so the account also counts as confirmed.
func (s *Service) signInWithOAuth(ctx context.Context, providerName, code string) (*Session, error) {
	p, err := s.oauthProvider(providerName)
	if err != nil {
		return nil, err
	}

	ou, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("identity: %s sign-in: %w", providerName, err)
	}

	account, err := s.accounts.GetAccountByGitHubID(ctx, ou.ID)
	if err == nil {
		return s.issue(account)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("identity: loading account by github id: %w", err)
	}

	email := normalizeEmail(ou.Email)
	if email != "" {
		account, err = s.accounts.GetAccountByEmail(ctx, email)
		switch {
		case err == nil:
			account.GitHubID = ou.ID
			account.EmailConfirmed = true
			account.ConfirmationToken = ""
			if err := s.accounts.UpdateAccount(ctx, account); err != nil {
				return nil, fmt.Errorf("identity: linking github account: %w", err)
			}
			s.logger.InfoContext(ctx, "github identity linked", slog.String("userID", account.ID))
			return s.issue(account)
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, fmt.Errorf("identity: loading account by email: %w", err)
		}
	}

	if email == "" {
		// GitHub users without any verified email still need a unique address.
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", ou.ID, strings.ToLower(ou.Login))
	}
	account = &model.Account{
		Email:          email,
		GitHubID:       ou.ID,
		EmailConfirmed: true,
	}
	name := ou.Name
	if name == "" {
		name = ou.Login
	}
	if err := s.insertAccount(ctx, account, name, ou.AvatarURL); err != nil {
		return nil, err
	}
	return s.issue(account)
}

// ===== TOKENS =====

func (s *Service) issue(account *model.Account) (*Session, error) {
	token, expiresAt, err := s.tokens.Generate(account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User:        User{ID: account.ID, Email: account.Email},
	}, nil
}

// sessionFromToken rebuilds a session from a persisted access token. It
// returns ErrNoSession for expired, revoked or otherwise invalid tokens and for
// tokens whose account no longer exists.
func (s *Service) sessionFromToken(ctx context.Context, token string) (*Session, error) {
	if token == "" || s.isRevoked(token) {
		return nil, ErrNoSession
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, ErrNoSession
	}

	if _, err := s.accounts.GetAccountByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("identity: loading account: %w", err)
	}

	return &Session{
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt,
		User:        User{ID: claims.UserID, Email: claims.Email},
	}, nil
}

func (s *Service) refresh(ctx context.Context, current *Session) (*Session, error) {
	account, err := s.accounts.GetAccountByID(ctx, current.User.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("identity: loading account: %w", err)
	}
	next, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	s.revoke(current)
	return next, nil
}

func (s *Service) revoke(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for tok, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, tok)
		}
	}
	s.revoked[session.AccessToken] = session.ExpiresAt
}

func (s *Service) isRevoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[token]
	return ok
}
