// Package config reads the server configuration from the environment.
//
// An optional .env file in the working directory is loaded first. Variables
// already set in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StoreKind selects the repository backend.
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreSQLite StoreKind = "sqlite"
)

type Config struct {
	Port  int
	Store StoreKind
	// DBPath is the SQLite file. Only used with StoreSQLite.
	DBPath string

	JWTSecret string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// PublicURL is the externally visible base URL, used for links in mail
	// and as the landing page after sign-in.
	PublicURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	// RedisAddr enables the shared login attempt limiter. Empty means in-process.
	RedisAddr        string
	LoginMaxAttempts int
	LoginWindow      time.Duration

	// ClientIdleTTL is how long an idle browser client is kept in memory.
	ClientIdleTTL time.Duration
	// MaxClients caps the browser clients held in memory at once.
	MaxClients int

	// Seed loads the demo accounts, events and announcements on start.
	Seed bool

	LogLevel  slog.Level
	LogFormat string
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// SMTPEnabled reports whether mail is sent over SMTP rather than logged.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// Load reads .env, when present, and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		Port:               r.int("PORT", 8080),
		Store:              StoreKind(strings.ToLower(r.str("STORE", string(StoreMemory)))),
		DBPath:             r.str("DB_PATH", "data/campus.db"),
		JWTSecret:          r.str("JWT_SECRET", ""),
		GitHubClientID:     r.str("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: r.str("GITHUB_CLIENT_SECRET", ""),
		SMTPHost:           r.str("SMTP_HOST", ""),
		SMTPPort:           r.int("SMTP_PORT", 587),
		SMTPUser:           r.str("SMTP_USER", ""),
		SMTPPassword:       r.str("SMTP_PASSWORD", ""),
		MailFrom:           r.str("MAIL_FROM", "CampusConnect <no-reply@campusconnect.local>"),
		RedisAddr:          r.str("REDIS_ADDR", ""),
		LoginMaxAttempts:   r.int("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:        r.duration("LOGIN_WINDOW", 15*time.Minute),
		ClientIdleTTL:      r.duration("CLIENT_IDLE_TTL", 30*time.Minute),
		MaxClients:         r.int("MAX_CLIENTS", 10000),
		Seed:               r.bool("SEED", true),
		LogFormat:          strings.ToLower(r.str("LOG_FORMAT", "text")),
	}
	cfg.PublicURL = strings.TrimRight(r.str("PUBLIC_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	cfg.GitHubCallbackURL = r.str("GITHUB_CALLBACK_URL", cfg.PublicURL+"/auth/github/callback")

	if lvl := r.str("LOG_LEVEL", "info"); lvl != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			r.errs = append(r.errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.Store {
	case StoreMemory, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StoreSQLite, c.Store))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.LoginMaxAttempts <= 0 {
		errs = append(errs, errors.New("LOGIN_MAX_ATTEMPTS must be positive"))
	}
	if c.LoginWindow <= 0 {
		errs = append(errs, errors.New("LOGIN_WINDOW must be positive"))
	}
	if c.ClientIdleTTL <= 0 {
		errs = append(errs, errors.New("CLIENT_IDLE_TTL must be positive"))
	}
	if c.MaxClients <= 0 {
		errs = append(errs, errors.New("MAX_CLIENTS must be positive"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger described by LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// reader collects parse errors so that every bad key is reported at once.
type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}
