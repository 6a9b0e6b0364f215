// Package server is the composition root: it builds the store, the identity
// provider, the services and the client registry from the config, and mounts
// the handlers on a chi router.
//
// ROUTE STRUCTURE:
//
//	GET    /api/events                      → events page (search, filter, sort)
//	GET    /api/events/featured             → home page, featured events
//	GET    /api/events/upcoming             → home page, upcoming events
//	GET    /api/events/{id}                 → event details
//	POST   /api/events/{id}/register        → register            [user]
//	GET    /api/categories                  → category filter
//	GET    /api/announcements               → announcements
//	GET    /api/me                          → session snapshot
//	GET    /api/toasts                      → pending toasts
//	GET    /api/me/registrations            → my registrations    [user]
//	GET    /api/dashboard                   → student dashboard   [user]
//	GET    /api/notifications               → notification list   [user]
//	POST   /api/notifications/{id}/read     → mark one read       [user]
//	POST   /api/notifications/read-all      → mark all read       [user]
//	GET    /api/admin/stats                 → admin dashboard     [admin]
//	GET    /api/admin/events                → manage events       [admin]
//	POST   /api/admin/events                → create event        [admin]
//	GET    /api/admin/events/{id}/form      → edit form           [admin]
//	PUT    /api/admin/events/{id}           → update event        [admin]
//	DELETE /api/admin/events/{id}           → delete event        [admin]
//	POST   /auth/login, /auth/signup, /auth/logout
//	GET    /auth/confirm
//	GET    /auth/{provider}/login, /auth/{provider}/callback
//
// Everything else answers with the JSON not-found view.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/campus-connect/internal/auth"
	"github.com/sakif/campus-connect/internal/client"
	"github.com/sakif/campus-connect/internal/config"
	"github.com/sakif/campus-connect/internal/handler"
	"github.com/sakif/campus-connect/internal/identity"
	"github.com/sakif/campus-connect/internal/mail"
	"github.com/sakif/campus-connect/internal/middleware"
	"github.com/sakif/campus-connect/internal/ratelimit"
	"github.com/sakif/campus-connect/internal/repository"
	"github.com/sakif/campus-connect/internal/repository/memory"
	sqliteRepo "github.com/sakif/campus-connect/internal/repository/sqlite"
	"github.com/sakif/campus-connect/internal/seed"
	"github.com/sakif/campus-connect/internal/service"
)

// Server owns the router and every long-lived resource behind it.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	registry *client.Registry

	// closers run in reverse order on shutdown.
	closers []func() error
}

// New wires the application. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Server, err error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	store, err := s.openStore()
	if err != nil {
		return nil, err
	}

	limiter, err := s.newLimiter(ctx)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, 0)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	profiles := service.NewProfileService(store, logger)
	ident := identity.NewService(identity.Config{
		Accounts:         store,
		Passwords:        auth.NewPasswordService(),
		Tokens:           tokens,
		OAuth:            s.oauthProviders(),
		Mailer:           s.newMailer(),
		Limiter:          limiter,
		PublicURL:        cfg.PublicURL,
		OnAccountCreated: profiles.Provision,
		Logger:           logger,
	})

	if cfg.Seed {
		if err := seed.Load(ctx, seed.Deps{Identity: ident, Profiles: profiles, Store: store, Logger: logger}, time.Now()); err != nil {
			return nil, fmt.Errorf("server: seeding: %w", err)
		}
	}

	s.registry = client.NewRegistry(client.RegistryConfig{
		Identity:          ident,
		Profiles:          store,
		Events:            store,
		Logger:            logger,
		IdleTTL:           cfg.ClientIdleTTL,
		MaxClients:        cfg.MaxClients,
		OAuthRedirectURL:  cfg.PublicURL + "/dashboard",
		SignUpRedirectURL: cfg.PublicURL + "/login",
	})
	s.closers = append(s.closers, func() error {
		s.registry.Close()
		return nil
	})

	s.routes(store, ident)
	return s, nil
}

// openStore returns the configured backend.
func (s *Server) openStore() (repository.Store, error) {
	if s.config.Store == config.StoreMemory {
		s.logger.Info("using in-memory store")
		return memory.New(), nil
	}

	dir := filepath.Dir(s.config.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("server: creating database directory %s: %w", dir, err)
	}
	db, err := sqliteRepo.New(s.config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}
	s.closers = append(s.closers, db.Close)
	s.logger.Info("using sqlite store", slog.String("path", s.config.DBPath))
	return db, nil
}

// newLimiter uses Redis when REDIS_ADDR is set, so attempt counts are shared
// between instances.
func (s *Server) newLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if s.config.RedisAddr == "" {
		return ratelimit.NewMemory(s.config.LoginMaxAttempts, s.config.LoginWindow), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: s.config.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("server: connecting to redis at %s: %w", s.config.RedisAddr, err)
	}
	s.closers = append(s.closers, rdb.Close)
	s.logger.Info("login limiter backed by redis", slog.String("addr", s.config.RedisAddr))
	return ratelimit.NewRedis(rdb, ratelimit.LoginKeyPrefix, s.config.LoginMaxAttempts, s.config.LoginWindow), nil
}

func (s *Server) oauthProviders() map[string]auth.OAuthProvider {
	providers := make(map[string]auth.OAuthProvider)
	if s.config.GitHubEnabled() {
		providers["github"] = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	} else {
		s.logger.Warn("GITHUB_CLIENT_ID not set, GitHub sign-in is disabled")
	}
	return providers
}

func (s *Server) newMailer() mail.Sender {
	if !s.config.SMTPEnabled() {
		s.logger.Warn("SMTP_HOST not set, confirmation mail is logged instead of sent")
		return mail.NewLog(s.logger)
	}
	return mail.NewSMTP(mail.SMTPConfig{
		Host:     s.config.SMTPHost,
		Port:     s.config.SMTPPort,
		Username: s.config.SMTPUser,
		Password: s.config.SMTPPassword,
		From:     s.config.MailFrom,
	})
}

// routes mounts the middleware and handlers.
//
// MIDDLEWARE ORDER:
// RequestID and RealIP first so the logger sees them, Recoverer inside the
// logger so a panic is logged as a 500, and Clients last so every handler
// finds its client on the context.
func (s *Server) routes(store repository.Store, ident *identity.Service) {
	loc := time.UTC

	events := service.NewEventService(store, loc, s.logger)
	registrations := service.NewRegistrationService(store, store, store, s.logger)
	announcements := service.NewAnnouncementService(store, s.logger)
	dashboard := service.NewDashboardService(events, registrations, announcements)

	secure := strings.HasPrefix(s.config.PublicURL, "https://")

	eventHandler := handler.NewEventHandler(events, registrations, announcements, s.logger)
	meHandler := handler.NewMeHandler(registrations, dashboard, s.logger)
	adminHandler := handler.NewAdminHandler(events, dashboard, s.logger)
	authHandler := handler.NewAuthHandler(ident, s.config.PublicURL, secure, s.logger)

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Clients(s.registry, secure, s.logger))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", eventHandler.HandleList)
		r.Get("/events/featured", eventHandler.HandleFeatured)
		r.Get("/events/upcoming", eventHandler.HandleUpcoming)
		r.Get("/events/{id}", eventHandler.HandleGet)
		r.Get("/categories", eventHandler.HandleCategories)
		r.Get("/announcements", eventHandler.HandleAnnouncements)
		r.Get("/me", meHandler.HandleMe)
		r.Get("/toasts", meHandler.HandleToasts)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			r.Post("/events/{id}/register", eventHandler.HandleRegister)
			r.Get("/me/registrations", meHandler.HandleRegistrations)
			r.Get("/dashboard", meHandler.HandleDashboard)
			r.Get("/notifications", meHandler.HandleNotifications)
			r.Post("/notifications/read-all", meHandler.HandleMarkAllRead)
			r.Post("/notifications/{id}/read", meHandler.HandleMarkRead)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/stats", adminHandler.HandleStats)
			r.Get("/events", adminHandler.HandleSearch)
			r.Post("/events", adminHandler.HandleCreate)
			r.Get("/events/{id}/form", adminHandler.HandleForm)
			r.Put("/events/{id}", adminHandler.HandleUpdate)
			r.Delete("/events/{id}", adminHandler.HandleDelete)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/confirm", authHandler.HandleConfirm)
		r.Get("/{provider}/login", authHandler.HandleOAuthLogin)
		r.Get("/{provider}/callback", authHandler.HandleOAuthCallback)
	})
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the registry, the limiter and the store.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("closing resource", slog.String("error", err.Error()))
		}
	}
	s.closers = nil
}

// Start serves until SIGINT or SIGTERM and then shuts down gracefully: stop
// accepting connections, give in-flight requests 30 seconds, then close the
// registry and the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go s.registry.Run(sweepCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.PublicURL),
			slog.String("store", string(s.config.Store)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
