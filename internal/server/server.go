// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer. It decides:
//   - which user store backs the user record accessor
//   - which URL patterns map to which handler functions
//   - which guard runs in front of which page
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go creates: config.Config, slog.Logger, supabase.Client (service role)
//	Server.New() creates: UserRepository → UserService
//	                      storage bucket → ImageService
//	                      services → AuthHandler, AccountHandler, PageHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/config"
	"github.com/sakif/account-portal/internal/handler"
	"github.com/sakif/account-portal/internal/middleware"
	"github.com/sakif/account-portal/internal/repository"
	"github.com/sakif/account-portal/internal/repository/rest"
	sqliteRepo "github.com/sakif/account-portal/internal/repository/sqlite"
	"github.com/sakif/account-portal/internal/service"
	"github.com/sakif/account-portal/internal/supabase"
)

// shutdownTimeout is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// With store.driver = sqlite the Server owns a database connection. It is
// closed when Start returns so pending WAL writes are flushed.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	base   *supabase.Client
	closer io.Closer // nil when the store needs no cleanup
}

// New creates a new Server.
//
// base is the process-lifetime provider client built with the service-role
// key. Every request gets its own copy bound to the request's cookies (see
// middleware.Backend).
func New(cfg *config.Config, base *supabase.Client, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		base:   base,
	}

	repo, err := s.openStore()
	if err != nil {
		return nil, err
	}

	s.setupRoutes(repo)
	return s, nil
}

// openStore picks the user store named by store.driver.
func (s *Server) openStore() (repository.UserRepository, error) {
	switch s.config.Store.Driver {
	case config.StoreSQLite:
		db, err := sqliteRepo.New(s.config.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		s.closer = db
		return db, nil
	default:
		return rest.NewUserRepo(s.base), nil
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /layout                         → layout loader (session + user row)
// GET    /account/login                  → login page        [anonymous only]
// POST   /account/login/email            → password login
// POST   /account/login/google           → start OAuth
// GET    /account/register               → register page     [anonymous only]
// POST   /account/register/email         → password registration
// POST   /account/register/google        → start OAuth
// GET    /account/logout                 → logout page       [signed in only]
// POST   /account/logout                 → sign out
// GET    /account/auth/callback/google   → finish OAuth
// GET    /account                        → account page      [signed in only]
// POST   /account/upload                 → profile image     [signed in only]
// GET    /errors                         → error page
// GET    /healthz                        → liveness
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, RealIP, Recoverer from chi
// 2. Logger, which reads the request id set above
// 3. Backend, which installs the per-request provider client
func (s *Server) setupRoutes(repo repository.UserRepository) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Backend(s.base, s.logger))

	users := service.NewUserService(repo, s.logger)
	images := service.NewImageService(
		s.base.Storage().From(s.config.Supabase.ProfileImageBucket),
		s.logger,
	)

	authHandler := handler.NewAuthHandler(users, s.base.Admin(), handler.AuthConfig{
		PublicAddress: s.config.PublicAddress,
		OAuthRedirect: s.config.Supabase.OAuthRedirect,
	}, s.logger)
	accountHandler := handler.NewAccountHandler(users, images, s.config.Upload.MaxBytes, s.logger)
	pageHandler := handler.NewPageHandler(users, s.logger)

	anonymousOnly := auth.RedirectIfUser("/")
	signedInOnly := auth.RequireUser("/")

	s.router.Get("/healthz", pageHandler.Health)
	s.router.Get("/layout", pageHandler.Layout)
	s.router.Get("/errors", pageHandler.Errors)

	s.router.Route("/account", func(r chi.Router) {
		r.With(signedInOnly).Get("/", accountHandler.Account)
		r.With(signedInOnly).Post("/upload", accountHandler.Upload)

		r.With(anonymousOnly).Get("/login", authHandler.Page)
		r.Post("/login/email", authHandler.LoginEmail)
		r.Post("/login/google", authHandler.OAuthStart)

		r.With(anonymousOnly).Get("/register", authHandler.Page)
		r.Post("/register/email", authHandler.RegisterEmail)
		r.Post("/register/google", authHandler.OAuthStart)

		r.With(signedInOnly).Get("/logout", authHandler.Page)
		r.Post("/logout", authHandler.Logout)

		r.Get("/auth/callback/google", authHandler.Callback)
	})
}

// Close releases the user store, if it holds anything.
func (s *Server) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the user store
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // uploads go to the provider before we answer
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.PublicAddress),
			slog.String("store", s.config.Store.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
