// Package server wires the repositories, services and handlers together
// and runs the HTTP server.
//
// DEPENDENCY GRAPH (built once in setupRoutes):
//
//	sqlite.DB ─┬─ Images()  ─┐
//	           ├─ Actions() ─┼─ ActionService ─┐
//	           └─ Users()   ─┤                 ├─ ImageService ─── ImageHandler
//	HTTPFetcher ─────────────┤                 │
//	ranking.Counter (Redis) ─┘                 └─ (AccountHandler, /me)
//	TokenService + PasswordService ─ AccountService ── AccountHandler
//	flash.Store ─ Renderer ─ both handlers
//
// Everything is constructor-injected; there are no package-level
// singletons, so a test can build as many servers as it likes.
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

	"github.com/sakif/bookmarks/internal/auth"
	"github.com/sakif/bookmarks/internal/config"
	"github.com/sakif/bookmarks/internal/fetcher"
	"github.com/sakif/bookmarks/internal/flash"
	"github.com/sakif/bookmarks/internal/handler"
	"github.com/sakif/bookmarks/internal/middleware"
	"github.com/sakif/bookmarks/internal/ranking"
	sqliteRepo "github.com/sakif/bookmarks/internal/repository/sqlite"
	"github.com/sakif/bookmarks/internal/service"
)

// Server owns the router and the long-lived connections it depends on.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	rdb    *redis.Client // nil when REDIS_URL is empty or unreachable
}

// New opens the database (and Redis, when configured) and builds the
// router. The caller must call Close, or Start which closes on return.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Redis is tried after SQLite: the database is required, Redis is not,
	// and a failed Redis connect only turns ranking off.
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		rdb:    connectRedis(cfg.RedisURL, logger),
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// connectRedis returns a client for url, or nil when url is empty or the
// server does not answer. View ranking is optional, so Redis trouble only
// produces a warning.
func connectRedis(url string, logger *slog.Logger) *redis.Client {
	if url == "" {
		logger.Info("REDIS_URL not set, view ranking disabled")
		return nil
	}

	var opts *redis.Options
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			logger.Warn("invalid REDIS_URL, view ranking disabled", slog.String("error", err.Error()))
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: url}
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, view ranking disabled",
			slog.String("addr", opts.Addr),
			slog.String("error", err.Error()),
		)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// setupRoutes builds the route table:
//
//	GET       /                              → /images/
//	GET, POST /images/create/                bookmark an image (login)
//	GET       /images/detail/{id}/{slug}/    image detail
//	POST      /images/like/                  like toggle (JSON)
//	GET       /images/                       paginated list (login)
//	GET       /images/bookmarked/            images the caller liked
//	GET       /images/ranking/               most viewed (login)
//	GET, POST /account/login/, /account/register/
//	POST      /account/logout/
//	GET       /account/me/                   current user (JSON, login)
//	GET       /auth/github/login, /auth/github/callback
//	GET       /static/*, /media/*
func (s *Server) setupRoutes() error {
	cfg := s.config

	// MIDDLEWARE ORDER:
	// RequestID first so every later layer can log it; RealIP before the
	// logger so the logged address is the client's, not the proxy's;
	// Recoverer innermost so a panic becomes a 500 that the logger still
	// sees and records.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	flashes := flash.NewStore(cfg.SessionSecret, cfg.CookieSecure)

	render, err := handler.NewRenderer(cfg.TemplateDir, flashes, s.logger)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	fetch := fetcher.NewHTTPFetcher(fetcher.Config{
		MediaDir: cfg.MediaDir,
		Timeout:  cfg.FetchTimeout(),
	}, s.logger)

	actionService := service.NewActionService(s.db.Actions(), s.logger)
	imageService := service.NewImageService(s.db.Images(), actionService, fetch, ranking.NewCounter(s.rdb), s.logger)
	accountService := service.NewAccountService(s.db.Users(), tokens, auth.NewPasswordService(), s.logger)

	var github *auth.GitHubProvider
	if cfg.GitHubEnabled() {
		github = auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	} else {
		s.logger.Info("GitHub OAuth not configured, only password login available")
	}

	images := handler.NewImageHandler(imageService, render, flashes, s.logger)
	accounts := handler.NewAccountHandler(accountService, actionService, github, render, flashes, cfg.CookieSecure, s.logger)

	requireAuth := auth.RequireAuth(tokens, handler.LoginPath)
	optionalAuth := auth.OptionalAuth(tokens)

	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
	s.router.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, handler.HomePath, http.StatusFound)
	})

	// Two groups under /images: pages only members can use, and pages
	// that work for everyone but know who is asking when someone is.
	s.router.Route("/images", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", images.HandleList)
			r.Get("/create/", images.HandleCreate)
			r.Post("/create/", images.HandleCreate)
			r.Get("/ranking/", images.HandleRanking)
		})
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/detail/{id}/{slug}/", images.HandleDetail)
			r.Get("/bookmarked/", images.HandleBookmarked)
			// Missing parameters must be reported before the login check,
			// so the handler enforces auth itself.
			r.Post("/like/", images.HandleLike)
		})
	})

	s.router.Route("/account", func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/login/", accounts.HandleLoginPage)
		r.Post("/login/", accounts.HandleLogin)
		r.Get("/register/", accounts.HandleRegisterPage)
		r.Post("/register/", accounts.HandleRegister)
		r.Post("/logout/", accounts.HandleLogout)
		r.With(requireAuth).Get("/me/", accounts.HandleMe)
	})

	// Without credentials the GitHub routes are not mounted at all, so
	// they 404 rather than fail halfway through the OAuth dance.
	if github != nil {
		s.router.Get("/auth/github/login", accounts.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", accounts.HandleGitHubCallback)
	}

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and Redis connections.
func (s *Server) Close() error {
	var errs []error
	if s.rdb != nil {
		errs = append(errs, s.rdb.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the connections.
//
// GRACEFUL SHUTDOWN:
//
//	1. ListenAndServe runs in a goroutine; Start waits on a select
//	2. a signal arrives → srv.Shutdown stops accepting new connections
//	3. in-flight requests (say, a bookmark mid-download) get up to 30s
//	4. the deferred Close releases SQLite and Redis
//
// Without this, a deploy would cut off whoever was bookmarking at the
// time and could leave SQLite's WAL to be recovered on the next start.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
		// Bookmarking downloads the image inside the request, so the write
		// timeout leaves room for the fetch timeout.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.FetchTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("ranking", s.rdb != nil),
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
