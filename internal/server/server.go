// Package server is the composition root: it builds every dependency from
// config.Config, wires the handlers into a chi router and runs the HTTP
// server until SIGINT/SIGTERM.
//
// DEPENDENCY FLOW:
//
//	sqlite.DB ──────────────► AuthService ─────┐
//	     │                                      ├─► AuthHandler
//	     │      YahooClient + quote cache       │
//	     │               │                      │
//	     │               ▼                      │
//	     │         MarketService ──────────────────► StockHandler
//	     │               │
//	     └──────► PortfolioService ────────────────► HoldingsHandler
//
// Each layer only receives the interfaces it needs; nothing below the
// handlers knows about HTTP.
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
	"github.com/go-chi/cors"

	"github.com/sakif/portfolio-tracker/internal/auth"
	"github.com/sakif/portfolio-tracker/internal/config"
	"github.com/sakif/portfolio-tracker/internal/handler"
	"github.com/sakif/portfolio-tracker/internal/marketdata"
	"github.com/sakif/portfolio-tracker/internal/middleware"
	"github.com/sakif/portfolio-tracker/internal/quotecache"
	sqliteRepo "github.com/sakif/portfolio-tracker/internal/repository/sqlite"
	"github.com/sakif/portfolio-tracker/internal/service"
)

// Server owns the router and every resource that must be released on
// shutdown (the database and, when configured, the Redis client).
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	closers []io.Closer
}

// New opens the store, picks the quote cache backend and registers routes.
// On error every resource opened so far is closed again.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// newQuoteCache builds the cache selected by QUOTE_CACHE_BACKEND.
func (s *Server) newQuoteCache() (quotecache.Cache, error) {
	c := s.config.Cache

	if c.Backend == config.CacheRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		rc, err := quotecache.NewRedis(ctx, quotecache.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			TTL:      c.TTL,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, rc)
		s.logger.Info("quote cache: redis", slog.String("addr", c.RedisAddr), slog.Duration("ttl", c.TTL))
		return rc, nil
	}

	s.logger.Info("quote cache: memory", slog.Int("size", c.Size), slog.Duration("ttl", c.TTL))
	return quotecache.NewMemory(c.Size, c.TTL), nil
}

// setupRoutes wires services to handlers and handlers to routes.
//
// ROUTES:
//
//	GET    /static/*                     static assets
//	GET    /                             index page            (optional login)
//	GET    /portfolio                    portfolio page        (login, else redirect)
//	GET    /healthz                      liveness
//	GET    /login                        start Google OAuth
//	GET    /authorize                    OAuth callback
//	GET    /logout                       clear session         (login)
//	GET    /api/get-user                 current user          (login)
//	POST   /api/save-stock               add one holding       (login)
//	POST   /api/save-holdings            upsert a batch        (login)
//	DELETE /api/delete-stock/{id}        delete a holding      (login)
//	GET    /api/get-holdings             enriched holdings     (login)
//	GET    /api/portfolio/summary        totals and history    (login)
//	GET    /api/stock/{symbol}           quote
//	GET    /api/stock/{symbol}/history   daily closes
//
// MIDDLEWARE ORDER MATTERS: RequestID runs first so Logger can read it, and
// Recoverer sits inside Logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	cache, err := s.newQuoteCache()
	if err != nil {
		return fmt.Errorf("creating quote cache: %w", err)
	}

	yahoo := marketdata.NewYahooClient(marketdata.YahooConfig{
		QuoteURL: cfg.Market.QuoteURL,
		ChartURL: cfg.Market.ChartURL,
		Timeout:  cfg.Market.Timeout,
		Retries:  cfg.Market.Retries,
		Backoff:  250 * time.Millisecond,
	}, s.logger)

	marketService := service.NewMarketService(yahoo, cache, cfg.Market.Timeout, s.logger)
	portfolioService := service.NewPortfolioService(s.db, marketService, cfg.Market.Concurrency, s.logger)
	authService := service.NewAuthService(s.db, tokens, s.logger)

	google := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.Auth.GoogleClientID,
		ClientSecret: cfg.Auth.GoogleClientSecret,
		CallbackURL:  cfg.Auth.GoogleCallbackURL,
	})

	pageHandler, err := handler.NewPageHandler(cfg.TemplateDir, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	authHandler := handler.NewAuthHandler(google, authService, tokens, cfg.Auth.CookieSecure, s.logger)
	holdingsHandler := handler.NewHoldingsHandler(portfolioService, s.logger)
	stockHandler := handler.NewStockHandler(marketService, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// The browser frontend may be served from another origin during
	// development; credentials must be allowed for the session cookie.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// === Static Files ===
	fileServer := http.FileServer(http.Dir(cfg.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	// === Pages ===
	s.router.With(auth.OptionalAuth(tokens)).Get("/", pageHandler.HandleIndex)
	s.router.With(auth.RequireLogin(tokens, "/login")).Get("/portfolio", pageHandler.HandlePortfolio)
	s.router.Get("/healthz", handler.HandleHealth)

	// === OAuth ===
	if cfg.GoogleEnabled() {
		s.router.Get("/login", authHandler.HandleLogin)
		s.router.Get("/authorize", authHandler.HandleAuthorize)
	} else {
		s.logger.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, login is disabled")
	}
	s.router.With(auth.RequireAuth(tokens)).Get("/logout", authHandler.HandleLogout)

	// === API ===
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/stock/{symbol}", stockHandler.HandleQuote)
		r.Get("/stock/{symbol}/history", stockHandler.HandleHistory)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/get-user", authHandler.HandleGetUser)
			r.Post("/save-stock", holdingsHandler.HandleSaveStock)
			r.Post("/save-holdings", holdingsHandler.HandleSaveHoldings)
			r.Delete("/delete-stock/{id}", holdingsHandler.HandleDeleteStock)
			r.Get("/get-holdings", holdingsHandler.HandleGetHoldings)
			r.Get("/portfolio/summary", holdingsHandler.HandleSummary)
		})
	})

	return nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the cache backend and the database.
func (s *Server) Close() error {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Warn("closing resource", slog.String("error", err.Error()))
		}
	}
	s.closers = nil
	return s.db.Close()
}

// Start serves HTTP and blocks until SIGINT/SIGTERM or a listener error.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests (enrichment may be waiting on Yahoo)
//  3. Close the cache and the database
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
