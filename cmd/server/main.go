package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Simplici0/itabus/internal/config"
	"github.com/Simplici0/itabus/internal/db"
	applog "github.com/Simplici0/itabus/internal/log"
	"github.com/Simplici0/itabus/internal/migrations"
	"github.com/Simplici0/itabus/internal/pricing"
	"github.com/Simplici0/itabus/internal/seed"
	"github.com/Simplici0/itabus/internal/store"
)

const (
	timeLayout      = time.RFC3339
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

type server struct {
	auth      *authService
	db        *sql.DB
	logger    *zap.Logger
	catalog   *pricing.Catalog
	rates     *pricing.ActiveRates
	rateStore *store.RateStore
	projects  *store.ProjectStore
	users     *store.UserStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := applog.New(cfg.LogLevel, cfg.IsDev())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	for _, key := range cfg.MissingSecrets() {
		logger.Warn("configuration value is not set", zap.String("key", key))
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		return fmt.Errorf("run database migrations: %w", err)
	}
	version, err := migrations.Version(database)
	if err != nil {
		return err
	}

	stats, err := seed.Run(database, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	logger.Info("database ready",
		zap.String("path", cfg.DBPath),
		zap.Int64("schema_version", version),
		zap.Int("seed_inserts", stats.Inserts),
	)

	srv, err := newServer(database, cfg.SessionSecret, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// newServer loads the catalog and the active rates from the database.
func newServer(database *sql.DB, sessionSecret string, logger *zap.Logger) (*server, error) {
	items := store.NewItemStore(database)
	users := store.NewUserStore(database)
	rateStore := store.NewRateStore(database)

	catalog := pricing.NewCatalog(items)
	loaded, err := items.LoadAllItems()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := catalog.Load(loaded); err != nil {
		return nil, fmt.Errorf("install catalog: %w", err)
	}
	lastID, err := items.LastItemID()
	if err != nil {
		return nil, err
	}
	catalog.ReserveIDs(lastID)

	rates := &pricing.ActiveRates{}
	cfg, ok, err := rateStore.Load()
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	if ok {
		if err := rates.Set(cfg); err != nil {
			return nil, fmt.Errorf("activate stored rates: %w", err)
		}
	} else {
		logger.Warn("no stored rate configuration, prices use zero rates")
	}

	logger.Info("catalog loaded", zap.Int("items", len(loaded)))

	return &server{
		auth:      newAuthService(users, sessionSecret),
		db:        database,
		logger:    logger,
		catalog:   catalog,
		rates:     rates,
		rateStore: rateStore,
		projects:  store.NewProjectStore(database),
		users:     users,
	}, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireLogin)

			r.Get("/me", s.handleMe)
			r.Get("/items", s.handleListItems)
			r.Get("/items/{id}", s.handleGetItem)
			r.Get("/global-rates", s.handleGetRates)
			r.Post("/calculate-price", s.handleCalculatePrice)
			r.Get("/projects", s.handleListProjects)
			r.Post("/projects", s.handleCreateProject)
			r.Get("/projects/{id}", s.handleGetProject)
			r.Get("/projects/{id}/text", s.handleProjectText)
			r.Delete("/projects/{id}", s.handleDeleteProject)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Get("/users", s.handleListUsers)
				r.Post("/users", s.handleCreateUser)
				r.Delete("/users/{id}", s.handleDeleteUser)
				r.Post("/items", s.handleCreateItem)
				r.Put("/items/{id}", s.handleUpdateItem)
				r.Delete("/items/{id}", s.handleDeleteItem)
				r.Put("/global-rates", s.handleUpdateRates)
			})
		})
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.writeError(w, r, fmt.Errorf("ping database: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
