package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Simplici0/pricedesk/internal/config"
	"github.com/Simplici0/pricedesk/internal/db"
	"github.com/Simplici0/pricedesk/internal/events"
	"github.com/Simplici0/pricedesk/internal/logger"
	"github.com/Simplici0/pricedesk/internal/metrics"
	"github.com/Simplici0/pricedesk/internal/migrations"
	"github.com/Simplici0/pricedesk/internal/quoting"
	"github.com/Simplici0/pricedesk/internal/recalc"
	"github.com/Simplici0/pricedesk/internal/seed"
	"github.com/Simplici0/pricedesk/internal/store"
)

const shutdownTimeout = 15 * time.Second

type server struct {
	auth       *authService
	loginLimit *loginLimiter
	db         *sqlx.DB
	logger     *zap.Logger
	metrics    *metrics.Registry
	quotes     *quoting.Service
	configs    *store.ConfigStore
	products   *store.ProductStore
	overrides  *store.OverrideStore
}

func newServer(database *sqlx.DB, sessionSecret string, publisher events.Publisher, m *metrics.Registry, log *zap.Logger, workers int) *server {
	configs := store.NewConfigStore(database)
	products := store.NewProductStore(database)
	overrides := store.NewOverrideStore(database)

	return &server{
		auth:       newAuthService(database, sessionSecret),
		loginLimit: newLoginLimiter(rate.Limit(1), 10),
		db:         database,
		logger:     log,
		metrics:    m,
		configs:    configs,
		products:   products,
		overrides:  overrides,
		quotes: quoting.NewService(quoting.Deps{
			Configs:    configs,
			Products:   products,
			Overrides:  overrides,
			Currencies: store.NewCurrencyStore(database),
			Recalc:     recalc.NewJob(products, overrides, publisher, m, log.Named("recalc"), workers),
			Metrics:    m,
			Logger:     log.Named("quoting"),
		}),
	}
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		applied, err := migrations.Up(ctx, database.DB)
		if err != nil {
			return fmt.Errorf("run database migrations: %w", err)
		}
		log.Info("database migrations applied", zap.Int("count", applied))
	}

	stats, err := seed.Run(ctx, database.DB, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	log.Info("startup seed finished", zap.Int("inserts", stats.Inserts))

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log.Named("events"))
		log.Info("publishing price changes", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("close event publisher", zap.Error(err))
		}
	}()

	srv := newServer(database, cfg.SessionSecret, publisher, metrics.NewRegistry(), log, cfg.Recalc.Workers)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr))
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

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.With(s.loginLimit.middleware).Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	editors := requireRole(roleAccountant, roleDirector)
	directors := requireRole(roleDirector)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/pricing/config", s.handleGetConfig)
		r.With(editors).Post("/pricing/config", s.handleCreateConfig)
		r.With(directors).Post("/pricing/config/{version}/approve", s.handleApproveConfig)
		r.Post("/pricing/preview", s.handlePreview)

		r.With(editors).Put("/products/{id}/cost", s.handlePutCost)
		r.Get("/products/{id}/prices", s.handleProductPrices)
		r.With(editors).Post("/products/{id}/direct-pricing", s.handleCreateOverride)
		r.With(editors).Patch("/products/{id}/direct-pricing/{priceType}", s.handlePatchOverride)
		r.With(directors).Delete("/products/{id}/direct-pricing", s.handleDeleteOverride)

		r.With(editors).Put("/currencies/{code}/rate", s.handleSetRate)
	})

	return r
}
