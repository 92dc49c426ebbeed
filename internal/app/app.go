// Package app wires the license server together: configuration, logging,
// telemetry, the Redis-backed record store, services, handlers and the
// HTTP server with graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"keyserve/internal/config"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
	customMiddleware "keyserve/internal/middleware"
	"keyserve/internal/services"
	"keyserve/internal/store"
	transport "keyserve/internal/transport/http"
	"keyserve/pkg/contracts"
)

// AppName identifies the service in logs.
const AppName = "keyserve"

// Application is the dependency container for the license server.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	Router *chi.Mux
	Server *http.Server

	KV      store.KV
	Records *store.RecordStore
	Metrics *license.Metrics

	OTelProviders *infrastructure.OTelProviders

	LicenseService *services.LicenseService
	AdminService   *services.AdminService
	HealthService  *services.HealthService
}

// NewApplication builds the application from cfg, connecting to Redis and
// initializing logging and telemetry.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}

	metrics, err := license.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	kv, err := store.NewRedisKV(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		KV:            kv,
		Metrics:       metrics,
		OTelProviders: otelProviders,
	}
	a.Records = store.NewRecordStore(kv)
	a.LicenseService = services.NewLicenseService(a.Records, cfg.License, logger, metrics)
	a.AdminService = services.NewAdminService(a.Records, cfg.License, logger, metrics)
	a.HealthService = services.NewHealthService(a.Records, logger)

	a.setupRouter()
	a.createServer()
	return a, nil
}

// NewApplicationWithKV builds the application over an existing KV, used by
// tests to run the full stack against the in-memory store.
func NewApplicationWithKV(cfg *config.Config, logger *slog.Logger, kv store.KV) *Application {
	a := &Application{
		Config: cfg,
		Logger: logger,
		KV:     kv,
	}
	a.Records = store.NewRecordStore(kv)
	a.LicenseService = services.NewLicenseService(a.Records, cfg.License, logger, nil)
	a.AdminService = services.NewAdminService(a.Records, cfg.License, logger, nil)
	a.HealthService = services.NewHealthService(a.Records, logger)

	a.setupRouter()
	a.createServer()
	return a
}

// setupRouter configures the middleware chain and mounts the handlers.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.corsConfig()))
	}
	if a.Config.Security.RateLimit.Enabled {
		limiter := customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		)
		r.Use(limiter.Handler)
	}
	r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

	licenseHandler := transport.NewLicenseHandler(a.LicenseService, a.Logger)
	adminHandler := transport.NewAdminHandler(a.AdminService, a.Logger)
	healthHandler := transport.NewHealthHandler(a.HealthService, a.Logger)

	r.Route("/api", func(api chi.Router) {
		api.Mount("/", licenseHandler.Routes())
		api.Mount("/health", healthHandler.Routes())

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(customMiddleware.AdminAuth(a.Config.Admin, a.Logger))
			admin.Mount("/", adminHandler.Routes())
		})
	})

	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		ExposedHeaders: []string{"X-Request-ID"},
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the HTTP server. A listen failure cancels the supplied
// context so Run can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("log_level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the server, the store connection and telemetry.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := a.KV.Close(); err != nil {
		a.Logger.ErrorContext(ctx, "error closing store", slog.String("error", err.Error()))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down telemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
