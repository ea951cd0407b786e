package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sheetbuilder/sheetbuilder/internal/api"
	"github.com/sheetbuilder/sheetbuilder/internal/config"
	"github.com/sheetbuilder/sheetbuilder/internal/jobs"
	"github.com/sheetbuilder/sheetbuilder/internal/metrics"
	"github.com/sheetbuilder/sheetbuilder/internal/reliability"
	"github.com/sheetbuilder/sheetbuilder/internal/server/endpoints"
	"github.com/sheetbuilder/sheetbuilder/internal/sheets"
	"github.com/sheetbuilder/sheetbuilder/internal/storage"
	"github.com/sheetbuilder/sheetbuilder/internal/svcctx"
)

// Server is the main Sheetbuilder HTTP server. It owns the composition
// pipeline: the job broker, the idempotency registry, the file store, and the
// sheet composition service, all wired into request contexts for the
// endpoint handlers.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	logger     *slog.Logger

	broker   *jobs.Broker
	registry *reliability.Registry
	store    *storage.Store
	sheets   *sheets.Service
	metrics  *metrics.Metrics

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// StorageDir overrides the configured file storage directory.
	StorageDir string
	// SwaggerSpecPath is the path to the OpenAPI spec served at /swagger.json
	SwaggerSpecPath string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	appCfg := *config.DefaultConfig()
	if cfg.ConfigManager != nil {
		appCfg = *cfg.ConfigManager.Get()
	}
	if cfg.StorageDir != "" {
		appCfg.FileStorage.Directory = cfg.StorageDir
	}

	m := metrics.New()

	store, err := storage.New(appCfg.ToStorageConfig(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create file store: %w", err)
	}

	registry := reliability.NewRegistry(appCfg.ToReliabilityConfig(cfg.Logger))
	broker := jobs.NewBroker(cfg.Logger)

	composer := sheets.NewComposer(sheets.ComposerConfig{
		Logger:   cfg.Logger,
		Optimize: appCfg.FileStorage.OptimizeOutput,
		Metrics:  m,
	})

	svc := sheets.NewService(sheets.ServiceConfig{
		Registry: registry,
		Broker:   broker,
		Store:    store,
		Composer: composer,
		Metrics:  m,
		Logger:   cfg.Logger,
	})

	// If config manager provided, keep the idempotency registry in sync
	// with config edits.
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.UpdateConfig(c.ToReliabilityConfig(cfg.Logger))
			cfg.Logger.Info("reliability settings reloaded from config")
		})
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
		broker:    broker,
		registry:  registry,
		store:     store,
		sheets:    svc,
		metrics:   m,
	}

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Config:   cfg.ConfigManager,
		Logger:   cfg.Logger,
		Broker:   broker,
		Registry: registry,
		Store:    store,
		Sheets:   svc,
		Metrics:  m,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{SwaggerSpecPath: cfg.SwaggerSpecPath}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux)
	s.registerRoutes(mux)

	// ReadTimeout must fit a full large upload; WriteTimeout covers regular
	// handlers, and the progress stream handler clears its own write
	// deadline so streams can outlive it.
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           s.withServices(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

// Start starts the server and the composition pipeline's background
// maintenance. It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	// Bind composition tasks and the sweepers to the server's lifetime.
	s.sheets.Start(ctx)
	s.logger.Info("composition service ready", "storage_dir", s.store.Dir())

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server. In-flight
// composition tasks were bound to the Start context and stop on their own.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Broker returns the job broker.
func (s *Server) Broker() *jobs.Broker {
	return s.broker
}

// Registry returns the idempotency registry.
func (s *Server) Registry() *reliability.Registry {
	return s.registry
}

// Store returns the file store.
func (s *Server) Store() *storage.Store {
	return s.store
}

// Sheets returns the composition service.
func (s *Server) Sheets() *sheets.Service {
	return s.sheets
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
