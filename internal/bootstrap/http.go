package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/redis-bulk-actions/config"
	"github.com/target/redis-bulk-actions/internal/domain/bulk"
	httpx "github.com/target/redis-bulk-actions/internal/http"
	"github.com/target/redis-bulk-actions/internal/service"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := buildHTTPHandler(httpHandlerConfig{
		Logger:   logger,
		Services: routerServices(cfg.Services, logger),
		HTTP:     appCfg.HTTP,
	})

	return startServer(logger, handler, appCfg.HTTP)
}

// routerServices adapts the container to the router, leaving disabled parts nil so the
// router skips their routes.
func routerServices(c ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	services := httpx.RouterServices{Logger: logger, Ready: c.Ready}
	if c.BulkActions != nil {
		services.BulkActions = c.BulkActions
	}
	if c.Overviews != nil {
		services.Overviews = c.Overviews
	}
	if c.Observability.Prometheus != nil {
		services.Metrics = c.Observability.Prometheus.Handler()
	}
	return services
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
	HTTP     config.HTTPConfig
}

func buildHTTPHandler(cfg httpHandlerConfig) http.Handler {
	router := httpx.NewRouter(cfg.Services)

	// Order: Recover -> Logging -> Compression -> Router
	h := router
	if cfg.HTTP.CompressionEnabled {
		cfg.Logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
		h = httpx.Compression(httpx.CompressionConfig{Level: cfg.HTTP.CompressionLevel, Logger: cfg.Logger})(h)
	}

	h = httpx.Logging(cfg.Logger)(h)
	h = httpx.Recover(cfg.Logger)(h)

	return h
}

func startServer(logger *slog.Logger, handler http.Handler, cfg config.HTTPConfig) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	// Event streams clear their own write deadline.
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context     context.Context
	Server      *http.Server               // Optional
	BulkActions *service.BulkActionService // Optional: running actions are aborted
	Overviews   *bulk.OverviewNotifier     // Optional: listeners are stopped
	Logger      *slog.Logger
}

// ShutdownHTTPServer stops overview listeners and aborts running bulk actions, which ends
// every open event stream, then shuts the server down.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Overviews != nil {
		cfg.Overviews.StopAll()
	}

	var errs []error
	if cfg.BulkActions != nil {
		if err := cfg.BulkActions.StopAll(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Server != nil {
		logger.Info("shutting down HTTP server")
		if err := cfg.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		} else {
			logger.Info("HTTP server stopped")
		}
	}

	return errors.Join(errs...)
}
