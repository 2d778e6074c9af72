package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/redis-bulk-actions/config"
	"github.com/target/redis-bulk-actions/internal/adapters/reaper"
	redisadapter "github.com/target/redis-bulk-actions/internal/adapters/redis"
	"github.com/target/redis-bulk-actions/internal/domain/bulk"
	"github.com/target/redis-bulk-actions/internal/domain/model"
	"github.com/target/redis-bulk-actions/internal/observability/notify/pagerduty"
	"github.com/target/redis-bulk-actions/internal/observability/notify/slack"
	"github.com/target/redis-bulk-actions/internal/observability/prom"
	"github.com/target/redis-bulk-actions/internal/observability/statsd"
	"github.com/target/redis-bulk-actions/internal/service"
	"github.com/target/redis-bulk-actions/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	BulkActions   *service.BulkActionService
	Databases     *redisadapter.ClientProvider
	Overviews     *bulk.OverviewNotifier
	Observability ObservabilityContainer

	waiter       *redisadapter.OverviewWaiter
	serviceRedis redis.UniversalClient
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	Prometheus      *prom.Metrics
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	RedisClient redis.UniversalClient // Service Redis carrying overview pub/sub; optional
	Logger      *slog.Logger
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "redis_bulk_actions",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	var promMetrics *prom.Metrics
	if cfg.Metrics.PrometheusEnabled {
		promMetrics = prom.New()
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		Prometheus:      promMetrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:      cfg.Slack.WebhookURL,
			Channel:         cfg.Slack.Channel,
			Username:        cfg.Slack.Username,
			Timeout:         cfg.Timeout,
			RetryLimit:      cfg.RetryLimit,
			ActionURLPrefix: cfg.Slack.ActionURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// targetConnector opens target databases with the same client selection as the service Redis.
func targetConnector(logger *slog.Logger) redisadapter.Connector {
	return func(cfg config.RedisConfig) (redis.UniversalClient, error) {
		return ConnectRedis(DatabaseConfig{RedisConfig: cfg, Logger: logger})
	}
}

// runnerBuilder produces ShardRunner factories for each new job.
func runnerBuilder(logger *slog.Logger) service.RunnerFactoryBuilder {
	return func(actionType model.ActionType, filter model.Filter, maxKeys int) bulk.RunnerFactory {
		return redisadapter.NewRunnerFactory(redisadapter.RunnerConfig{
			Type:    actionType,
			Filter:  filter,
			MaxKeys: maxKeys,
			Logger:  logger,
		})
	}
}

type overviewTransport struct {
	channels service.OverviewChannelFactory
	notifier *bulk.OverviewNotifier
	waiter   *redisadapter.OverviewWaiter
}

// buildOverviewTransport wires overview pushes through the service Redis. Without one,
// overviews are only available by polling.
func buildOverviewTransport(rdb redis.UniversalClient) (overviewTransport, error) {
	if rdb == nil {
		return overviewTransport{}, nil
	}

	waiter := redisadapter.NewOverviewWaiter(rdb)
	notifier, err := bulk.NewOverviewNotifier(bulk.NotifierOptions{Waiter: waiter})
	if err != nil {
		return overviewTransport{}, fmt.Errorf("create overview notifier: %w", err)
	}

	return overviewTransport{
		channels: func(jobID string) bulk.Channel {
			return redisadapter.NewOverviewPublisher(rdb, jobID)
		},
		notifier: notifier,
		waiter:   waiter,
	}, nil
}

// NewServices wires the bulk action service with its adapters and observability sinks.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	observability := buildObservability(logger, cfg.Observability)

	databases, err := redisadapter.NewClientProvider(redisadapter.ClientProviderOptions{
		Databases: cfg.BulkActions.Targets(),
		Connect:   targetConnector(logger),
		Logger:    logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create database provider: %w", err)
	}

	transport, err := buildOverviewTransport(deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}

	analytics := service.NewBulkActionAnalytics(service.BulkActionAnalyticsOptions{
		Sinks: service.AnalyticsSinks{
			StatsD:    observability.MetricsSink,
			Collector: observability.Prometheus,
			Notifier:  observability.FailureNotifier,
		},
		Logger: logger,
	})

	bulkActions, err := service.NewBulkActionService(service.BulkActionServiceOptions{
		Deps: service.BulkActionDeps{
			Databases: databases,
			Runners:   runnerBuilder(logger),
			Overviews: transport.channels,
			Analytics: analytics,
		},
		Config: cfg.BulkActions,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create bulk action service: %w", err)
	}

	return ServiceContainer{
		BulkActions:   bulkActions,
		Databases:     databases,
		Overviews:     transport.notifier,
		Observability: observability,
		waiter:        transport.waiter,
		serviceRedis:  deps.RedisClient,
	}, nil
}

// Ready reports whether the service Redis carrying overview pushes answers. Without one
// the service runs in polling mode and is always ready.
func (c ServiceContainer) Ready(ctx context.Context) error {
	if c.serviceRedis == nil {
		return nil
	}
	if err := c.serviceRedis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping service redis: %w", err)
	}
	return nil
}

// Close releases the connections held by the container.
func (c ServiceContainer) Close() error {
	var errs []error
	if c.Overviews != nil {
		c.Overviews.StopAll()
	}
	if c.waiter != nil {
		if err := c.waiter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close overview waiter: %w", err))
		}
	}
	if c.Databases != nil {
		if err := c.Databases.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close target databases: %w", err))
		}
	}
	if c.Observability.MetricsSink != nil {
		if err := c.Observability.MetricsSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close statsd client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ServiceOrchestrationConfig contains dependencies for running services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const defaultShutdownTimeout = 15 * time.Second

type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}
		handles = append(handles, backgroundServiceHandle{mode: svc.mode, name: svc.name, done: done})
	}

	return handles
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			runner, err := reaper.NewRunner(reaper.RunnerOptions{
				Evictor: deps.cfg.Services.BulkActions,
				Config:  reaperCfg,
				Logger:  deps.logger,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
			if err != nil {
				return fmt.Errorf("create reaper runner: %w", err)
			}
			return runner.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the running services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts the enabled services and blocks until SIGINT/SIGTERM or
// a background service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		timeout:     cfg.Config.HTTP.ShutdownTimeout,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		services:    cfg.Services,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

type shutdownConfig struct {
	ctx         context.Context
	timeout     time.Duration
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	services    ServiceContainer
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops the HTTP server, aborts running bulk actions and waits for the
// background services. The parent context is already canceled here.
func gracefulStop(cfg shutdownConfig) error {
	timeout := cfg.timeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), timeout)
	defer cancel()

	var errs []error
	if err := ShutdownHTTPServer(ShutdownConfig{
		Context:     shutdownCtx,
		Server:      cfg.httpServer,
		BulkActions: cfg.services.BulkActions,
		Overviews:   cfg.services.Overviews,
		Logger:      cfg.logger,
	}); err != nil {
		errs = append(errs, err)
	}

	for _, svc := range cfg.backgrounds {
		waitForService(shutdownCtx, svc.done, svc.name, cfg.logger)
	}

	if err := cfg.services.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func waitForService(ctx context.Context, done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-ctx.Done():
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
