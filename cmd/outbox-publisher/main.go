package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/instance"
	"github.com/shopzen/shopzen-backend/pkg/kafka"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/metrics"
	"github.com/shopzen/shopzen-backend/pkg/migrate"
	"github.com/shopzen/shopzen-backend/pkg/outbox"
	"github.com/shopzen/shopzen-backend/pkg/outbox/registry"
	"github.com/shopzen/shopzen-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

type closableSink interface {
	sink
	Close() error
}

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeWithLog(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	sinkName := strings.ToLower(strings.TrimSpace(cfg.Outbox.Sink))
	eventSink, err := buildSink(ctx, cfg, sinkName, logg)
	if err != nil {
		return fmt.Errorf("bootstrap %s sink: %w", sinkName, err)
	}
	defer closeWithLog(logg, "outbox sink", eventSink.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Sink:       eventSink,
		SinkName:   sinkName,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   eventRegistry,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	metricsServer := serveMetrics(ctx, cfg.Outbox.MetricsAddr, logg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"sink":     sinkName,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting outbox publisher")
	return service.Run(ctx)
}

// serveMetrics exposes /metrics for scraping; a bind failure is logged and
// does not stop publishing.
func serveMetrics(ctx context.Context, addr string, logg *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.WarnErr(logg.WithField(ctx, "addr", addr), "outbox.metrics_server_failed", err)
		}
	}()
	return srv
}

func buildSink(ctx context.Context, cfg *config.Config, name string, logg *logger.Logger) (closableSink, error) {
	switch name {
	case "", "pubsub":
		return pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	case "kafka":
		return kafka.NewProducer(cfg.Kafka, logg)
	default:
		return nil, fmt.Errorf("unsupported outbox sink %q", name)
	}
}

func closeWithLog(logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+what, err)
	}
}
