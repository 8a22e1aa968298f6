package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/dejobratic/orderflow/internal/bus"
	busmemory "github.com/dejobratic/orderflow/internal/bus/memory"
	busrabbitmq "github.com/dejobratic/orderflow/internal/bus/rabbitmq"
	"github.com/dejobratic/orderflow/internal/config"
	"github.com/dejobratic/orderflow/internal/database"
	notifhttp "github.com/dejobratic/orderflow/internal/notifications/adapters/http"
	notifmemory "github.com/dejobratic/orderflow/internal/notifications/adapters/memory"
	notifpostgres "github.com/dejobratic/orderflow/internal/notifications/adapters/postgres"
	notifredis "github.com/dejobratic/orderflow/internal/notifications/adapters/redis"
	notifapp "github.com/dejobratic/orderflow/internal/notifications/app"
	"github.com/dejobratic/orderflow/internal/notifications/delivery"
	notifmetrics "github.com/dejobratic/orderflow/internal/notifications/metrics"
	notifports "github.com/dejobratic/orderflow/internal/notifications/ports"
	"github.com/dejobratic/orderflow/internal/orders/adapters"
	orderhttp "github.com/dejobratic/orderflow/internal/orders/adapters/http"
	ordermemory "github.com/dejobratic/orderflow/internal/orders/adapters/memory"
	orderpostgres "github.com/dejobratic/orderflow/internal/orders/adapters/postgres"
	orderapp "github.com/dejobratic/orderflow/internal/orders/app"
	ordermetrics "github.com/dejobratic/orderflow/internal/orders/metrics"
	orderports "github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	logger := telemetry.NewLogger(parseLogLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	meter := otel.Meter("github.com/dejobratic/orderflow")

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create database metrics: %w", err)
	}
	busMetrics, err := bus.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create bus metrics: %w", err)
	}
	orderMetrics, err := ordermetrics.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create order metrics: %w", err)
	}
	dispatchMetrics, err := notifmetrics.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create notification metrics: %w", err)
	}
	httpMetrics, err := orderhttp.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	// Stores.
	var (
		orderRepo orderports.OrderRepository
		notifRepo notifports.NotificationRepository
		pool      *pgxpool.Pool
	)
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		if cfg.Store.AutoMigrate {
			logger.Info("running database migrations", "path", cfg.Store.MigrationsPath)
			if err := database.RunMigrations(cfg.Store.DatabaseURL, cfg.Store.MigrationsPath); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}

		pool, err = database.NewPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return fmt.Errorf("create database pool: %w", err)
		}
		defer pool.Close()

		orderRepo = adapters.NewObservableRepository(orderpostgres.NewRepository(pool), dbMetrics)
		notifRepo = notifpostgres.NewRepository(pool)
	default:
		orderRepo = ordermemory.NewRepository()
		notifRepo = notifmemory.NewRepository()
	}

	// Event bus.
	var (
		publisher  bus.Publisher
		subscriber bus.Subscriber
	)
	switch cfg.Bus.Driver {
	case config.BusDriverRabbitMQ:
		rabbit, err := busrabbitmq.Dial(busrabbitmq.Config{
			URL:      cfg.Bus.URL,
			Exchange: cfg.Bus.Exchange,
			Prefetch: cfg.Bus.Prefetch,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer rabbit.Close()
		publisher, subscriber = rabbit, rabbit
	default:
		memBus := busmemory.NewBus(logger)
		defer memBus.Close()
		publisher, subscriber = memBus, memBus
	}

	// Order side: commit first, then publish with retries.
	eventPublisher := adapters.NewObservableEventPublisher(
		adapters.NewBusEventPublisher(bus.NewRetryingPublisher(publisher, logger)),
		busMetrics,
	)
	orderService := orderapp.NewService(orderRepo, eventPublisher, logger, orderMetrics)

	// Notification side: dispatcher consuming the order topics.
	sender := delivery.NewSimulatedSender(logger,
		delivery.WithSuccessRate(cfg.Dispatcher.DeliverySuccessRate),
		delivery.WithLatency(cfg.Dispatcher.DeliveryLatency),
	)

	dispatcherOpts := []notifapp.DispatcherOption{
		notifapp.WithDeliveryTimeout(cfg.Dispatcher.DeliveryTimeout),
	}
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer redisClient.Close()
		dispatcherOpts = append(dispatcherOpts,
			notifapp.WithDedupIndex(notifredis.NewDedupIndex(redisClient, cfg.Redis.DedupTTL)))
	}

	dispatcher := notifapp.NewDispatcher(notifRepo, sender, logger, dispatchMetrics, dispatcherOpts...)
	if err := subscriber.Subscribe(ctx, cfg.Dispatcher.Group, dispatcher.Topics(), dispatcher.HandleEvent); err != nil {
		return fmt.Errorf("subscribe dispatcher: %w", err)
	}

	// HTTP surface.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := database.CheckHealth(r.Context(), pool); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	orderhttp.NewHandler(orderService).Register(mux)
	notifhttp.NewHandler(notifapp.NewService(notifRepo)).Register(mux)

	handler := withRecovery(withLogging(orderhttp.WithMetrics(mux, httpMetrics)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	} else {
		logger.Info("http server stopped")
	}

	return nil
}

// initTelemetry wires the otel providers. Without a collector endpoint the
// exporters are replaced with no-ops so instrumented code still runs.
func initTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	telCfg := telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	}

	var opts []telemetry.Option
	if cfg.Telemetry.OTelEndpoint == "" {
		opts = append(opts,
			telemetry.WithTraceExporter(telemetry.NewNoopTraceExporter()),
			telemetry.WithMetricExporter(telemetry.NewNoopMetricExporter()),
		)
	}

	return telemetry.Initialize(ctx, telCfg, opts...)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		slog.Default().InfoContext(r.Context(), "http request",
			"method", r.Method, "path", r.URL.Path, "status", rw.status, "duration", time.Since(start))
	})
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered", "error", rec)
				respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
