package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq"

	"orderflow/internal/config"
	"orderflow/internal/constants"
	"orderflow/internal/logger"
	"orderflow/internal/processing"
	"orderflow/pkg/bootstrap"
	"orderflow/pkg/health"
	"orderflow/pkg/metrics"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	redis       *redis.Client
	db          *sql.DB
	handler     *processing.OrderEventHandler
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("order-worker")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initHandler(); err != nil {
		return fmt.Errorf("failed to initialize handler: %w", err)
	}

	if err := a.InitProcessor(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	metrics.RegisterWorkerMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterCircuitBreakerMetrics()

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.Config.Worker.Idempotency.Enabled {
		rdb, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return err
		}
		a.redis = rdb
	}
	return nil
}

func (a *App) initHandler() error {
	var store processing.IdempotencyStore = processing.NopIdempotencyStore{}
	if a.Config.Worker.Idempotency.Enabled {
		store = processing.NewRedisIdempotencyStore(a.redis, a.Config.Worker.Idempotency, a.Config.CircuitBreaker, a.Logger)
	}

	audit := processing.NewAuditStore(a.db)
	a.handler = processing.NewOrderEventHandler(store, audit, a.Logger)
	return nil
}

func (a *App) initHTTPServer() error {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.redis != nil {
		// The idempotency store has a configured fallback, so a redis
		// failure only degrades the worker.
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.redis))
	}
	if len(a.Config.Broker.Kafka.Brokers) > 0 {
		healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers[0]))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      mux,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	a.Processor.OnMessage(a.handler.Handle)
	a.Processor.OnError(func(ctx context.Context, err error) {
		a.Logger.ErrorwCtx(ctx, "Broker transport error", "error", err)
	})

	g.Go(func() error {
		return a.Processor.Run(gCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down order worker")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
