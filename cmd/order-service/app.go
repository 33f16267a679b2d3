package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/lib/pq"

	"orderflow/internal/config"
	"orderflow/internal/constants"
	"orderflow/internal/logger"
	"orderflow/internal/orders"
	"orderflow/pkg/bootstrap"
	"orderflow/pkg/health"
	"orderflow/pkg/metrics"
	"orderflow/pkg/middleware"
	"orderflow/pkg/migrations"
	"orderflow/pkg/ratelimit"
)

type App struct {
	config      *config.Config
	logger      logger.Logger
	base        *bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	db          *sql.DB
	server      *http.Server
	router      *gin.Engine
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.base.InitSender(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	if err := a.initServer(); err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.db, "migrations/postgres"); err != nil {
			return err
		}
		a.logger.InfowCtx(ctx, "Database migrations applied")
	}
	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	if a.config.API.RateLimit.Enabled {
		rateLimitConfig := ratelimit.Config{
			RPS:             a.config.API.RateLimit.RPS,
			Burst:           a.config.API.RateLimit.Burst,
			CleanupInterval: time.Duration(a.config.API.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(a.config.API.RateLimit.MaxAge) * time.Second,
		}
		router.Use(ratelimit.Middleware(rateLimitConfig))
		a.logger.InfowCtx(context.Background(), "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	repo := orders.NewRepository(a.db)
	publisher := orders.NewPublisher(a.base.Sender, a.logger)
	svc := orders.NewService(repo, publisher, a.logger)

	handler := orders.NewHandler(svc, a.logger)
	handler.RegisterRoutes(router)

	metrics.RegisterOrderMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterRateLimitMetrics()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if len(a.config.Broker.Kafka.Brokers) > 0 {
		// Order creation survives a broker outage, publishing is best
		// effort, so a kafka failure only degrades the service.
		healthRegistry.RegisterOptional(health.NewKafkaChecker(a.config.Broker.Kafka.Brokers[0]))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

func (a *App) initServer() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.config.Server.WriteTimeoutSeconds,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	errs = append(errs, a.base.ShutdownBroker()...)
	errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, nil, a.db)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
