package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"sieve/internal/broker"
	"sieve/internal/config"
	"sieve/internal/constants"
	"sieve/internal/filtering"
	"sieve/internal/logger"
	"sieve/pkg/bootstrap"
	"sieve/pkg/health"
	"sieve/pkg/metrics"
	"sieve/pkg/middleware"
	"sieve/pkg/ratelimit"
	"sieve/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sqlx.DB
	redis          *redis.Client
	service        *filtering.Service
	tracerProvider *tracing.TracerProvider
	router         *gin.Engine
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(constants.ServiceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initService()

	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterFilteringMetrics()
	if a.StreamingEnabled() {
		metrics.RegisterStreamMetrics()
	}
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer(ctx)
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db
	if db == nil {
		a.Logger.Warn("PostgreSQL not configured, saved filters are unavailable")
	}

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

func (a *App) initService() {
	var opts []filtering.ServiceOption

	if a.db != nil {
		var repo filtering.Repository = filtering.NewRepository(a.db)
		if a.redis != nil {
			ttl := time.Duration(a.Config.Database.Redis.TTLSeconds) * time.Second
			repo = filtering.NewCachedRepository(repo, a.redis, ttl, a.Logger)
		}
		repo = filtering.NewCircuitBreakerRepository(repo, a.Config.CircuitBreaker)
		opts = append(opts, filtering.WithRepository(repo))
	}

	if a.Producer != nil {
		opts = append(opts, filtering.WithEventPublisher(
			filtering.NewConfigEventProducer(a.Producer, a.Config.Broker.Kafka.ConfigUpdateTopic),
		))
	}

	a.service = filtering.NewService(a.Config.Filtering, a.Logger, opts...)
}

func (a *App) initHTTPServer(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}
	if a.Config.RateLimit.Enabled {
		router.Use(ratelimit.RateLimitMiddleware(ctx, ratelimit.FromConfig(a.Config.RateLimit)))
	}
	router.Use(middleware.BodyLimitMiddleware(a.Config.Server.MaxBodyBytes))

	registry := health.NewCheckerRegistry()
	if a.db != nil {
		registry.Register(health.NewPostgreSQLChecker(a.db.DB))
	}
	if a.redis != nil {
		registry.Register(health.NewRedisChecker(a.redis))
	}
	router.GET("/health", registry.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	filtering.NewHandler(a.service, a.Logger).RegisterRoutes(router)

	a.router = router
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.StreamingEnabled() {
		a.runStream(gCtx, g)
	}

	return g.Wait()
}

// runStream starts the reload loop, the config event consumer and the input
// consumer.
func (a *App) runStream(ctx context.Context, g *errgroup.Group) {
	kafkaCfg := a.Config.Broker.Kafka

	g.Go(func() error {
		return a.service.StartReloader(ctx)
	})

	configConsumer, err := a.newConfigConsumer()
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Failed to create config event consumer, event-driven reload disabled",
			"error", err,
		)
	} else {
		eventHandler := filtering.NewEventHandler(a.service, a.Logger)
		g.Go(func() error {
			defer configConsumer.Close()
			a.Logger.InfowCtx(ctx, "Starting config update event consumer",
				"topic", kafkaCfg.ConfigUpdateTopic,
			)
			return configConsumer.Consume(ctx, kafkaCfg.ConfigUpdateTopic, eventHandler.HandleConfigUpdateEvent)
		})
	}

	handler := filtering.NewStreamHandler(a.service, a.Producer, kafkaCfg.OutputTopic, a.Logger)
	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "Starting stream filtering",
			"input_topic", kafkaCfg.InputTopic,
			"output_topic", kafkaCfg.OutputTopic,
		)
		return a.Consumer.Consume(ctx, kafkaCfg.InputTopic, handler)
	})
}

// newConfigConsumer joins a group of its own so every instance sees every
// config event.
func (a *App) newConfigConsumer() (broker.Consumer, error) {
	cfg := a.Config.Broker
	cfg.Kafka.GroupID = fmt.Sprintf("%s-config-%s", cfg.Kafka.GroupID, uuid.NewString()[:8])
	cfg.Kafka.DLQTopic = ""

	consumer, err := broker.NewConsumer(cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	consumer.SetServiceName(constants.ServiceName)
	return consumer, nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(ctx, "Shutting down sieve")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(a.redis, a.db)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
