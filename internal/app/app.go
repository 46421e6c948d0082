package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/utafrali/auth-service/internal/auth"
	"github.com/utafrali/auth-service/internal/config"
	"github.com/utafrali/auth-service/internal/event"
	handler "github.com/utafrali/auth-service/internal/handler/http"
	"github.com/utafrali/auth-service/internal/mailer"
	"github.com/utafrali/auth-service/internal/metrics"
	"github.com/utafrali/auth-service/internal/repository"
	mongorepo "github.com/utafrali/auth-service/internal/repository/mongo"
	"github.com/utafrali/auth-service/internal/repository/postgres"
	redisrepo "github.com/utafrali/auth-service/internal/repository/redis"
	"github.com/utafrali/auth-service/internal/service"
	"github.com/utafrali/auth-service/migrations"
	"github.com/utafrali/auth-service/pkg/database"
	"github.com/utafrali/auth-service/pkg/health"
	"github.com/utafrali/auth-service/pkg/httpclient"
	pkgkafka "github.com/utafrali/auth-service/pkg/kafka"
	"github.com/utafrali/auth-service/pkg/middleware"
	"github.com/utafrali/auth-service/pkg/tracing"
)

// closer releases one resource during shutdown.
type closer struct {
	name string
	fn   func(context.Context) error
}

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	dispatcher     *mailer.Dispatcher
	producer       *pkgkafka.Producer
	tracerShutdown tracing.ShutdownFunc
	// closers run in reverse order after the HTTP server and mail drain.
	closers []closer
}

// NewApp creates a new application instance, initializing all dependencies.
// Resources opened before a failure are released before returning.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.closeAll(context.Background())
		}
	}()

	a.tracerShutdown, err = tracing.Init(ctx, tracing.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		SampleRate:     cfg.TracingSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	authMetrics := metrics.NewAuthMetrics(reg)
	healthHandler := health.NewHandler()

	if cfg.DBSlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.DBSlowQueryThreshold, logger)
	}

	hasher := auth.NewHasher(cfg.BcryptCost)
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:       cfg.AccessTokenSecret,
		RefreshSecret:      cfg.RefreshTokenSecret,
		VerificationSecret: cfg.VerificationTokenSecret,
		AccessTTL:          cfg.AccessTokenTTL,
		RefreshTTL:         cfg.RefreshTokenTTL,
		VerificationTTL:    cfg.VerificationTokenTTL,
		Issuer:             cfg.TokenIssuer,
	})
	if err != nil {
		return nil, fmt.Errorf("init token service: %w", err)
	}

	users, err := a.openStore(ctx, hasher, healthHandler, reg)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{service.WithMetrics(authMetrics)}

	if cfg.RedisEnabled {
		client, err := database.NewRedisClient(ctx, database.RedisConfig{URL: cfg.RedisURL})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.addCloser("redis", func(context.Context) error { return client.Close() })
		logger.Info("connected to Redis, access-token revocation enabled")

		revocations := redisrepo.NewRevocationStore(client)
		healthHandler.Register("redis", revocations.Ping)
		opts = append(opts, service.WithRevoker(revocations))
	}

	var events event.Publisher = event.NoopPublisher{}
	var eventProducer *event.Producer
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		eventProducer = event.NewProducer(a.producer, logger)
		events = eventProducer
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	sender := a.newSender(reg, eventProducer)
	a.dispatcher = mailer.NewDispatcher(sender, mailer.DispatcherConfig{
		Timeout: cfg.MailSendTimeout,
		LinkTTL: cfg.VerificationTokenTTL,
	}, logger, authMetrics)
	logger.Info("verification mail sender selected", slog.String("sender", sender.Name()))

	authService := service.NewAuthService(users, hasher, tokens, a.dispatcher, events,
		service.Config{VerificationURL: cfg.VerificationURL}, logger, opts...)

	router := handler.NewRouter(authService, healthHandler, reg,
		middleware.NewHTTPMetrics(reg, cfg.ServiceName), logger, handler.RouterConfig{
			ServiceName: cfg.ServiceName,
			BasePath:    cfg.APIBasePath,
			CORS: middleware.CORSConfig{
				AllowedOrigins:   cfg.CORSAllowedOrigins,
				AllowCredentials: true,
			},
			Cookie: handler.CookieConfig{
				Secure: cfg.IsProduction(),
				MaxAge: cfg.RefreshTokenTTL,
			},
		})

	a.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// openStore connects the configured credential store and registers its
// health check.
func (a *App) openStore(ctx context.Context, hasher *auth.Hasher, healthHandler *health.Handler, reg prometheus.Registerer) (repository.UserRepository, error) {
	cfg := a.cfg

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := database.NewMongoClient(ctx, database.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, err
		}
		a.addCloser("mongo", client.Disconnect)
		a.logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDatabase))

		db := client.Database(cfg.MongoDatabase)
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		healthHandler.Register("mongo", func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		})
		return mongorepo.NewUserRepository(db, hasher), nil

	default:
		pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
			URL:             cfg.DatabaseURL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: cfg.DBMaxConnLifetime,
			MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.addCloser("postgres", func(context.Context) error {
			pool.Close()
			return nil
		})
		a.logger.Info("connected to PostgreSQL")
		reg.MustRegister(database.NewPoolStatsCollector(pool, cfg.ServiceName))

		if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.logger.Info("database migrations completed")

		healthHandler.Register("postgres", pool.Ping)
		return postgres.NewUserRepository(pool, hasher), nil
	}
}

// newSender builds the verification mail transport named by MAIL_DRIVER.
func (a *App) newSender(reg prometheus.Registerer, producer *event.Producer) mailer.Sender {
	cfg := a.cfg

	switch cfg.MailDriver {
	case config.MailResend:
		client := mailer.NewResendClient(cfg.MailSendTimeout, a.logger, httpclient.NewBreakerMetrics(reg))
		return mailer.NewResendSender(client, cfg.ResendBaseURL, cfg.ResendAPIKey, cfg.MailFrom)
	case config.MailKafka:
		return mailer.NewKafkaSender(producer)
	default:
		return mailer.NewLogSender(a.logger)
	}
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("base_path", a.cfg.APIBasePath),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Verification emails still being sent
// 3. Tracer (flush pending spans)
// 4. Kafka producer
// 5. Stores
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.dispatcher.Wait(ctx); err != nil {
		a.logger.Error("verification emails not drained", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeAll(ctx); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeAll flushes the tracer, closes the kafka producer and releases the
// stores.
func (a *App) closeAll(ctx context.Context) error {
	var errs []error

	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Error("close error", slog.String("resource", c.name), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
