package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arklim/autodoc-access/internal/core/port"
	"github.com/arklim/autodoc-access/internal/identity"
	"github.com/arklim/autodoc-access/internal/infra/config"
	"github.com/arklim/autodoc-access/internal/infra/database"
	kafkainfra "github.com/arklim/autodoc-access/internal/infra/kafka"
	"github.com/arklim/autodoc-access/internal/infra/logger"
	redisinfra "github.com/arklim/autodoc-access/internal/infra/redis"
	"github.com/arklim/autodoc-access/internal/infra/security"
	"github.com/arklim/autodoc-access/internal/infra/telemetry"
	"github.com/arklim/autodoc-access/internal/repository/memory"
	postgresrepo "github.com/arklim/autodoc-access/internal/repository/postgres"
	redisrepo "github.com/arklim/autodoc-access/internal/repository/redis"
	transportgrpc "github.com/arklim/autodoc-access/internal/transport/grpc"
	grpcinterceptors "github.com/arklim/autodoc-access/internal/transport/grpc/interceptors"
	"github.com/arklim/autodoc-access/internal/transport/http/middleware"
	"github.com/arklim/autodoc-access/internal/transport/http/routes"
	"github.com/arklim/autodoc-access/internal/usecase"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	shutdownTimeout = 10 * time.Second
)

// Application owns the HTTP engine, the optional gRPC server and every
// resource that must be released on shutdown.
type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	tracer     *telemetry.TracerProvider
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

// Option customises New.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
}

// WithLogger replaces the logger built from the environment.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithRegisterer sets the Prometheus registerer used for every collector.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

type backend struct {
	identity     identity.Repositories
	endpoints    port.EndpointRepository
	llmResponses port.LLMResponseRepository
}

// New wires the application. Resources acquired before a failure are released.
func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (_ *Application, err error) {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		log, err = logger.New(cfg.App.Env)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	a := &Application{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	accessMetrics, err := telemetry.NewAccessMetrics(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("init access metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: o.registerer})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	repos, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	provider, err := identity.NewProvider(repos.identity, hasher, identity.Config{
		Secret:     cfg.Identity.Secret,
		Issuer:     cfg.Identity.Issuer,
		SessionTTL: cfg.Identity.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init identity provider: %w", err)
	}
	provider.WithLogger(log)

	lock, rateStore, err := a.openCoordination(ctx)
	if err != nil {
		return nil, err
	}

	events := a.openEvents()

	strategy, err := usecase.ParseRegistrationStrategy(cfg.Access.RegistrationStrategy)
	if err != nil {
		return nil, fmt.Errorf("registration strategy: %w", err)
	}

	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength:           cfg.Password.MinLength,
		MinCharacterClasses: cfg.Password.MinCharacterClasses,
		MinStrengthScore:    cfg.Password.MinStrengthScore,
	})

	authorizer := usecase.NewAuthorizer(provider, accessMetrics, log)
	services := routes.ServiceSet{
		Accounts: usecase.NewAccountService(provider, policy, strategy, log).
			WithEvents(events).
			WithMetrics(accessMetrics).
			WithAPIKeyTTL(cfg.Access.APIKeyTTL),
		Invitations: usecase.NewInvitationService(provider, lock, policy, usecase.InvitationOptions{
			BaseURL:          cfg.Access.BaseURL,
			TTL:              cfg.Access.InvitationTTL,
			InvitePermission: cfg.Access.InvitePermission,
			APIKeyTTL:        cfg.Access.APIKeyTTL,
			LockTTL:          cfg.Access.AcceptLockTTL,
		}, log).
			WithEvents(events).
			WithMetrics(accessMetrics),
		Catalog:      usecase.NewCatalogService(provider, repos.endpoints, log),
		LLMResponses: usecase.NewLLMResponseService(repos.llmResponses),
		Authorizer:   authorizer,
	}

	if cfg.GRPC.Enabled {
		grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: o.registerer})
		if err != nil {
			return nil, fmt.Errorf("init grpc metrics: %w", err)
		}
		a.grpcServer, err = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Authorizer:     authorizer,
			Metrics:        grpcMetrics,
			TracerProvider: a.tracer.TracerProvider(),
			Logger:         log,
		})
		if err != nil {
			return nil, fmt.Errorf("init grpc server: %w", err)
		}
		a.grpcAddr = fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	}

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateStore, log),
		HTTPMetrics: httpMetrics,
		Services:    services,
	}
	// Typed nils must not reach the readiness checks.
	if a.pool != nil {
		deps.Database = a.pool
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	return a, nil
}

// Handler exposes the HTTP engine.
func (a *Application) Handler() http.Handler {
	return a.engine
}

func (a *Application) openBackend(ctx context.Context) (backend, error) {
	switch strings.ToLower(strings.TrimSpace(a.cfg.Identity.Backend)) {
	case "", BackendMemory:
		a.logger.Warn("using in-memory identity backend; data is lost on restart")
		repos := memory.NewRepositories(memory.NewStore())
		return backend{
			identity: identity.Repositories{
				Users:         repos.Users,
				Organizations: repos.Organizations,
				Invitations:   repos.Invitations,
				APIKeys:       repos.APIKeys,
				Sessions:      repos.Sessions,
			},
			endpoints:    repos.Endpoints,
			llmResponses: repos.LLMResponses,
		}, nil
	case BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return backend{}, fmt.Errorf("init postgres: %w", err)
		}
		a.pool = pool

		if a.cfg.Postgres.AutoMigrate {
			migrator, err := database.NewMigrator(pool, a.logger)
			if err != nil {
				return backend{}, fmt.Errorf("init migrator: %w", err)
			}
			if err := migrator.Up(ctx); err != nil {
				return backend{}, fmt.Errorf("apply migrations: %w", err)
			}
		}

		repos := postgresrepo.NewRepositories(pool)
		return backend{
			identity: identity.Repositories{
				Users:         repos.Users,
				Organizations: repos.Organizations,
				Invitations:   repos.Invitations,
				APIKeys:       repos.APIKeys,
				Sessions:      repos.Sessions,
			},
			endpoints:    repos.Endpoints,
			llmResponses: repos.LLMResponses,
		}, nil
	default:
		return backend{}, fmt.Errorf("unknown identity backend %q", a.cfg.Identity.Backend)
	}
}

func (a *Application) openCoordination(ctx context.Context) (port.InvitationLock, port.RateLimitStore, error) {
	if !a.cfg.Redis.Enabled {
		return memory.NewInvitationLock(), memory.NewRateLimitStore(), nil
	}

	client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis: %w", err)
	}
	a.redis = client

	window := a.cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}
	rateStore := redisrepo.NewRateLimitRepository(client.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: client.Key("rate-limit"),
		TTL:       window * 2,
	})
	lock := redisrepo.NewInvitationLock(client.Client(), client.Key())
	return lock, rateStore, nil
}

func (a *Application) openEvents() port.EventPublisher {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka disabled, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

// Run serves HTTP and, when enabled, gRPC until ctx is cancelled or a server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.release(shutdownCtx)
	}()

	grpcErrCh := make(chan error, 1)
	if a.grpcServer != nil && a.grpcAddr != "" {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		go func() {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("gRPC server panicked", zap.Any("panic", r))
					grpcErrCh <- fmt.Errorf("grpc server panicked: %v", r)
				}
			}()
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting access boundary API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("registration_strategy", a.cfg.Access.RegistrationStrategy),
		zap.String("backend", a.cfg.Identity.Backend),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-grpcErrCh:
		return err
	}
}

// release stops the gRPC server and closes every backing resource. Safe to call more than once.
func (a *Application) release(ctx context.Context) {
	if a.grpcServer != nil {
		a.grpcServer.Shutdown()
		a.grpcServer = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
		a.tracer = nil
	}
}

// Close releases resources without running the servers.
func (a *Application) Close(ctx context.Context) {
	a.release(ctx)
}
