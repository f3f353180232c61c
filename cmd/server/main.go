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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	echoapi "github.com/pilab-dev/talent-auth/api/echo"
	"github.com/pilab-dev/talent-auth/config"
	"github.com/pilab-dev/talent-auth/domain"
	"github.com/pilab-dev/talent-auth/internal/audit"
	"github.com/pilab-dev/talent-auth/internal/auth"
	"github.com/pilab-dev/talent-auth/internal/federation"
	"github.com/pilab-dev/talent-auth/internal/metrics"
	"github.com/pilab-dev/talent-auth/internal/ratelimit"
	"github.com/pilab-dev/talent-auth/log"
	"github.com/pilab-dev/talent-auth/memory"
	"github.com/pilab-dev/talent-auth/middleware"
	"github.com/pilab-dev/talent-auth/mongodb"
	"github.com/pilab-dev/talent-auth/postgres"
	"github.com/pilab-dev/talent-auth/services"
	"github.com/pilab-dev/talent-auth/tracing"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("AUTHD_CONFIG_FILE"))
	if err != nil {
		stdLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	zl := log.Setup(cfg.LogLevel, cfg.LogPretty)
	appLogger := log.NewZerologAdapter(zl)
	audit.SetOutput(zl.With().Str("component", "audit").Logger())

	ctx := context.Background()
	appLogger.Info(ctx, "Starting talent-auth server", map[string]interface{}{
		"http_addr":          cfg.HTTPAddr,
		"storage_backend":    cfg.StorageBackend,
		"rate_limit_backend": cfg.RateLimit.Backend,
	})

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error(ctx, "Server exited with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger log.Logger) error {
	var closers []func(context.Context) error
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](shutdownCtx); err != nil {
				appLogger.Warn(shutdownCtx, "Error during shutdown", map[string]interface{}{"error": err.Error()})
			}
		}
	}()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracerProvider(cfg.Tracing.ServiceName, os.Stdout)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		closers = append(closers, tp.Shutdown)
	}

	repos, health, storeClosers, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, storeClosers...)

	router, err := services.NewAccountRouter(repos...)
	if err != nil {
		return err
	}

	tokenService, err := services.NewTokenServiceFromConfig(cfg.Token)
	if err != nil {
		return fmt.Errorf("init token service: %w", err)
	}

	var verifier federation.IdentityVerifier
	if cfg.Google.ClientID != "" {
		issuer := cfg.Google.IssuerURL
		if issuer == "" {
			issuer = federation.GoogleIssuerURL
		}
		v, err := federation.NewIDTokenVerifier(ctx, "google", issuer, cfg.Google.ClientID)
		if err != nil {
			return fmt.Errorf("init google verifier: %w", err)
		}
		verifier = v
	} else {
		appLogger.Warn(ctx, "google.client_id not set; federated sign-in is disabled")
	}

	limiter, limiterCloser, err := newLimiter(cfg)
	if err != nil {
		return err
	}
	closers = append(closers, limiterCloser)

	identity := services.NewIdentityService(
		router,
		verifier,
		auth.NewBcryptPasswordHasher(cfg.Password.BcryptCost),
		tokenService,
		services.PasswordPolicy{MinLength: cfg.Password.MinLength},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	extractor, err := middleware.NewIPExtractor(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted_proxies: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = extractor
	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(cfg.Tracing.ServiceName))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestLogger(appLogger.With(map[string]interface{}{"component": "http"})))

	echoapi.NewAuthAPI(identity, tokenService, limiter).RegisterRoutes(e)
	echoapi.RegisterOpsRoutes(e, registry, health)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": cfg.HTTPAddr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info(ctx, fmt.Sprintf("Received signal: %v. Shutting down server...", sig))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	appLogger.Info(ctx, "HTTP server stopped")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) ([]domain.AccountRepository, map[string]echoapi.HealthCheck, []func(context.Context) error, error) {
	var repos []domain.AccountRepository

	switch cfg.StorageBackend {
	case config.StorageTypeMongoDB:
		client, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
		if err != nil {
			return nil, nil, nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		for _, kind := range domain.AccountKinds {
			repo, err := mongodb.NewAccountRepository(ctx, db, kind)
			if err != nil {
				_ = client.Disconnect(ctx)
				return nil, nil, nil, err
			}
			repos = append(repos, repo)
		}
		health := map[string]echoapi.HealthCheck{
			"mongodb": func(ctx context.Context) error { return mongodb.Ping(ctx, client) },
		}
		return repos, health, []func(context.Context) error{client.Disconnect}, nil

	case config.StorageTypePostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		for _, kind := range domain.AccountKinds {
			repo, err := postgres.NewAccountRepository(pool, kind)
			if err != nil {
				pool.Close()
				return nil, nil, nil, err
			}
			repos = append(repos, repo)
		}
		health := map[string]echoapi.HealthCheck{"postgres": pool.Ping}
		closer := func(context.Context) error { pool.Close(); return nil }
		return repos, health, []func(context.Context) error{closer}, nil

	default:
		for _, kind := range domain.AccountKinds {
			repos = append(repos, memory.NewAccountRepository(kind))
		}
		return repos, map[string]echoapi.HealthCheck{}, nil, nil
	}
}

func newLimiter(cfg *config.Config) (ratelimit.Limiter, func(context.Context) error, error) {
	rlCfg := ratelimit.Config{MaxAttempts: cfg.RateLimit.MaxAttempts, Window: cfg.RateLimit.Window}

	if cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		prefix := cfg.Redis.Prefix
		if prefix != "" && !strings.HasSuffix(prefix, ":") {
			prefix += ":"
		}
		return ratelimit.NewRedisLimiter(rdb, prefix, rlCfg), func(context.Context) error { return rdb.Close() }, nil
	}

	l := ratelimit.NewMemoryLimiter(rlCfg)
	return l, func(context.Context) error { l.Close(); return nil }, nil
}
