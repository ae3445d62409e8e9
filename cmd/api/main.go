// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Yomira passport server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration (defaults, YAML file, environment overrides).
//  3. Connect to PostgreSQL (pgxpool) and Redis.
//  4. Run database migrations (idempotent).
//  5. Wire the token codec, SMS controller, auth and account services.
//  6. Start the session sweeper and, when enabled, register in ZooKeeper.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/taibuivan/yomira-passport/internal/api"
	"github.com/taibuivan/yomira-passport/internal/platform/cache"
	"github.com/taibuivan/yomira-passport/internal/platform/config"
	"github.com/taibuivan/yomira-passport/internal/platform/constants"
	"github.com/taibuivan/yomira-passport/internal/platform/migration"
	pgstore "github.com/taibuivan/yomira-passport/internal/platform/postgres"
	redisstore "github.com/taibuivan/yomira-passport/internal/platform/redis"
	"github.com/taibuivan/yomira-passport/internal/platform/sec"
	"github.com/taibuivan/yomira-passport/internal/registry"
	"github.com/taibuivan/yomira-passport/internal/sms"
	"github.com/taibuivan/yomira-passport/internal/sweeper"
	"github.com/taibuivan/yomira-passport/internal/users/account"
	"github.com/taibuivan/yomira-passport/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	configPath := flag.String("config", os.Getenv("PASSPORT_CONFIG"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	must(log, err, "load configuration")

	if cfg.Server.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Server.Environment),
		slog.String("port", cfg.Server.Port),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.Database.DSN, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.Redis.URL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_error", slog.Any("error", cerr))
		}
	}()
	store := cache.NewRedisStore(rdb)

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.Database.DSN, cfg.Server.MigrationPath, log), "run migrations")

	// ── 6. Token Codec ────────────────────────────────────────────────────
	codec, err := sec.NewTokenCodec(
		cfg.Security.JWTSecret,
		cfg.Security.JWTIssuer,
		cfg.Security.AccessTTL(),
		cfg.Security.RefreshTTL(),
	)
	must(log, err, "initialize token codec")

	// ── 7. SMS Controller ─────────────────────────────────────────────────
	sender, err := sms.NewGatewaySender(startupCtx, cfg.SmsGateway.Addr, cfg.SmsGateway.PoolSize, log)
	must(log, err, "connect to sms gateway")
	defer sender.Close()

	smsController := sms.NewController(store, sender, sms.Config{
		CodeLength:   cfg.Sms.CodeLength,
		CodeTTL:      cfg.Sms.CodeTTL(),
		SendInterval: cfg.Sms.SendInterval(),
		MaxRetry:     int64(cfg.Sms.MaxRetryCount),
		RetryTTL:     cfg.Sms.RetryTTL(),
		LockDuration: cfg.Sms.LockDuration(),
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	userRepository := auth.NewUserRepository(pool)
	sessionRepository := auth.NewSessionRepository(pool)
	loginLimiter := auth.NewLoginLimiter(store, auth.LimiterConfig{
		MaxFailed:    int64(cfg.Login.MaxFailedAttempts),
		Window:       cfg.Login.AttemptsWindow(),
		LockDuration: cfg.Login.LockDuration(),
	}, log)

	authService := auth.NewService(
		userRepository, sessionRepository, loginLimiter, codec, smsController,
		cfg.Password.Policy(), int64(cfg.Login.MaxSessionsPerUser), log,
	)
	authHandler := auth.NewHandler(authService, smsController)

	accountStore := account.NewStore(pool)
	accountService := account.NewService(accountStore, accountStore, smsController, cfg.Password.Policy(), log)
	accountHandler := account.NewHandler(accountService)

	// ── 9. Session Sweeper ────────────────────────────────────────────────
	sessionSweeper := sweeper.New(sessionRepository, cfg.Sweeper.Interval(), log)
	sessionSweeper.Start()
	defer sessionSweeper.Stop()

	// ── 10. Service Registry ──────────────────────────────────────────────
	if cfg.Zookeeper.Enabled {
		zkConn, err := registry.Connect(cfg.Zookeeper.Hosts, cfg.Zookeeper.SessionTimeout(), log)
		must(log, err, "connect to zookeeper")
		defer zkConn.Close()

		if cfg.Zookeeper.RegisterSelf {
			registrar := registry.NewRegistry(zkConn, cfg.Zookeeper.RootPath, log)
			must(log, registrar.Register(registry.ServiceInstance{
				ServiceName: cfg.Zookeeper.ServiceName,
				Host:        cfg.Server.Host,
				Port:        mustPort(log, cfg.Server.Port),
				Weight:      int64(cfg.Zookeeper.Weight),
			}), "register service instance")
			defer func() {
				if uerr := registrar.Unregister(); uerr != nil {
					log.Error("registry_unregister_failed", slog.Any("error", uerr))
				}
			}()
		}
	}

	// ── 11. Health handlers (wired with real dependency checkers) ─────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 12. HTTP Server ───────────────────────────────────────────────────
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, codec, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Account:   accountHandler,
	})

	// ── 13. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting_down_server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// mustPort parses the configured listen port, terminating on nonsense.
func mustPort(log *slog.Logger, port string) int {
	parsed, err := strconv.Atoi(port)
	if err != nil || parsed <= 0 {
		log.Error("startup failure",
			slog.String("context", "parse server port"),
			slog.String("port", port),
		)
		os.Exit(1)
	}
	return parsed
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
