package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"smartledger/backend/internal/cache"
	"smartledger/backend/internal/config"
	"smartledger/backend/internal/domain"
	"smartledger/backend/internal/httpapi"
	"smartledger/backend/internal/logger"
	"smartledger/backend/internal/metrics"
	"smartledger/backend/internal/report"
	"smartledger/backend/internal/service"
	"smartledger/backend/internal/store"
	"smartledger/backend/internal/store/memory"
	"smartledger/backend/internal/store/sqlstore"
)

const serviceName = "smartledger"

func main() {
	cfg := config.Load()

	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, Environment: cfg.AppEnv, ServiceName: serviceName})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		zlog.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		zlog.Fatal("repository unavailable", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}
	zlog.Info("repository ready", zap.String("driver", cfg.StoreDriver))

	summaryCache := cache.SummaryCache(cache.NoopSummaryCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			zlog.Warn("redis unavailable, dashboard cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = redisCache.Close()
		} else {
			summaryCache = redisCache
			closers = append(closers, redisCache.Close)
			zlog.Info("dashboard cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		zlog.Info("dashboard cache: noop")
	}

	m := metrics.New(serviceName)
	reports := report.NewBuilder(repo, summaryCache, time.Duration(cfg.DashboardCacheTTLSeconds)*time.Second, m, zlog)
	svc := service.New(repo, reports, m, zlog)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	created, err := auth.EnsureUser(ctx, "admin", cfg.AdminPassword, domain.RoleAdmin)
	if err != nil {
		zlog.Fatal("bootstrap admin account", zap.Error(err))
	}
	if created {
		zlog.Info("admin account created")
	}

	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin:      cfg.AllowedOrigin,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		Metrics:            m,
		Logger:             zlog,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("ledger backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zlog.Error("close error", zap.Error(err))
		}
	}

	zlog.Info("server stopped")
}

// openRepository returns the store selected by STORE_DRIVER. SQL stores are
// migrated before use; the returned closer is nil for the in-memory store.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	var (
		sqlStore *sqlstore.Store
		err      error
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		return memory.NewSeeded(), nil, nil
	case config.StoreDriverPostgres:
		sqlStore, err = sqlstore.OpenPostgres(ctx, cfg.DatabaseURL)
	case config.StoreDriverSQLite:
		sqlStore, err = sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := sqlStore.Migrate(ctx); err != nil {
		_ = sqlStore.Close()
		return nil, nil, fmt.Errorf("migrate %s: %w", sqlStore.Dialect(), err)
	}
	return sqlStore, sqlStore.Close, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be set and at least 8 characters")
	}
	return nil
}
