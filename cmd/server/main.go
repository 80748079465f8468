package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"aqualedger/backend/internal/auth"
	"aqualedger/backend/internal/backup"
	"aqualedger/backend/internal/cache"
	"aqualedger/backend/internal/clock"
	"aqualedger/backend/internal/config"
	"aqualedger/backend/internal/httpapi"
	"aqualedger/backend/internal/logging"
	"aqualedger/backend/internal/service"
	"aqualedger/backend/internal/store"
	"aqualedger/backend/internal/store/memory"
	pgstore "aqualedger/backend/internal/store/postgres"
	"aqualedger/backend/internal/store/rediskv"
	"aqualedger/backend/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal("invalid timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}
	clk := clock.System(loc)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		closers = append(closers, redisClient.Close)
	}

	port, closeStore, err := openStore(ctx, cfg, redisClient)
	if err != nil {
		logger.Fatal("document store unavailable; refusing to start", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}
	logger.Info("document store ready", zap.String("driver", cfg.StoreDriver))

	var sessions cache.SessionCache = cache.NewMemorySessionCache()
	if redisClient != nil {
		redisSessions := cache.NewRedisSessionCache(redisClient)
		if err := redisSessions.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, keeping sessions in memory", zap.Error(err))
		} else {
			sessions = redisSessions
			logger.Info("session cache: redis")
		}
	}

	cols := store.NewCollections(port)
	authManager := auth.NewManager(cols.Users, sessions, cfg.AuthSecret,
		time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, clk, logger)
	if cfg.SeedAdminPassword != "" {
		seeded, err := authManager.SeedAdmin(ctx, cfg.SeedAdminUsername, cfg.SeedAdminPassword)
		if err != nil {
			logger.Fatal("seed admin failed", zap.Error(err))
		}
		if seeded {
			logger.Info("seeded initial admin", zap.String("username", cfg.SeedAdminUsername))
		}
	}

	svc := service.New(cols, clk, logger)
	if cfg.Backup.Enabled() {
		uploader, err := backup.NewS3Uploader(ctx, cfg.Backup, logger)
		if err != nil {
			logger.Fatal("backup storage misconfigured", zap.Error(err))
		}
		svc.SetBackupUploader(uploader)
		logger.Info("backups enabled", zap.String("bucket", cfg.Backup.Bucket))
	}

	api := httpapi.New(svc, authManager, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("water delivery backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// openStore builds the document store for cfg.StoreDriver. The returned
// closer is nil when the driver owns nothing to release.
func openStore(ctx context.Context, cfg config.Config, redisClient *redis.Client) (store.Port, func() error, error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return memory.New(), nil, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case "sqlite":
		lite, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return lite, lite.Close, nil
	case "redis":
		if redisClient == nil {
			return nil, nil, errors.New("REDIS_ADDR is required for the redis driver")
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		// The shared client is closed once by main.
		return rediskv.New(redisClient, ""), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.SeedAdminPassword != "" && len(cfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
