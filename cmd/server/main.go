package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gxvn1/GxvnsChatApp/internal/config"
	"github.com/gxvn1/GxvnsChatApp/internal/identity"
	"github.com/gxvn1/GxvnsChatApp/internal/logging"
	"github.com/gxvn1/GxvnsChatApp/internal/presence"
	"github.com/gxvn1/GxvnsChatApp/internal/router"
	"github.com/gxvn1/GxvnsChatApp/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupIdentity picks the user store: Postgres when DATABASE_URL is set,
// otherwise in-memory (accounts vanish on restart).
func setupIdentity(cfg *config.Config) (identity.Store, *pgxpool.Pool) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory identity store")
		return identity.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := identity.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := identity.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return identity.NewPostgresStore(pool), pool
}

// setupPresence picks the last-seen store: Redis when REDIS_URL is set,
// otherwise in-memory.
func setupPresence(cfg *config.Config, clock clockwork.Clock) (presence.Store, *goredis.Client) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, using in-memory presence store")
		return presence.NewMemoryStore(clock), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb, err := presence.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	return presence.NewRedisStore(rdb, clock), rdb
}

func runGracefulShutdown(srv *server.Server, rt *router.Router) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		rt.Stop()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	store, pool := setupIdentity(cfg)
	if pool != nil {
		defer pool.Close()
	}

	pres, redisClient := setupPresence(cfg, clock)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	rt := router.NewRouter(store, pres, clock)

	// Readiness pings the database only when one is configured.
	var pinger server.Pinger
	if pgStore, ok := store.(*identity.PostgresStore); ok {
		pinger = pgStore
	}

	srv := server.NewServer(cfg, rt, pres, pinger, clock)

	done := runGracefulShutdown(srv, rt)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
