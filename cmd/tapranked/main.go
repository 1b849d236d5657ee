// Package main запускает HTTP-сервер сервиса tapranked.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/tapranked/internal/config"
	"github.com/mmeshcher/tapranked/internal/handler"
	"github.com/mmeshcher/tapranked/internal/logger"
	"github.com/mmeshcher/tapranked/internal/metrics"
	"github.com/mmeshcher/tapranked/internal/middleware"
	"github.com/mmeshcher/tapranked/internal/ratelimit"
	"github.com/mmeshcher/tapranked/internal/repository"
	"github.com/mmeshcher/tapranked/internal/service"
)

const localLimiterIdleTTL = time.Hour

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger initialization error: %v", err)
	}
	defer lg.Sync()

	sugar := lg.Sugar()

	repo, err := newRepository(cfg, lg)
	if err != nil {
		sugar.Fatalw("storage initialization error", "error", err.Error())
	}

	limiter, closeLimiter := newLimiter(cfg, lg)
	defer closeLimiter()

	m := metrics.New()

	svc := service.NewService(repo, service.Options{
		SuperAdminEmail: cfg.SuperAdminEmail,
		SessionTTL:      cfg.SessionTTL,
		Metrics:         m,
		Logger:          lg,
	})
	defer svc.Close()

	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is empty, session cookies will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret, svc, cfg.SecureCookies)
	rateLimiter := middleware.NewRateLimiter(limiter, m, lg)
	h := handler.NewHandler(svc, lg, authMiddleware, rateLimiter, m)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return svc.RunSessionSweeper(ctx, cfg.SessionSweepInterval)
	})

	g.Go(func() error {
		sugar.Infow("starting tapranked server", "addr", cfg.RunAddress, "demo", cfg.DemoMode())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// newRepository выбирает хранилище: PostgreSQL при заданном DATABASE_URI, иначе демо-данные в памяти.
func newRepository(cfg *config.Config, lg *zap.Logger) (service.Repository, error) {
	if !cfg.DemoMode() {
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}

	lg.Warn("DATABASE_URI is empty, running in demo mode with in-memory storage")
	repo := repository.NewMemoryRepository()
	if err := repo.SeedDemo(context.Background()); err != nil {
		return nil, fmt.Errorf("seed demo data: %w", err)
	}
	return repo, nil
}

// newLimiter выбирает лимитер: общий в Redis при заданном REDIS_ADDR, иначе локальный.
func newLimiter(cfg *config.Config, lg *zap.Logger) (ratelimit.Limiter, func()) {
	if cfg.RedisAddr == "" {
		lg.Info("REDIS_ADDR is empty, rate limits are per process")
		return ratelimit.NewLocalLimiter(localLimiterIdleTTL), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return ratelimit.NewRedisLimiter(client), func() {
		if err := client.Close(); err != nil {
			lg.Warn("close redis client", zap.Error(err))
		}
	}
}
