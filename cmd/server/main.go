// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/trivia/internal/auth"
	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/jason-s-yu/trivia/internal/config"
	"github.com/jason-s-yu/trivia/internal/database"
	"github.com/jason-s-yu/trivia/internal/handlers"
	"github.com/jason-s-yu/trivia/internal/metrics"
	"github.com/jason-s-yu/trivia/internal/session"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := newLogger(cfg)

	if cfg.TokenPublicKeyPath != "" {
		if err := auth.InitFromPath(cfg.TokenPublicKeyPath); err != nil {
			logger.Fatalf("auth: %v", err)
		}
	} else {
		logger.Warn("TOKEN_PUBLIC_KEY_PATH not set, using an ephemeral key pair")
		auth.Init()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.ConnectDB(ctx, cfg.PostgresURL(), logger)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.ApplySchema(ctx, pool); err != nil {
		logger.Fatalf("database: %v", err)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	rec := metrics.NewRecorder()
	gs := handlers.NewGameServer(database.NewGameRepository(pool), logger,
		handlers.WithScorePublisher(cache.NewScoreQueue(rdb, cfg.ScoreQueueName)),
		handlers.WithResultArchive(cache.NewResultArchive(rdb, cfg.ArchiveTTL)),
		handlers.WithMetrics(rec),
		handlers.WithSessionOptions(session.WithTTL(cfg.SessionTTL)),
	)
	go gs.Registry.Run(ctx, cfg.SweepInterval)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewAPIHandler(gs, handlers.APIConfig{
			Logger:           logger,
			Metrics:          rec,
			WSOriginPatterns: cfg.WSOriginPatterns,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("graceful shutdown failed")
		}
	}()

	logger.Infof("Running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("server stopped")
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
