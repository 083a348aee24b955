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

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"practice-service/internal/config"
	"practice-service/internal/logging"
	"practice-service/internal/practice"
	"practice-service/internal/submission"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "practice-service: config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "practice-service: logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("practice-service stopped", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("pg: %w", err)
	}
	defer pool.Close()
	if err := practice.AutoMigrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Redis is optional; without it events stay local to this process
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
	}

	if err := os.MkdirAll(cfg.AudioDir, 0o755); err != nil {
		return fmt.Errorf("audio dir: %w", err)
	}

	srv := practice.NewServer(pool, rdb, practice.Config{
		AudioDir:       cfg.AudioDir,
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
		LoopInterval:   cfg.LoopPollInterval,
		MicTimeout:     cfg.MicTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	}, log)

	if cfg.UploadServiceURL != "" {
		remote := submission.NewHTTPClient(cfg.UploadServiceURL, 30*time.Second)
		srv.UseRemoteMedia(remote, remote)
		log.Info("submitting recordings to upload service", zap.String("url", cfg.UploadServiceURL))
	}

	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Router(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Logger,
			middleware.Recoverer,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("practice-service listening", zap.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		srv.RunRedisSubscriber(gCtx)
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down", zap.Int("sessions", srv.Hub().Total()))
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
