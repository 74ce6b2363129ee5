package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"socialsync/internal/config"
	"socialsync/internal/logger"
	"socialsync/internal/model"
	"socialsync/internal/persist"
	"socialsync/internal/queue"
	"socialsync/internal/redis"
	"socialsync/internal/session"
)

const shutdownTimeout = 10 * time.Second

func Run() error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Persisted state: Redis when configured, files otherwise
	var (
		state     persist.Store
		publisher queue.Publisher
		rdb       *goredis.Client
	)
	if cfg.RedisURL != "" {
		rdb, err = redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		state = persist.NewRedisStore(rdb, cfg.Profile)
		publisher = queue.NewPublisher(rdb)
	} else {
		fs, err := persist.NewFileStore(cfg.StateDir)
		if err != nil {
			return fmt.Errorf("failed to open state dir: %w", err)
		}
		state = fs
	}

	// 3. Session: restore a previous sign-in if there is one
	sess := session.New(session.Options{
		Config:    cfg,
		State:     state,
		Publisher: publisher,
	})
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		if !errors.Is(err, model.ErrNotAuthenticated) && !errors.Is(err, model.ErrSessionExpired) {
			return fmt.Errorf("failed to restore session: %w", err)
		}
		logger.Infof("[Server] No active session, waiting for sign-in")
	}

	// 4. Local API
	srv := &stdhttp.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewRouter(NewRouterConfig(sess, cfg.LocalAPIToken)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[Server] Local API listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
