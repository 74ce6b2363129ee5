// Command syncwatch tails the sync stream a socialsync daemon mirrors to
// Redis and prints one line per event.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialsync/internal/config"
	"socialsync/internal/logger"
	"socialsync/internal/queue"
	"socialsync/internal/redis"
	"socialsync/internal/worker"
)

func main() {
	var (
		group   = flag.String("group", queue.ConsumerGroupWatchers, "consumer group name")
		session = flag.String("session", "", "only print events from this daemon session id")
		replay  = flag.Bool("replay", false, "a new group starts from the oldest retained event")
		workers = flag.Int("workers", worker.DefaultWorkerCount, "number of consumer goroutines")
		block   = flag.Duration("block", worker.DefaultBlockTimeout, "XREADGROUP block timeout")
	)
	flag.Parse()

	if err := run(*group, *session, *replay, *workers, *block); err != nil {
		logger.Fatalf("syncwatch failed: %v", err)
	}
}

func run(group, session string, replay bool, workers int, block time.Duration) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)
	defer logger.Sync()

	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is not set; the sync stream lives in Redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.Open(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	start := queue.StartNew
	if replay {
		start = queue.StartOldest
	}

	handler := worker.NewHandler(os.Stdout, session)
	manager := worker.NewManager(queue.NewConsumer(rdb), handler, worker.ManagerConfig{
		Stream:       cfg.SyncStream,
		Group:        group,
		Start:        start,
		WorkerCount:  workers,
		BlockTimeout: block,
	})
	if err := manager.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	manager.Stop()

	stats := handler.Stats()
	logger.Infof("[syncwatch] Processed %d events: %v", stats.Total, stats.ByType)
	return nil
}
