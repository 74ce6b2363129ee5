package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"socialsync/internal/logger"
	"socialsync/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of worker goroutines
	DefaultWorkerCount = 1

	// DefaultBatchSize is the number of messages to read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for new messages
	DefaultBlockTimeout = 5 * time.Second

	// DefaultClaimIdle is how long a message may sit unacked with another
	// consumer before a worker takes it over.
	DefaultClaimIdle = time.Minute

	readErrorDelay = time.Second
)

// Manager runs worker goroutines that consume the sync stream through a
// consumer group.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	stream      string
	group       string
	start       string
	name        string
	workerCount int
	batchSize   int64
	blockTime   time.Duration
	claimIdle   time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	Stream       string        // Stream key, default queue.StreamSync
	Group        string        // Consumer group, default queue.ConsumerGroupWatchers
	Start        string        // Where a new group starts, queue.StartNew or queue.StartOldest
	Name         string        // Consumer name prefix, default host-pid
	WorkerCount  int           // Number of worker goroutines
	BatchSize    int64         // Messages per read
	BlockTimeout time.Duration // Block time for XREADGROUP
	ClaimIdle    time.Duration // Min idle time before claiming another consumer's messages
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Stream:       queue.StreamSync,
		Group:        queue.ConsumerGroupWatchers,
		Start:        queue.StartNew,
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
		ClaimIdle:    DefaultClaimIdle,
	}
}

// NewManager creates a new worker manager.
func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	def := DefaultManagerConfig()
	if cfg.Stream == "" {
		cfg.Stream = def.Stream
	}
	if cfg.Group == "" {
		cfg.Group = def.Group
	}
	if cfg.Start == "" {
		cfg.Start = def.Start
	}
	if cfg.Name == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "watcher"
		}
		cfg.Name = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = def.BlockTimeout
	}
	if cfg.ClaimIdle <= 0 {
		cfg.ClaimIdle = def.ClaimIdle
	}

	return &Manager{
		consumer:    consumer,
		handler:     handler,
		stream:      cfg.Stream,
		group:       cfg.Group,
		start:       cfg.Start,
		name:        cfg.Name,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
		claimIdle:   cfg.ClaimIdle,
	}
}

// Start ensures the consumer group exists and begins the worker goroutines.
// Call Stop() to shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, m.stream, m.group, m.start); err != nil {
		m.cancel()
		return err
	}

	logger.Infof("[Manager] Starting %d workers for stream=%s group=%s", m.workerCount, m.stream, m.group)

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, m.consumerName(workerID))
	}
	return nil
}

// Stop shuts down all workers and blocks until they have finished.
func (m *Manager) Stop() {
	logger.Infof("[Manager] Stopping workers...")
	m.cancel()
	m.wg.Wait()
	logger.Infof("[Manager] All workers stopped")
}

func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	logger.Infof("[Worker-%d] Started (consumer=%s)", workerID, consumerName)

	// Messages this consumer read but never acked (previous crash), then
	// messages stranded with consumers that are gone.
	m.processPending(workerID, consumerName)
	m.processClaimed(workerID, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			logger.Infof("[Worker-%d] Shutting down", workerID)
			return
		default:
			m.processMessages(workerID, consumerName)
		}
	}
}

func (m *Manager) processPending(workerID int, consumerName string) {
	for m.ctx.Err() == nil {
		messages, err := m.consumer.ReadPending(m.ctx, m.stream, m.group, consumerName, m.batchSize)
		if err != nil {
			logger.Warnf("[Worker-%d] Error reading pending: %v", workerID, err)
			return
		}
		if len(messages) == 0 {
			return
		}

		logger.Infof("[Worker-%d] Processing %d pending messages", workerID, len(messages))
		m.handleMessages(workerID, messages)
	}
}

func (m *Manager) processClaimed(workerID int, consumerName string) {
	messages, err := m.consumer.Claim(m.ctx, m.stream, m.group, consumerName, m.claimIdle, m.batchSize)
	if err != nil {
		logger.Warnf("[Worker-%d] Error claiming: %v", workerID, err)
		return
	}
	if len(messages) > 0 {
		logger.Infof("[Worker-%d] Processing %d claimed messages", workerID, len(messages))
		m.handleMessages(workerID, messages)
	}
}

func (m *Manager) processMessages(workerID int, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, m.stream, m.group, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		logger.Warnf("[Worker-%d] Error reading: %v", workerID, err)
		select {
		case <-m.ctx.Done():
		case <-time.After(readErrorDelay):
		}
		return
	}

	if len(messages) == 0 {
		return
	}
	m.handleMessages(workerID, messages)
}

// handleMessages renders a batch and acknowledges every message, including
// ones the handler rejected, so a bad event is never redelivered forever.
func (m *Manager) handleMessages(workerID int, messages []queue.Message) {
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			logger.Warnf("[Worker-%d] Handler error msgID=%s: %v", workerID, msg.ID, err)
		}
		ids = append(ids, msg.ID)
	}

	if err := m.consumer.Ack(m.ctx, m.stream, m.group, ids...); err != nil {
		logger.Warnf("[Worker-%d] ACK error ids=%v: %v", workerID, ids, err)
	}
}

func (m *Manager) consumerName(workerID int) string {
	return fmt.Sprintf("%s-w%d", m.name, workerID)
}
