package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"socialsync/internal/logger"
)

// Group start positions for EnsureGroup.
const (
	// StartNew makes a new group see only events published after it was created.
	StartNew = "$"
	// StartOldest makes a new group replay the whole retained stream.
	StartOldest = "0"
)

// Message is one event read from a stream.
type Message struct {
	ID    string // stream entry id, e.g. "1702000000000-0"
	Event SyncEvent
}

// Consumer defines the interface for consuming events from a stream.
type Consumer interface {
	// EnsureGroup creates the consumer group (and the stream) if missing.
	EnsureGroup(ctx context.Context, stream, group, start string) error

	// Read returns up to count new messages for this consumer, blocking up to
	// block. A timeout returns no messages and no error.
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)

	// ReadPending returns messages delivered to this consumer but not acked.
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)

	// Claim takes over messages idle for longer than minIdle from any consumer
	// in the group, e.g. a watcher that died mid-batch.
	Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]Message, error)

	// Ack removes messages from the group's pending list.
	Ack(ctx context.Context, stream, group string, messageIDs ...string) error

	// Pending returns the number of unacknowledged messages in the group.
	Pending(ctx context.Context, stream, group string) (int64, error)
}

// RedisConsumer implements Consumer using Redis Streams consumer groups.
type RedisConsumer struct {
	client *redis.Client
}

// NewConsumer creates a new Consumer backed by Redis Streams.
func NewConsumer(client *redis.Client) Consumer {
	return &RedisConsumer{client: client}
}

func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group, start string) error {
	if start == "" {
		start = StartNew
	}

	err := c.client.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			logger.Debugf("[Consumer] EnsureGroup: stream=%s group=%s (exists)", stream, group)
			return nil
		}
		logger.Warnf("[Consumer] EnsureGroup FAILED: stream=%s group=%s err=%v", stream, group, err)
		return fmt.Errorf("create consumer group: %w", err)
	}

	logger.Infof("[Consumer] EnsureGroup OK: stream=%s group=%s start=%s", stream, group, start)
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	return c.readGroup(ctx, "Read", &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	})
}

func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	return c.readGroup(ctx, "ReadPending", &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, "0"},
		Count:    count,
	})
}

func (c *RedisConsumer) readGroup(ctx context.Context, op string, args *redis.XReadGroupArgs) ([]Message, error) {
	startTime := time.Now()

	streams, err := c.client.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		logger.Warnf("[Consumer] %s FAILED: stream=%s group=%s consumer=%s err=%v",
			op, args.Streams[0], args.Group, args.Consumer, err)
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var messages []Message
	for _, s := range streams {
		messages = append(messages, parseMessages(op, s.Messages)...)
	}

	if len(messages) > 0 {
		logger.Debugf("[Consumer] %s OK: stream=%s consumer=%s count=%d duration=%v",
			op, args.Streams[0], args.Consumer, len(messages), time.Since(startTime))
	}
	return messages, nil
}

func (c *RedisConsumer) Claim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]Message, error) {
	claimed, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logger.Warnf("[Consumer] Claim FAILED: stream=%s group=%s err=%v", stream, group, err)
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}

	messages := parseMessages("Claim", claimed)
	if len(messages) > 0 {
		logger.Infof("[Consumer] Claim OK: stream=%s consumer=%s count=%d", stream, consumer, len(messages))
	}
	return messages, nil
}

// parseMessages skips entries that do not decode; they would fail forever.
func parseMessages(op string, raw []redis.XMessage) []Message {
	messages := make([]Message, 0, len(raw))
	for _, msg := range raw {
		event, err := ParseSyncEvent(msg.Values)
		if err != nil {
			logger.Warnf("[Consumer] %s parse error: msgID=%s err=%v", op, msg.ID, err)
			continue
		}
		messages = append(messages, Message{ID: msg.ID, Event: event})
	}
	return messages
}

func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	acked, err := c.client.XAck(ctx, stream, group, messageIDs...).Result()
	if err != nil {
		logger.Warnf("[Consumer] Ack FAILED: stream=%s group=%s ids=%v err=%v", stream, group, messageIDs, err)
		return fmt.Errorf("xack: %w", err)
	}

	logger.Debugf("[Consumer] Ack OK: stream=%s group=%s acked=%d", stream, group, acked)
	return nil
}

func (c *RedisConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	info, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}
	return info.Count, nil
}
