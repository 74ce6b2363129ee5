package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"socialsync/internal/logger"
)

// StreamMaxLen caps the sync stream. Trimming is approximate (~) so XADD
// stays O(1).
const StreamMaxLen = 10000

// Publisher mirrors sync events to a stream that watchers tail.
type Publisher interface {
	// Publish appends event and returns the stream entry id.
	Publish(ctx context.Context, stream string, event SyncEvent) (entryID string, err error)
}

// RedisPublisher appends to a Redis stream.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) Publisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish adds an event to the stream using XADD with an approximate MAXLEN.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event SyncEvent) (string, error) {
	start := time.Now()

	values, err := event.ToMap()
	if err != nil {
		logger.Warnf("[Publisher] Publish FAILED: stream=%s type=%s err=%v", stream, event.Type, err)
		return "", fmt.Errorf("serialize event: %w", err)
	}

	entryID, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: StreamMaxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		logger.Warnf("[Publisher] Publish FAILED: stream=%s type=%s err=%v", stream, event.Type, err)
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	logger.Debugf("[Publisher] Publish OK: stream=%s type=%s id=%s session=%s took=%v",
		stream, event.Type, entryID, event.Session, time.Since(start))

	switch event.Type {
	case EventMessageReceived:
		logger.Debugf("[Publisher]   -> conversation=%s message=%s", event.ConversationID, event.MessageID)
	case EventCommentAdded, EventCommentDeleted:
		logger.Debugf("[Publisher]   -> post=%s comment=%s", event.PostID, event.CommentID)
	}

	return entryID, nil
}
