package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"socialsync/internal/logger"
	"socialsync/internal/model"
)

const (
	// StateKeyPrefix is the key prefix for persisted client state hashes.
	StateKeyPrefix = "socialsync:state:"

	fieldAuth  = "auth"
	fieldTheme = "theme"

	// StateTTL bounds how long an abandoned profile lingers (30 days). It is
	// refreshed on every write.
	StateTTL = 30 * 24 * time.Hour
)

// RedisStore implements Store with one hash per profile: fields "auth" and
// "theme" hold the two slices.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Store backed by Redis for the given profile name.
func NewRedisStore(client *redis.Client, profile string) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisStore{client: client, key: StateKeyPrefix + profile}
}

func (s *RedisStore) get(ctx context.Context, field string) (string, error) {
	v, err := s.client.HGet(ctx, s.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		logger.Warnf("[RedisStore] HGet FAILED: key=%s field=%s err=%v", s.key, field, err)
		return "", fmt.Errorf("hget %s: %w", field, err)
	}
	return v, nil
}

// set writes one field and refreshes the TTL in a single pipeline.
func (s *RedisStore) set(ctx context.Context, field, value string) error {
	startTime := time.Now()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, field, value)
	pipe.Expire(ctx, s.key, StateTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnf("[RedisStore] Save FAILED: key=%s field=%s err=%v", s.key, field, err)
		return fmt.Errorf("save %s: %w", field, err)
	}

	logger.Debugf("[RedisStore] Save OK: key=%s field=%s duration=%v", s.key, field, time.Since(startTime))
	return nil
}

func (s *RedisStore) LoadAuth(ctx context.Context) (*model.AuthState, error) {
	raw, err := s.get(ctx, fieldAuth)
	if err != nil {
		return nil, err
	}
	var state model.AuthState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decode auth: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) SaveAuth(ctx context.Context, state *model.AuthState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode auth: %w", err)
	}
	return s.set(ctx, fieldAuth, string(data))
}

func (s *RedisStore) ClearAuth(ctx context.Context) error {
	if err := s.client.HDel(ctx, s.key, fieldAuth).Err(); err != nil {
		return fmt.Errorf("clear auth: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadTheme(ctx context.Context) (string, error) {
	return s.get(ctx, fieldTheme)
}

func (s *RedisStore) SaveTheme(ctx context.Context, theme string) error {
	return s.set(ctx, fieldTheme, theme)
}
