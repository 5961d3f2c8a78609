package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikey/mail-priority/internal/core"
)

const redisKeyPrefix = "mail-priority:digest:"

// RedisStore is a Redis implementation of core.DigestStore. Expiry is left
// to Redis key TTLs.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisStore connects to the Redis server at redisURL
func NewRedisStore(ctx context.Context, redisURL string, logger *zap.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(client, logger), nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func redisKey(mailbox string) string {
	return redisKeyPrefix + mailbox
}

// Get retrieves the digest for a mailbox
func (s *RedisStore) Get(ctx context.Context, mailbox string) (*core.Digest, error) {
	data, err := s.client.Get(ctx, redisKey(mailbox)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrDigestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read digest: %w", err)
	}

	digest, err := decodeDigest(data)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(digest.ExpiresAt) {
		return nil, core.ErrDigestNotFound
	}
	return digest, nil
}

// Set stores a digest with a TTL matching its expiry
func (s *RedisStore) Set(ctx context.Context, digest *core.Digest) error {
	ttl := digest.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, digest.Mailbox)
	}

	data, err := encodeDigest(digest)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(digest.Mailbox), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store digest: %w", err)
	}
	return nil
}

// Delete removes the digest for a mailbox
func (s *RedisStore) Delete(ctx context.Context, mailbox string) error {
	if err := s.client.Del(ctx, redisKey(mailbox)).Err(); err != nil {
		return fmt.Errorf("failed to delete digest: %w", err)
	}
	return nil
}

// Cleanup is a no-op, Redis expires keys itself
func (s *RedisStore) Cleanup(ctx context.Context) error {
	return nil
}

// Stop closes the client
func (s *RedisStore) Stop() {
	if err := s.client.Close(); err != nil {
		s.logger.Error("Failed to close redis client", zap.Error(err))
	}
}
