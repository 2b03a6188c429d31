package blobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buralog/etl-healthcare/internal/adapter"
)

const blobKeyPrefix = "blob:"

// RedisStore is a Redis-backed content-addressed blob store. Blobs expire
// after the configured TTL; the pipeline's bounded redelivery window must fit
// inside it.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a blob store from a Redis URL.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// NewRedisStoreFromClient creates a blob store from an existing connection.
func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Put stages the payload under blob:{sha256} and refreshes the TTL.
func (s *RedisStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	key := blobKeyPrefix + adapter.ContentHash(data)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "data", data, "content_type", contentType)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("stage blob: %w", err)
	}

	return key, nil
}

// Get retrieves a staged blob by key.
func (s *RedisStore) Get(ctx context.Context, key string) (*Blob, error) {
	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch blob: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}

	return &Blob{
		Data:        []byte(values["data"]),
		ContentType: values["content_type"],
	}, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
