package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const backendTimeout = 2 * time.Second

// Backend is a shared byte-level store behind the in-process cache, letting several
// processes reuse each other's remote reads.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// RedisBackend stores entries in Redis under a namespace prefix.
type RedisBackend struct {
	client    redis.UniversalClient
	namespace string
}

// NewRedisBackend wraps an existing client. Keys are stored as "<namespace>:<key>".
func NewRedisBackend(client redis.UniversalClient, namespace string) *RedisBackend {
	return &RedisBackend{client: client, namespace: namespace}
}

// NewRedisBackendFromURL connects using a redis:// URL.
func NewRedisBackendFromURL(ctx context.Context, url, namespace string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisBackend(client, namespace), nil
}

func (b *RedisBackend) key(key string) string {
	return b.namespace + ":" + key
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return raw, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, b.key(key), value, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.key(key)).Err()
}

// DeletePrefix scans the namespace for matching keys and deletes them in pages.
func (b *RedisBackend) DeletePrefix(ctx context.Context, prefix string) error {
	iter := b.client.Scan(ctx, 0, b.key(prefix)+"*", 100).Iterator()

	keys := make([]string, 0, 100)

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())

		if len(keys) == cap(keys) {
			if err := b.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}

			keys = keys[:0]
		}
	}

	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}

	return b.client.Del(ctx, keys...).Err()
}

// Close releases the client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
