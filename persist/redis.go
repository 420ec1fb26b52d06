package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/jonwraymond/respcache/cache"
)

// RedisStore persists state as a JSON document under one Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore wraps an existing client. An empty key uses DefaultRedisKey.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// DialRedis connects with opts and verifies the connection with PING.
func DialRedis(ctx context.Context, opts *redis.Options, key string) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("persist: connect redis %s: %w", opts.Addr, err)
	}
	return NewRedisStore(client, key), nil
}

// Name implements Backend.
func (s *RedisStore) Name() string { return DriverRedis }

// Key returns the Redis key holding the record.
func (s *RedisStore) Key() string { return s.key }

// Load reads the record. A missing key yields (nil, nil).
func (s *RedisStore) Load(ctx context.Context) (*cache.State, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist: redis get: %w", err)
	}
	return decodeState(data)
}

// Save overwrites the record. SET is atomic.
func (s *RedisStore) Save(ctx context.Context, st *cache.State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("persist: redis set: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Backend = (*RedisStore)(nil)
