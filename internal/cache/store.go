package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LocalStore is an in-process Store backed by an LRUCache.
type LocalStore struct {
	lru *LRUCache[[]byte]
}

func NewLocalStore(maxSize int, defaultTTL time.Duration) *LocalStore {
	return &LocalStore{lru: NewLRUCache[[]byte](maxSize, defaultTTL)}
}

// Cleaner exposes the underlying LRU for registration with a Manager.
func (s *LocalStore) Cleaner() Cleaner { return s.lru }

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.lru.SetWithTTL(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *LocalStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.lru.Delete(k)
	}
	return nil
}

// RedisStore keeps entries in Redis under a key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient parses REDIS_URL-style input. A bare host:port is accepted.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		redisURL = "localhost:6379"
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt, err = redis.ParseURL("redis://" + redisURL)
	}
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.SetEx(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
