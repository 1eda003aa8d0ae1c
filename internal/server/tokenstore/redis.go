// Package tokenstore is the key-value store backing auth tokens: Redis,
// connected lazily and shared by all requests.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned by GetEx for absent or expired keys.
var ErrKeyNotFound = errors.New("key not found")

const defaultCommandTimeout = time.Second

var newRedisClient = redis.NewClient

// RedisStore opens its connection on first use. A failed connect is not
// cached; the next call tries again.
type RedisStore struct {
	opts    *redis.Options
	timeout time.Duration

	mu     sync.Mutex
	client *redis.Client
}

// NewRedisStore records the connection parameters. Nothing is dialled
// until the first command.
func NewRedisStore(addr, password string, db int, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &RedisStore{
		opts: &redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
		timeout: timeout,
	}
}

func (s *RedisStore) conn(ctx context.Context) (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	c := newRedisClient(s.opts)
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := c.Ping(pctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	s.client = c
	return c, nil
}

// SetEx stores value under key for ttl.
func (s *RedisStore) SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return c.SetEx(ctx, key, value, ttl).Err()
}

// GetEx reads key and resets its expiry to ttl in the same command.
func (s *RedisStore) GetEx(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	v, err := c.GetEx(ctx, key, ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

// Ping reports whether the store is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return c.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
