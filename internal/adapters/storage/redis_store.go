package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"facebook-action/internal/core/ports"
)

// Ensure RedisStore implements the storage ports
var (
	_ ports.FileStorage = (*RedisStore)(nil)
	_ ports.FileReader  = (*RedisStore)(nil)
)

// RedisStore keeps files as Redis string values
// A zero ttl keeps files until they are evicted
type RedisStore struct {
	client  *redis.Client
	baseURL string
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisStore creates a new Redis-backed file store
func NewRedisStore(client *redis.Client, baseURL string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		timeout: 5 * time.Second,
	}
}

// Save stores data under path
func (s *RedisStore) Save(path string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := buildFileKey(path)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		slog.Error("Failed to store file",
			"error", err,
			"key", key,
		)
		return fmt.Errorf("save file %s: %w", path, err)
	}

	slog.Debug("File stored", "backend", "redis", "key", key, "size", len(data), "ttl", s.ttl)
	return nil
}

// PublicURL returns the web-accessible URL of path
func (s *RedisStore) PublicURL(path string) string {
	return publicURL(s.baseURL, path)
}

// Load returns the stored bytes, ports.ErrNotFound when absent or expired
func (s *RedisStore) Load(ctx context.Context, path string) ([]byte, error) {
	data, err := s.client.Get(ctx, buildFileKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load file %s: %w", path, err)
	}
	return data, nil
}

// buildFileKey constructs the Redis key for a stored file
// Key format: file:{path}
func buildFileKey(path string) string {
	return fmt.Sprintf("file:%s", strings.TrimPrefix(path, "/"))
}
