// Package redis mirrors diagnostic entries into a Redis list.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store appends diagnostic entries to a Redis list with RPUSH.
type Store struct {
	client *redis.Client
	key    string
}

// NewStore creates a Redis mirror writing to key.
func NewStore(client *redis.Client, key string) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if key == "" {
		return nil, errors.New("list key cannot be empty")
	}

	return &Store{
		client: client,
		key:    key,
	}, nil
}

// Ensure checks that the server is reachable.
func (s *Store) Ensure(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Append pushes entry to the tail of the list.
func (s *Store) Append(ctx context.Context, entry string) error {
	if err := s.client.RPush(ctx, s.key, entry).Err(); err != nil {
		return fmt.Errorf("failed to mirror log entry: %w", err)
	}
	return nil
}

// Entries returns every mirrored entry in append order.
func (s *Store) Entries(ctx context.Context) ([]string, error) {
	entries, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read mirrored entries: %w", err)
	}
	return entries, nil
}
