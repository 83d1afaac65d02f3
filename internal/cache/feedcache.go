// Package cache is the viewer-keyed local persistence for the last-known
// feed, consulted for instant initial paint and written after every
// successful refresh.
package cache

import (
	"encoding/json"
	"time"

	"github.com/go-redis/redis"

	"github.com/WiggoHelgesson/stridefeed/internal/models"
)

const feedKeyPrefix = "stridefeed:feed:"

// Store is the contract the feed actor depends on; tests substitute an
// in-memory implementation.
type Store interface {
	// Feed returns the cached post list for a viewer. A cache miss is
	// (nil, nil), not an error.
	Feed(viewerID string) ([]*models.Post, error)
	SaveFeed(viewerID string, posts []*models.Post) error
}

// RedisStore keeps serialized post lists in Redis with a TTL. Counts inside
// a cached copy may be stale; readers are expected to pass them through the
// known-good merge before display.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping().Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Feed(viewerID string) ([]*models.Post, error) {
	raw, err := s.client.Get(feedKeyPrefix + viewerID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var posts []*models.Post
	if err := json.Unmarshal([]byte(raw), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *RedisStore) SaveFeed(viewerID string, posts []*models.Post) error {
	encoded, err := json.Marshal(posts)
	if err != nil {
		return err
	}
	return s.client.Set(feedKeyPrefix+viewerID, encoded, s.ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
