package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ilinovom/feedbot/internal/model"
)

const redisKeyPrefix = "feedbot:dialogue:"

// RedisStore keeps each dialogue under its own Redis key.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore parses a redis:// URL and pings the server.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	s := NewRedisStoreFromClient(redis.NewClient(opts))
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		s.rdb.Close()
		return nil, err
	}
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Keys walks the keyspace with SCAN so large stores do not block the server.
// SCAN may repeat a key while the table rehashes; each key is returned once.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	seen := map[string]struct{}{}
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := strings.TrimPrefix(iter.Val(), redisKeyPrefix)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, iter.Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (model.Dialogue, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Dialogue{}, ErrNotFound
		}
		return model.Dialogue{}, err
	}
	return decode(key, raw)
}

func (s *RedisStore) Save(ctx context.Context, key string, d model.Dialogue) error {
	b, err := model.Encode(d)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisKeyPrefix+key, b, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
