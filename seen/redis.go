package seen

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the sorted set used when no key is configured.
const DefaultRedisKey = "newsharvest:seen"

// connectionTimeout bounds the initial ping.
const connectionTimeout = 5 * time.Second

// RedisStore keeps seen articles in one sorted set: member is the article
// URL, score is firstSeenAt in unix milliseconds.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisStoreFromURL connects using a redis:// URL and verifies the
// connection.
func NewRedisStoreFromURL(ctx context.Context, rawURL, key string, opts ...Option) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, storeErr("open", fmt.Errorf("invalid redis url: %w", err))
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, storeErr("open", fmt.Errorf("redis ping failed: %w", err))
	}

	return NewRedisStore(client, key, opts...), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, key string, opts ...Option) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	o := buildOptions(opts)
	return &RedisStore{client: client, key: key, now: o.now}
}

// Has reports whether url has been recorded.
func (s *RedisStore) Has(ctx context.Context, url string) (bool, error) {
	err := s.client.ZScore(ctx, s.key, url).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("has", err)
	}
	return true, nil
}

// Record adds url unless it is already present. ZADD NX never updates an
// existing score, so firstSeenAt is kept.
func (s *RedisStore) Record(ctx context.Context, url string) error {
	member := redis.Z{Score: float64(s.now().UnixMilli()), Member: url}
	if err := s.client.ZAddNX(ctx, s.key, member).Err(); err != nil {
		return storeErr("record", err)
	}
	return nil
}

// Sweep removes members scored before now-retention.
func (s *RedisStore) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).UnixMilli()
	removed, err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		return 0, storeErr("sweep", err)
	}
	return removed, nil
}

// Count returns the number of stored records.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, storeErr("count", err)
	}
	return int(n), nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
