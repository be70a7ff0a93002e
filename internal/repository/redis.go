package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cupgame/telemetry/config"
	"github.com/cupgame/telemetry/internal/model"
)

const (
	// Projection key namespaces.
	PresenceKeyPrefix    = "presence:"
	LeaderboardKeyPrefix = "leaderboard:"
	UniquesKeyPrefix     = "uniques:"

	// SCAN page size for the online count.
	scanPageSize = 1000
)

// RedisRepository is the projection store. All writes are single-key Redis
// operations, atomic at the store; no multi-key transactions are used. Every
// method takes the caller's context so a stuck call is bounded per event.
type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository() (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.AppConfig.Redis.Address,
		Password:     config.AppConfig.Redis.Password,
		DB:           config.AppConfig.Redis.DB,
		PoolSize:     config.AppConfig.Redis.PoolSize,
		MaxRetries:   config.AppConfig.Redis.MaxRetries,
		DialTimeout:  config.AppConfig.Redis.Timeout,
		ReadTimeout:  config.AppConfig.Redis.Timeout,
		WriteTimeout: config.AppConfig.Redis.Timeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisRepository{client: client}, nil
}

// SetPresence overwrites the presence record for a user and resets its TTL.
// Expiry is the only removal path for presence; there is no delete.
func (r *RedisRepository) SetPresence(ctx context.Context, userID, region string, ttl time.Duration) error {
	key := PresenceKeyPrefix + userID
	if err := r.client.Set(ctx, key, region, ttl).Err(); err != nil {
		return fmt.Errorf("set presence for %q: %w", userID, err)
	}
	return nil
}

// IncrementScore adds amount to the user's cumulative score in the match
// leaderboard. Increment, not set: redelivered events double-count.
func (r *RedisRepository) IncrementScore(ctx context.Context, matchID, userID string, amount int) error {
	key := LeaderboardKeyPrefix + matchID
	if err := r.client.ZIncrBy(ctx, key, float64(amount), userID).Err(); err != nil {
		return fmt.Errorf("increment score for %q in %q: %w", userID, matchID, err)
	}
	return nil
}

// TopPlayers returns up to limit (member, score) pairs in descending score
// order. Redis orders equal scores lexicographically by member, giving a
// deterministic userId-ascending tiebreak. A missing set yields an empty
// slice, not an error.
func (r *RedisRepository) TopPlayers(ctx context.Context, matchID string, limit int) ([]model.MemberScore, error) {
	key := LeaderboardKeyPrefix + matchID
	pairs, err := r.client.ZRevRangeWithScores(ctx, key, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard %q: %w", matchID, err)
	}

	scores := make([]model.MemberScore, 0, len(pairs))
	for _, pair := range pairs {
		member, _ := pair.Member.(string)
		scores = append(scores, model.MemberScore{UserID: member, Score: pair.Score})
	}
	return scores, nil
}

// AddUnique adds the user to the minute bucket's HyperLogLog and resets the
// bucket's TTL. Sliding expiry: a bucket receiving traffic in its own minute
// can outlive the nominal TTL.
func (r *RedisRepository) AddUnique(ctx context.Context, bucket, userID string, ttl time.Duration) error {
	key := UniquesKeyPrefix + bucket
	pipe := r.client.Pipeline()
	pipe.PFAdd(ctx, key, userID)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add unique %q to bucket %q: %w", userID, bucket, err)
	}
	return nil
}

// UniqueCount returns the approximate distinct-player count for a minute
// bucket. A missing bucket counts as zero.
func (r *RedisRepository) UniqueCount(ctx context.Context, bucket string) (int64, error) {
	key := UniquesKeyPrefix + bucket
	count, err := r.client.PFCount(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("count uniques bucket %q: %w", bucket, err)
	}
	return count, nil
}

// OnlineCount counts non-expired presence keys with a cursor SCAN over the
// presence prefix. Point-in-time approximation only: keys can expire while
// the scan walks the keyspace.
func (r *RedisRepository) OnlineCount(ctx context.Context) (int64, error) {
	var total int64
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, PresenceKeyPrefix+"*", scanPageSize).Result()
		if err != nil {
			return 0, fmt.Errorf("scan presence keys: %w", err)
		}
		total += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

// Ping verifies store connectivity, used by the health route.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection pool.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
