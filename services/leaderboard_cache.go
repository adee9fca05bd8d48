package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"civic-gamification/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisLeaderboardCache keeps leaderboard snapshots in Redis as JSON.
type RedisLeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisLeaderboardCache(addr, password string, db int, ttl time.Duration, logger *zap.Logger) *RedisLeaderboardCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisLeaderboardCache{client: client, ttl: ttl, logger: logger}
}

func cacheKey(timeRange models.TimeRange, period string) string {
	return fmt.Sprintf("gamification:leaderboard:%s:%s", timeRange, period)
}

func (r *RedisLeaderboardCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLeaderboardCache) Get(ctx context.Context, timeRange models.TimeRange, period string) (*models.Leaderboard, error) {
	key := cacheKey(timeRange, period)
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		r.logger.Debug("cache miss", zap.String("key", key))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s from cache: %w", key, err)
	}

	var lb models.Leaderboard
	if err := json.Unmarshal(val, &lb); err != nil {
		return nil, fmt.Errorf("decode cached leaderboard %s: %w", key, err)
	}
	r.logger.Debug("cache hit", zap.String("key", key))
	return &lb, nil
}

func (r *RedisLeaderboardCache) Set(ctx context.Context, lb *models.Leaderboard) error {
	key := cacheKey(lb.TimeRange, lb.Period)
	payload, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("encode leaderboard %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s in cache: %w", key, err)
	}
	return nil
}

func (r *RedisLeaderboardCache) Close() error {
	return r.client.Close()
}
